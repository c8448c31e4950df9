package game

import (
	"errors"
	"fmt"
)

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrBetNotFound         = errors.New("bet not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrTemplateNotFound    = errors.New("template not found")

	ErrInvalidBet      = errors.New("invalid bet")
	ErrInvalidNickname = errors.New("invalid nickname")
	ErrInvalidRoomCode = errors.New("invalid room code")
	ErrInvalidOption   = errors.New("invalid option")
	ErrEmptyTranscript = errors.New("empty transcript text")

	ErrNotHost        = errors.New("not host")
	ErrNotParticipant = errors.New("not a participant")
	ErrUnauthorized   = errors.New("unauthorized")

	ErrInvalidTransition = errors.New("invalid transition")
	ErrVersionConflict   = errors.New("version conflict")
	ErrDuplicateWager    = errors.New("already placed a wager on this bet")
	ErrAlreadyResolved   = errors.New("bet already resolved")
	ErrUndoWindowExpired = errors.New("undo window expired")
	ErrAnotherBetOpen    = errors.New("another bet is already open")
	ErrRoomFinished      = errors.New("room finished")
	ErrRoomExpired       = errors.New("room expired")

	ErrBetNotOpen         = errors.New("bet is not open")
	ErrInsufficientPoints = errors.New("insufficient points")

	ErrUnavailable = errors.New("infrastructure unavailable")
)

// TransitionError reports a status change the state machine refused.
type TransitionError struct {
	From BetStatus
	To   BetStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s -> %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// VersionConflictError carries the version the caller must refetch.
type VersionConflictError struct {
	Expected int64
	Current  int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict: expected %d, current %d", e.Expected, e.Current)
}

func (e *VersionConflictError) Unwrap() error { return ErrVersionConflict }

type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
	KindResource      Kind = "resource"
	KindUnavailable   Kind = "unavailable"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrUnavailable, KindUnavailable},
	{ErrRoomNotFound, KindNotFound},
	{ErrBetNotFound, KindNotFound},
	{ErrParticipantNotFound, KindNotFound},
	{ErrTemplateNotFound, KindNotFound},
	{ErrInvalidBet, KindValidation},
	{ErrInvalidNickname, KindValidation},
	{ErrInvalidRoomCode, KindValidation},
	{ErrInvalidOption, KindValidation},
	{ErrEmptyTranscript, KindValidation},
	{ErrNotHost, KindAuthorization},
	{ErrNotParticipant, KindAuthorization},
	{ErrUnauthorized, KindAuthorization},
	{ErrInvalidTransition, KindConflict},
	{ErrVersionConflict, KindConflict},
	{ErrDuplicateWager, KindConflict},
	{ErrAlreadyResolved, KindConflict},
	{ErrUndoWindowExpired, KindConflict},
	{ErrAnotherBetOpen, KindConflict},
	{ErrRoomFinished, KindConflict},
	{ErrRoomExpired, KindConflict},
	{ErrBetNotOpen, KindResource},
	{ErrInsufficientPoints, KindResource},
}

// KindOf classifies err. Anything unrecognised is treated as unavailable so
// that callers never mistake an infrastructure failure for a rejection.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnavailable
}
