// Package store persists rooms and their documents. Every multi-document
// change runs in a room-scoped transaction whose reads are version checked
// at commit.
package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ravigummadi/smallbets.live/internal/game"
)

var (
	// ErrExists is returned by CreateRoom when the code is taken by a live room.
	ErrExists = errors.New("room code taken")
	// errConflict is a failed commit. Update retries it and surfaces
	// game.ErrVersionConflict once attempts run out.
	errConflict = errors.New("commit conflict")
)

const DefaultMaxAttempts = 8

type Stream string

const (
	StreamTranscript Stream = "transcript"
	StreamAutomation Stream = "automation"
)

// Tx is the view of one room inside a transaction. Reads see the
// transaction's own writes.
type Tx interface {
	Room() (*game.Room, error)
	Participant(userID string) (*game.Participant, error)
	Participants() ([]*game.Participant, error)
	Bet(betID string) (*game.Bet, error)
	Bets() ([]*game.Bet, error)
	// Wager returns nil, nil when the participant has no wager on the bet.
	Wager(betID, userID string) (*game.Wager, error)
	Wagers(betID string) ([]*game.Wager, error)

	PutRoom(r *game.Room) error
	PutParticipant(p *game.Participant) error
	PutBet(b *game.Bet) error
	PutWager(w *game.Wager) error
}

type Store interface {
	// CreateRoom inserts room and its host atomically, or fails with
	// ErrExists. A room holding the code that has expired by
	// room.CreatedAt is recycled.
	CreateRoom(ctx context.Context, room *game.Room, host *game.Participant) error
	DeleteRoom(ctx context.Context, code string) error

	View(ctx context.Context, code string, fn func(Tx) error) error
	// Update runs fn and commits its writes. fn may run more than once.
	Update(ctx context.Context, code string, fn func(Tx) error) error

	Append(ctx context.Context, code string, stream Stream, v any) error
	// Tail returns up to limit stream records, newest first.
	Tail(ctx context.Context, code string, stream Stream, limit int) ([]json.RawMessage, error)

	Ping(ctx context.Context) error
	Close() error
}
