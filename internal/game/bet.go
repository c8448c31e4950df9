package game

import (
	"encoding/json"
	"slices"
	"time"
)

var transitions = map[BetStatus][]BetStatus{
	BetPending:  {BetOpen},
	BetOpen:     {BetLocked},
	BetLocked:   {BetResolved},
	BetResolved: {BetLocked}, // undo, only inside the grace window
}

// CanTransition reports whether from -> to is an edge of the bet lifecycle.
// It does not look at the undo window.
func CanTransition(from, to BetStatus) bool {
	return slices.Contains(transitions[from], to)
}

func (b *Bet) HasOption(option string) bool {
	return slices.Contains(b.Options, option)
}

// checkVersion compares the caller's last observed version. Zero means the
// caller did not supply one.
func (b *Bet) checkVersion(expected int64) error {
	if expected != 0 && expected != b.Version {
		return &VersionConflictError{Expected: expected, Current: b.Version}
	}
	return nil
}

func (b *Bet) transition(to BetStatus, expected int64) error {
	if !CanTransition(b.Status, to) {
		return &TransitionError{From: b.Status, To: to}
	}
	return b.checkVersion(expected)
}

// Open moves a pending bet to open. The single-open-bet rule is a room
// level check done by the caller.
func (b *Bet) Open(now time.Time, expected int64) error {
	if err := b.transition(BetOpen, expected); err != nil {
		return err
	}
	b.Status = BetOpen
	b.OpenedAt = &now
	return nil
}

func (b *Bet) Lock(now time.Time, expected int64) error {
	// resolved -> locked is the undo edge, not a lock
	if b.Status != BetOpen {
		return &TransitionError{From: b.Status, To: BetLocked}
	}
	if err := b.transition(BetLocked, expected); err != nil {
		return err
	}
	b.Status = BetLocked
	b.LockedAt = &now
	return nil
}

// Resolve records the winner and opens the undo window. It returns applied
// false, with no error, when the bet is already resolved with the same
// winner, so that retried resolves are no-ops.
func (b *Bet) Resolve(winningOption string, now time.Time, grace time.Duration, expected int64) (applied bool, err error) {
	if b.Status == BetResolved {
		if b.WinningOption == winningOption {
			return false, nil
		}
		return false, ErrAlreadyResolved
	}
	if err := b.transition(BetResolved, expected); err != nil {
		return false, err
	}
	if !b.HasOption(winningOption) {
		return false, ErrInvalidOption
	}
	until := now.Add(grace)
	b.Status = BetResolved
	b.WinningOption = winningOption
	b.ResolvedAt = &now
	b.CanUndoUntil = &until
	return true, nil
}

// Undo returns a resolved bet to locked. The caller reverses the point
// deltas in the same transaction.
func (b *Bet) Undo(now time.Time, expected int64) error {
	if b.Status != BetResolved {
		return &TransitionError{From: b.Status, To: BetLocked}
	}
	if err := b.checkVersion(expected); err != nil {
		return err
	}
	if !b.CanUndo(now) {
		return ErrUndoWindowExpired
	}
	b.Status = BetLocked
	b.WinningOption = ""
	b.ResolvedAt = nil
	b.CanUndoUntil = nil
	return nil
}

func (b *Bet) CanUndo(now time.Time) bool {
	return b.Status == BetResolved && b.CanUndoUntil != nil && !now.After(*b.CanUndoUntil)
}

// LocksAt is the advisory timer deadline of an open bet. ok is false when
// the bet has no timer or is not open.
func (b *Bet) LocksAt() (t time.Time, ok bool) {
	if b.Status != BetOpen || b.OpenedAt == nil || b.TimerSeconds <= 0 {
		return time.Time{}, false
	}
	return b.OpenedAt.Add(time.Duration(b.TimerSeconds) * time.Second), true
}

func (b *Bet) TimerExpired(now time.Time) bool {
	t, ok := b.LocksAt()
	return ok && !now.Before(t)
}

// MarshalJSON adds the computed locksAt deadline to the stored fields.
func (b Bet) MarshalJSON() ([]byte, error) {
	type plain Bet
	out := struct {
		plain
		LocksAt *time.Time `json:"locksAt,omitempty"`
	}{plain: plain(b)}
	if t, ok := b.LocksAt(); ok {
		out.LocksAt = &t
	}
	return json.Marshal(out)
}
