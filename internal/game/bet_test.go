package game

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)

func TestCanTransition(t *testing.T) {
	allowed := map[[2]BetStatus]bool{
		{BetPending, BetOpen}:    true,
		{BetOpen, BetLocked}:     true,
		{BetLocked, BetResolved}: true,
		{BetResolved, BetLocked}: true,
	}
	statuses := []BetStatus{BetPending, BetOpen, BetLocked, BetResolved}
	for _, from := range statuses {
		for _, to := range statuses {
			if got := CanTransition(from, to); got != allowed[[2]BetStatus{from, to}] {
				t.Fatalf("%s -> %s: expected %v", from, to, !got)
			}
		}
	}
}

func newTestBet(t *testing.T) *Bet {
	t.Helper()
	b, err := NewBet("AB23", BetSpec{Question: "Who?", Options: []string{"A", "B"}}, t0)
	if err != nil {
		t.Fatalf("new bet: %v", err)
	}
	return b
}

func TestBetLifecycle(t *testing.T) {
	b := newTestBet(t)
	if b.Status != BetPending || b.WagerCost != DefaultWagerCost || b.Origin != OriginCustom {
		t.Fatalf("unexpected new bet: %+v", b)
	}

	var te *TransitionError
	if err := b.Lock(t0, 0); !errors.As(err, &te) || te.From != BetPending {
		t.Fatalf("locking a pending bet should fail, got %v", err)
	}
	if _, err := b.Resolve("A", t0, time.Second, 0); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("resolving a pending bet should fail, got %v", err)
	}

	if err := b.Open(t0, 0); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := b.Open(t0, 0); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("reopening should fail, got %v", err)
	}
	if err := b.Lock(t0.Add(time.Second), 0); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if b.OpenedAt == nil || b.LockedAt == nil {
		t.Fatalf("timestamps not recorded: %+v", b)
	}

	if _, err := b.Resolve("Z", t0, time.Second, 0); !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("expected invalid option, got %v", err)
	}
	if b.Status != BetLocked {
		t.Fatalf("failed resolve must not change status, got %s", b.Status)
	}

	applied, err := b.Resolve("A", t0, 10*time.Second, 0)
	if err != nil || !applied {
		t.Fatalf("resolve: applied=%v err=%v", applied, err)
	}
	if applied, err := b.Resolve("A", t0, 10*time.Second, 0); err != nil || applied {
		t.Fatalf("repeat resolve should be a no-op: applied=%v err=%v", applied, err)
	}
	if _, err := b.Resolve("B", t0, 10*time.Second, 0); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("expected already resolved, got %v", err)
	}
	if err := b.Lock(t0, 0); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("lock is not the undo edge, got %v", err)
	}
}

func TestBetVersionCheck(t *testing.T) {
	b := newTestBet(t)
	b.Version = 3
	var ve *VersionConflictError
	if err := b.Open(t0, 2); !errors.As(err, &ve) || ve.Current != 3 || ve.Expected != 2 {
		t.Fatalf("expected version conflict, got %v", err)
	}
	if b.Status != BetPending {
		t.Fatalf("conflict must not change status")
	}
	if err := b.Open(t0, 3); err != nil {
		t.Fatalf("matching version: %v", err)
	}
	// zero means the caller did not observe a version
	if err := b.Lock(t0, 0); err != nil {
		t.Fatalf("lock without version: %v", err)
	}
}

func TestUndoWindow(t *testing.T) {
	b := newTestBet(t)
	_ = b.Open(t0, 0)
	_ = b.Lock(t0, 0)
	if err := b.Undo(t0, 0); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("undo of a locked bet should fail, got %v", err)
	}
	if _, err := b.Resolve("A", t0, 10*time.Second, 0); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !b.CanUndo(t0.Add(10 * time.Second)) {
		t.Fatalf("undo should be allowed at the window edge")
	}
	if err := b.Undo(t0.Add(11*time.Second), 0); !errors.Is(err, ErrUndoWindowExpired) {
		t.Fatalf("expected expired window, got %v", err)
	}
	if err := b.Undo(t0.Add(5*time.Second), 0); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if b.Status != BetLocked || b.WinningOption != "" || b.CanUndoUntil != nil {
		t.Fatalf("undo did not reset resolution: %+v", b)
	}
}

func TestTimer(t *testing.T) {
	b, _ := NewBet("AB23", BetSpec{Question: "Q", Options: []string{"A", "B"}, TimerSeconds: 30}, t0)
	if _, ok := b.LocksAt(); ok {
		t.Fatalf("pending bet has no deadline")
	}
	_ = b.Open(t0, 0)
	if b.TimerExpired(t0.Add(29 * time.Second)) {
		t.Fatalf("timer expired early")
	}
	if !b.TimerExpired(t0.Add(30 * time.Second)) {
		t.Fatalf("timer should have expired")
	}

	raw, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var payload struct {
		LocksAt *time.Time `json:"locksAt"`
		Status  BetStatus  `json:"status"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.LocksAt == nil || !payload.LocksAt.Equal(t0.Add(30*time.Second)) || payload.Status != BetOpen {
		t.Fatalf("expected locksAt in payload, got %s", raw)
	}
	var back Bet
	if err := json.Unmarshal(raw, &back); err != nil || back.TimerSeconds != 30 {
		t.Fatalf("payload should decode back into a bet: %v", err)
	}

	_ = b.Lock(t0.Add(time.Minute), 0)
	raw, _ = json.Marshal(b)
	var locked map[string]any
	if json.Unmarshal(raw, &locked) != nil || locked["locksAt"] != nil {
		t.Fatalf("locked bet should have no deadline, got %s", raw)
	}
}
