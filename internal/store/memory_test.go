package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ravigummadi/smallbets.live/internal/game"
)

var t0 = time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)

func seedRoom(t *testing.T, m *Memory, code string, created time.Time) {
	t.Helper()
	room := &game.Room{Code: code, Status: game.RoomWaiting, HostID: "host", CreatedAt: created, ExpiresAt: created.Add(game.DefaultRoomTTL)}
	host := &game.Participant{UserID: "host", RoomCode: code, Nickname: "Host", Points: game.InitialPoints, IsHost: true, JoinedAt: created}
	if err := m.CreateRoom(context.Background(), room, host); err != nil {
		t.Fatalf("create %s: %v", code, err)
	}
}

func points(t *testing.T, m *Memory, code, userID string) int {
	t.Helper()
	var pts int
	err := m.View(context.Background(), code, func(tx Tx) error {
		p, err := tx.Participant(userID)
		if err != nil {
			return err
		}
		pts = p.Points
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	return pts
}

func addPoints(ctx context.Context, m *Memory, code string, n int) error {
	return m.Update(ctx, code, func(tx Tx) error {
		p, err := tx.Participant("host")
		if err != nil {
			return err
		}
		p.Points += n
		return tx.PutParticipant(p)
	})
}

func TestCreateRoom(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seedRoom(t, m, "AB23", t0)

	room := &game.Room{Code: "AB23", CreatedAt: t0.Add(time.Hour), ExpiresAt: t0.Add(25 * time.Hour)}
	host := &game.Participant{UserID: "other", RoomCode: "AB23"}
	if err := m.CreateRoom(ctx, room, host); !errors.Is(err, ErrExists) {
		t.Fatalf("expected code taken, got %v", err)
	}

	// once the first room has expired the code is free again
	seedRoom(t, m, "AB23", t0.Add(25*time.Hour))
	err := m.View(ctx, "AB23", func(tx Tx) error {
		ps, err := tx.Participants()
		if err != nil {
			return err
		}
		if len(ps) != 1 || !ps[0].JoinedAt.Equal(t0.Add(25*time.Hour)) {
			t.Fatalf("expected a fresh room, got %+v", ps)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}

	if err := m.View(ctx, "ZZZZ", func(Tx) error { return nil }); !errors.Is(err, game.ErrRoomNotFound) {
		t.Fatalf("expected room not found, got %v", err)
	}
	if err := m.DeleteRoom(ctx, "AB23"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := addPoints(ctx, m, "AB23", 1); !errors.Is(err, game.ErrRoomNotFound) {
		t.Fatalf("deleted room should be gone, got %v", err)
	}
}

func TestUpdateRetriesOnConflict(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seedRoom(t, m, "AB23", t0)

	runs := 0
	err := m.Update(ctx, "AB23", func(tx Tx) error {
		runs++
		p, err := tx.Participant("host")
		if err != nil {
			return err
		}
		if runs == 1 {
			// a competing writer commits between our read and our commit
			if err := addPoints(ctx, m, "AB23", 5); err != nil {
				return err
			}
		}
		p.Points += 10
		return tx.PutParticipant(p)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if runs != 2 {
		t.Fatalf("expected one retry, got %d runs", runs)
	}
	if got := points(t, m, "AB23", "host"); got != game.InitialPoints+15 {
		t.Fatalf("lost update: got %d", got)
	}
}

func TestUpdateGivesUpAfterMaxAttempts(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seedRoom(t, m, "AB23", t0)

	runs := 0
	err := m.Update(ctx, "AB23", func(tx Tx) error {
		runs++
		p, err := tx.Participant("host")
		if err != nil {
			return err
		}
		if err := addPoints(ctx, m, "AB23", 1); err != nil {
			return err
		}
		p.Points = 0
		return tx.PutParticipant(p)
	})
	if !errors.Is(err, game.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
	if runs != DefaultMaxAttempts {
		t.Fatalf("expected %d attempts, got %d", DefaultMaxAttempts, runs)
	}
	if got := points(t, m, "AB23", "host"); got != game.InitialPoints+DefaultMaxAttempts {
		t.Fatalf("failed transaction leaked writes: %d", got)
	}
}

func TestUpdateReturnsCallbackError(t *testing.T) {
	m := NewMemory()
	seedRoom(t, m, "AB23", t0)
	runs := 0
	err := m.Update(context.Background(), "AB23", func(tx Tx) error {
		runs++
		p, _ := tx.Participant("host")
		p.Points = 0
		_ = tx.PutParticipant(p)
		return game.ErrInsufficientPoints
	})
	if !errors.Is(err, game.ErrInsufficientPoints) || runs != 1 {
		t.Fatalf("expected callback error after one run, got %v (%d runs)", err, runs)
	}
	if got := points(t, m, "AB23", "host"); got != game.InitialPoints {
		t.Fatalf("rejected transaction committed: %d", got)
	}
}

func TestConcurrentUpdatesDoNotLoseWrites(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seedRoom(t, m, "AB23", t0)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if err := addPoints(ctx, m, "AB23", 1); err == nil {
					mu.Lock()
					ok++
					mu.Unlock()
				} else if !errors.Is(err, game.ErrVersionConflict) {
					t.Errorf("unexpected error: %v", err)
				}
			}
		}()
	}
	wg.Wait()
	if ok == 0 {
		t.Fatalf("no update succeeded")
	}
	if got := points(t, m, "AB23", "host"); got != game.InitialPoints+ok {
		t.Fatalf("expected %d, got %d", game.InitialPoints+ok, got)
	}
}

func TestIndexesSeeOwnWrites(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seedRoom(t, m, "AB23", t0)
	err := m.Update(ctx, "AB23", func(tx Tx) error {
		for i, id := range []string{"b2", "b1"} {
			b := &game.Bet{ID: id, RoomCode: "AB23", CreatedAt: t0.Add(time.Duration(i))}
			if err := tx.PutBet(b); err != nil {
				return err
			}
		}
		bets, err := tx.Bets()
		if err != nil {
			return err
		}
		if len(bets) != 2 || bets[0].ID != "b2" {
			t.Fatalf("expected creation order inside the transaction, got %d bets", len(bets))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	err = m.View(ctx, "AB23", func(tx Tx) error {
		b, err := tx.Bet("b1")
		if err != nil {
			return err
		}
		if b.Version != 1 {
			t.Fatalf("expected version 1, got %d", b.Version)
		}
		if _, err := tx.Bet("nope"); !errors.Is(err, game.ErrBetNotFound) {
			t.Fatalf("expected bet not found, got %v", err)
		}
		w, err := tx.Wager("b1", "host")
		if w != nil || err != nil {
			t.Fatalf("missing wager should be nil, nil; got %v %v", w, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestTail(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seedRoom(t, m, "AB23", t0)
	for i := 1; i <= 3; i++ {
		if err := m.Append(ctx, "AB23", StreamTranscript, map[string]int{"n": i}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := m.Tail(ctx, "AB23", StreamTranscript, 2)
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	var first struct{ N int }
	if len(got) != 2 || json.Unmarshal(got[0], &first) != nil || first.N != 3 {
		t.Fatalf("expected newest first, got %s", got)
	}
	if got, _ := m.Tail(ctx, "AB23", StreamTranscript, 0); len(got) != 0 {
		t.Fatalf("zero limit should return nothing")
	}
	if got, _ := m.Tail(ctx, "AB23", StreamAutomation, 10); len(got) != 0 {
		t.Fatalf("streams are separate")
	}
	if err := m.Append(ctx, "ZZZZ", StreamTranscript, 1); !errors.Is(err, game.ErrRoomNotFound) {
		t.Fatalf("expected room not found, got %v", err)
	}
}
