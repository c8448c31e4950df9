package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ravigummadi/smallbets.live/internal/game"
	"github.com/ravigummadi/smallbets.live/internal/store"
	"github.com/ravigummadi/smallbets.live/internal/transcript"
)

const (
	DefaultSource   = "webhook"
	DefaultLogLimit = 50
	MaxLogLimit     = 500
)

// AutomationRecord is one audited classifier evaluation.
type AutomationRecord struct {
	EntryID   string              `json:"entryId"`
	Text      string              `json:"text"`
	Decision  transcript.Decision `json:"decision"`
	Applied   bool                `json:"applied"`
	Error     string              `json:"error,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

type IngestResult struct {
	Entry    *game.TranscriptEntry `json:"entry"`
	Decision transcript.Decision   `json:"decision"`
	Applied  bool                  `json:"applied"`
}

// IngestTranscript stores a caption fragment and, when automation is on,
// lets the classifier act on it. While a bet is open or locked the text is
// checked for a winner announcement. When no bet is open and the text
// announces no winner, it is checked against the open patterns of the next
// pending bet. Acting goes through the same operations a host would call.
func (e *Engine) IngestTranscript(ctx context.Context, code, text, source string) (*IngestResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, game.ErrEmptyTranscript
	}
	source = strings.TrimSpace(source)
	if source == "" {
		source = DefaultSource
	}

	var (
		room *game.Room
		bets []*game.Bet
	)
	err := e.store.View(ctx, code, func(tx store.Tx) error {
		var err error
		if room, err = e.liveRoom(tx); err != nil {
			return err
		}
		bets, err = tx.Bets()
		return err
	})
	if err != nil {
		return nil, err
	}

	entry := &game.TranscriptEntry{
		ID:        uuid.NewString(),
		RoomCode:  code,
		Text:      text,
		Source:    source,
		Timestamp: e.now(),
	}
	if err := e.store.Append(ctx, code, store.StreamTranscript, entry); err != nil {
		return nil, err
	}

	res := &IngestResult{Entry: entry}
	if !room.AutomationEnabled || room.Status == game.RoomFinished {
		res.Decision = transcript.Decision{Action: transcript.ActionIgnored, Reason: "automation disabled"}
		return res, nil
	}

	rec := AutomationRecord{EntryID: entry.ID, Text: text, Timestamp: entry.Timestamp}
	current, next := currentBet(bets), nextPending(bets)
	checkOpen := current == nil
	if current != nil {
		rec.Decision = e.classifier.EvaluateResolve(text, current)
		if rec.Decision.Action == transcript.ActionResolveBet {
			_, err := e.resolveBet(ctx, code, current.ID, ActorAutomation, rec.Decision.Candidate, 0, false)
			rec.Applied, rec.Error = err == nil, errString(err)
		}
		// a locked bet awaiting its winner does not hold back the next one
		checkOpen = current.Status == game.BetLocked && rec.Decision.Action == transcript.ActionIgnored &&
			!rec.Decision.NeedsReview && rec.Decision.Reason == transcript.ReasonNoResolvePattern
	}
	if checkOpen {
		if next == nil {
			if current == nil {
				rec.Decision = transcript.Decision{Action: transcript.ActionIgnored, Reason: "no pending bet"}
			}
		} else if d := e.classifier.EvaluateOpen(text, next); current == nil || d.Action == transcript.ActionOpenBet {
			rec.Decision = d
			if d.Action == transcript.ActionOpenBet {
				_, err := e.openBet(ctx, code, next.ID, ActorAutomation, 0, false)
				rec.Applied, rec.Error = err == nil, errString(err)
			}
		}
	}

	e.metrics.RecordDecision(string(rec.Decision.Action), rec.Decision.NeedsReview, rec.Decision.Confidence)
	ev := log.Info()
	if rec.Error != "" {
		ev = log.Warn().Str("error", rec.Error)
	}
	ev.Str("code", code).Str("entryId", entry.ID).Str("action", string(rec.Decision.Action)).
		Float64("confidence", rec.Decision.Confidence).Str("betId", rec.Decision.BetID).
		Str("candidate", rec.Decision.Candidate).Bool("review", rec.Decision.NeedsReview).
		Bool("applied", rec.Applied).Msg("automation decision")

	if err := e.store.Append(ctx, code, store.StreamAutomation, rec); err != nil {
		log.Error().Err(err).Str("code", code).Msg("append automation log")
	}
	e.publish(code, EventAutomation, rec)

	res.Decision, res.Applied = rec.Decision, rec.Applied
	return res, nil
}

// currentBet is the open bet, or failing that the most recently locked one.
func currentBet(bets []*game.Bet) *game.Bet {
	var locked *game.Bet
	for _, b := range bets {
		switch b.Status {
		case game.BetOpen:
			return b
		case game.BetLocked:
			if locked == nil || lockedAfter(b, locked) {
				locked = b
			}
		}
	}
	return locked
}

func lockedAfter(a, b *game.Bet) bool {
	if a.LockedAt == nil || b.LockedAt == nil {
		return a.LockedAt != nil
	}
	return !a.LockedAt.Before(*b.LockedAt)
}

func nextPending(bets []*game.Bet) *game.Bet {
	for _, b := range bets {
		if b.Status == game.BetPending {
			return b
		}
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Transcript returns the newest transcript entries first.
func (e *Engine) Transcript(ctx context.Context, code string, limit int) ([]game.TranscriptEntry, error) {
	return tail[game.TranscriptEntry](ctx, e.store, code, store.StreamTranscript, limit)
}

// AutomationLog returns the newest classifier decisions first. Host only.
func (e *Engine) AutomationLog(ctx context.Context, code, actor string, limit int) ([]AutomationRecord, error) {
	err := e.store.View(ctx, code, func(tx store.Tx) error {
		r, err := tx.Room()
		if err != nil {
			return err
		}
		return requireHost(r, actor)
	})
	if err != nil {
		return nil, err
	}
	return tail[AutomationRecord](ctx, e.store, code, store.StreamAutomation, limit)
}

func tail[T any](ctx context.Context, st store.Store, code string, stream store.Stream, limit int) ([]T, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	limit = min(limit, MaxLogLimit)
	raw, err := st.Tail(ctx, code, stream, limit)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			return nil, fmt.Errorf("%w: decode %s record: %v", game.ErrUnavailable, stream, err)
		}
		out = append(out, v)
	}
	return out, nil
}
