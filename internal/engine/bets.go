package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ravigummadi/smallbets.live/internal/game"
	"github.com/ravigummadi/smallbets.live/internal/store"
)

// ResolveResult is the resolved bet and the standings after settlement.
// Applied is false when the call repeated an earlier identical resolve.
type ResolveResult struct {
	Bet         *game.Bet               `json:"bet"`
	Leaderboard []game.LeaderboardEntry `json:"leaderboard"`
	Applied     bool                    `json:"applied"`
}

// CreateBet adds a host-authored bet to the room as pending.
func (e *Engine) CreateBet(ctx context.Context, code, actor string, spec game.BetSpec) (*game.Bet, error) {
	spec.Origin = game.OriginCustom
	spec = spec.Normalize()
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	var bet *game.Bet
	err := e.store.Update(ctx, code, func(tx store.Tx) error {
		r, err := e.openRoom(tx)
		if err != nil {
			return err
		}
		if err := requireHost(r, actor); err != nil {
			return err
		}
		b, err := game.NewBet(code, spec, e.now())
		if err != nil {
			return err
		}
		bet = b
		return tx.PutBet(b)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("code", code).Str("betId", bet.ID).Str("question", bet.Question).Msg("bet created")
	e.publish(code, EventBetUpdate, bet)
	return bet, nil
}

func (e *Engine) ListBets(ctx context.Context, code string) ([]*game.Bet, error) {
	var bets []*game.Bet
	err := e.store.View(ctx, code, func(tx store.Tx) error {
		var err error
		bets, err = tx.Bets()
		return err
	})
	return bets, err
}

func (e *Engine) GetBet(ctx context.Context, code, betID string) (*game.Bet, error) {
	var bet *game.Bet
	err := e.store.View(ctx, code, func(tx store.Tx) error {
		var err error
		bet, err = tx.Bet(betID)
		return err
	})
	return bet, err
}

// OpenBet moves a pending bet to open. version is the bet version the
// caller last saw; zero skips the check.
func (e *Engine) OpenBet(ctx context.Context, code, betID, actor string, version int64) (*game.Bet, error) {
	return e.openBet(ctx, code, betID, actor, version, true)
}

func (e *Engine) openBet(ctx context.Context, code, betID, actor string, version int64, hostOnly bool) (*game.Bet, error) {
	var bet *game.Bet
	err := e.store.Update(ctx, code, func(tx store.Tx) error {
		r, err := e.openRoom(tx)
		if err != nil {
			return err
		}
		if hostOnly {
			if err := requireHost(r, actor); err != nil {
				return err
			}
		}
		bets, err := tx.Bets()
		if err != nil {
			return err
		}
		var target *game.Bet
		for _, b := range bets {
			if b.ID == betID {
				target = b
			} else if b.Status == game.BetOpen {
				return game.ErrAnotherBetOpen
			}
		}
		if target == nil {
			return game.ErrBetNotFound
		}
		if err := target.Open(e.now(), version); err != nil {
			return err
		}
		bet = target
		return tx.PutBet(target)
	})
	if err != nil {
		e.observe("open", err)
		return nil, err
	}
	e.metrics.RecordTransition(string(game.BetOpen), actorLabel(actor))
	log.Info().Str("code", code).Str("betId", betID).Str("actor", actor).Msg("bet opened")
	e.publish(code, EventBetUpdate, bet)
	return bet, nil
}

// LockBet closes betting. Callers that watch the bet timer call it when the
// timer runs out; the engine runs no timers itself.
func (e *Engine) LockBet(ctx context.Context, code, betID, actor string, version int64) (*game.Bet, error) {
	var bet *game.Bet
	err := e.store.Update(ctx, code, func(tx store.Tx) error {
		r, err := e.liveRoom(tx)
		if err != nil {
			return err
		}
		if err := requireHost(r, actor); err != nil {
			return err
		}
		b, err := tx.Bet(betID)
		if err != nil {
			return err
		}
		if err := b.Lock(e.now(), version); err != nil {
			return err
		}
		bet = b
		return tx.PutBet(b)
	})
	if err != nil {
		e.observe("lock", err)
		return nil, err
	}
	e.metrics.RecordTransition(string(game.BetLocked), actorLabel(actor))
	log.Info().Str("code", code).Str("betId", betID).Msg("bet locked")
	e.publish(code, EventBetUpdate, bet)
	return bet, nil
}

// ResolveBet declares the winner and settles every wager in one
// transaction. Repeating it with the same winner changes nothing.
func (e *Engine) ResolveBet(ctx context.Context, code, betID, actor, winningOption string, version int64) (*ResolveResult, error) {
	return e.resolveBet(ctx, code, betID, actor, winningOption, version, true)
}

func (e *Engine) resolveBet(ctx context.Context, code, betID, actor, winningOption string, version int64, hostOnly bool) (*ResolveResult, error) {
	var (
		res          ResolveResult
		room         *game.Room
		wagers       []*game.Wager
		participants []*game.Participant
		credited     int
	)
	err := e.store.Update(ctx, code, func(tx store.Tx) error {
		res = ResolveResult{}
		credited = 0
		r, err := e.liveRoom(tx)
		if err != nil {
			return err
		}
		if hostOnly {
			if err := requireHost(r, actor); err != nil {
				return err
			}
		}
		room = r
		b, err := tx.Bet(betID)
		if err != nil {
			return err
		}
		if !hostOnly && b.Status == game.BetOpen {
			// automation closes betting on its way to resolving
			if err := b.Lock(e.now(), 0); err != nil {
				return err
			}
			// PutBet below counts the resolve; the lock is a transition too
			b.Version++
		}
		applied, err := b.Resolve(winningOption, e.now(), e.opts.UndoGrace, version)
		if err != nil {
			return err
		}
		res.Bet, res.Applied = b, applied
		if applied {
			wagers, err = tx.Wagers(betID)
			if err != nil {
				return err
			}
			deltas := game.Settle(b, wagers, winningOption)
			for _, w := range wagers {
				p, err := tx.Participant(w.UserID)
				if err != nil {
					return err
				}
				delta := deltas[w.UserID]
				p.Points += delta
				credited += delta
				won := delta
				w.PointsWon = &won
				if err := tx.PutParticipant(p); err != nil {
					return err
				}
				if err := tx.PutWager(w); err != nil {
					return err
				}
			}
			if err := tx.PutBet(b); err != nil {
				return err
			}
		}
		participants, err = tx.Participants()
		if err != nil {
			return err
		}
		res.Leaderboard = game.Leaderboard(participants)
		return nil
	})
	if err != nil {
		e.observe("resolve", err)
		return nil, err
	}
	if !res.Applied {
		return &res, nil
	}

	e.metrics.RecordTransition(string(game.BetResolved), actorLabel(actor))
	e.metrics.RecordSettlement("credit", credited)
	log.Info().Str("code", code).Str("betId", betID).Str("winner", winningOption).
		Int("wagers", len(wagers)).Int("credited", credited).Str("actor", actor).Msg("bet resolved")
	if e.opts.ExportFile != "" {
		if err := game.ExportResolution(room, res.Bet, wagers, participants, e.opts.ExportFile); err != nil {
			log.Error().Err(err).Str("file", e.opts.ExportFile).Msg("export resolution")
		}
	}
	e.publish(code, EventBetUpdate, res.Bet)
	e.publish(code, EventLeaderboard, res.Leaderboard)
	return &res, nil
}

// UndoResolve reverses the most recent settlement of a bet inside its undo
// window and returns it to locked. Only the credited amounts are reversed;
// wager stakes stay debited.
func (e *Engine) UndoResolve(ctx context.Context, code, betID, actor string, version int64) (*game.Bet, error) {
	var (
		bet      *game.Bet
		reversed int
	)
	err := e.store.Update(ctx, code, func(tx store.Tx) error {
		reversed = 0
		r, err := e.liveRoom(tx)
		if err != nil {
			return err
		}
		if err := requireHost(r, actor); err != nil {
			return err
		}
		b, err := tx.Bet(betID)
		if err != nil {
			return err
		}
		if err := b.Undo(e.now(), version); err != nil {
			return err
		}
		wagers, err := tx.Wagers(betID)
		if err != nil {
			return err
		}
		for _, w := range wagers {
			if w.PointsWon == nil {
				continue
			}
			p, err := tx.Participant(w.UserID)
			if err != nil {
				return err
			}
			if p.Points < *w.PointsWon {
				return fmt.Errorf("%w: %s already spent winnings from this bet", game.ErrInsufficientPoints, p.Nickname)
			}
			p.Points -= *w.PointsWon
			reversed += *w.PointsWon
			w.PointsWon = nil
			if err := tx.PutParticipant(p); err != nil {
				return err
			}
			if err := tx.PutWager(w); err != nil {
				return err
			}
		}
		bet = b
		return tx.PutBet(b)
	})
	if err != nil {
		e.observe("undo", err)
		return nil, err
	}
	e.metrics.RecordTransition("undo", actorLabel(actor))
	e.metrics.RecordSettlement("reversal", reversed)
	log.Info().Str("code", code).Str("betId", betID).Int("reversed", reversed).Msg("resolution undone")
	e.publish(code, EventBetUpdate, bet)
	e.publishLeaderboard(ctx, code)
	return bet, nil
}

func actorLabel(actor string) string {
	if actor == ActorAutomation {
		return ActorAutomation
	}
	return "host"
}
