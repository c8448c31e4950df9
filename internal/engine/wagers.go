package engine

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/ravigummadi/smallbets.live/internal/game"
	"github.com/ravigummadi/smallbets.live/internal/store"
)

// WagerPlaced is the new wager and the participant's balance after the
// debit.
type WagerPlaced struct {
	Wager  *game.Wager `json:"wager"`
	Points int         `json:"points"`
}

// PlaceWager records actor's pick on an open bet and debits the stake. The
// wager and the debit commit together; a concurrent second attempt by the
// same participant fails with game.ErrDuplicateWager.
func (e *Engine) PlaceWager(ctx context.Context, code, betID, actor, option string) (*WagerPlaced, error) {
	var placed WagerPlaced
	err := e.store.Update(ctx, code, func(tx store.Tx) error {
		if _, err := e.openRoom(tx); err != nil {
			return err
		}
		p, err := requireMember(tx, actor)
		if err != nil {
			return err
		}
		b, err := tx.Bet(betID)
		if err != nil {
			return err
		}
		existing, err := tx.Wager(betID, actor)
		if err != nil {
			return err
		}
		w, err := game.PlaceWager(b, p, existing, option, e.now())
		if err != nil {
			return err
		}
		if err := tx.PutParticipant(p); err != nil {
			return err
		}
		if err := tx.PutWager(w); err != nil {
			return err
		}
		placed = WagerPlaced{Wager: w, Points: p.Points}
		return nil
	})
	if err != nil {
		e.metrics.RecordWager(rejection(err))
		e.observe("wager", err)
		return nil, err
	}
	e.metrics.RecordWager("placed")
	log.Info().Str("code", code).Str("betId", betID).Str("userId", actor).Str("option", option).Msg("wager placed")
	e.publish(code, EventWagerPlaced, placed)
	return &placed, nil
}

// Wagers lists the wagers on a bet in placement order.
func (e *Engine) Wagers(ctx context.Context, code, betID string) ([]*game.Wager, error) {
	var ws []*game.Wager
	err := e.store.View(ctx, code, func(tx store.Tx) error {
		if _, err := tx.Bet(betID); err != nil {
			return err
		}
		var err error
		ws, err = tx.Wagers(betID)
		return err
	})
	return ws, err
}

func rejection(err error) string {
	switch {
	case errors.Is(err, game.ErrDuplicateWager):
		return "duplicate"
	case errors.Is(err, game.ErrBetNotOpen):
		return "bet_not_open"
	case errors.Is(err, game.ErrInsufficientPoints):
		return "insufficient_points"
	case errors.Is(err, game.ErrInvalidOption):
		return "invalid_option"
	default:
		return string(game.KindOf(err))
	}
}
