package game

import (
	"fmt"
	"time"
)

// CheckWager runs the admission checks in order: bet open, option valid,
// no earlier wager, enough points. existing is the participant's current
// wager on the bet, if any.
func CheckWager(bet *Bet, p *Participant, existing *Wager, option string) error {
	if bet.Status != BetOpen {
		return fmt.Errorf("%w (status: %s)", ErrBetNotOpen, bet.Status)
	}
	if !bet.HasOption(option) {
		return fmt.Errorf("%w: %q", ErrInvalidOption, option)
	}
	if existing != nil {
		return ErrDuplicateWager
	}
	if p.Points < bet.WagerCost {
		return fmt.Errorf("%w (have: %d, need: %d)", ErrInsufficientPoints, p.Points, bet.WagerCost)
	}
	return nil
}

// PlaceWager debits p and returns the new wager. Both must be written in one
// transaction by the caller.
func PlaceWager(bet *Bet, p *Participant, existing *Wager, option string, now time.Time) (*Wager, error) {
	if err := CheckWager(bet, p, existing, option); err != nil {
		return nil, err
	}
	p.Points -= bet.WagerCost
	return &Wager{
		BetID:          bet.ID,
		UserID:         p.UserID,
		RoomCode:       bet.RoomCode,
		SelectedOption: option,
		PlacedAt:       now,
	}, nil
}

func (w *Wager) IsWinner(winningOption string) bool {
	return w.SelectedOption == winningOption
}
