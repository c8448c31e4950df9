package game

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type BetOrigin string

const (
	OriginTemplate BetOrigin = "template"
	OriginCustom   BetOrigin = "custom"
)

// BetSpec is the validated shape every new bet goes through, whether it was
// loaded from an event template or typed in by the host.
type BetSpec struct {
	Origin          BetOrigin `json:"origin"`
	Question        string    `json:"question"`
	Options         []string  `json:"options"`
	WagerCost       int       `json:"wagerCost"`
	TimerSeconds    int       `json:"timerSeconds"`
	OpenPatterns    []string  `json:"openPatterns,omitempty"`
	ResolvePatterns []string  `json:"resolvePatterns,omitempty"`
}

// Normalize trims whitespace and fills defaults. It does not validate.
func (s BetSpec) Normalize() BetSpec {
	s.Question = strings.TrimSpace(s.Question)
	opts := make([]string, len(s.Options))
	for i, o := range s.Options {
		opts[i] = strings.TrimSpace(o)
	}
	s.Options = opts
	if s.WagerCost == 0 {
		s.WagerCost = DefaultWagerCost
	}
	if s.Origin == "" {
		s.Origin = OriginCustom
	}
	return s
}

func (s BetSpec) Validate() error {
	if s.Origin != OriginTemplate && s.Origin != OriginCustom {
		return fmt.Errorf("%w: unknown origin %q", ErrInvalidBet, s.Origin)
	}
	if s.Question == "" {
		return fmt.Errorf("%w: question is required", ErrInvalidBet)
	}
	if len(s.Options) < 2 {
		return fmt.Errorf("%w: at least 2 options required", ErrInvalidBet)
	}
	seen := make(map[string]bool, len(s.Options))
	for _, o := range s.Options {
		if o == "" {
			return fmt.Errorf("%w: empty option", ErrInvalidBet)
		}
		if seen[o] {
			return fmt.Errorf("%w: duplicate option %q", ErrInvalidBet, o)
		}
		seen[o] = true
	}
	if s.WagerCost < MinWagerCost || s.WagerCost > MaxWagerCost {
		return fmt.Errorf("%w: wager cost must be between %d and %d", ErrInvalidBet, MinWagerCost, MaxWagerCost)
	}
	if s.TimerSeconds < 0 {
		return fmt.Errorf("%w: timer cannot be negative", ErrInvalidBet)
	}
	return nil
}

// NewBet validates spec and builds a pending bet in room.
func NewBet(room string, spec BetSpec, now time.Time) (*Bet, error) {
	spec = spec.Normalize()
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &Bet{
		ID:              uuid.NewString(),
		RoomCode:        room,
		Question:        spec.Question,
		Options:         spec.Options,
		Origin:          spec.Origin,
		Status:          BetPending,
		WagerCost:       spec.WagerCost,
		TimerSeconds:    spec.TimerSeconds,
		OpenPatterns:    spec.OpenPatterns,
		ResolvePatterns: spec.ResolvePatterns,
		CreatedAt:       now,
	}, nil
}
