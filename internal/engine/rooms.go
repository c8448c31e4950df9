package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ravigummadi/smallbets.live/internal/game"
	"github.com/ravigummadi/smallbets.live/internal/store"
)

type CreateRoomRequest struct {
	EventTemplate string `json:"eventTemplate"`
	EventName     string `json:"eventName"`
	HostNickname  string `json:"hostNickname"`
}

type RoomCreated struct {
	Room *game.Room        `json:"room"`
	Host *game.Participant `json:"host"`
	Bets []*game.Bet       `json:"bets"`
}

// CreateRoom makes a room with its host as the first participant and seeds
// the template's bets as pending. An unknown template is logged and the
// room starts empty.
func (e *Engine) CreateRoom(ctx context.Context, req CreateRoomRequest) (*RoomCreated, error) {
	nickname := strings.TrimSpace(req.HostNickname)
	if err := game.ValidateNickname(nickname); err != nil {
		return nil, err
	}
	templateID := strings.TrimSpace(req.EventTemplate)
	if templateID == "" {
		templateID = game.CustomTemplate
	}

	var specs []game.BetSpec
	eventName := strings.TrimSpace(req.EventName)
	if templateID != game.CustomTemplate {
		tpl, err := game.LoadTemplate(templateID)
		if err != nil {
			log.Warn().Err(err).Str("template", templateID).Msg("room created without template bets")
		} else {
			specs = tpl.Specs()
			if eventName == "" {
				eventName = tpl.Name
			}
		}
	}

	now := e.now()
	hostID := uuid.NewString()
	var room *game.Room
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		room = &game.Room{
			Code:          e.newCode(),
			EventTemplate: templateID,
			EventName:     eventName,
			Status:        game.RoomWaiting,
			HostID:        hostID,
			CreatedAt:     now,
			ExpiresAt:     now.Add(e.opts.RoomTTL),
		}
		host := &game.Participant{
			UserID:   hostID,
			RoomCode: room.Code,
			Nickname: nickname,
			Points:   e.opts.InitialPoints,
			IsHost:   true,
			JoinedAt: now,
		}
		err := e.store.CreateRoom(ctx, room, host)
		if errors.Is(err, store.ErrExists) {
			continue
		}
		if err != nil {
			return nil, err
		}

		bets, err := e.seedBets(ctx, room.Code, specs, now)
		if err != nil {
			return nil, err
		}
		e.metrics.RoomsCreated.Inc()
		log.Info().Str("code", room.Code).Str("template", templateID).Int("bets", len(bets)).Msg("room created")
		return &RoomCreated{Room: room, Host: host, Bets: bets}, nil
	}
	return nil, fmt.Errorf("%w: no free room code after %d attempts", game.ErrUnavailable, maxCodeAttempts)
}

func (e *Engine) seedBets(ctx context.Context, code string, specs []game.BetSpec, now time.Time) ([]*game.Bet, error) {
	if len(specs) == 0 {
		return []*game.Bet{}, nil
	}
	var bets []*game.Bet
	err := e.store.Update(ctx, code, func(tx store.Tx) error {
		bets = make([]*game.Bet, 0, len(specs))
		for i, s := range specs {
			// offset keeps template order when bets are listed by creation time
			b, err := game.NewBet(code, s, now.Add(time.Duration(i)*time.Microsecond))
			if err != nil {
				return fmt.Errorf("template bet %d: %w", i, err)
			}
			if err := tx.PutBet(b); err != nil {
				return err
			}
			bets = append(bets, b)
		}
		return nil
	})
	return bets, err
}

func (e *Engine) GetRoom(ctx context.Context, code string) (*game.Room, error) {
	var room *game.Room
	err := e.store.View(ctx, code, func(tx store.Tx) error {
		r, err := tx.Room()
		room = r
		return err
	})
	return room, err
}

func (e *Engine) JoinRoom(ctx context.Context, code, nickname string) (*game.Participant, error) {
	nickname = strings.TrimSpace(nickname)
	if err := game.ValidateNickname(nickname); err != nil {
		return nil, err
	}
	p := &game.Participant{
		UserID:   uuid.NewString(),
		RoomCode: code,
		Nickname: nickname,
		Points:   e.opts.InitialPoints,
		JoinedAt: e.now(),
	}
	err := e.store.Update(ctx, code, func(tx store.Tx) error {
		if _, err := e.openRoom(tx); err != nil {
			return err
		}
		p.Version = 0
		return tx.PutParticipant(p)
	})
	if err != nil {
		return nil, err
	}
	e.metrics.Joins.Inc()
	log.Info().Str("code", code).Str("userId", p.UserID).Str("nickname", p.Nickname).Msg("participant joined")
	e.publishLeaderboard(ctx, code)
	return p, nil
}

// StartRoom moves a waiting room to active.
func (e *Engine) StartRoom(ctx context.Context, code, actor string) (*game.Room, error) {
	return e.advanceRoom(ctx, code, actor, game.RoomWaiting, game.RoomActive)
}

// FinishRoom moves an active room to finished and returns the final
// standings. Wagers and bet changes are refused afterwards.
func (e *Engine) FinishRoom(ctx context.Context, code, actor string) ([]game.LeaderboardEntry, error) {
	if _, err := e.advanceRoom(ctx, code, actor, game.RoomActive, game.RoomFinished); err != nil {
		return nil, err
	}
	lb, err := e.Leaderboard(ctx, code)
	if err != nil {
		return nil, err
	}
	e.publish(code, EventLeaderboard, lb)
	return lb, nil
}

func (e *Engine) advanceRoom(ctx context.Context, code, actor string, from, to game.RoomStatus) (*game.Room, error) {
	var room *game.Room
	err := e.store.Update(ctx, code, func(tx store.Tx) error {
		r, err := e.liveRoom(tx)
		if err != nil {
			return err
		}
		if err := requireHost(r, actor); err != nil {
			return err
		}
		if r.Status != from {
			return fmt.Errorf("%w: room %s -> %s", game.ErrInvalidTransition, r.Status, to)
		}
		r.Status = to
		room = r
		return tx.PutRoom(r)
	})
	if err != nil {
		e.observe("room_"+string(to), err)
		return nil, err
	}
	log.Info().Str("code", code).Str("status", string(to)).Msg("room status changed")
	e.publish(code, EventRoomState, room)
	return room, nil
}

func (e *Engine) Participants(ctx context.Context, code string) ([]*game.Participant, error) {
	var ps []*game.Participant
	err := e.store.View(ctx, code, func(tx store.Tx) error {
		var err error
		ps, err = tx.Participants()
		return err
	})
	return ps, err
}

func (e *Engine) Leaderboard(ctx context.Context, code string) ([]game.LeaderboardEntry, error) {
	ps, err := e.Participants(ctx, code)
	if err != nil {
		return nil, err
	}
	return game.Leaderboard(ps), nil
}

// SetAutomation toggles transcript-driven automation for the room.
func (e *Engine) SetAutomation(ctx context.Context, code, actor string, enabled bool) (*game.Room, error) {
	var room *game.Room
	err := e.store.Update(ctx, code, func(tx store.Tx) error {
		r, err := e.liveRoom(tx)
		if err != nil {
			return err
		}
		if err := requireHost(r, actor); err != nil {
			return err
		}
		room = r
		if r.AutomationEnabled == enabled {
			return nil
		}
		r.AutomationEnabled = enabled
		return tx.PutRoom(r)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("code", code).Bool("enabled", enabled).Msg("automation toggled")
	e.publish(code, EventRoomState, room)
	return room, nil
}
