// Package engine coordinates rooms, bets, wagers and settlement on top of a
// store.Store. Every operation that touches more than one document runs in a
// single room-scoped transaction.
package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ravigummadi/smallbets.live/internal/game"
	"github.com/ravigummadi/smallbets.live/internal/metrics"
	"github.com/ravigummadi/smallbets.live/internal/store"
	"github.com/ravigummadi/smallbets.live/internal/transcript"
)

// Events pushed to subscribers after a transaction commits.
const (
	EventRoomState   = "room:state"
	EventBetUpdate   = "bet:update"
	EventWagerPlaced = "wager:placed"
	EventLeaderboard = "leaderboard:update"
	EventAutomation  = "automation:decision"
)

// ActorAutomation is recorded as the actor of transitions made by the
// transcript classifier.
const ActorAutomation = "automation"

const maxCodeAttempts = 10

// Publisher receives committed state for fan-out to connected clients.
type Publisher interface {
	Publish(room, event string, payload any)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, string, any) {}

type Options struct {
	InitialPoints int
	UndoGrace     time.Duration
	RoomTTL       time.Duration
	// ExportFile receives a text summary of every resolution. Empty disables
	// export.
	ExportFile string
}

func DefaultOptions() Options {
	return Options{
		InitialPoints: game.InitialPoints,
		UndoGrace:     game.DefaultUndoGrace,
		RoomTTL:       game.DefaultRoomTTL,
	}
}

type Engine struct {
	store      store.Store
	classifier *transcript.Classifier
	metrics    *metrics.Metrics
	pub        Publisher
	opts       Options

	now     func() time.Time
	newCode func() string
}

func New(st store.Store, cls *transcript.Classifier, m *metrics.Metrics, pub Publisher, opts Options) *Engine {
	if pub == nil {
		pub = nopPublisher{}
	}
	if m == nil {
		m = metrics.New()
	}
	if cls == nil {
		cls = transcript.New(transcript.DefaultConfig())
	}
	if opts.InitialPoints <= 0 {
		opts.InitialPoints = game.InitialPoints
	}
	if opts.UndoGrace <= 0 {
		opts.UndoGrace = game.DefaultUndoGrace
	}
	if opts.RoomTTL <= 0 {
		opts.RoomTTL = game.DefaultRoomTTL
	}
	return &Engine{
		store:      st,
		classifier: cls,
		metrics:    m,
		pub:        pub,
		opts:       opts,
		now:        func() time.Time { return time.Now().UTC() },
		newCode:    game.RandomRoomCode,
	}
}

// SetPublisher replaces the fan-out target. It is meant to be called once
// during wiring, before the engine serves requests.
func (e *Engine) SetPublisher(p Publisher) {
	if p == nil {
		p = nopPublisher{}
	}
	e.pub = p
}

// NormalizeCode upper-cases and validates a user supplied room code.
func NormalizeCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if err := game.ValidateRoomCode(code); err != nil {
		return "", err
	}
	return code, nil
}

func (e *Engine) liveRoom(tx store.Tx) (*game.Room, error) {
	r, err := tx.Room()
	if err != nil {
		return nil, err
	}
	if r.Expired(e.now()) {
		return nil, game.ErrRoomExpired
	}
	return r, nil
}

// openRoom is a live room that still accepts bets and wagers.
func (e *Engine) openRoom(tx store.Tx) (*game.Room, error) {
	r, err := e.liveRoom(tx)
	if err != nil {
		return nil, err
	}
	if r.Status == game.RoomFinished {
		return nil, game.ErrRoomFinished
	}
	return r, nil
}

func requireHost(r *game.Room, actor string) error {
	if actor == "" || actor != r.HostID {
		return game.ErrNotHost
	}
	return nil
}

func requireMember(tx store.Tx, actor string) (*game.Participant, error) {
	if actor == "" {
		return nil, game.ErrNotParticipant
	}
	p, err := tx.Participant(actor)
	if errors.Is(err, game.ErrParticipantNotFound) {
		return nil, game.ErrNotParticipant
	}
	return p, err
}

func (e *Engine) observe(op string, err error) {
	if errors.Is(err, game.ErrVersionConflict) {
		e.metrics.RecordConflict(op)
	}
}

func (e *Engine) publish(room, event string, payload any) {
	e.pub.Publish(room, event, payload)
	e.metrics.RecordFanout(event)
}

func (e *Engine) publishLeaderboard(ctx context.Context, code string) {
	lb, err := e.Leaderboard(ctx, code)
	if err != nil {
		log.Warn().Err(err).Str("code", code).Msg("leaderboard for fan-out")
		return
	}
	e.publish(code, EventLeaderboard, lb)
}
