package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/rs/zerolog/log"

	"github.com/ravigummadi/smallbets.live/internal/auth"
	"github.com/ravigummadi/smallbets.live/internal/engine"
	"github.com/ravigummadi/smallbets.live/internal/game"
)

const opTimeout = 5 * time.Second

type ConnCtx struct {
	Code   string
	UserID string
	Role   string // "host" | "player"
}

// Server is the socket.io side of the fan-out. Clients subscribe to one
// room with their room token and may also place wagers and drive bets.
type Server struct {
	engine *engine.Engine
	issuer *auth.Issuer
	io     *socketio.Server

	mu      sync.Mutex
	members map[string]map[string]socketio.Conn // roomCode -> socketID -> Conn
}

func New(eng *engine.Engine, issuer *auth.Issuer) *Server {
	return &Server{engine: eng, issuer: issuer, members: make(map[string]map[string]socketio.Conn)}
}

type betPayload struct {
	BetID   string `json:"betId"`
	Version int64  `json:"version"`
}

// Mount attaches Socket.IO server with handlers to the given Gin engine.
func (srv *Server) Mount(r *gin.Engine) *socketio.Server {
	io := socketio.NewServer(nil)
	srv.io = io

	io.OnConnect("/", func(s socketio.Conn) error {
		s.SetContext(&ConnCtx{})
		log.Debug().Str("sid", s.ID()).Msg("socket connected")
		return nil
	})

	// room:subscribe
	io.OnEvent("/", "room:subscribe", func(s socketio.Conn, payload struct {
		RoomCode string `json:"roomCode"`
		Token    string `json:"token"`
	}) map[string]any {
		code, err := engine.NormalizeCode(payload.RoomCode)
		if err != nil {
			return srv.err(s, err)
		}
		id, err := srv.issuer.Verify(payload.Token)
		if err != nil || id.Room != code {
			return srv.err(s, game.ErrUnauthorized)
		}
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		room, err := srv.engine.GetRoom(ctx, code)
		if err != nil {
			return srv.err(s, err)
		}
		role := "player"
		if id.UserID == room.HostID {
			role = "host"
		}
		srv.leave(s)
		s.SetContext(&ConnCtx{Code: code, UserID: id.UserID, Role: role})
		s.Join(code)
		n := srv.addMember(code, s)
		log.Info().Str("sid", s.ID()).Str("code", code).Str("role", role).Int("members", n).Msg("room:subscribe")
		srv.emitStateTo(ctx, s)
		return map[string]any{"ok": true, "role": role}
	})

	// bet:place
	io.OnEvent("/", "bet:place", func(s socketio.Conn, payload struct {
		BetID          string `json:"betId"`
		SelectedOption string `json:"selectedOption"`
	}) map[string]any {
		cc := connCtx(s)
		if cc.Code == "" {
			return srv.err(s, game.ErrUnauthorized)
		}
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		placed, err := srv.engine.PlaceWager(ctx, cc.Code, payload.BetID, cc.UserID, payload.SelectedOption)
		if err != nil {
			return srv.err(s, err)
		}
		return map[string]any{"wager": placed.Wager, "points": placed.Points}
	})

	// bet:open, bet:lock, bet:undo (host)
	hostOps := map[string]func(context.Context, string, string, string, int64) (*game.Bet, error){
		"bet:open": srv.engine.OpenBet,
		"bet:lock": srv.engine.LockBet,
		"bet:undo": srv.engine.UndoResolve,
	}
	for event, op := range hostOps {
		io.OnEvent("/", event, func(s socketio.Conn, payload betPayload) map[string]any {
			cc := connCtx(s)
			if cc.Code == "" {
				return srv.err(s, game.ErrUnauthorized)
			}
			ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
			defer cancel()
			bet, err := op(ctx, cc.Code, payload.BetID, cc.UserID, payload.Version)
			if err != nil {
				return srv.err(s, err)
			}
			log.Info().Str("code", cc.Code).Str("betId", bet.ID).Msg(event)
			return map[string]any{"bet": bet}
		})
	}

	// bet:resolve (host)
	io.OnEvent("/", "bet:resolve", func(s socketio.Conn, payload struct {
		BetID         string `json:"betId"`
		WinningOption string `json:"winningOption"`
		Version       int64  `json:"version"`
	}) map[string]any {
		cc := connCtx(s)
		if cc.Code == "" {
			return srv.err(s, game.ErrUnauthorized)
		}
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		res, err := srv.engine.ResolveBet(ctx, cc.Code, payload.BetID, cc.UserID, payload.WinningOption, payload.Version)
		if err != nil {
			return srv.err(s, err)
		}
		return map[string]any{"bet": res.Bet, "leaderboard": res.Leaderboard, "applied": res.Applied}
	})

	io.OnError("/", func(s socketio.Conn, e error) {
		log.Error().Err(e).Msg("socket error")
	})
	io.OnDisconnect("/", func(s socketio.Conn, reason string) {
		srv.leave(s)
		log.Debug().Str("sid", s.ID()).Str("reason", reason).Msg("socket disconnected")
	})

	go func() {
		if err := io.Serve(); err != nil {
			log.Error().Err(err).Msg("socket.io serve")
		}
	}()

	r.GET("/socket.io/*any", gin.WrapH(io))
	r.POST("/socket.io/*any", gin.WrapH(io))

	// Basic CORS preflight for Socket.IO POST
	r.OPTIONS("/socket.io/*any", func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Status(http.StatusNoContent)
	})

	return io
}

// Publish broadcasts a committed change to every socket in room.
func (srv *Server) Publish(room, event string, payload any) {
	if srv.io == nil {
		return
	}
	srv.io.BroadcastToRoom("/", room, event, payload)
}

func connCtx(s socketio.Conn) *ConnCtx {
	if cc, ok := s.Context().(*ConnCtx); ok && cc != nil {
		return cc
	}
	return &ConnCtx{}
}

// addMember records c as subscribed to code and returns the room's socket count.
func (srv *Server) addMember(code string, c socketio.Conn) int {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.members[code] == nil {
		srv.members[code] = make(map[string]socketio.Conn)
	}
	srv.members[code][c.ID()] = c
	return len(srv.members[code])
}

// leave drops s from the room it is currently subscribed to, if any.
func (srv *Server) leave(s socketio.Conn) {
	cc := connCtx(s)
	if cc.Code == "" {
		return
	}
	s.Leave(cc.Code)
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if m := srv.members[cc.Code]; m != nil {
		delete(m, s.ID())
		if len(m) == 0 {
			delete(srv.members, cc.Code)
		}
	}
}

// emitStateTo sends the full room snapshot to one freshly subscribed socket.
func (srv *Server) emitStateTo(ctx context.Context, s socketio.Conn) {
	cc := connCtx(s)
	room, err := srv.engine.GetRoom(ctx, cc.Code)
	if err != nil {
		srv.err(s, err)
		return
	}
	bets, err := srv.engine.ListBets(ctx, cc.Code)
	if err != nil {
		srv.err(s, err)
		return
	}
	lb, err := srv.engine.Leaderboard(ctx, cc.Code)
	if err != nil {
		srv.err(s, err)
		return
	}
	s.Emit(engine.EventRoomState, map[string]any{
		"room":        room,
		"bets":        bets,
		"leaderboard": lb,
		"you":         map[string]any{"userId": cc.UserID, "role": cc.Role},
	})
}

func (srv *Server) err(s socketio.Conn, err error) map[string]any {
	kind := game.KindOf(err)
	msg := err.Error()
	if kind == game.KindUnavailable {
		log.Error().Err(err).Str("sid", s.ID()).Msg("socket operation failed")
		msg = "service unavailable"
	}
	s.Emit("error", map[string]any{"code": string(kind), "message": msg})
	return map[string]any{"error": msg, "code": string(kind)}
}
