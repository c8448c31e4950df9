// Package api is the HTTP surface of the betting engine.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ravigummadi/smallbets.live/internal/auth"
	"github.com/ravigummadi/smallbets.live/internal/engine"
	"github.com/ravigummadi/smallbets.live/internal/game"
	"github.com/ravigummadi/smallbets.live/internal/metrics"
	"github.com/ravigummadi/smallbets.live/internal/store"
	"github.com/ravigummadi/smallbets.live/internal/ws"
)

type Options struct {
	WebhookKey      string
	TranscriptRate  float64
	TranscriptBurst int
	CORSOrigins     []string
}

type Server struct {
	engine  *engine.Engine
	issuer  *auth.Issuer
	store   store.Store
	metrics *metrics.Metrics
	hub     *ws.Hub
	opts    Options
	limiter *roomLimiter
}

func New(eng *engine.Engine, issuer *auth.Issuer, st store.Store, m *metrics.Metrics, hub *ws.Hub, opts Options) *Server {
	return &Server{
		engine:  eng,
		issuer:  issuer,
		store:   st,
		metrics: m,
		hub:     hub,
		opts:    opts,
		limiter: newRoomLimiter(opts.TranscriptRate, opts.TranscriptBurst),
	}
}

// Register mounts every route on r.
func (s *Server) Register(r *gin.Engine) {
	origins := s.opts.CORSOrigins
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", "X-Webhook-Key"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	r.Use(cors.New(cfg))

	r.GET("/health", s.health)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := r.Group("/api")
	api.GET("/templates", s.listTemplates)
	api.POST("/rooms", s.createRoom)

	room := api.Group("/rooms/:code", roomCode())
	{
		room.GET("", s.getRoom)
		room.POST("/join", s.joinRoom)
		room.GET("/participants", s.participants)
		room.GET("/leaderboard", s.leaderboard)
		room.GET("/bets", s.listBets)
		room.GET("/bets/:betId", s.getBet)

		room.POST("/transcript", webhookOrToken(s.issuer, s.opts.WebhookKey), s.limiter.middleware(), s.ingestTranscript)
	}

	authed := room.Group("", requireToken(s.issuer))
	{
		authed.POST("/start", s.startRoom)
		authed.POST("/finish", s.finishRoom)
		authed.POST("/bets", s.createBet)
		authed.POST("/bets/:betId/open", s.openBet)
		authed.POST("/bets/:betId/lock", s.lockBet)
		authed.POST("/bets/:betId/resolve", s.resolveBet)
		authed.POST("/bets/:betId/undo", s.undoResolve)
		authed.POST("/bets/:betId/wagers", s.placeWager)
		authed.GET("/bets/:betId/wagers", s.listWagers)
		authed.GET("/transcript", s.transcript)
		authed.POST("/automation", s.setAutomation)
		authed.GET("/automation/log", s.automationLog)
	}

	if s.hub != nil {
		r.GET("/ws/rooms/:code", roomCode(), func(c *gin.Context) {
			s.hub.Serve(c, codeOf(c))
		})
	}
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
}

func (s *Server) listTemplates(c *gin.Context) {
	out := make([]gin.H, 0)
	for _, id := range game.TemplateIDs() {
		t, err := game.LoadTemplate(id)
		if err != nil {
			continue
		}
		out = append(out, gin.H{"templateId": t.ID, "name": t.Name, "bets": len(t.Bets)})
	}
	c.JSON(http.StatusOK, gin.H{"templates": out})
}

func (s *Server) createRoom(c *gin.Context) {
	var req engine.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "kind": game.KindValidation})
		return
	}
	created, err := s.engine.CreateRoom(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	token, err := s.issuer.Issue(created.Room.Code, created.Host.UserID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"roomCode": created.Room.Code,
		"hostId":   created.Host.UserID,
		"userId":   created.Host.UserID,
		"token":    token,
		"room":     created.Room,
		"bets":     created.Bets,
	})
}

func (s *Server) getRoom(c *gin.Context) {
	room, err := s.engine.GetRoom(c.Request.Context(), codeOf(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (s *Server) joinRoom(c *gin.Context) {
	var req struct {
		Nickname string `json:"nickname"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "kind": game.KindValidation})
		return
	}
	ctx := c.Request.Context()
	p, err := s.engine.JoinRoom(ctx, codeOf(c), req.Nickname)
	if err != nil {
		abortWithError(c, err)
		return
	}
	room, err := s.engine.GetRoom(ctx, codeOf(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	token, err := s.issuer.Issue(p.RoomCode, p.UserID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"userId": p.UserID, "token": token, "room": room, "user": p})
}

func (s *Server) participants(c *gin.Context) {
	ps, err := s.engine.Participants(c.Request.Context(), codeOf(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": ps})
}

func (s *Server) leaderboard(c *gin.Context) {
	lb, err := s.engine.Leaderboard(c.Request.Context(), codeOf(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": lb})
}

func (s *Server) startRoom(c *gin.Context) {
	room, err := s.engine.StartRoom(c.Request.Context(), codeOf(c), actor(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (s *Server) finishRoom(c *gin.Context) {
	lb, err := s.engine.FinishRoom(c.Request.Context(), codeOf(c), actor(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": lb})
}

func (s *Server) createBet(c *gin.Context) {
	var spec game.BetSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "kind": game.KindValidation})
		return
	}
	bet, err := s.engine.CreateBet(c.Request.Context(), codeOf(c), actor(c), spec)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bet)
}

func (s *Server) listBets(c *gin.Context) {
	bets, err := s.engine.ListBets(c.Request.Context(), codeOf(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bets": bets})
}

func (s *Server) getBet(c *gin.Context) {
	bet, err := s.engine.GetBet(c.Request.Context(), codeOf(c), c.Param("betId"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, bet)
}

type versionRequest struct {
	Version int64 `json:"version"`
}

// bindVersion reads an optional {version} body. An empty body means no
// version check.
func bindVersion(c *gin.Context) (int64, bool) {
	var req versionRequest
	if c.Request.ContentLength == 0 {
		return 0, true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "kind": game.KindValidation})
		return 0, false
	}
	return req.Version, true
}

func (s *Server) betTransition(c *gin.Context, op func(context.Context, string, string, string, int64) (*game.Bet, error)) {
	version, ok := bindVersion(c)
	if !ok {
		return
	}
	bet, err := op(c.Request.Context(), codeOf(c), c.Param("betId"), actor(c), version)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, bet)
}

func (s *Server) openBet(c *gin.Context)     { s.betTransition(c, s.engine.OpenBet) }
func (s *Server) lockBet(c *gin.Context)     { s.betTransition(c, s.engine.LockBet) }
func (s *Server) undoResolve(c *gin.Context) { s.betTransition(c, s.engine.UndoResolve) }

func (s *Server) resolveBet(c *gin.Context) {
	var req struct {
		WinningOption string `json:"winningOption" binding:"required"`
		Version       int64  `json:"version"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "winningOption is required", "kind": game.KindValidation})
		return
	}
	res, err := s.engine.ResolveBet(c.Request.Context(), codeOf(c), c.Param("betId"), actor(c), req.WinningOption, req.Version)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) placeWager(c *gin.Context) {
	var req struct {
		SelectedOption string `json:"selectedOption" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "selectedOption is required", "kind": game.KindValidation})
		return
	}
	placed, err := s.engine.PlaceWager(c.Request.Context(), codeOf(c), c.Param("betId"), actor(c), req.SelectedOption)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, placed)
}

func (s *Server) listWagers(c *gin.Context) {
	wagers, err := s.engine.Wagers(c.Request.Context(), codeOf(c), c.Param("betId"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wagers": wagers})
}

func (s *Server) ingestTranscript(c *gin.Context) {
	var req struct {
		Text   string `json:"text"`
		Source string `json:"source"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "kind": game.KindValidation})
		return
	}
	res, err := s.engine.IngestTranscript(c.Request.Context(), codeOf(c), req.Text, req.Source)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func limitParam(c *gin.Context) int {
	n, _ := strconv.Atoi(c.Query("limit"))
	return n
}

func (s *Server) transcript(c *gin.Context) {
	entries, err := s.engine.Transcript(c.Request.Context(), codeOf(c), limitParam(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) setAutomation(c *gin.Context) {
	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "enabled is required", "kind": game.KindValidation})
		return
	}
	room, err := s.engine.SetAutomation(c.Request.Context(), codeOf(c), actor(c), *req.Enabled)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (s *Server) automationLog(c *gin.Context) {
	records, err := s.engine.AutomationLog(c.Request.Context(), codeOf(c), actor(c), limitParam(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}
