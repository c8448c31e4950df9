package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/ravigummadi/smallbets.live/internal/auth"
	"github.com/ravigummadi/smallbets.live/internal/engine"
	"github.com/ravigummadi/smallbets.live/internal/game"
)

const (
	ctxCode     = "roomCode"
	ctxIdentity = "identity"
)

// AccessLog logs every request through zerolog, skipping socket.io polling.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/socket.io") {
			return
		}
		log.Info().Str("method", c.Request.Method).Str("path", path).
			Int("status", c.Writer.Status()).Dur("dur", time.Since(start)).Msg("http")
	}
}

// roomCode validates the :code parameter and stores the normalized code.
func roomCode() gin.HandlerFunc {
	return func(c *gin.Context) {
		code, err := engine.NormalizeCode(c.Param("code"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(ctxCode, code)
		c.Next()
	}
}

func codeOf(c *gin.Context) string { return c.GetString(ctxCode) }

func bearer(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// requireToken admits requests carrying a token for the room in the path.
// Whether the caller is host or participant is checked by the engine.
func requireToken(issuer *auth.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := bearer(c)
		if !ok {
			abortWithError(c, fmt.Errorf("%w: authorization header required", game.ErrUnauthorized))
			return
		}
		id, err := issuer.Verify(tok)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if id.Room != codeOf(c) {
			abortWithError(c, game.ErrUnauthorized)
			return
		}
		c.Set(ctxIdentity, id)
		c.Next()
	}
}

// webhookOrToken admits caption webhooks by shared key, and otherwise falls
// back to a room token.
func webhookOrToken(issuer *auth.Issuer, key string) gin.HandlerFunc {
	tokenAuth := requireToken(issuer)
	return func(c *gin.Context) {
		k := c.GetHeader("X-Webhook-Key")
		if key != "" && subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			c.Next()
			return
		}
		tokenAuth(c)
	}
}

func actor(c *gin.Context) string {
	if v, ok := c.Get(ctxIdentity); ok {
		return v.(auth.Identity).UserID
	}
	return ""
}

// limiterIdle is how long a room's limiter is kept after its last request.
const limiterIdle = 10 * time.Minute

type roomEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

// roomLimiter rate limits a route per room code.
type roomLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	limiters  map[string]*roomEntry
	lastSweep time.Time
	now       func() time.Time
}

func newRoomLimiter(perSecond float64, burst int) *roomLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &roomLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*roomEntry),
		now:      time.Now,
	}
}

func (l *roomLimiter) get(code string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.lastSweep) >= limiterIdle {
		for k, e := range l.limiters {
			if now.Sub(e.seen) >= limiterIdle {
				delete(l.limiters, k)
			}
		}
		l.lastSweep = now
	}
	e := l.limiters[code]
	if e == nil {
		e = &roomEntry{lim: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[code] = e
	}
	e.seen = now
	return e.lim
}

func (l *roomLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.get(codeOf(c)).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many transcript fragments", "kind": "rate_limited"})
			return
		}
		c.Next()
	}
}
