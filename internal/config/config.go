package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ravigummadi/smallbets.live/internal/game"
	"github.com/ravigummadi/smallbets.live/internal/transcript"
)

type Config struct {
	Port string
	// RedisURL selects the Redis store. Empty keeps rooms in memory.
	RedisURL    string
	JWTSecret   string
	TokenTTL    time.Duration
	WebhookKey  string
	CORSOrigins []string

	OpenThreshold    float64
	ResolveThreshold float64
	ReviewThreshold  float64
	PatternThreshold float64

	UndoGrace     time.Duration
	InitialPoints int
	RoomTTL       time.Duration

	// per room, per second
	TranscriptRate  float64
	TranscriptBurst int

	ExportEnabled bool
	ExportFile    string
}

func FromEnv() Config {
	def := transcript.DefaultConfig()
	c := Config{}
	c.Port = getenv("PORT", "8080")
	c.RedisURL = os.Getenv("REDIS_URL")
	c.JWTSecret = getenv("JWT_SECRET", "smallbets-dev-secret")
	c.TokenTTL = getduration("TOKEN_TTL", game.DefaultRoomTTL)
	c.WebhookKey = os.Getenv("WEBHOOK_KEY")
	c.CORSOrigins = strings.Split(getenv("CORS_ORIGINS", "*"), ",")

	c.OpenThreshold = getfloat("OPEN_THRESHOLD", def.OpenThreshold)
	c.ResolveThreshold = getfloat("RESOLVE_THRESHOLD", def.ResolveThreshold)
	c.ReviewThreshold = getfloat("REVIEW_THRESHOLD", def.ReviewThreshold)
	c.PatternThreshold = getfloat("PATTERN_THRESHOLD", def.PatternThreshold)

	c.UndoGrace = getduration("UNDO_GRACE", game.DefaultUndoGrace)
	c.InitialPoints = getint("INITIAL_POINTS", game.InitialPoints)
	c.RoomTTL = getduration("ROOM_TTL", game.DefaultRoomTTL)

	c.TranscriptRate = getfloat("TRANSCRIPT_RATE", 5)
	c.TranscriptBurst = getint("TRANSCRIPT_BURST", 10)

	c.ExportEnabled = getenv("EXPORT_ENABLED", "false") == "true"
	c.ExportFile = getenv("EXPORT_FILE", "./smallbets-results.txt")
	return c
}

// Classifier returns the classifier settings with the configured
// thresholds and the default trigger phrases.
func (c Config) Classifier() transcript.Config {
	tc := transcript.DefaultConfig()
	tc.OpenThreshold = c.OpenThreshold
	tc.ResolveThreshold = c.ResolveThreshold
	tc.ReviewThreshold = c.ReviewThreshold
	tc.PatternThreshold = c.PatternThreshold
	return tc
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", k).Str("value", v).Msg("invalid integer, using default")
		return def
	}
	return n
}

func getfloat(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		log.Warn().Str("key", k).Str("value", v).Msg("invalid number, using default")
		return def
	}
	return f
}

func getduration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Warn().Str("key", k).Str("value", v).Msg("invalid duration, using default")
		return def
	}
	return d
}
