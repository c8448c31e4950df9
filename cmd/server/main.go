package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ravigummadi/smallbets.live/internal/api"
	"github.com/ravigummadi/smallbets.live/internal/auth"
	"github.com/ravigummadi/smallbets.live/internal/config"
	"github.com/ravigummadi/smallbets.live/internal/engine"
	"github.com/ravigummadi/smallbets.live/internal/metrics"
	"github.com/ravigummadi/smallbets.live/internal/store"
	"github.com/ravigummadi/smallbets.live/internal/transcript"
	"github.com/ravigummadi/smallbets.live/internal/ws"
)

const version = "v1.0.0-dev"

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
		portFlag    = flag.String("port", "", "Port to listen on (overrides PORT env var)")
	)
	flag.BoolVar(showHelp, "h", false, "Show help message (shorthand)")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Parse()

	if *showHelp {
		fmt.Printf(`SmallBets.live - Real-time group betting for live events

Usage: %s [options]

Options:
  -h, --help      Show this help message
  -v, --version   Show version information
  --port PORT     Port to listen on (default: 8080 or PORT env var)

Environment Variables:
  PORT                Port to listen on (default: 8080)
  REDIS_URL           Redis URL for room state (default: in-memory)
  JWT_SECRET          Secret used to sign room tokens
  TOKEN_TTL           Room token lifetime (default: 24h)
  WEBHOOK_KEY         Shared key accepted on the transcript webhook
  CORS_ORIGINS        Comma separated allowed origins (default: *)
  OPEN_THRESHOLD      Confidence needed to open a bet (default: 0.80)
  RESOLVE_THRESHOLD   Confidence needed to resolve a bet (default: 0.85)
  REVIEW_THRESHOLD    Confidence below which decisions are flagged (default: 0.60)
  PATTERN_THRESHOLD   Fuzzy match threshold for trigger phrases (default: 0.60)
  UNDO_GRACE          Window for undoing a resolution (default: 10s)
  INITIAL_POINTS      Starting balance per participant (default: 1000)
  ROOM_TTL            Room lifetime (default: 24h)
  TRANSCRIPT_RATE     Transcript fragments per second per room (default: 5)
  TRANSCRIPT_BURST    Transcript burst size per room (default: 10)
  EXPORT_ENABLED      Append resolutions to a file (default: false)
  EXPORT_FILE         Path for resolution export (default: ./smallbets-results.txt)

Examples:
  %s                  Start server with default settings
  %s --port 3000      Start server on port 3000
`, os.Args[0], os.Args[0], os.Args[0])
		return
	}

	if *showVersion {
		fmt.Printf("SmallBets.live %s\n", version)
		return
	}

	// zerolog setup (human-friendly console)
	zerolog.TimeFieldFormat = time.RFC3339
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	log.Logger = log.Output(cw)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("could not load .env")
	}
	cfg := config.FromEnv()
	port := *portFlag
	if port == "" {
		port = cfg.Port
	}

	var st store.Store
	if cfg.RedisURL != "" {
		rs, err := store.NewRedis(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("redis unavailable")
		}
		st = rs
		log.Info().Msg("using redis store")
	} else {
		st = store.NewMemory()
		log.Info().Msg("using in-memory store")
	}
	defer st.Close()

	m := metrics.New()
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	cls := transcript.New(cfg.Classifier())

	opts := engine.Options{
		InitialPoints: cfg.InitialPoints,
		UndoGrace:     cfg.UndoGrace,
		RoomTTL:       cfg.RoomTTL,
	}
	if cfg.ExportEnabled {
		opts.ExportFile = cfg.ExportFile
	}
	eng := engine.New(st, cls, m, nil, opts)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(api.AccessLog())

	// Socket server + overlay hub
	hub := ws.NewHub()
	sock := ws.New(eng, issuer)
	io := sock.Mount(r)
	defer io.Close()
	eng.SetPublisher(ws.Fanout{sock, hub})

	api.New(eng, issuer, st, m, hub, api.Options{
		WebhookKey:      cfg.WebhookKey,
		TranscriptRate:  cfg.TranscriptRate,
		TranscriptBurst: cfg.TranscriptBurst,
		CORSOrigins:     cfg.CORSOrigins,
	}).Register(r)

	log.Info().Str("port", port).Msg("listening")
	if err := r.Run(":" + port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
