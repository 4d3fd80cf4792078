package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the core runtime configuration for the service.
// Values are primarily sourced from environment variables, with
// sensible defaults where appropriate. See .env.example.
type Config struct {
	ListenAddr string

	// DatabaseURL is the PostgreSQL connection URL for the durable store.
	DatabaseURL string

	// RedisAddr is the host:port of the session cache. Empty disables caching
	// entirely; the service then degrades to durable-store-only lookups.
	RedisAddr     string
	RedisPassword string

	// SessionTTL is how long a cached session projection lives without
	// being rewritten.
	SessionTTL time.Duration

	// DialTimeout and OpTimeout bound connection establishment and
	// individual store/cache operations respectively.
	DialTimeout time.Duration
	OpTimeout   time.Duration

	// RetentionDays is how long ingested events are kept before the
	// retention worker deletes them. Zero disables retention.
	RetentionDays int

	// ScoreHistoryMax caps the per-event score_history length. The durable
	// append itself is unbounded; the retention worker trims histories past
	// this cap on its daily pass.
	ScoreHistoryMax int

	// RateLimit / RateBurst configure the per-client limiter on mutating
	// routes, expressed as requests per minute.
	RateLimit int
	RateBurst int

	// IngestAPIKey, when non-empty, is required as a bearer token on
	// mutating routes.
	IngestAPIKey string

	LogLevel  string
	LogFormat string

	// EventTypes is the closed set of admissible event_type values.
	EventTypes []string
}

// DefaultEventTypes is the telemetry vocabulary the game client emits.
var DefaultEventTypes = []string{
	"user_id",
	"game_enter",
	"game_uptime",
	"game_score",
	"game_level",
	"sound_paused",
	"sound_resumed",
	"ads_opened",
	"ads_closed",
	"fps_set",
	"difficulty_set",
}

// Load reads configuration from environment variables and applies defaults.
func Load() *Config {
	cfg := &Config{
		ListenAddr:      getenv("APP_LISTEN_ADDR", ":13258"),
		DatabaseURL:     os.Getenv("APP_DATABASE_URL"),
		RedisAddr:       getenv("APP_REDIS_ADDR", "localhost:6379"),
		RedisPassword:   os.Getenv("APP_REDIS_PASSWORD"),
		SessionTTL:      2 * time.Hour,
		DialTimeout:     5 * time.Second,
		OpTimeout:       45 * time.Second,
		RetentionDays:   30,
		ScoreHistoryMax: 100,
		RateLimit:       1000,
		RateBurst:       1000,
		IngestAPIKey:    os.Getenv("APP_INGEST_API_KEY"),
		LogLevel:        getenv("APP_LOG_LEVEL", "info"),
		LogFormat:       getenv("APP_LOG_FORMAT", "json"),
		EventTypes:      DefaultEventTypes,
	}

	if n := getint("APP_SESSION_TTL_SECONDS"); n > 0 {
		cfg.SessionTTL = time.Duration(n) * time.Second
	}
	if n := getint("APP_DIAL_TIMEOUT_MS"); n > 0 {
		cfg.DialTimeout = time.Duration(n) * time.Millisecond
	}
	if n := getint("APP_OP_TIMEOUT_MS"); n > 0 {
		cfg.OpTimeout = time.Duration(n) * time.Millisecond
	}
	if v := os.Getenv("APP_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days >= 0 {
			cfg.RetentionDays = days
		}
	}
	if n := getint("APP_SCORE_HISTORY_MAX"); n > 0 {
		cfg.ScoreHistoryMax = n
	}
	if n := getint("APP_RATE_LIMIT"); n > 0 {
		cfg.RateLimit = n
	}
	if n := getint("APP_RATE_BURST"); n > 0 {
		cfg.RateBurst = n
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
