package main

import (
	"github.com/fasthttp/router"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/gamelogsTOP/dotserver/internal/cache"
	"github.com/gamelogsTOP/dotserver/internal/config"
	"github.com/gamelogsTOP/dotserver/internal/db"
	"github.com/gamelogsTOP/dotserver/internal/event"
	"github.com/gamelogsTOP/dotserver/internal/http/handlers"
	appmw "github.com/gamelogsTOP/dotserver/internal/http/middleware"
	"github.com/gamelogsTOP/dotserver/internal/logging"
	"github.com/gamelogsTOP/dotserver/internal/metrics"
	"github.com/gamelogsTOP/dotserver/internal/session"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	sqlDB, err := db.Connect(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}

	// The cache is a non-fatal dependency: without it the service degrades
	// to durable-store-only lookups.
	sessions, err := cache.Connect(cfg.RedisAddr, cfg.RedisPassword, cfg.SessionTTL, cfg.DialTimeout, cfg.OpTimeout)
	if err != nil {
		logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("session cache unavailable, continuing without it")
	} else {
		logger.Info().Str("addr", cfg.RedisAddr).Msg("session cache connected")
	}

	db.StartRetentionWorker(sqlDB, cfg.RetentionDays, cfg.ScoreHistoryMax)
	metrics.Init()

	events := db.NewEvents(sqlDB, cfg.OpTimeout)
	users := db.NewUsers(sqlDB, cfg.OpTimeout)
	validator := event.NewValidator(cfg.EventTypes)

	// Interface-typed nils must stay nil, not wrap a nil *Sessions.
	var toucher event.SessionToucher
	var writer session.SessionWriter
	if sessions != nil {
		toucher = sessions
		writer = sessions
	}
	merger := event.NewMerger(events, toucher, logger)
	reconciler := session.NewReconciler(users, writer, validator, logger)

	limiter := appmw.NewRateLimiter(appmw.RateLimiterConfig{
		RequestsPerMinute: cfg.RateLimit,
		Burst:             cfg.RateBurst,
		CleanupInterval:   appmw.DefaultRateLimiterConfig().CleanupInterval,
	})
	defer limiter.Stop()
	limited := limiter.Middleware()
	authed := appmw.BearerAuth(cfg.IngestAPIKey)

	r := router.New()

	r.GET("/healthz", handlers.Health())
	r.GET("/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()))

	r.POST("/v1/events/save", limited(authed(handlers.SaveEvent(validator, merger))))
	r.POST("/v1/events/batch", limited(authed(handlers.BatchEvents(validator, merger))))
	r.GET("/v1/events/info", handlers.QueryEvents(events))

	r.POST("/v1/users/register", limited(authed(handlers.RegisterUser(reconciler))))
	r.GET("/v1/users/list", handlers.ListUsers(users))
	r.GET("/v1/users/{user_id}", handlers.UserInfo(users, events))

	handler := appmw.RequestLogger(r.Handler)

	logger.Info().Str("addr", cfg.ListenAddr).Msg("dotserver listening")
	if err := fasthttp.ListenAndServe(cfg.ListenAddr, handler); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}
