package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/fluentup-app/fluentup/internal/api"
	"github.com/fluentup-app/fluentup/internal/auth"
	"github.com/fluentup-app/fluentup/internal/config"
	"github.com/fluentup-app/fluentup/internal/middleware"
	inats "github.com/fluentup-app/fluentup/internal/nats"
	"github.com/fluentup-app/fluentup/internal/quota"
	iredis "github.com/fluentup-app/fluentup/internal/redis"
	"github.com/fluentup-app/fluentup/internal/server"
	"github.com/fluentup-app/fluentup/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("validating config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Durable storage (optional; absent bucket means memory-only mode)
	var durable quota.Repository
	if cfg.Storage.Durable() {
		s3Client, err := storage.NewS3Client(cfg.Storage)
		if err != nil {
			slog.Error("configuring S3 storage", "error", err)
			os.Exit(1)
		}
		durable = quota.NewS3Repository(s3Client, cfg.Storage.Bucket, cfg.Storage.Prefix)
	}
	store := quota.NewStore(durable)

	// Redis (optional; backs the login rate limiter)
	var redisHealthy func() bool
	var loginLimiter func(http.Handler) http.Handler
	if cfg.Redis.Enabled() {
		redisClient, err := iredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Error("connecting to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()

		redisHealthy = func() bool {
			return redisClient.Ping(context.Background()).Err() == nil
		}
		loginLimiter = middleware.NewRateLimiter(redisClient, 10, 60).Middleware
	}

	// NATS (optional; usage event publishing)
	var publisher quota.EventPublisher
	if cfg.NATS.Enabled() {
		natsClient, err := inats.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to NATS", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()
		publisher = inats.NewPublisher(natsClient.JetStream())
	}

	// Auth
	authSvc, err := auth.NewService(cfg.Auth)
	if err != nil {
		slog.Error("configuring auth", "error", err)
		os.Exit(1)
	}
	authHandler := auth.NewHandler(authSvc)

	// Quota accounting
	quotaSvc := quota.NewService(store, cfg.Quota, publisher)
	quotaHandler := quota.NewHandler(quotaSvc)

	// Router
	router := api.NewRouter(api.RouterConfig{
		CORSAllowedOrigins: cfg.Server.CORSOrigins,
		LoginRateLimiter:   loginLimiter,
	}, api.HandlerSet{
		Login:   authHandler.Login,
		Session: authHandler.Session,

		GetUsage:       quotaHandler.GetUsage,
		IncrementUsage: quotaHandler.IncrementUsage,

		ListUsage:   quotaHandler.ListUsage,
		AdminAction: quotaHandler.AdminAction,

		AuthMiddleware:  auth.Middleware(authSvc),
		AdminMiddleware: auth.RequireAdmin(authSvc),

		RedisHealthy:   redisHealthy,
		StorageDurable: func() bool { return store.Mode() == quota.ModeDurable },
	})

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
