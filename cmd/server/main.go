package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/air-quality-etl/internal/adapter/cache"
	httpadapter "github.com/couchcryptid/air-quality-etl/internal/adapter/http"
	"github.com/couchcryptid/air-quality-etl/internal/adapter/postgres"
	"github.com/couchcryptid/air-quality-etl/internal/adapter/provider"
	"github.com/couchcryptid/air-quality-etl/internal/config"
	"github.com/couchcryptid/air-quality-etl/internal/observability"
	"github.com/couchcryptid/air-quality-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := httpadapter.Deps{
		AQI:     provider.NewAQIClient(cfg, metrics, logger),
		Fires:   provider.NewFIRMSClient(cfg, metrics, logger),
		Metrics: metrics,
	}

	// Correlation and readiness need the store; live proxies work without it.
	var store *postgres.Store
	if cfg.DatabaseURL != "" {
		store, err = postgres.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer store.Close()

		deps.Correlation = pipeline.NewCorrelationService(store, cfg.Defaults, logger, metrics)
		deps.Ready = httpadapter.ReadinessFunc(store.Ping)
	} else {
		logger.Warn("DATABASE_URL not set, correlation endpoint disabled")
	}

	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisURL, cfg.LiveCacheTTL, logger)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer rc.Close()
		deps.Cache = rc
		logger.Info("live cache backed by redis", "ttl", cfg.LiveCacheTTL)
	} else {
		deps.Cache = cache.NewLRU(cfg.LiveCacheSize, cfg.LiveCacheTTL, nil)
		logger.Info("live cache in memory", "ttl", cfg.LiveCacheTTL, "size", cfg.LiveCacheSize)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, deps, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
