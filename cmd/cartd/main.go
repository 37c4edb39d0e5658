package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/packfinderz-cart/api/controllers"
	"github.com/angelmondragon/packfinderz-cart/api/routes"
	"github.com/angelmondragon/packfinderz-cart/internal/cart/provider"
	"github.com/angelmondragon/packfinderz-cart/internal/cart/storage"
	"github.com/angelmondragon/packfinderz-cart/pkg/config"
	"github.com/angelmondragon/packfinderz-cart/pkg/db"
	"github.com/angelmondragon/packfinderz-cart/pkg/instance"
	"github.com/angelmondragon/packfinderz-cart/pkg/logger"
	"github.com/angelmondragon/packfinderz-cart/pkg/metrics"
	"github.com/angelmondragon/packfinderz-cart/pkg/migrate"
	"github.com/angelmondragon/packfinderz-cart/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "cartd"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cartd",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	deps := provider.Deps{
		Metrics: metrics.NewCartMetrics(prometheus.DefaultRegisterer),
		Logger:  logg,
	}
	pingers := map[string]controllers.Pinger{}
	var idempotency redis.IdempotencyStore

	if cfg.Cart.Backend == config.BackendRecords {
		dbClient, err := db.New(context.Background(), cfg.DB, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap database", err)
			os.Exit(1)
		}
		defer func() {
			if err := dbClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing database", err)
			}
		}()

		if err := migrate.MaybeRun(context.Background(), cfg, logg, dbClient); err != nil {
			logg.Error(context.Background(), "failed to run migrations", err)
			os.Exit(1)
		}
		deps.DB = dbClient
		pingers["db"] = dbClient
	}

	if cfg.Cart.Backend == config.BackendLocal {
		kvClient, err := db.OpenSQLite(cfg.LocalKV.Path)
		if err != nil {
			logg.Error(context.Background(), "failed to open local store", err)
			os.Exit(1)
		}
		defer func() {
			if err := kvClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing local store", err)
			}
		}()

		local, err := storage.NewSQLiteKeyValueStore(kvClient, cfg.LocalKV.QuotaBytes)
		if err != nil {
			logg.Error(context.Background(), "failed to prepare local store", err)
			os.Exit(1)
		}
		deps.Local = local
		pingers["local_kv"] = kvClient
	}

	// Redis backs the redis cart backend and, whenever it is configured, add-item idempotency.
	if cfg.Cart.Backend == config.BackendRedis || cfg.Redis.URL != "" || cfg.Redis.Address != "" {
		redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		deps.Redis = redisClient
		idempotency = redisClient
		pingers["redis"] = redisClient
	}

	carts, err := provider.New(cfg, deps)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart provider", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"backend":  carts.Backend(),
		"instance": instance.ID(),
	})
	logg.Info(ctx, "starting cart server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, carts, idempotency, pingers, prometheus.DefaultGatherer),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "cart server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "cart server shutdown failed", err)
		}
		logg.Info(ctx, "cart server shutting down gracefully")
	}
}
