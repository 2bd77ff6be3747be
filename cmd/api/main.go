package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openhouse-labs/tour-scheduling-api/internal/adapters/httpapi"
	memtourstore "github.com/openhouse-labs/tour-scheduling-api/internal/adapters/memory/tourstore"
	postgres "github.com/openhouse-labs/tour-scheduling-api/internal/adapters/postgres"
	pgtourstore "github.com/openhouse-labs/tour-scheduling-api/internal/adapters/postgres/tourstore"
	"github.com/openhouse-labs/tour-scheduling-api/internal/app/tours"
	platformclock "github.com/openhouse-labs/tour-scheduling-api/internal/platform/clock"
	"github.com/openhouse-labs/tour-scheduling-api/internal/platform/config"
	tourstoreport "github.com/openhouse-labs/tour-scheduling-api/internal/ports/out/tourstore"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	clk := platformclock.NewSystemClock()

	var (
		store   tourstoreport.Store
		cleanup func()
	)
	switch cfg.StorageBackend {
	case "postgres":
		pool, err := postgres.NewPool(context.Background(), cfg.DatabaseURL, postgres.PoolOptions{})
		if err != nil {
			logger.Error("invalid postgres config", "error", err)
			os.Exit(1)
		}
		cleanup = pool.Close

		pgStore := pgtourstore.NewStore(pool)
		if err := pgStore.EnsureSchema(context.Background()); err != nil {
			logger.Error("ensure schema", "error", err)
			pool.Close()
			os.Exit(1)
		}
		store = pgStore
	default:
		store = memtourstore.NewStore()
	}
	if cleanup != nil {
		defer cleanup()
	}

	tourSvc := tours.NewService(store, clk, logger)

	api := httpapi.NewServer(tourSvc)
	handler := httpapi.NewRouter(api)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("api listening", "port", cfg.Port, "backend", cfg.StorageBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
