package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/clock"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/config"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/infra"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/metrics"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/repository"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/repository/memory"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/router"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/worker"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API. With EVENTS_ENABLED the committed session events are
queued in Redis and folded into the daily reports by the worker pool.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	setupLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, store, err := openStore(cfg)
	if err != nil {
		return err
	}

	deps := router.Deps{DB: db, Store: store, Clock: clock.Real{}}

	if cfg.EventsEnabled {
		rdb, err := infra.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rdb.Close()

		cbCfg := infra.DefaultCBConfig("events")
		cbCfg.OnStateChange = func(name string, from, to infra.CBState) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		}
		deps.Redis = rdb
		deps.Events = worker.NewDispatcher(rdb, infra.NewCircuitBreaker(cbCfg))

		// Worker handlers are wired here (composition root).
		pool := worker.NewPool(rdb)
		pool.Handle(worker.JobSessionEvent, worker.DailySummaryHandler(rdb))
		pool.Start(ctx, cfg.WorkerPoolSize)
	} else {
		log.Info().Msg("events disabled; daily reports are unavailable")
	}

	svc := router.NewServices(cfg, deps)
	if err := svc.Parking.SyncCapacity(ctx); err != nil {
		return fmt.Errorf("failed to load occupancy: %w", err)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router.New(cfg, deps, svc),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("storage", cfg.StorageDriver).Msgf("ParkPOS listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown on SIGINT / SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	cancel()
	log.Info().Msg("server exited")
	return nil
}

// openStore returns the configured store. db is nil with the memory driver.
func openStore(cfg *config.Config) (*gorm.DB, repository.Store, error) {
	if cfg.StorageDriver == "memory" {
		log.Warn().Msg("memory storage: nothing survives a restart")
		return nil, memory.New(), nil
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return db, repository.NewStore(db), nil
}
