// Package main is the entrypoint for the GlowMart scheduler service.
//
// The service runs three background workers against the storefront database:
//
//   - cashback: expires stale wallet reserves and matures pending cashback
//     credits into wallet balances.
//   - expire: flips the is_active flag on offers and contests as their
//     validity windows open and close.
//   - push: broadcasts a promotional Web Push notification to every active
//     subscription (disabled unless explicitly enabled).
//
// Alongside the workers it serves a small ops HTTP surface: a health endpoint
// and an admin trigger for an immediate promotion lifecycle sweep.
//
// This file handles dependency wiring only; all business logic lives in the
// internal packages.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"glowmart/internal/config"
	"glowmart/internal/db"
	"glowmart/internal/notifications/push"
	"glowmart/internal/ops"
	"glowmart/internal/scheduler"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	})).With("service", cfg.Service)

	ctx := context.Background()

	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	// Repositories.
	walletRepo := db.NewWalletRepository(pool)
	promoRepo := db.NewPromoRepository(pool)
	subscriptionRepo := db.NewPushSubscriptionRepository(pool)

	var (
		locks   scheduler.LockRepo
		history scheduler.HistoryRepo
	)
	if cfg.Locks.Enabled {
		locks = db.NewJobLockRepository(pool)
		history = db.NewJobHistoryRepository(pool)
	}

	// Services.
	cashbackSvc := scheduler.NewCashbackService(walletRepo, logger)
	lifecycleSvc := scheduler.NewPromoLifecycleService(promoRepo, logger)
	sender := push.NewSender(cfg.Push, logger)
	dispatchSvc := scheduler.NewPushDispatchService(subscriptionRepo, sender, logger)

	// One worker ID per process instance, shared by all three locks.
	workerID := uuid.New().String()

	workers := []*scheduler.Worker{
		scheduler.NewWorker(scheduler.WorkerConfig{
			Name:     "cashback",
			Interval: cfg.Cashback.Interval.Or(config.DefaultCashbackInterval),
			Enabled:  cfg.Cashback.Enabled,
			Pass:     cashbackSvc.RunPass,
			WorkerID: workerID,
			Locks:    locks,
			History:  history,
			Logger:   logger,
		}),
		scheduler.NewWorker(scheduler.WorkerConfig{
			Name:     "expire",
			Interval: cfg.Expire.Interval.Or(config.DefaultExpireInterval),
			Enabled:  cfg.Expire.Enabled,
			Pass:     lifecycleSvc.RunPass,
			WorkerID: workerID,
			Locks:    locks,
			History:  history,
			Logger:   logger,
		}),
		scheduler.NewWorker(scheduler.WorkerConfig{
			Name:     "push",
			Interval: cfg.Push.Interval.Or(config.DefaultPushInterval),
			Enabled:  cfg.Push.Enabled,
			Pass:     dispatchSvc.RunPass,
			WorkerID: workerID,
			Locks:    locks,
			History:  history,
			Logger:   logger,
		}),
	}

	for _, w := range workers {
		w.Start()
	}

	opsServer := ops.NewServer(pool, lifecycleSvc, logger)
	httpServer := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Server.Port),
		Handler:           opsServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		logger.Info("ops server listening", "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("ops server shutdown error", "error", err)
		}

		// Stop waits for any in-flight pass, so workers drain cleanly.
		for _, w := range workers {
			w.Stop()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("service exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("service stopped")
}

// newPool builds the pgx connection pool with decimal support. The
// shopspring codec registration makes numeric columns scan directly into
// decimal.Decimal in the repositories.
func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}

	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	return pgxpool.NewWithConfig(ctx, poolCfg)
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
