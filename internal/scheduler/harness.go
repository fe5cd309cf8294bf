// Package scheduler implements the background workers for the GlowMart
// storefront: cashback maturation, promotion lifecycle, and push dispatch.
//
// Each worker is a polling state-transition job: a recurring pass sweeps a
// bounded batch of due rows in the database and applies status transitions.
// The Worker harness in this file owns the timing; the per-worker services
// (cashback.go, lifecycle.go, dispatch.go) own the pass bodies and are defined
// against narrow DB interfaces so they test without a database.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"glowmart/internal/types"
)

// PassFunc is one complete execution of a worker's periodic task body.
// It returns the number of items processed.
type PassFunc func(ctx context.Context, now time.Time) (int, error)

// LockRepo abstracts cross-instance pass coordination (job_locks table).
type LockRepo interface {
	// Acquire returns true when this instance won the lock for the pass
	// window, false when another instance holds it.
	Acquire(ctx context.Context, lockID string, workerID string, ttl time.Duration) (bool, error)
}

// HistoryRepo abstracts pass execution records (job_history table).
type HistoryRepo interface {
	Start(ctx context.Context, jobType string) (int64, error)
	Finish(ctx context.Context, id int64, status string, items int, jobErr error) error
}

// WorkerConfig holds the configuration for creating a Worker.
type WorkerConfig struct {
	// Name identifies the worker in logs, locks, and history rows.
	Name string
	// Interval is the cadence between passes. The timer for the next pass is
	// armed only after the previous pass returns, so passes never overlap
	// within one process.
	Interval time.Duration
	// Enabled gates the worker entirely. A disabled worker's Start logs and
	// returns without running anything.
	Enabled bool
	// Pass is the task body.
	Pass PassFunc
	// WorkerID identifies this process instance in job locks.
	WorkerID string

	// Locks is optional; when set, each pass first acquires a lock for its
	// interval-aligned window so scaled-out instances do not double-sweep.
	Locks LockRepo
	// History is optional; when set, each executed pass writes a history row.
	History HistoryRepo

	Logger *slog.Logger
	Clock  types.Clock
}

// Worker is an explicit handle for one background worker. It is owned by the
// caller; there are no package-level timer globals, so tests can run several
// independent instances.
type Worker struct {
	name     string
	interval time.Duration
	enabled  bool
	pass     PassFunc
	workerID string
	locks    LockRepo
	history  HistoryRepo
	logger   *slog.Logger
	clock    types.Clock

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWorker creates a Worker from the given configuration.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Worker{
		name:     cfg.Name,
		interval: cfg.Interval,
		enabled:  cfg.Enabled,
		pass:     cfg.Pass,
		workerID: cfg.WorkerID,
		locks:    cfg.Locks,
		history:  cfg.History,
		logger:   logger.With("worker", cfg.Name),
		clock:    clock,
	}
}

// Start begins the recurring schedule: one pass immediately, then one per
// interval. It is idempotent; calling Start on a running worker is a no-op.
// A disabled worker logs and returns without installing a timer.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return
	}
	if !w.enabled {
		w.logger.Info("worker disabled, not starting")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})

	w.logger.Info("worker starting",
		"interval", w.interval.String(),
	)

	go w.loop(ctx, w.done)
}

// Stop cancels future passes and waits for any in-flight pass to finish.
// It is idempotent; stopping a worker that never started is a no-op.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	done := w.done
	w.cancel = nil
	w.done = nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	w.logger.Info("worker stopped")
}

// Running reports whether the worker currently has a schedule installed.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancel != nil
}

// loop runs passes until the context is cancelled. The timer is re-armed
// after each pass completes rather than on a fixed period, so a pass that
// outlasts the interval delays the next pass instead of overlapping it.
func (w *Worker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(0) // first pass fires immediately
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			w.runPass(ctx)
			timer.Reset(w.interval)
		}
	}
}

// runPass executes one pass inside an error boundary. Nothing thrown by a
// pass escapes to stop the schedule: errors and panics are logged and the
// next pass happens on cadence.
func (w *Worker) runPass(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("pass panicked",
				"panic", fmt.Sprintf("%v", r),
			)
		}
	}()

	now := w.clock.Now()

	if w.locks != nil {
		lockID := fmt.Sprintf("%s:%s", w.name, now.Truncate(w.interval).Format(time.RFC3339))
		acquired, err := w.locks.Acquire(ctx, lockID, w.workerID, w.interval)
		if err != nil {
			w.logger.Error("failed to acquire pass lock",
				"lock_id", lockID,
				"error", err,
			)
			return
		}
		if !acquired {
			// Another instance is sweeping this window.
			w.logger.Info("pass lock held elsewhere, skipping",
				"lock_id", lockID,
			)
			return
		}
	}

	var histID int64
	if w.history != nil {
		id, err := w.history.Start(ctx, w.name)
		if err != nil {
			// History is visibility, not correctness; run the pass anyway.
			w.logger.Warn("failed to record pass start",
				"error", err,
			)
		} else {
			histID = id
		}
	}

	items, err := w.pass(ctx, now)
	if err != nil {
		w.logger.Error("pass failed",
			"items", items,
			"error", err,
		)
		w.finishHistory(ctx, histID, "failed", items, err)
		return
	}

	w.logger.Info("pass complete",
		"items", items,
	)
	w.finishHistory(ctx, histID, "success", items, nil)
}

func (w *Worker) finishHistory(ctx context.Context, id int64, status string, items int, passErr error) {
	if w.history == nil || id == 0 {
		return
	}
	if err := w.history.Finish(ctx, id, status, items, passErr); err != nil {
		w.logger.Warn("failed to record pass finish",
			"history_id", id,
			"error", err,
		)
	}
}
