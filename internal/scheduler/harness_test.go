package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// ============================================================
// Mock: LockRepo / HistoryRepo
// ============================================================

type mockLockRepo struct {
	mu sync.Mutex

	acquire    bool
	acquireErr error
	lockIDs    []string
	workerIDs  []string
	ttls       []time.Duration
}

func (m *mockLockRepo) Acquire(_ context.Context, lockID string, workerID string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockIDs = append(m.lockIDs, lockID)
	m.workerIDs = append(m.workerIDs, workerID)
	m.ttls = append(m.ttls, ttl)
	if m.acquireErr != nil {
		return false, m.acquireErr
	}
	return m.acquire, nil
}

type historyRecord struct {
	status string
	items  int
	err    error
}

type mockHistoryRepo struct {
	mu sync.Mutex

	nextID   int64
	startErr error
	started  []string
	finished map[int64]historyRecord
}

func (m *mockHistoryRepo) Start(_ context.Context, jobType string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return 0, m.startErr
	}
	m.nextID++
	m.started = append(m.started, jobType)
	return m.nextID, nil
}

func (m *mockHistoryRepo) Finish(_ context.Context, id int64, status string, items int, jobErr error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finished == nil {
		m.finished = make(map[int64]historyRecord)
	}
	m.finished[id] = historyRecord{status: status, items: items, err: jobErr}
	return nil
}

// waitFor polls cond until it returns true or the deadline lapses.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// ============================================================
// Tests
// ============================================================

func TestWorker_Start_RunsFirstPassImmediately(t *testing.T) {
	var passes atomic.Int32
	w := NewWorker(WorkerConfig{
		Name:     "test",
		Interval: time.Hour,
		Enabled:  true,
		Pass: func(ctx context.Context, now time.Time) (int, error) {
			passes.Add(1)
			return 0, nil
		},
		Logger: testLogger(),
	})

	w.Start()
	defer w.Stop()

	waitFor(t, time.Second, func() bool { return passes.Load() == 1 })
	if !w.Running() {
		t.Error("worker should report running after Start")
	}
}

func TestWorker_Disabled_NeverRuns(t *testing.T) {
	var passes atomic.Int32
	w := NewWorker(WorkerConfig{
		Name:     "test",
		Interval: time.Millisecond,
		Enabled:  false,
		Pass: func(ctx context.Context, now time.Time) (int, error) {
			passes.Add(1)
			return 0, nil
		},
		Logger: testLogger(),
	})

	w.Start()
	time.Sleep(20 * time.Millisecond)

	if w.Running() {
		t.Error("disabled worker should not report running")
	}
	if passes.Load() != 0 {
		t.Errorf("disabled worker ran %d passes, want 0", passes.Load())
	}
	w.Stop() // no-op
}

func TestWorker_Start_Idempotent(t *testing.T) {
	var passes atomic.Int32
	w := NewWorker(WorkerConfig{
		Name:     "test",
		Interval: time.Hour,
		Enabled:  true,
		Pass: func(ctx context.Context, now time.Time) (int, error) {
			passes.Add(1)
			return 0, nil
		},
		Logger: testLogger(),
	})

	w.Start()
	w.Start()
	defer w.Stop()

	waitFor(t, time.Second, func() bool { return passes.Load() >= 1 })
	time.Sleep(20 * time.Millisecond)
	if passes.Load() != 1 {
		t.Errorf("double Start produced %d immediate passes, want 1", passes.Load())
	}
}

func TestWorker_Stop_WaitsForInFlightPass(t *testing.T) {
	passStarted := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	w := NewWorker(WorkerConfig{
		Name:     "test",
		Interval: time.Hour,
		Enabled:  true,
		Pass: func(ctx context.Context, now time.Time) (int, error) {
			close(passStarted)
			<-release
			finished.Store(true)
			return 0, nil
		},
		Logger: testLogger(),
	})

	w.Start()
	<-passStarted

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a pass was in flight")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the pass finished")
	}

	if !finished.Load() {
		t.Error("pass did not run to completion before Stop returned")
	}
	if w.Running() {
		t.Error("worker should not report running after Stop")
	}
}

func TestWorker_Stop_Idempotent(t *testing.T) {
	w := NewWorker(WorkerConfig{
		Name:     "test",
		Interval: time.Hour,
		Enabled:  true,
		Pass:     func(ctx context.Context, now time.Time) (int, error) { return 0, nil },
		Logger:   testLogger(),
	})

	w.Start()
	w.Stop()
	w.Stop() // second Stop is a no-op
}

func TestWorker_PassesNeverOverlap(t *testing.T) {
	var inFlight atomic.Int32
	var maxInFlight atomic.Int32
	var passes atomic.Int32

	w := NewWorker(WorkerConfig{
		Name:     "test",
		Interval: time.Millisecond,
		Enabled:  true,
		Pass: func(ctx context.Context, now time.Time) (int, error) {
			cur := inFlight.Add(1)
			if cur > maxInFlight.Load() {
				maxInFlight.Store(cur)
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			passes.Add(1)
			return 0, nil
		},
		Logger: testLogger(),
	})

	w.Start()
	waitFor(t, 2*time.Second, func() bool { return passes.Load() >= 3 })
	w.Stop()

	if maxInFlight.Load() != 1 {
		t.Errorf("max concurrent passes = %d, want 1", maxInFlight.Load())
	}
}

func TestWorker_PassErrorDoesNotStopSchedule(t *testing.T) {
	var passes atomic.Int32
	w := NewWorker(WorkerConfig{
		Name:     "test",
		Interval: 5 * time.Millisecond,
		Enabled:  true,
		Pass: func(ctx context.Context, now time.Time) (int, error) {
			passes.Add(1)
			return 0, errors.New("pass blew up")
		},
		Logger: testLogger(),
	})

	w.Start()
	waitFor(t, 2*time.Second, func() bool { return passes.Load() >= 3 })
	w.Stop()
}

func TestWorker_PassPanicIsContained(t *testing.T) {
	var passes atomic.Int32
	w := NewWorker(WorkerConfig{
		Name:     "test",
		Interval: 5 * time.Millisecond,
		Enabled:  true,
		Pass: func(ctx context.Context, now time.Time) (int, error) {
			passes.Add(1)
			panic("unexpected nil")
		},
		Logger: testLogger(),
	})

	w.Start()
	waitFor(t, 2*time.Second, func() bool { return passes.Load() >= 2 })
	w.Stop()
}

func TestWorker_LockHeldElsewhereSkipsPass(t *testing.T) {
	var passes atomic.Int32
	locks := &mockLockRepo{acquire: false}

	w := NewWorker(WorkerConfig{
		Name:     "test",
		Interval: time.Hour,
		Enabled:  true,
		WorkerID: "worker-1",
		Locks:    locks,
		Pass: func(ctx context.Context, now time.Time) (int, error) {
			passes.Add(1)
			return 0, nil
		},
		Logger: testLogger(),
	})

	w.Start()
	waitFor(t, time.Second, func() bool {
		locks.mu.Lock()
		defer locks.mu.Unlock()
		return len(locks.lockIDs) >= 1
	})
	w.Stop()

	if passes.Load() != 0 {
		t.Errorf("pass ran %d times while lock was held elsewhere, want 0", passes.Load())
	}

	locks.mu.Lock()
	defer locks.mu.Unlock()
	if locks.workerIDs[0] != "worker-1" {
		t.Errorf("lock acquired with worker ID %q, want worker-1", locks.workerIDs[0])
	}
	if locks.ttls[0] != time.Hour {
		t.Errorf("lock TTL = %v, want the pass interval", locks.ttls[0])
	}
}

func TestWorker_HistoryRecordsOutcome(t *testing.T) {
	history := &mockHistoryRepo{}
	locks := &mockLockRepo{acquire: true}
	var passes atomic.Int32

	w := NewWorker(WorkerConfig{
		Name:     "cashback",
		Interval: time.Hour,
		Enabled:  true,
		WorkerID: "worker-1",
		Locks:    locks,
		History:  history,
		Pass: func(ctx context.Context, now time.Time) (int, error) {
			passes.Add(1)
			return 7, nil
		},
		Logger: testLogger(),
	})

	w.Start()
	waitFor(t, time.Second, func() bool { return passes.Load() == 1 })
	w.Stop()

	history.mu.Lock()
	defer history.mu.Unlock()
	if len(history.started) != 1 || history.started[0] != "cashback" {
		t.Fatalf("history started = %v, want [cashback]", history.started)
	}
	rec, ok := history.finished[1]
	if !ok {
		t.Fatal("history entry was never finished")
	}
	if rec.status != "success" || rec.items != 7 {
		t.Errorf("history record = %+v, want success/7", rec)
	}
}

func TestWorker_HistoryRecordsFailure(t *testing.T) {
	history := &mockHistoryRepo{}
	var passes atomic.Int32

	w := NewWorker(WorkerConfig{
		Name:     "cashback",
		Interval: time.Hour,
		Enabled:  true,
		History:  history,
		Pass: func(ctx context.Context, now time.Time) (int, error) {
			passes.Add(1)
			return 3, errors.New("batch failed")
		},
		Logger: testLogger(),
	})

	w.Start()
	waitFor(t, time.Second, func() bool { return passes.Load() == 1 })
	w.Stop()

	history.mu.Lock()
	defer history.mu.Unlock()
	rec, ok := history.finished[1]
	if !ok {
		t.Fatal("history entry was never finished")
	}
	if rec.status != "failed" || rec.items != 3 || rec.err == nil {
		t.Errorf("history record = %+v, want failed/3 with error", rec)
	}
}

func TestWorker_HistoryStartFailureStillRunsPass(t *testing.T) {
	history := &mockHistoryRepo{startErr: errors.New("insert failed")}
	var passes atomic.Int32

	w := NewWorker(WorkerConfig{
		Name:     "test",
		Interval: time.Hour,
		Enabled:  true,
		History:  history,
		Pass: func(ctx context.Context, now time.Time) (int, error) {
			passes.Add(1)
			return 0, nil
		},
		Logger: testLogger(),
	})

	w.Start()
	waitFor(t, time.Second, func() bool { return passes.Load() == 1 })
	w.Stop()
}
