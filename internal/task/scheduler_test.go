package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scout-api/internal/config"
	"github.com/phrazzld/scout-api/internal/domain"
	"github.com/phrazzld/scout-api/internal/events"
	"github.com/phrazzld/scout-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const (
	waitFor = 2 * time.Second
	tick    = 2 * time.Millisecond
)

func fastConfig() Config {
	return Config{
		Interval:       time.Millisecond,
		BackoffFloor:   5 * time.Millisecond,
		BackoffCap:     20 * time.Millisecond,
		ResyncInterval: time.Hour,
	}
}

func newTestScheduler(t *testing.T, s TaskStore, checker StatusChecker, cleaner ArtifactCleaner, cfg Config, opts ...Option) *Scheduler {
	t.Helper()

	sched := NewScheduler(s, checker, cleaner, cfg, discardLogger(), opts...)
	t.Cleanup(sched.Stop)
	return sched
}

// taskStatus returns a reader for the stored status of task. It is safe to
// call from assert.Eventually conditions.
func taskStatus(t *testing.T, s TaskStore, task *domain.Task) func() domain.TaskStatus {
	t.Helper()
	return func() domain.TaskStatus {
		got, err := s.GetByID(context.Background(), task.ID)
		if err != nil {
			return ""
		}
		return got.Status
	}
}

func sessionFor(s *Scheduler, id uuid.UUID) *pollingSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

func TestScheduler_OnlyPollsEligibleTasks(t *testing.T) {
	t.Parallel()

	running := newRunningTask(t, "acct1", "op1", "")
	noHandle := newRunningTask(t, "acct2", "", "")
	pending, err := domain.NewTask("acct3", 0, 0, 0)
	require.NoError(t, err)
	completed := newRunningTask(t, "acct4", "op4", "")
	completed.Status = domain.TaskStatusCompleted

	taskStore := NewMockTaskStore(running, noHandle, pending, completed)
	checker := &MockStatusChecker{}
	sched := newTestScheduler(t, taskStore, checker, nil, fastConfig())

	sched.Start(context.Background())

	assert.ElementsMatch(t, []uuid.UUID{running.ID}, sched.ActiveSessions())
	assert.True(t, sched.IsPolling(running.ID))
	assert.False(t, sched.IsPolling(noHandle.ID))
	assert.False(t, sched.IsPolling(pending.ID))
	assert.False(t, sched.IsPolling(completed.ID))
}

func TestScheduler_CompletionScenario(t *testing.T) {
	t.Parallel()

	task := newRunningTask(t, "acct1", "op1", "E1")
	taskStore := NewMockTaskStore(task)
	results := []domain.Profile{{Username: "a", URL: "u"}}
	checker := &MockStatusChecker{
		CheckStatusFn: func(ctx context.Context, handle string) (domain.StatusReport, error) {
			return domain.StatusReport{Status: domain.RemoteStatusCompleted, Results: results}, nil
		},
	}
	cleaner := &MockArtifactCleaner{}

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	sched := newTestScheduler(t, taskStore, checker, cleaner, fastConfig(), WithTracer(tp.Tracer("test")))

	sched.Start(context.Background())

	assert.Eventually(t, func() bool {
		return taskStatus(t, taskStore, task)() == domain.TaskStatusCompleted
	}, waitFor, tick)
	assert.Eventually(t, func() bool { return !sched.IsPolling(task.ID) }, waitFor, tick)

	got, err := taskStore.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, results, got.Results)
	assert.NotNil(t, got.CompletedAt)

	// Give stray ticks a chance to misbehave.
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, taskStore.Commits(), 1, "exactly one terminal commit")
	assert.Equal(t, []CleanupCall{{Target: "acct1", ExecID: "E1"}}, cleaner.Calls())
	assert.NotEmpty(t, recorder.Ended(), "poll attempts are traced")
}

func TestScheduler_NotFoundScenario(t *testing.T) {
	t.Parallel()

	task := newRunningTask(t, "acct1", "op1", "E1")
	taskStore := NewMockTaskStore(task)
	checker := &MockStatusChecker{
		CheckStatusFn: func(ctx context.Context, handle string) (domain.StatusReport, error) {
			return domain.StatusReport{}, domain.NewNotFoundError("Operation not found")
		},
	}
	cleaner := &MockArtifactCleaner{}
	sched := newTestScheduler(t, taskStore, checker, cleaner, fastConfig())

	sched.Start(context.Background())

	assert.Eventually(t, func() bool {
		return taskStatus(t, taskStore, task)() == domain.TaskStatusFailed
	}, waitFor, tick)

	got, err := taskStore.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Nil(t, got.OperationHandle)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, NotFoundGuidance, *got.ErrorMessage)
	assert.Empty(t, cleaner.Calls())
	assert.Eventually(t, func() bool { return !sched.IsPolling(task.ID) }, waitFor, tick)
}

func TestScheduler_AtMostOneCheckInFlight(t *testing.T) {
	t.Parallel()

	task := newRunningTask(t, "acct1", "op1", "")
	taskStore := NewMockTaskStore(task)
	checker := &MockStatusChecker{
		CheckStatusFn: func(ctx context.Context, handle string) (domain.StatusReport, error) {
			time.Sleep(10 * time.Millisecond)
			return domain.StatusReport{Status: domain.RemoteStatusRunning}, nil
		},
	}
	sched := newTestScheduler(t, taskStore, checker, nil, fastConfig())

	sched.Start(context.Background())

	assert.Eventually(t, func() bool { return checker.Calls() >= 3 }, waitFor, tick)
	sched.Stop()

	assert.Equal(t, int64(1), checker.MaxInFlight())
	assert.Equal(t, domain.TaskStatusRunning, taskStatus(t, taskStore, task)())
}

func TestScheduler_RetryableErrorsBackOff(t *testing.T) {
	t.Parallel()

	task := newRunningTask(t, "acct1", "op1", "")
	taskStore := NewMockTaskStore(task)
	checker := &MockStatusChecker{
		CheckStatusFn: func(ctx context.Context, handle string) (domain.StatusReport, error) {
			return domain.StatusReport{}, domain.NewNetworkError("network error", errors.New("connection refused"))
		},
	}
	cfg := fastConfig()
	cfg.BackoffFloor = 40 * time.Millisecond
	cfg.BackoffCap = 80 * time.Millisecond
	sched := newTestScheduler(t, taskStore, checker, nil, cfg)

	sched.Start(context.Background())

	assert.Eventually(t, func() bool { return checker.Calls() >= 1 }, waitFor, tick)
	time.Sleep(100 * time.Millisecond)
	sched.Stop()

	// Without backoff a 1ms ticker would have made close to a hundred calls.
	assert.LessOrEqual(t, checker.Calls(), int64(5))
	assert.Empty(t, taskStore.Commits(), "transient failures never touch the store")
	assert.Equal(t, domain.TaskStatusRunning, taskStatus(t, taskStore, task)())
}

func TestScheduler_SuccessfulCheckResetsBackoff(t *testing.T) {
	t.Parallel()

	task := newRunningTask(t, "acct1", "op1", "")
	taskStore := NewMockTaskStore(task)
	var calls atomic.Int64
	checker := &MockStatusChecker{
		CheckStatusFn: func(ctx context.Context, handle string) (domain.StatusReport, error) {
			if calls.Add(1) <= 2 {
				return domain.StatusReport{}, domain.NewNetworkError("network error", nil)
			}
			return domain.StatusReport{Status: domain.RemoteStatusRunning}, nil
		},
	}
	sched := newTestScheduler(t, taskStore, checker, nil, fastConfig())

	sched.Start(context.Background())

	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, waitFor, tick)
	assert.Eventually(t, func() bool {
		return calls.Load() >= 3 && sched.backoff.Current(task.ID) == 0
	}, waitFor, tick)
}

func TestScheduler_SyncIsIdempotent(t *testing.T) {
	t.Parallel()

	task := newRunningTask(t, "acct1", "op1", "")
	taskStore := NewMockTaskStore(task)
	cfg := fastConfig()
	cfg.Interval = time.Hour
	sched := newTestScheduler(t, taskStore, &MockStatusChecker{}, nil, cfg)

	ctx := context.Background()
	sched.Sync(ctx)
	first := sessionFor(sched, task.ID)
	sched.Sync(ctx)
	sched.Sync(ctx)

	require.Len(t, sched.ActiveSessions(), 1)
	assert.Same(t, first, sessionFor(sched, task.ID), "unchanged collection keeps the existing session")
}

func TestScheduler_StaleListingDoesNotRestartFinishedTask(t *testing.T) {
	t.Parallel()

	task := newRunningTask(t, "acct1", "op1", "")
	taskStore := NewMockTaskStore(task)
	snapshot, err := taskStore.List(context.Background())
	require.NoError(t, err)

	var stale atomic.Bool
	taskStore.ListFn = func(ctx context.Context) ([]*domain.Task, error) {
		if stale.Load() {
			return snapshot, nil
		}
		return taskStore.TaskStore.List(ctx)
	}
	checker := &MockStatusChecker{
		CheckStatusFn: func(ctx context.Context, handle string) (domain.StatusReport, error) {
			return domain.StatusReport{Status: domain.RemoteStatusCompleted}, nil
		},
	}
	sched := newTestScheduler(t, taskStore, checker, nil, fastConfig())

	sched.Start(context.Background())
	assert.Eventually(t, func() bool {
		return taskStatus(t, taskStore, task)() == domain.TaskStatusCompleted
	}, waitFor, tick)
	assert.Eventually(t, func() bool { return !sched.IsPolling(task.ID) }, waitFor, tick)

	stale.Store(true)
	sched.Sync(context.Background())
	sched.Sync(context.Background())
	time.Sleep(20 * time.Millisecond)

	assert.False(t, sched.IsPolling(task.ID))
	assert.Len(t, taskStore.Commits(), 1)
}

func TestScheduler_TearsDownSessions(t *testing.T) {
	t.Parallel()

	cfg := fastConfig()
	cfg.Interval = time.Hour

	t.Run("deleted task", func(t *testing.T) {
		t.Parallel()

		task := newRunningTask(t, "acct1", "op1", "")
		taskStore := NewMockTaskStore(task)
		sched := newTestScheduler(t, taskStore, &MockStatusChecker{}, nil, cfg)

		sched.Sync(context.Background())
		require.True(t, sched.IsPolling(task.ID))

		require.NoError(t, taskStore.Delete(context.Background(), task.ID))
		sched.Sync(context.Background())
		assert.False(t, sched.IsPolling(task.ID))
	})

	t.Run("manually completed task", func(t *testing.T) {
		t.Parallel()

		task := newRunningTask(t, "acct1", "op1", "")
		taskStore := NewMockTaskStore(task)
		sched := newTestScheduler(t, taskStore, &MockStatusChecker{}, nil, cfg)

		sched.Sync(context.Background())
		require.NoError(t, taskStore.ToggleManualComplete(context.Background(), task.ID, true))
		err := sched.HandleEvent(context.Background(), events.NewTaskChangedEvent(task.ID, events.ChangeManualToggle))
		require.NoError(t, err)

		assert.False(t, sched.IsPolling(task.ID))
	})

	t.Run("re-run replaces the session", func(t *testing.T) {
		t.Parallel()

		task := newRunningTask(t, "acct1", "op1", "")
		taskStore := NewMockTaskStore(task)
		sched := newTestScheduler(t, taskStore, &MockStatusChecker{}, nil, cfg)

		sched.Sync(context.Background())
		first := sessionFor(sched, task.ID)

		require.NoError(t, taskStore.CommitStatus(context.Background(), task.ID, store.StatusUpdate{
			Status:          domain.TaskStatusRunning,
			OperationHandle: domain.StringPtr("op2"),
		}))
		sched.Sync(context.Background())

		require.True(t, sched.IsPolling(task.ID))
		second := sessionFor(sched, task.ID)
		assert.NotSame(t, first, second)
		assert.Equal(t, "op2", second.handle)
		assert.True(t, first.stopped())
	})
}

func TestScheduler_ListErrorIsNotFatal(t *testing.T) {
	t.Parallel()

	task := newRunningTask(t, "acct1", "op1", "")
	taskStore := NewMockTaskStore(task)
	var fail atomic.Bool
	fail.Store(true)
	taskStore.ListFn = func(ctx context.Context) ([]*domain.Task, error) {
		if fail.Load() {
			return nil, errors.New("database unavailable")
		}
		return taskStore.TaskStore.List(ctx)
	}
	cfg := fastConfig()
	cfg.Interval = time.Hour
	sched := newTestScheduler(t, taskStore, &MockStatusChecker{}, nil, cfg)

	sched.Start(context.Background())
	assert.Empty(t, sched.ActiveSessions())

	fail.Store(false)
	sched.Sync(context.Background())
	assert.True(t, sched.IsPolling(task.ID))
}

func TestScheduler_ResyncLoopPicksUpNewTasks(t *testing.T) {
	t.Parallel()

	taskStore := NewMockTaskStore()
	cfg := fastConfig()
	cfg.Interval = time.Hour
	cfg.ResyncInterval = 5 * time.Millisecond
	sched := newTestScheduler(t, taskStore, &MockStatusChecker{}, nil, cfg)

	sched.Start(context.Background())
	assert.Empty(t, sched.ActiveSessions())

	task := newRunningTask(t, "acct1", "op1", "")
	require.NoError(t, taskStore.Create(context.Background(), task))

	assert.Eventually(t, func() bool { return sched.IsPolling(task.ID) }, waitFor, tick)
}

func TestScheduler_StopDiscardsInFlightResult(t *testing.T) {
	t.Parallel()

	task := newRunningTask(t, "acct1", "op1", "")
	taskStore := NewMockTaskStore(task)
	entered := make(chan struct{})
	var once atomic.Bool
	checker := &MockStatusChecker{
		CheckStatusFn: func(ctx context.Context, handle string) (domain.StatusReport, error) {
			if once.CompareAndSwap(false, true) {
				close(entered)
			}
			<-ctx.Done()
			return domain.StatusReport{Status: domain.RemoteStatusCompleted}, nil
		},
	}
	sched := newTestScheduler(t, taskStore, checker, nil, fastConfig())

	sched.Start(context.Background())
	<-entered
	sched.Stop()

	assert.Empty(t, sched.ActiveSessions())
	assert.Empty(t, taskStore.Commits(), "results of torn down sessions are discarded")
	assert.Equal(t, domain.TaskStatusRunning, taskStatus(t, taskStore, task)())

	// Stopped schedulers ignore further syncs.
	sched.Sync(context.Background())
	assert.Empty(t, sched.ActiveSessions())
}

func TestScheduler_Run(t *testing.T) {
	t.Parallel()

	task := newRunningTask(t, "acct1", "op1", "")
	taskStore := NewMockTaskStore(task)
	cfg := fastConfig()
	cfg.Interval = time.Hour
	sched := NewScheduler(taskStore, &MockStatusChecker{}, nil, cfg, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	assert.Eventually(t, func() bool { return sched.IsPolling(task.ID) }, waitFor, tick)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("Run did not return after cancellation")
	}
	assert.Empty(t, sched.ActiveSessions())
}

func TestConfigFromPolling(t *testing.T) {
	t.Parallel()

	got := ConfigFromPolling(config.PollingConfig{Interval: time.Second})
	assert.Equal(t, time.Second, got.Interval)
	assert.Equal(t, DefaultBackoffFloor, got.BackoffFloor)
	assert.Equal(t, DefaultBackoffCap, got.BackoffCap)
	assert.Equal(t, DefaultResyncInterval, got.ResyncInterval)
}
