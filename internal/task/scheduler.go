package task

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/phrazzld/scout-api/internal/config"
	"github.com/phrazzld/scout-api/internal/events"
)

// Default scheduling intervals.
const (
	DefaultPollInterval   = 5 * time.Second
	DefaultResyncInterval = 30 * time.Second
)

// Config holds the scheduler's timing settings.
type Config struct {
	// Interval is the base period between status checks of one task.
	Interval time.Duration

	// BackoffFloor and BackoffCap bound the retry delay after transient
	// status check failures.
	BackoffFloor time.Duration
	BackoffCap   time.Duration

	// ResyncInterval is how often the task list is re-read even without
	// change notifications.
	ResyncInterval time.Duration
}

// DefaultConfig returns a Config with the standard timings.
func DefaultConfig() Config {
	return Config{
		Interval:       DefaultPollInterval,
		BackoffFloor:   DefaultBackoffFloor,
		BackoffCap:     DefaultBackoffCap,
		ResyncInterval: DefaultResyncInterval,
	}
}

// ConfigFromPolling converts loaded configuration into a scheduler Config.
// Zero values keep their defaults.
func ConfigFromPolling(cfg config.PollingConfig) Config {
	c := DefaultConfig()
	if cfg.Interval > 0 {
		c.Interval = cfg.Interval
	}
	if cfg.BackoffFloor > 0 {
		c.BackoffFloor = cfg.BackoffFloor
	}
	if cfg.BackoffCap > 0 {
		c.BackoffCap = cfg.BackoffCap
	}
	if cfg.ResyncInterval > 0 {
		c.ResyncInterval = cfg.ResyncInterval
	}
	return c
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithTracer sets the tracer used for poll spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Scheduler) { s.tracer = tracer }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// Scheduler keeps one polling session per task that is running with an
// operation handle, and tears sessions down when tasks stop qualifying.
type Scheduler struct {
	store      TaskStore
	executor   *PollExecutor
	reconciler *Reconciler
	backoff    *BackoffController
	config     Config
	logger     *slog.Logger
	tracer     trace.Tracer
	metrics    *Metrics

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	syncMu     sync.Mutex
	startOnce  sync.Once
	stopOnce   sync.Once

	mu       sync.Mutex
	sessions map[uuid.UUID]*pollingSession
	// finished maps a task to the operation handle whose terminal status
	// this scheduler committed. That pair is never polled again.
	finished map[uuid.UUID]string
	stopped  bool
}

// NewScheduler creates a Scheduler. cleaner may be nil.
func NewScheduler(
	taskStore TaskStore,
	checker StatusChecker,
	cleaner ArtifactCleaner,
	cfg Config,
	logger *slog.Logger,
	opts ...Option,
) *Scheduler {
	defaults := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.Interval
	}
	if cfg.ResyncInterval <= 0 {
		cfg.ResyncInterval = defaults.ResyncInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		store:      taskStore,
		executor:   NewPollExecutor(checker, logger),
		reconciler: NewReconciler(taskStore, cleaner, logger),
		backoff:    NewBackoffController(cfg.BackoffFloor, cfg.BackoffCap),
		config:     cfg,
		logger:     logger.With("component", "task_scheduler"),
		tracer:     noop.NewTracerProvider().Tracer(meterName),
		metrics:    noopMetrics(),
		ctx:        ctx,
		cancelFunc: cancel,
		sessions:   make(map[uuid.UUID]*pollingSession),
		finished:   make(map[uuid.UUID]string),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start recovers sessions for tasks left running by a previous process and
// starts the periodic resync loop. Calling Start more than once has no
// further effect.
func (s *Scheduler) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.logger.Info("starting task scheduler",
			"interval", s.config.Interval,
			"resync_interval", s.config.ResyncInterval)

		s.Sync(ctx)

		s.wg.Add(1)
		go s.resyncLoop()
	})
}

// Run starts the scheduler, blocks until ctx is done and then stops it.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start(ctx)
	<-ctx.Done()
	s.Stop()
	return nil
}

// Stop tears down every session and waits for in-flight attempts to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		for id, sess := range s.sessions {
			s.stopSessionLocked(id, sess)
		}
		s.mu.Unlock()

		s.cancelFunc()
		s.wg.Wait()
		s.logger.Info("task scheduler stopped")
	})
}

// Sync re-reads the task list and reconciles the session table with it:
// sessions are started for newly eligible tasks and stopped for tasks that
// are no longer eligible or no longer exist. Sync is idempotent. Listing
// failures are logged and left for the next trigger.
func (s *Scheduler) Sync(ctx context.Context) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	tasks, err := s.store.List(ctx)
	if err != nil {
		s.logger.Error("failed to list tasks", "error", err)
		return
	}

	eligible := make(map[uuid.UUID]string, len(tasks))
	for _, t := range tasks {
		if t.IsPollable() {
			eligible[t.ID] = t.Handle()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	for id, handle := range s.finished {
		if eligible[id] != handle {
			delete(s.finished, id)
		}
	}

	for id, sess := range s.sessions {
		handle, ok := eligible[id]
		if !ok || handle != sess.handle {
			s.stopSessionLocked(id, sess)
		}
	}

	for id, handle := range eligible {
		if _, ok := s.sessions[id]; ok {
			continue
		}
		if s.finished[id] == handle {
			continue
		}
		s.startSessionLocked(id, handle)
	}
}

// HandleEvent resyncs on every task change notification.
func (s *Scheduler) HandleEvent(ctx context.Context, event *events.TaskChangedEvent) error {
	s.logger.Debug("task changed",
		"task_id", event.TaskID,
		"change", event.Change)
	s.Sync(ctx)
	return nil
}

// ActiveSessions returns the ids of tasks currently being polled.
func (s *Scheduler) ActiveSessions() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// IsPolling reports whether a session exists for the task.
func (s *Scheduler) IsPolling(taskID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[taskID]
	return ok
}

func (s *Scheduler) startSessionLocked(taskID uuid.UUID, handle string) {
	sess := newPollingSession(s.ctx, taskID, handle)
	s.sessions[taskID] = sess
	s.metrics.sessionStarted(sess.ctx)

	s.logger.Info("polling session started",
		"task_id", taskID,
		"operation", handle)

	s.wg.Add(1)
	go s.runSession(sess)
}

func (s *Scheduler) stopSessionLocked(taskID uuid.UUID, sess *pollingSession) {
	sess.cancel()
	delete(s.sessions, taskID)
	s.backoff.Forget(taskID)
	s.metrics.sessionStopped(context.Background())

	s.logger.Info("polling session stopped",
		"task_id", taskID,
		"operation", sess.handle)
}

func (s *Scheduler) resyncLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.ResyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Sync(s.ctx)
		}
	}
}

// runSession fires a poll attempt on every tick. Ticks that find the guard
// held are dropped.
func (s *Scheduler) runSession(sess *pollingSession) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.ctx.Done():
			return
		case <-ticker.C:
			if !sess.tryAcquire() {
				s.metrics.incSkippedTick(sess.ctx)
				continue
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.attempt(sess)
			}()
		}
	}
}

// attempt runs one status check for the session's task and applies the
// decision. It is entered holding the session's in-flight guard.
func (s *Scheduler) attempt(sess *pollingSession) {
	ctx, span := s.tracer.Start(sess.ctx, "task.poll",
		trace.WithAttributes(
			attribute.String("task_id", sess.taskID.String()),
			attribute.String("operation", sess.handle),
		))
	defer span.End()

	task, err := s.store.GetByID(ctx, sess.taskID)
	if err != nil || !task.IsPollable() || task.Handle() != sess.handle {
		// The task changed under us; the next Sync retires this session.
		if err != nil && !sess.stopped() {
			s.logger.Warn("failed to reload task before poll", "task_id", sess.taskID, "error", err)
		}
		sess.release()
		s.triggerSync()
		return
	}

	start := time.Now()
	decision := s.executor.Poll(ctx, task)
	s.metrics.observePoll(ctx, decision.Kind, time.Since(start))
	span.SetAttributes(attribute.String("decision", decision.Kind.String()))

	if sess.stopped() {
		span.AddEvent("session stopped, decision discarded")
		return
	}

	switch decision.Kind {
	case DecisionRetryable:
		delay := s.backoff.Next(sess.taskID)
		s.metrics.observeRetryDelay(ctx, delay)
		s.logger.Warn("status check will be retried",
			"task_id", sess.taskID,
			"delay", delay,
			"error", decision.Err)
		time.AfterFunc(delay, sess.release)
		return

	case DecisionStillRunning:
		s.backoff.Reset(sess.taskID)
		sess.release()
		return
	}

	s.backoff.Reset(sess.taskID)

	// The commit outlives a concurrent Stop so a decision that has been
	// made is not lost halfway.
	committed, err := s.reconciler.Apply(context.WithoutCancel(ctx), task, decision)
	if err != nil {
		s.metrics.incCommitError(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		s.logger.Error("failed to commit task status",
			"task_id", sess.taskID,
			"decision", decision.Kind.String(),
			"error", err)
		sess.release()
		return
	}

	if !committed {
		sess.release()
		s.triggerSync()
		return
	}

	s.metrics.incCommit(ctx, decision.Kind)
	s.finish(sess)
	s.triggerSync()
}

// finish records the terminal commit and tears the session down.
func (s *Scheduler) finish(sess *pollingSession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.finished[sess.taskID] = sess.handle
	if current, ok := s.sessions[sess.taskID]; ok && current == sess {
		s.stopSessionLocked(sess.taskID, sess)
	}
}

// triggerSync schedules an asynchronous resync unless the scheduler is
// shutting down.
func (s *Scheduler) triggerSync() {
	if s.ctx.Err() != nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Sync(s.ctx)
	}()
}

var _ events.EventHandler = (*Scheduler)(nil)
