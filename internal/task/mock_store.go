package task

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/phrazzld/scout-api/internal/domain"
	"github.com/phrazzld/scout-api/internal/platform/memory"
	"github.com/phrazzld/scout-api/internal/store"
)

// MockTaskStore implements TaskStore for testing. It delegates to an
// in-memory store unless the corresponding Fn field is set.
type MockTaskStore struct {
	*memory.TaskStore

	ListFn         func(ctx context.Context) ([]*domain.Task, error)
	GetByIDFn      func(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	CommitStatusFn func(ctx context.Context, id uuid.UUID, update store.StatusUpdate) error

	mu      sync.Mutex
	commits []CommitRecord
}

// CommitRecord is a CommitStatus call observed by MockTaskStore.
type CommitRecord struct {
	TaskID uuid.UUID
	Update store.StatusUpdate
}

// NewMockTaskStore creates a MockTaskStore seeded with tasks.
func NewMockTaskStore(tasks ...*domain.Task) *MockTaskStore {
	s := &MockTaskStore{TaskStore: memory.NewTaskStore()}
	for _, t := range tasks {
		_ = s.TaskStore.Create(context.Background(), t)
	}
	return s
}

// List implements TaskStore.
func (s *MockTaskStore) List(ctx context.Context) ([]*domain.Task, error) {
	if s.ListFn != nil {
		return s.ListFn(ctx)
	}
	return s.TaskStore.List(ctx)
}

// GetByID implements TaskStore.
func (s *MockTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	if s.GetByIDFn != nil {
		return s.GetByIDFn(ctx, id)
	}
	return s.TaskStore.GetByID(ctx, id)
}

// CommitStatus implements TaskStore and records every call.
func (s *MockTaskStore) CommitStatus(ctx context.Context, id uuid.UUID, update store.StatusUpdate) error {
	s.mu.Lock()
	s.commits = append(s.commits, CommitRecord{TaskID: id, Update: update})
	s.mu.Unlock()

	if s.CommitStatusFn != nil {
		return s.CommitStatusFn(ctx, id, update)
	}
	return s.TaskStore.CommitStatus(ctx, id, update)
}

// Commits returns the recorded CommitStatus calls.
func (s *MockTaskStore) Commits() []CommitRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]CommitRecord, len(s.commits))
	copy(out, s.commits)
	return out
}

// MockStatusChecker implements StatusChecker for testing. It tracks how many
// calls are outstanding at once.
type MockStatusChecker struct {
	CheckStatusFn func(ctx context.Context, handle string) (domain.StatusReport, error)

	calls       atomic.Int64
	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

// CheckStatus implements StatusChecker.
func (m *MockStatusChecker) CheckStatus(ctx context.Context, handle string) (domain.StatusReport, error) {
	m.calls.Add(1)
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)

	for {
		peak := m.maxInFlight.Load()
		if n <= peak || m.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	if m.CheckStatusFn != nil {
		return m.CheckStatusFn(ctx, handle)
	}
	return domain.StatusReport{Status: domain.RemoteStatusRunning}, nil
}

// Calls returns the number of CheckStatus calls made.
func (m *MockStatusChecker) Calls() int64 {
	return m.calls.Load()
}

// MaxInFlight returns the highest number of concurrent CheckStatus calls seen.
func (m *MockStatusChecker) MaxInFlight() int64 {
	return m.maxInFlight.Load()
}

// MockArtifactCleaner implements ArtifactCleaner for testing.
type MockArtifactCleaner struct {
	DeleteArtifactsFn func(ctx context.Context, target, execID string) error

	mu    sync.Mutex
	calls []CleanupCall
}

// CleanupCall is a DeleteArtifacts call observed by MockArtifactCleaner.
type CleanupCall struct {
	Target string
	ExecID string
}

// DeleteArtifacts implements ArtifactCleaner.
func (m *MockArtifactCleaner) DeleteArtifacts(ctx context.Context, target, execID string) error {
	m.mu.Lock()
	m.calls = append(m.calls, CleanupCall{Target: target, ExecID: execID})
	m.mu.Unlock()

	if m.DeleteArtifactsFn != nil {
		return m.DeleteArtifactsFn(ctx, target, execID)
	}
	return nil
}

// Calls returns the recorded DeleteArtifacts calls.
func (m *MockArtifactCleaner) Calls() []CleanupCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]CleanupCall, len(m.calls))
	copy(out, m.calls)
	return out
}
