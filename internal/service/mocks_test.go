package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/scout-api/internal/events"
	"github.com/phrazzld/scout-api/internal/platform/memory"
	"github.com/phrazzld/scout-api/internal/platform/scraper"
	"github.com/phrazzld/scout-api/internal/store"
	"github.com/stretchr/testify/mock"
)

// MockSubmitter mocks the Submitter interface
type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) Submit(ctx context.Context, req scraper.SubmitRequest) (*scraper.SubmitResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*scraper.SubmitResponse), args.Error(1)
}

// recordingEmitter captures emitted events
type recordingEmitter struct {
	mu     sync.Mutex
	events []*events.TaskChangedEvent
	err    error
}

func (e *recordingEmitter) EmitEvent(_ context.Context, event *events.TaskChangedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return e.err
}

func (e *recordingEmitter) changes() []events.ChangeType {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]events.ChangeType, len(e.events))
	for i, ev := range e.events {
		out[i] = ev.Change
	}
	return out
}

// failingCommitStore fails the CommitStatus calls whose 1-based position is
// listed in failOn, and delegates everything else to the memory store.
type failingCommitStore struct {
	*memory.TaskStore

	mu     sync.Mutex
	calls  int
	failOn map[int]error
}

func (s *failingCommitStore) CommitStatus(ctx context.Context, id uuid.UUID, update store.StatusUpdate) error {
	s.mu.Lock()
	s.calls++
	err := s.failOn[s.calls]
	s.mu.Unlock()

	if err != nil {
		return err
	}
	return s.TaskStore.CommitStatus(ctx, id, update)
}
