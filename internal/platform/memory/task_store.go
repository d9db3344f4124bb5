package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scout-api/internal/domain"
	"github.com/phrazzld/scout-api/internal/store"
)

// TaskStore holds tasks in a map for lookup plus a slice preserving
// insertion order for List. Every read returns a deep copy, so callers never
// share memory with the store.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*domain.Task
	order []uuid.UUID
	now   func() time.Time
}

// NewTaskStore creates an empty task store.
func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks: make(map[uuid.UUID]*domain.Task),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

var _ store.TaskStore = (*TaskStore)(nil)

// Create implements store.TaskStore.Create.
func (s *TaskStore) Create(_ context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("%w: task %s", store.ErrDuplicate, task.ID)
	}

	s.tasks[task.ID] = cloneTask(task)
	s.order = append(s.order, task.ID)
	return nil
}

// GetByID implements store.TaskStore.GetByID.
func (s *TaskStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return cloneTask(task), nil
}

// List implements store.TaskStore.List.
func (s *TaskStore) List(_ context.Context) ([]*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]*domain.Task, 0, len(s.order))
	for _, id := range s.order {
		tasks = append(tasks, cloneTask(s.tasks[id]))
	}
	return tasks, nil
}

// CommitStatus implements store.TaskStore.CommitStatus.
func (s *TaskStore) CommitStatus(_ context.Context, id uuid.UUID, update store.StatusUpdate) error {
	if !update.Status.IsValid() {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrInvalidTaskStatus)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if update.ExpectOperation != nil {
		if !ok || !task.IsPollable() || task.Handle() != *update.ExpectOperation {
			return store.ErrStaleUpdate
		}
	}
	if !ok {
		return store.ErrTaskNotFound
	}

	now := s.now()
	task.Status = update.Status
	task.OperationHandle = cloneString(update.OperationHandle)
	if update.ExecID != nil {
		task.ExecID = cloneString(update.ExecID)
	}
	task.Results = cloneProfiles(update.Results)
	task.ErrorMessage = cloneString(update.ErrorMessage)

	if update.Status == domain.TaskStatusRunning && task.StartedAt == nil {
		task.StartedAt = &now
	}
	if update.Status.IsTerminal() && task.CompletedAt == nil {
		task.CompletedAt = &now
	}

	return nil
}

// ToggleManualComplete implements store.TaskStore.ToggleManualComplete.
func (s *TaskStore) ToggleManualComplete(_ context.Context, id uuid.UUID, completed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}

	task.ManuallyCompleted = completed
	if completed {
		now := s.now()
		task.Status = domain.TaskStatusCompleted
		task.CompletedAt = &now
	} else {
		task.Status = domain.TaskStatusPending
		task.CompletedAt = nil
	}
	return nil
}

// SetCriteriaPreset implements store.TaskStore.SetCriteriaPreset.
func (s *TaskStore) SetCriteriaPreset(_ context.Context, id uuid.UUID, presetID, presetName *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}

	task.CriteriaPresetID = cloneString(presetID)
	task.CriteriaPresetName = cloneString(presetName)
	return nil
}

// Delete implements store.TaskStore.Delete.
func (s *TaskStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return store.ErrTaskNotFound
	}

	delete(s.tasks, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func cloneTask(t *domain.Task) *domain.Task {
	c := *t
	c.CriteriaPresetID = cloneString(t.CriteriaPresetID)
	c.CriteriaPresetName = cloneString(t.CriteriaPresetName)
	c.OperationHandle = cloneString(t.OperationHandle)
	c.ExecID = cloneString(t.ExecID)
	c.ErrorMessage = cloneString(t.ErrorMessage)
	c.Results = cloneProfiles(t.Results)
	c.StartedAt = cloneTime(t.StartedAt)
	c.CompletedAt = cloneTime(t.CompletedAt)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneProfiles(p []domain.Profile) []domain.Profile {
	if len(p) == 0 {
		return nil
	}
	return append([]domain.Profile(nil), p...)
}
