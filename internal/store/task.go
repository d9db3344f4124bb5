package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/scout-api/internal/domain"
)

// StatusUpdate describes a single status commit for a task.
//
// OperationHandle, Results and ErrorMessage replace the stored values, so a
// nil value clears them. ExecID is only written when non-nil.
//
// When ExpectOperation is set the update only applies while the task is
// running under that operation handle.
type StatusUpdate struct {
	Status          domain.TaskStatus
	OperationHandle *string
	ExecID          *string
	Results         []domain.Profile
	ErrorMessage    *string
	ExpectOperation *string
}

// TaskStore defines the interface for scraping task persistence.
type TaskStore interface {
	// Create saves a new task to the store.
	// Returns ErrDuplicate if a task with the same ID already exists.
	// Returns validation errors if the task data is invalid.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// List returns every task ordered by creation time, oldest first.
	List(ctx context.Context) ([]*domain.Task, error)

	// CommitStatus applies a status update to a task.
	// started_at is recorded the first time the task becomes running and
	// completed_at the first time it becomes terminal; neither is ever moved.
	// Returns ErrTaskNotFound if the task does not exist, and ErrStaleUpdate
	// if ExpectOperation is set and the task is missing or no longer running
	// under that handle.
	CommitStatus(ctx context.Context, id uuid.UUID, update StatusUpdate) error

	// ToggleManualComplete sets the manual completion flag. Setting it moves
	// the task to completed and stamps completed_at; clearing it moves the
	// task back to pending and clears completed_at.
	// Returns ErrTaskNotFound if the task does not exist.
	ToggleManualComplete(ctx context.Context, id uuid.UUID, completed bool) error

	// SetCriteriaPreset assigns (or, with nil values, clears) the criteria
	// preset attached to a task.
	// Returns ErrTaskNotFound if the task does not exist.
	SetCriteriaPreset(ctx context.Context, id uuid.UUID, presetID, presetName *string) error

	// Delete removes a task from the store by its ID.
	// Returns ErrTaskNotFound if the task does not exist.
	Delete(ctx context.Context, id uuid.UUID) error
}
