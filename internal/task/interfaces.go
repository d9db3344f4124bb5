package task

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/scout-api/internal/domain"
	"github.com/phrazzld/scout-api/internal/store"
)

// TaskStore is the subset of store.TaskStore the engine relies on.
// The store is the single source of truth; the engine never caches tasks.
type TaskStore interface {
	// List returns every task ordered by creation time.
	List(ctx context.Context) ([]*domain.Task, error)

	// GetByID returns a task or store.ErrTaskNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// CommitStatus applies a status update to a task.
	CommitStatus(ctx context.Context, id uuid.UUID, update store.StatusUpdate) error
}

// StatusChecker queries the remote worker for the status of an operation.
// Failures are reported as *domain.StatusCheckError.
type StatusChecker interface {
	CheckStatus(ctx context.Context, handle string) (domain.StatusReport, error)
}

// ArtifactCleaner removes worker-side artifacts of a finished execution.
type ArtifactCleaner interface {
	DeleteArtifacts(ctx context.Context, target, execID string) error
}
