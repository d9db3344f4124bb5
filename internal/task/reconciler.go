package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/scout-api/internal/domain"
	"github.com/phrazzld/scout-api/internal/store"
)

// Reconciler applies poll decisions to the task store.
type Reconciler struct {
	store   TaskStore
	cleaner ArtifactCleaner
	logger  *slog.Logger
}

// NewReconciler creates a Reconciler. cleaner may be nil, in which case
// artifact cleanup is skipped.
func NewReconciler(taskStore TaskStore, cleaner ArtifactCleaner, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:   taskStore,
		cleaner: cleaner,
		logger:  logger.With("component", "reconciler"),
	}
}

// Apply commits decision for polled, the task snapshot the decision was made
// for. It reports whether a terminal status was committed.
//
// The task is re-read first. If it is gone, no longer running, or now carries
// a different operation handle, the decision is stale and Apply does nothing.
// The commit itself is conditioned on the polled handle, so a change that
// lands between the re-read and the write is also left alone.
// Non-terminal decisions never touch the store.
func (r *Reconciler) Apply(ctx context.Context, polled *domain.Task, decision Decision) (bool, error) {
	if !decision.Kind.IsTerminal() {
		return false, nil
	}

	current, err := r.store.GetByID(ctx, polled.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			r.logger.Debug("discarding decision for deleted task", "task_id", polled.ID)
			return false, nil
		}
		return false, fmt.Errorf("failed to reload task: %w", err)
	}

	if !current.IsPollable() || current.Handle() != polled.Handle() {
		r.logger.Debug("discarding stale decision",
			"task_id", polled.ID,
			"status", current.Status,
			"polled_operation", polled.Handle(),
			"current_operation", current.Handle())
		return false, nil
	}

	switch decision.Kind {
	case DecisionSucceeded:
		return r.complete(ctx, current, decision.Results)
	default:
		return r.fail(ctx, current, decision.Reason)
	}
}

func (r *Reconciler) complete(ctx context.Context, task *domain.Task, results []domain.Profile) (bool, error) {
	update := store.StatusUpdate{
		Status:          domain.TaskStatusCompleted,
		OperationHandle: task.OperationHandle,
		Results:         results,
		ExpectOperation: task.OperationHandle,
	}
	if err := r.store.CommitStatus(ctx, task.ID, update); err != nil {
		if r.lostRace(task, err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to commit completion: %w", err)
	}

	r.logger.Info("task completed",
		"task_id", task.ID,
		"result_count", len(results))

	r.cleanup(ctx, task)
	return true, nil
}

func (r *Reconciler) fail(ctx context.Context, task *domain.Task, reason string) (bool, error) {
	update := store.StatusUpdate{
		Status:          domain.TaskStatusFailed,
		ErrorMessage:    &reason,
		ExpectOperation: task.OperationHandle,
	}
	if err := r.store.CommitStatus(ctx, task.ID, update); err != nil {
		if r.lostRace(task, err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to commit failure: %w", err)
	}

	r.logger.Info("task failed",
		"task_id", task.ID,
		"reason", reason)
	return true, nil
}

// lostRace reports whether a commit error means the task changed or vanished
// after it was re-read.
func (r *Reconciler) lostRace(task *domain.Task, err error) bool {
	if !errors.Is(err, store.ErrStaleUpdate) && !errors.Is(err, store.ErrNotFound) {
		return false
	}
	r.logger.Debug("task changed before commit, discarding decision",
		"task_id", task.ID,
		"operation", task.Handle(),
		"error", err)
	return true
}

// cleanup is best-effort: the completion is already committed and must not
// be reopened by a cleanup failure.
func (r *Reconciler) cleanup(ctx context.Context, task *domain.Task) {
	if task.ExecID == nil || *task.ExecID == "" {
		r.logger.Info("no exec id, skipping artifact cleanup", "task_id", task.ID)
		return
	}
	if r.cleaner == nil {
		return
	}

	if err := r.cleaner.DeleteArtifacts(ctx, task.TargetAccount, *task.ExecID); err != nil {
		r.logger.Warn("artifact cleanup failed",
			"task_id", task.ID,
			"exec_id", *task.ExecID,
			"error", err)
		return
	}

	r.logger.Debug("artifacts deleted", "task_id", task.ID, "exec_id", *task.ExecID)
}
