package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/scout-api/internal/domain"
	"github.com/phrazzld/scout-api/internal/platform/logger"
	"github.com/phrazzld/scout-api/internal/store"
)

const taskColumns = `id, target_account, target_count, bio_agents, batch_size,
	criteria_preset_id, criteria_preset_name, status, operation_handle, exec_id,
	results, error_message, manually_completed, created_at, started_at, completed_at`

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgresTaskStore.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// Create implements store.TaskStore.Create.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	results, err := marshalResults(task.Results)
	if err != nil {
		return err
	}

	query := `INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err = s.db.ExecContext(ctx, query,
		task.ID,
		task.TargetAccount,
		task.TargetCount,
		task.BioAgents,
		task.BatchSize,
		task.CriteriaPresetID,
		task.CriteriaPresetName,
		task.Status,
		task.OperationHandle,
		task.ExecID,
		results,
		task.ErrorMessage,
		task.ManuallyCompleted,
		task.CreatedAt,
		task.StartedAt,
		task.CompletedAt,
	)
	if err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return fmt.Errorf("failed to create task: %w", MapError(err))
	}

	log.Debug("task created", slog.String("task_id", task.ID.String()))
	return nil
}

// GetByID implements store.TaskStore.GetByID.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get task",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, fmt.Errorf("failed to get task: %w", MapError(err))
	}

	return task, nil
}

// List implements store.TaskStore.List.
func (s *PostgresTaskStore) List(ctx context.Context) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}

	return tasks, nil
}

// CommitStatus implements store.TaskStore.CommitStatus.
// The whole update is a single statement, so concurrent commits cannot
// interleave between reading and writing the timestamps.
func (s *PostgresTaskStore) CommitStatus(ctx context.Context, id uuid.UUID, update store.StatusUpdate) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !update.Status.IsValid() {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrInvalidTaskStatus)
	}

	results, err := marshalResults(update.Results)
	if err != nil {
		return err
	}

	query := `
		UPDATE tasks SET
			status = $2,
			operation_handle = $3,
			exec_id = COALESCE($4, exec_id),
			results = $5,
			error_message = $6,
			started_at = CASE
				WHEN $2 = 'running' AND started_at IS NULL THEN NOW()
				ELSE started_at END,
			completed_at = CASE
				WHEN $2 IN ('completed', 'failed') AND completed_at IS NULL THEN NOW()
				ELSE completed_at END,
			updated_at = NOW()
		WHERE id = $1
			AND ($7::text IS NULL OR (status = 'running' AND operation_handle = $7))
	`

	result, err := s.db.ExecContext(ctx, query,
		id,
		string(update.Status),
		update.OperationHandle,
		update.ExecID,
		results,
		update.ErrorMessage,
		update.ExpectOperation,
	)
	if err != nil {
		log.Error("failed to commit task status",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()),
			slog.String("status", string(update.Status)))
		return fmt.Errorf("failed to commit task status: %w", MapError(err))
	}

	// A guarded update that matches no row is stale whether the task was
	// deleted or moved on.
	notFound := store.ErrTaskNotFound
	if update.ExpectOperation != nil {
		notFound = store.ErrStaleUpdate
	}
	if err := CheckRowsAffected(result, notFound); err != nil {
		return err
	}

	log.Debug("task status committed",
		slog.String("task_id", id.String()),
		slog.String("status", string(update.Status)))
	return nil
}

// ToggleManualComplete implements store.TaskStore.ToggleManualComplete.
func (s *PostgresTaskStore) ToggleManualComplete(ctx context.Context, id uuid.UUID, completed bool) error {
	query := `
		UPDATE tasks SET
			manually_completed = $2,
			status = CASE WHEN $2 THEN 'completed' ELSE 'pending' END,
			completed_at = CASE WHEN $2 THEN NOW() ELSE NULL END,
			updated_at = NOW()
		WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query, id, completed)
	if err != nil {
		return fmt.Errorf("failed to toggle manual completion: %w", MapError(err))
	}

	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// SetCriteriaPreset implements store.TaskStore.SetCriteriaPreset.
func (s *PostgresTaskStore) SetCriteriaPreset(ctx context.Context, id uuid.UUID, presetID, presetName *string) error {
	query := `
		UPDATE tasks SET criteria_preset_id = $2, criteria_preset_name = $3, updated_at = NOW()
		WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query, id, presetID, presetName)
	if err != nil {
		return fmt.Errorf("failed to set task preset: %w", MapError(err))
	}

	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// Delete implements store.TaskStore.Delete.
func (s *PostgresTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", MapError(err))
	}

	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task              domain.Task
		status            string
		presetID, preset  sql.NullString
		handle, execID    sql.NullString
		errorMessage      sql.NullString
		results           []byte
		startedAt, doneAt sql.NullTime
	)

	err := row.Scan(
		&task.ID,
		&task.TargetAccount,
		&task.TargetCount,
		&task.BioAgents,
		&task.BatchSize,
		&presetID,
		&preset,
		&status,
		&handle,
		&execID,
		&results,
		&errorMessage,
		&task.ManuallyCompleted,
		&task.CreatedAt,
		&startedAt,
		&doneAt,
	)
	if err != nil {
		return nil, err
	}

	task.Status = domain.TaskStatus(status)
	task.CriteriaPresetID = nullString(presetID)
	task.CriteriaPresetName = nullString(preset)
	task.OperationHandle = nullString(handle)
	task.ExecID = nullString(execID)
	task.ErrorMessage = nullString(errorMessage)
	task.StartedAt = nullTime(startedAt)
	task.CompletedAt = nullTime(doneAt)

	if len(results) > 0 {
		if err := json.Unmarshal(results, &task.Results); err != nil {
			return nil, fmt.Errorf("failed to decode task results: %w", err)
		}
	}

	return &task, nil
}

// marshalResults encodes results for a JSONB column; no results map to NULL.
func marshalResults(results []domain.Profile) (any, error) {
	if len(results) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task results: %w", err)
	}
	return b, nil
}
