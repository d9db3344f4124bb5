package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scout-api/internal/domain"
	"github.com/phrazzld/scout-api/internal/events"
	"github.com/phrazzld/scout-api/internal/export"
	"github.com/phrazzld/scout-api/internal/platform/logger"
	"github.com/phrazzld/scout-api/internal/platform/scraper"
	"github.com/phrazzld/scout-api/internal/store"
)

// Submitter starts scraping jobs on the remote worker.
type Submitter interface {
	Submit(ctx context.Context, req scraper.SubmitRequest) (*scraper.SubmitResponse, error)
}

// CreateTaskParams holds the submission parameters of a new task.
// Zero numeric values select the defaults.
type CreateTaskParams struct {
	TargetAccount    string
	TargetCount      int
	BioAgents        int
	BatchSize        int
	CriteriaPresetID *string
}

// TaskService provides scraping task operations
type TaskService interface {
	// CreateTask creates a pending task
	CreateTask(ctx context.Context, params CreateTaskParams) (*domain.Task, error)

	// ListTasks returns every task, oldest first
	ListTasks(ctx context.Context) ([]*domain.Task, error)

	// GetTask retrieves a task by its ID
	GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// RunTask submits the task to the remote worker. presetOverride, when
	// set, replaces the task's own criteria preset for this run.
	RunTask(ctx context.Context, id uuid.UUID, presetOverride *string) (*domain.Task, error)

	// ToggleManualComplete flips the manual completion flag
	ToggleManualComplete(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// DeleteTask removes a task
	DeleteTask(ctx context.Context, id uuid.UUID) error

	// SetTaskPreset assigns a criteria preset to a task; nil clears it
	SetTaskPreset(ctx context.Context, id uuid.UUID, presetID *string) (*domain.Task, error)

	// ExportResults renders the task's results as a downloadable file
	ExportResults(ctx context.Context, id uuid.UUID, format export.Format) (*export.File, error)
}

// taskServiceImpl implements the TaskService interface
type taskServiceImpl struct {
	tasks        store.TaskStore
	presets      store.PresetStore
	submitter    Submitter
	eventEmitter events.EventEmitter
	logger       *slog.Logger
	now          func() time.Time

	// submitting holds the IDs of tasks with a RunTask in progress.
	submitting sync.Map
}

// NewTaskService creates a new TaskService.
// It returns an error if any of the required dependencies are nil.
func NewTaskService(
	tasks store.TaskStore,
	presets store.PresetStore,
	submitter Submitter,
	eventEmitter events.EventEmitter,
	logger *slog.Logger,
) (TaskService, error) {
	if tasks == nil {
		return nil, &ServiceError{Service: "task", Operation: "create_service", Message: "tasks cannot be nil"}
	}
	if presets == nil {
		return nil, &ServiceError{Service: "task", Operation: "create_service", Message: "presets cannot be nil"}
	}
	if submitter == nil {
		return nil, &ServiceError{Service: "task", Operation: "create_service", Message: "submitter cannot be nil"}
	}
	if eventEmitter == nil {
		eventEmitter = events.NoopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &taskServiceImpl{
		tasks:        tasks,
		presets:      presets,
		submitter:    submitter,
		eventEmitter: eventEmitter,
		logger:       logger.With("component", "task_service"),
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *taskServiceImpl) log(ctx context.Context) *slog.Logger {
	return logger.FromContextOrDefault(ctx, s.logger)
}

// emit publishes a change notification. Delivery failures are logged only:
// the mutation is already committed and the periodic resync catches up.
func (s *taskServiceImpl) emit(ctx context.Context, taskID uuid.UUID, change events.ChangeType) {
	if err := s.eventEmitter.EmitEvent(ctx, events.NewTaskChangedEvent(taskID, change)); err != nil {
		s.log(ctx).Warn("failed to emit task change event",
			"task_id", taskID,
			"change", change,
			"error", err)
	}
}

// CreateTask creates a pending task.
func (s *taskServiceImpl) CreateTask(ctx context.Context, params CreateTaskParams) (*domain.Task, error) {
	task, err := domain.NewTask(params.TargetAccount, params.TargetCount, params.BioAgents, params.BatchSize)
	if err != nil {
		return nil, invalidInput(err)
	}

	if params.CriteriaPresetID != nil && *params.CriteriaPresetID != "" {
		task.CriteriaPresetID = params.CriteriaPresetID
		task.CriteriaPresetName = s.presetName(ctx, *params.CriteriaPresetID)
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		s.log(ctx).Error("failed to create task",
			"error", err,
			"target_account", task.TargetAccount)
		return nil, NewTaskServiceError("create_task", "failed to save task", err)
	}

	s.log(ctx).Info("task created",
		"task_id", task.ID,
		"target_account", task.TargetAccount)
	s.emit(ctx, task.ID, events.ChangeCreated)

	return task, nil
}

// ListTasks returns every task, oldest first.
func (s *taskServiceImpl) ListTasks(ctx context.Context) ([]*domain.Task, error) {
	tasks, err := s.tasks.List(ctx)
	if err != nil {
		return nil, NewTaskServiceError("list_tasks", "failed to list tasks", err)
	}
	return tasks, nil
}

// GetTask retrieves a task by its ID.
func (s *taskServiceImpl) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, NewTaskServiceError("get_task", "failed to retrieve task", err)
	}
	return task, nil
}

// RunTask marks the task running and submits it. The submission outcome
// decides the committed state:
//   - queued: running with the operation handle, picked up by the scheduler
//   - completed: completed with the returned results
//   - failed or a submission error: failed with the reported message
func (s *taskServiceImpl) RunTask(ctx context.Context, id uuid.UUID, presetOverride *string) (*domain.Task, error) {
	if _, busy := s.submitting.LoadOrStore(id, struct{}{}); busy {
		return nil, ErrTaskRunning
	}
	defer s.submitting.Delete(id)

	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, NewTaskServiceError("run_task", "failed to retrieve task", err)
	}
	// A running task without a handle was left behind by a submission that
	// never recorded its outcome. Nothing polls it, so it may be run again.
	if task.IsPollable() {
		return nil, ErrTaskRunning
	}

	log := s.log(ctx).With("task_id", id, "target_account", task.TargetAccount)

	// Once the task is marked running the outcome must be recorded even if
	// the caller goes away.
	commitCtx := context.WithoutCancel(ctx)

	if err := s.tasks.CommitStatus(ctx, id, store.StatusUpdate{Status: domain.TaskStatusRunning}); err != nil {
		return nil, NewTaskServiceError("run_task", "failed to mark task running", err)
	}
	s.emit(ctx, id, events.ChangeStatus)

	req := scraper.SubmitRequest{
		Target:      task.TargetAccount,
		TargetYes:   task.TargetCount,
		BatchSize:   task.BatchSize,
		NumBioPages: task.BioAgents,
	}
	presetID := presetOverride
	if presetID == nil || *presetID == "" {
		presetID = task.CriteriaPresetID
	}
	req.CriteriaPresetID, req.CriteriaText = s.resolveCriteria(ctx, presetID)

	resp, submitErr := s.submitter.Submit(ctx, req)
	if submitErr != nil {
		log.Error("scrape submission failed", "error", submitErr)
		s.commitFailure(commitCtx, id, submitErr.Error())
		return nil, NewTaskServiceError("run_task", "failed to submit task", submitErr)
	}

	update := submitOutcome(resp)
	if err := s.tasks.CommitStatus(commitCtx, id, update); err != nil {
		log.Error("failed to record submission outcome", "error", err, "status", update.Status)
		s.commitFailure(commitCtx, id, "failed to record submission outcome: "+err.Error())
		return nil, NewTaskServiceError("run_task", "failed to record submission outcome", err)
	}
	s.emit(commitCtx, id, events.ChangeStatus)

	log.Info("task submitted",
		"remote_status", resp.Status,
		"operation", resp.Operation,
		"exec_id", resp.ExecID,
		"status", update.Status)

	return s.GetTask(commitCtx, id)
}

// submitOutcome maps a submission response to the status to commit.
func submitOutcome(resp *scraper.SubmitResponse) store.StatusUpdate {
	execID := domain.StringPtr(resp.ExecID)

	switch resp.Status {
	case domain.RemoteStatusQueued, domain.RemoteStatusRunning:
		if resp.Operation == "" {
			msg := "worker accepted the job without an operation handle"
			return store.StatusUpdate{Status: domain.TaskStatusFailed, ExecID: execID, ErrorMessage: &msg}
		}
		return store.StatusUpdate{
			Status:          domain.TaskStatusRunning,
			OperationHandle: domain.StringPtr(resp.Operation),
			ExecID:          execID,
		}
	case domain.RemoteStatusCompleted:
		return store.StatusUpdate{
			Status:  domain.TaskStatusCompleted,
			ExecID:  execID,
			Results: resp.Results,
		}
	case domain.RemoteStatusFailed:
		msg := resp.Message
		if msg == "" {
			msg = "Unknown error"
		}
		return store.StatusUpdate{Status: domain.TaskStatusFailed, ExecID: execID, ErrorMessage: &msg}
	default:
		msg := fmt.Sprintf("unexpected submission status %q", resp.Status)
		return store.StatusUpdate{Status: domain.TaskStatusFailed, ExecID: execID, ErrorMessage: &msg}
	}
}

func (s *taskServiceImpl) commitFailure(ctx context.Context, id uuid.UUID, message string) {
	update := store.StatusUpdate{Status: domain.TaskStatusFailed, ErrorMessage: &message}
	if err := s.tasks.CommitStatus(ctx, id, update); err != nil {
		s.log(ctx).Error("failed to record submission failure", "task_id", id, "error", err)
		return
	}
	s.emit(ctx, id, events.ChangeStatus)
}

// resolveCriteria looks up the preset to send with a submission. An unknown
// preset sends neither id nor text so the worker applies its default.
func (s *taskServiceImpl) resolveCriteria(ctx context.Context, presetID *string) (*string, *string) {
	if presetID == nil || *presetID == "" {
		return nil, nil
	}

	preset, err := s.presets.GetByID(ctx, *presetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.log(ctx).Warn("criteria preset not found, using worker default", "preset_id", *presetID)
		} else {
			s.log(ctx).Error("failed to load criteria preset, using worker default",
				"preset_id", *presetID,
				"error", err)
		}
		return nil, nil
	}

	return &preset.ID, &preset.Criteria
}

// presetName returns the name of the preset, or nil if it cannot be found.
func (s *taskServiceImpl) presetName(ctx context.Context, presetID string) *string {
	preset, err := s.presets.GetByID(ctx, presetID)
	if err != nil {
		s.log(ctx).Warn("could not resolve criteria preset name", "preset_id", presetID, "error", err)
		return nil
	}
	return &preset.Name
}

// ToggleManualComplete flips the manual completion flag.
func (s *taskServiceImpl) ToggleManualComplete(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, NewTaskServiceError("toggle_manual_complete", "failed to retrieve task", err)
	}

	if err := s.tasks.ToggleManualComplete(ctx, id, !task.ManuallyCompleted); err != nil {
		return nil, NewTaskServiceError("toggle_manual_complete", "failed to update task", err)
	}
	s.emit(ctx, id, events.ChangeManualToggle)

	return s.GetTask(ctx, id)
}

// DeleteTask removes a task. Polling for it stops on the next resync.
func (s *taskServiceImpl) DeleteTask(ctx context.Context, id uuid.UUID) error {
	if err := s.tasks.Delete(ctx, id); err != nil {
		return NewTaskServiceError("delete_task", "failed to delete task", err)
	}

	s.log(ctx).Info("task deleted", "task_id", id)
	s.emit(ctx, id, events.ChangeDeleted)
	return nil
}

// SetTaskPreset assigns a criteria preset to a task and caches its name.
func (s *taskServiceImpl) SetTaskPreset(ctx context.Context, id uuid.UUID, presetID *string) (*domain.Task, error) {
	var name *string
	if presetID != nil && *presetID == "" {
		presetID = nil
	}
	if presetID != nil {
		preset, err := s.presets.GetByID(ctx, *presetID)
		if err != nil {
			return nil, NewTaskServiceError("set_task_preset", "failed to retrieve preset", err)
		}
		name = &preset.Name
	}

	if err := s.tasks.SetCriteriaPreset(ctx, id, presetID, name); err != nil {
		return nil, NewTaskServiceError("set_task_preset", "failed to update task", err)
	}
	s.emit(ctx, id, events.ChangePresetChanged)

	return s.GetTask(ctx, id)
}

// ExportResults renders the task's results.
func (s *taskServiceImpl) ExportResults(ctx context.Context, id uuid.UUID, format export.Format) (*export.File, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, NewTaskServiceError("export_results", "failed to retrieve task", err)
	}

	file, err := export.Render(task.Results, format, s.now())
	if err != nil {
		if errors.Is(err, export.ErrUnsupportedFormat) {
			return nil, invalidInput(err)
		}
		return nil, NewTaskServiceError("export_results", "failed to render results", err)
	}

	return file, nil
}
