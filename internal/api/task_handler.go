package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/scout-api/internal/api/shared"
	"github.com/phrazzld/scout-api/internal/domain"
	"github.com/phrazzld/scout-api/internal/export"
	"github.com/phrazzld/scout-api/internal/platform/logger"
	"github.com/phrazzld/scout-api/internal/service"
)

// PollingStatus reports whether a task currently has a live polling session.
type PollingStatus interface {
	IsPolling(taskID uuid.UUID) bool
}

// TaskHandler handles task-related HTTP requests
type TaskHandler struct {
	taskService service.TaskService
	polling     PollingStatus
	logger      *slog.Logger
}

// NewTaskHandler creates a new TaskHandler. polling may be nil, in which
// case responses always report polling as false.
func NewTaskHandler(taskService service.TaskService, polling PollingStatus, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}

	return &TaskHandler{
		taskService: taskService,
		polling:     polling,
		logger:      logger.With(slog.String("component", "task_handler")),
	}
}

// Routes returns the task routes, to be mounted at /api/tasks.
func (h *TaskHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListTasks)
	r.Post("/", h.CreateTask)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.GetTask)
		r.Delete("/", h.DeleteTask)
		r.Post("/run", h.RunTask)
		r.Post("/toggle-complete", h.ToggleComplete)
		r.Put("/preset", h.SetPreset)
		r.Get("/results", h.ExportResults)
	})
	return r
}

func (h *TaskHandler) toResponse(task *domain.Task) TaskResponse {
	polling := h.polling != nil && h.polling.IsPolling(task.ID)
	return taskToResponse(task, polling)
}

// ListTasks handles GET /api/tasks requests
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.taskService.ListTasks(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list tasks")
		return
	}

	response := TaskListResponse{Tasks: make([]TaskResponse, 0, len(tasks))}
	for _, task := range tasks {
		response.Tasks = append(response.Tasks, h.toResponse(task))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, response)
}

// CreateTask handles POST /api/tasks requests
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CreateTaskRequest
	if !decodeAndValidate(w, r, &req, false, log) {
		return
	}

	task, err := h.taskService.CreateTask(r.Context(), service.CreateTaskParams{
		TargetAccount:    req.TargetAccount,
		TargetCount:      req.TargetCount,
		BioAgents:        req.BioAgents,
		BatchSize:        req.BatchSize,
		CriteriaPresetID: req.CriteriaPresetID,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create task")
		return
	}

	log.Debug("task created", slog.String("task_id", task.ID.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, h.toResponse(task))
}

// GetTask handles GET /api/tasks/{id} requests
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathUUID(w, r, "id", logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	task, err := h.taskService.GetTask(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, h.toResponse(task))
}

// DeleteTask handles DELETE /api/tasks/{id} requests.
// Remote artifacts are left untouched.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathUUID(w, r, "id", logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "Failed to delete task")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RunTask handles POST /api/tasks/{id}/run requests.
// The body is optional and may override the criteria preset for this run.
func (h *TaskHandler) RunTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, ok := handlePathUUID(w, r, "id", log)
	if !ok {
		return
	}

	var req RunTaskRequest
	if !decodeAndValidate(w, r, &req, true, log) {
		return
	}

	task, err := h.taskService.RunTask(r.Context(), id, req.CriteriaPresetID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to run task")
		return
	}

	log.Info("task run requested",
		slog.String("task_id", id.String()),
		slog.String("status", string(task.Status)))
	shared.RespondWithJSON(w, r, http.StatusAccepted, h.toResponse(task))
}

// ToggleComplete handles POST /api/tasks/{id}/toggle-complete requests
func (h *TaskHandler) ToggleComplete(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathUUID(w, r, "id", logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	task, err := h.taskService.ToggleManualComplete(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, h.toResponse(task))
}

// SetPreset handles PUT /api/tasks/{id}/preset requests
func (h *TaskHandler) SetPreset(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, ok := handlePathUUID(w, r, "id", log)
	if !ok {
		return
	}

	var req SetTaskPresetRequest
	if !decodeAndValidate(w, r, &req, false, log) {
		return
	}

	task, err := h.taskService.SetTaskPreset(r.Context(), id, req.CriteriaPresetID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, h.toResponse(task))
}

// ExportResults handles GET /api/tasks/{id}/results?format=csv|json requests
func (h *TaskHandler) ExportResults(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathUUID(w, r, "id", logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	file, err := h.taskService.ExportResults(r.Context(), id, format)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to export results")
		return
	}

	shared.RespondWithFile(w, r, file.Filename, file.ContentType, file.Data)
}
