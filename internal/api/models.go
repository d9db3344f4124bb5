package api

import (
	"errors"
	"time"

	"github.com/phrazzld/scout-api/internal/api/shared"
	"github.com/phrazzld/scout-api/internal/domain"
)

// CreateTaskRequest defines the payload for creating a scraping task.
// Zero numeric fields select the defaults.
type CreateTaskRequest struct {
	TargetAccount    string  `json:"target_account"               validate:"required,max=100"`
	TargetCount      int     `json:"target_count,omitempty"       validate:"omitempty,min=1,max=500"`
	BioAgents        int     `json:"bio_agents,omitempty"         validate:"omitempty,min=1,max=10"`
	BatchSize        int     `json:"batch_size,omitempty"         validate:"omitempty,min=10,max=100"`
	CriteriaPresetID *string `json:"criteria_preset_id,omitempty"`
}

// RunTaskRequest is the optional payload of the run endpoint.
type RunTaskRequest struct {
	// CriteriaPresetID overrides the task's own preset for this run
	CriteriaPresetID *string `json:"criteria_preset_id,omitempty"`
}

// SetTaskPresetRequest assigns a preset to a task. A null ID clears it.
type SetTaskPresetRequest struct {
	CriteriaPresetID *string `json:"criteria_preset_id"`
}

// CreatePresetRequest defines the payload for saving a criteria preset.
type CreatePresetRequest struct {
	Name     string `json:"name"     validate:"required,max=100"`
	Criteria string `json:"criteria" validate:"required"`
}

// UpdatePresetRequest changes a preset's name, criteria or both.
type UpdatePresetRequest struct {
	Name     *string `json:"name,omitempty"     validate:"omitempty,min=1,max=100"`
	Criteria *string `json:"criteria,omitempty" validate:"omitempty,min=1"`
}

// errEmptyPresetUpdate is returned when neither field of an update is set.
var errEmptyPresetUpdate = errors.New("name or criteria is required")

// Validate checks the struct tags and that at least one field is present.
func (r UpdatePresetRequest) Validate() error {
	if err := shared.Validate.Struct(r); err != nil {
		return err
	}
	if r.Name == nil && r.Criteria == nil {
		return errEmptyPresetUpdate
	}
	return nil
}

// SetActivePresetRequest selects the active preset. A null ID clears it.
type SetActivePresetRequest struct {
	ID *string `json:"id"`
}

// TaskResponse represents the response data for a task
type TaskResponse struct {
	ID                 string           `json:"id"`
	TargetAccount      string           `json:"target_account"`
	TargetCount        int              `json:"target_count"`
	BioAgents          int              `json:"bio_agents"`
	BatchSize          int              `json:"batch_size"`
	CriteriaPresetID   *string          `json:"criteria_preset_id"`
	CriteriaPresetName *string          `json:"criteria_preset_name"`
	Status             string           `json:"status"`
	OperationHandle    *string          `json:"operation_handle,omitempty"`
	ExecID             *string          `json:"exec_id,omitempty"`
	Polling            bool             `json:"polling"`
	ResultsCount       int              `json:"results_count"`
	Results            []domain.Profile `json:"results"`
	ErrorMessage       *string          `json:"error_message"`
	ManuallyCompleted  bool             `json:"manually_completed"`
	CreatedAt          time.Time        `json:"created_at"`
	StartedAt          *time.Time       `json:"started_at"`
	CompletedAt        *time.Time       `json:"completed_at"`
}

// TaskListResponse wraps the task list.
type TaskListResponse struct {
	Tasks []TaskResponse `json:"tasks"`
}

// PresetResponse represents the response data for a criteria preset
type PresetResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Criteria  string    `json:"criteria"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PresetListResponse lists the presets with the active selection.
type PresetListResponse struct {
	Presets  []PresetResponse `json:"presets"`
	ActiveID *string          `json:"active_id"`
}

// taskToResponse converts a domain.Task to a TaskResponse
func taskToResponse(task *domain.Task, polling bool) TaskResponse {
	results := task.Results
	if results == nil {
		results = []domain.Profile{}
	}

	return TaskResponse{
		ID:                 task.ID.String(),
		TargetAccount:      task.TargetAccount,
		TargetCount:        task.TargetCount,
		BioAgents:          task.BioAgents,
		BatchSize:          task.BatchSize,
		CriteriaPresetID:   task.CriteriaPresetID,
		CriteriaPresetName: task.CriteriaPresetName,
		Status:             string(task.Status),
		OperationHandle:    task.OperationHandle,
		ExecID:             task.ExecID,
		Polling:            polling,
		ResultsCount:       len(results),
		Results:            results,
		ErrorMessage:       task.ErrorMessage,
		ManuallyCompleted:  task.ManuallyCompleted,
		CreatedAt:          task.CreatedAt,
		StartedAt:          task.StartedAt,
		CompletedAt:        task.CompletedAt,
	}
}

// presetToResponse converts a domain.CriteriaPreset to a PresetResponse
func presetToResponse(preset *domain.CriteriaPreset) PresetResponse {
	return PresetResponse{
		ID:        preset.ID,
		Name:      preset.Name,
		Criteria:  preset.Criteria,
		CreatedAt: preset.CreatedAt,
		UpdatedAt: preset.UpdatedAt,
	}
}
