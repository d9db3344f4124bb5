package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of a scraping task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Submission parameter bounds and defaults.
const (
	DefaultTargetCount = 50
	MinTargetCount     = 1
	MaxTargetCount     = 500

	DefaultBioAgents = 3
	MinBioAgents     = 1
	MaxBioAgents     = 10

	DefaultBatchSize = 30
	MinBatchSize     = 10
	MaxBatchSize     = 100
)

// Task validation errors
var (
	ErrEmptyTaskID         = errors.New("task ID cannot be empty")
	ErrEmptyTargetAccount  = errors.New("target account cannot be empty")
	ErrTargetCountOutRange = errors.New("target count out of range")
	ErrBioAgentsOutRange   = errors.New("bio agents out of range")
	ErrBatchSizeOutRange   = errors.New("batch size out of range")
)

// Task is a scraping job submitted to the remote worker and tracked until it
// reaches a terminal state.
type Task struct {
	ID                 uuid.UUID  `json:"id"`
	TargetAccount      string     `json:"target_account"`
	TargetCount        int        `json:"target_count"`
	BioAgents          int        `json:"bio_agents"`
	BatchSize          int        `json:"batch_size"`
	CriteriaPresetID   *string    `json:"criteria_preset_id,omitempty"`
	CriteriaPresetName *string    `json:"criteria_preset_name,omitempty"`
	Status             TaskStatus `json:"status"`
	OperationHandle    *string    `json:"operation_handle,omitempty"`
	ExecID             *string    `json:"exec_id,omitempty"`
	Results            []Profile  `json:"results,omitempty"`
	ErrorMessage       *string    `json:"error_message,omitempty"`
	ManuallyCompleted  bool       `json:"manually_completed"`
	CreatedAt          time.Time  `json:"created_at"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

// NewTask creates a pending task for the given target account.
// Zero values for the numeric parameters are replaced by their defaults.
// Returns an error if validation fails.
func NewTask(targetAccount string, targetCount, bioAgents, batchSize int) (*Task, error) {
	if targetCount == 0 {
		targetCount = DefaultTargetCount
	}
	if bioAgents == 0 {
		bioAgents = DefaultBioAgents
	}
	if batchSize == 0 {
		batchSize = DefaultBatchSize
	}

	task := &Task{
		ID:            uuid.New(),
		TargetAccount: strings.TrimSpace(targetAccount),
		TargetCount:   targetCount,
		BioAgents:     bioAgents,
		BatchSize:     batchSize,
		Status:        TaskStatusPending,
		CreatedAt:     time.Now().UTC(),
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.TargetAccount == "" {
		return ErrEmptyTargetAccount
	}

	if t.TargetCount < MinTargetCount || t.TargetCount > MaxTargetCount {
		return ErrTargetCountOutRange
	}

	if t.BioAgents < MinBioAgents || t.BioAgents > MaxBioAgents {
		return ErrBioAgentsOutRange
	}

	if t.BatchSize < MinBatchSize || t.BatchSize > MaxBatchSize {
		return ErrBatchSizeOutRange
	}

	if !t.Status.IsValid() {
		return ErrInvalidTaskStatus
	}

	return nil
}

// HasOperationHandle reports whether the task carries a usable operation handle.
func (t *Task) HasOperationHandle() bool {
	return t.OperationHandle != nil && *t.OperationHandle != ""
}

// IsPollable reports whether the task is running with an operation handle,
// which is the condition for status polling.
func (t *Task) IsPollable() bool {
	return t.Status == TaskStatusRunning && t.HasOperationHandle()
}

// Handle returns the operation handle or an empty string.
func (t *Task) Handle() string {
	if t.OperationHandle == nil {
		return ""
	}
	return *t.OperationHandle
}

// IsValid reports whether s is a known task status.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether s is completed or failed.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// ParseTaskStatus converts a string into a TaskStatus.
func ParseTaskStatus(s string) (TaskStatus, error) {
	status := TaskStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", ErrInvalidTaskStatus
	}
	return status, nil
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
