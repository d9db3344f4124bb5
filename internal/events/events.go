package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ChangeType names the kind of mutation a TaskChangedEvent describes.
type ChangeType string

// Task change types.
const (
	ChangeCreated       ChangeType = "created"
	ChangeStatus        ChangeType = "status"
	ChangeManualToggle  ChangeType = "manual_toggle"
	ChangePresetChanged ChangeType = "preset_changed"
	ChangeDeleted       ChangeType = "deleted"
)

// TaskChangedEvent reports that a task was mutated. It carries identifiers
// only; handlers re-read the store for current state.
type TaskChangedEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// TaskID identifies the task that changed
	TaskID uuid.UUID `json:"task_id"`

	// Change describes what kind of mutation happened
	Change ChangeType `json:"change"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// NewTaskChangedEvent creates a TaskChangedEvent for the given task.
func NewTaskChangedEvent(taskID uuid.UUID, change ChangeType) *TaskChangedEvent {
	return &TaskChangedEvent{
		ID:        uuid.New(),
		TaskID:    taskID,
		Change:    change,
		CreatedAt: time.Now().UTC(),
	}
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *TaskChangedEvent) error
}

// HandlerFunc adapts a plain function to the EventHandler interface.
type HandlerFunc func(ctx context.Context, event *TaskChangedEvent) error

// HandleEvent calls f(ctx, event).
func (f HandlerFunc) HandleEvent(ctx context.Context, event *TaskChangedEvent) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *TaskChangedEvent) error
}

// NoopEmitter discards every event.
type NoopEmitter struct{}

// EmitEvent implements EventEmitter.
func (NoopEmitter) EmitEvent(context.Context, *TaskChangedEvent) error { return nil }
