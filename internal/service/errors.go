package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/scout-api/internal/export"
	"github.com/phrazzld/scout-api/internal/store"
)

// Common service errors. Callers check them with errors.Is; the API layer
// maps them to HTTP status codes.
var (
	// ErrTaskNotFound indicates that the task does not exist.
	// API layer should map this to HTTP 404 Not Found.
	ErrTaskNotFound = errors.New("task not found")

	// ErrPresetNotFound indicates that the criteria preset does not exist.
	// API layer should map this to HTTP 404 Not Found.
	ErrPresetNotFound = errors.New("criteria preset not found")

	// ErrTaskRunning indicates that a task cannot be run again while it is
	// already running or being submitted.
	// API layer should map this to HTTP 409 Conflict.
	ErrTaskRunning = errors.New("task is already running")

	// ErrInvalidInput indicates that request data failed domain validation.
	// API layer should map this to HTTP 400 Bad Request.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoResults indicates that a task has no results to export.
	// API layer should map this to HTTP 404 Not Found.
	ErrNoResults = export.ErrNoResults
)

// ServiceError wraps unexpected errors from the services with context.
type ServiceError struct {
	// Service is the service that failed (e.g., "task", "preset")
	Service string
	// Operation is the operation that failed (e.g., "run_task")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s service %s failed: %s: %v", e.Service, e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s service %s failed: %s", e.Service, e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewTaskServiceError creates an error for a failed task service operation.
// Known sentinel errors are returned directly without wrapping.
func NewTaskServiceError(operation, message string, err error) error {
	return newServiceError("task", operation, message, err)
}

// NewPresetServiceError creates an error for a failed preset service operation.
// Known sentinel errors are returned directly without wrapping.
func NewPresetServiceError(operation, message string, err error) error {
	return newServiceError("preset", operation, message, err)
}

func newServiceError(service, operation, message string, err error) error {
	if err == nil {
		return nil
	}

	for _, sentinel := range []error{ErrTaskNotFound, ErrPresetNotFound, ErrTaskRunning, ErrNoResults} {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	if errors.Is(err, ErrInvalidInput) {
		return err
	}

	// Store-level sentinels map to their service-level counterparts
	if errors.Is(err, store.ErrTaskNotFound) {
		return ErrTaskNotFound
	}
	if errors.Is(err, store.ErrPresetNotFound) {
		return ErrPresetNotFound
	}

	return &ServiceError{
		Service:   service,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// invalidInput marks a domain validation failure as ErrInvalidInput while
// keeping the original error in the chain.
func invalidInput(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}
