package domain

import (
	"errors"
	"fmt"
)

// RemoteStatus is the status reported by the remote scraping worker.
type RemoteStatus string

// Status values reported by the remote worker.
const (
	RemoteStatusQueued    RemoteStatus = "queued"
	RemoteStatusRunning   RemoteStatus = "running"
	RemoteStatusCompleted RemoteStatus = "completed"
	RemoteStatusFailed    RemoteStatus = "failed"
)

// StatusReport is the outcome of a single status check against the remote worker.
type StatusReport struct {
	Status  RemoteStatus `json:"status"`
	Results []Profile    `json:"results,omitempty"`
	Message string       `json:"message,omitempty"`
}

// StatusCheckErrorKind classifies a failed status check.
type StatusCheckErrorKind string

// Status check error kinds.
const (
	// CheckErrorNetwork marks transient connectivity failures and timeouts.
	CheckErrorNetwork StatusCheckErrorKind = "network"
	// CheckErrorNotFound marks an unknown or expired operation handle.
	CheckErrorNotFound StatusCheckErrorKind = "not_found"
	// CheckErrorOther marks every other failure.
	CheckErrorOther StatusCheckErrorKind = "other"
)

// StatusCheckError is returned by status checkers so callers can classify
// failures without inspecting error strings.
type StatusCheckError struct {
	Kind    StatusCheckErrorKind
	Message string
	Err     error
}

// Error implements the error interface for StatusCheckError.
func (e *StatusCheckError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StatusCheckError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a network-class StatusCheckError.
func NewNetworkError(message string, err error) *StatusCheckError {
	return &StatusCheckError{Kind: CheckErrorNetwork, Message: message, Err: err}
}

// NewNotFoundError creates a not-found-class StatusCheckError.
func NewNotFoundError(message string) *StatusCheckError {
	return &StatusCheckError{Kind: CheckErrorNotFound, Message: message}
}

// NewOtherError creates an other-class StatusCheckError.
func NewOtherError(message string, err error) *StatusCheckError {
	return &StatusCheckError{Kind: CheckErrorOther, Message: message, Err: err}
}

// StatusCheckErrorKindOf returns the kind of the first StatusCheckError in
// err's chain, and false if there is none.
func StatusCheckErrorKindOf(err error) (StatusCheckErrorKind, bool) {
	var checkErr *StatusCheckError
	if errors.As(err, &checkErr) {
		return checkErr.Kind, true
	}
	return "", false
}
