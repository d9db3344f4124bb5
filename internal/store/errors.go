package store

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by every store implementation.
var (
	// ErrNotFound is wrapped by the entity-specific not-found errors.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an entity with the same id already exists.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity is rejected before or by
	// the database, for example a check constraint on task parameters.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTransactionFailed is returned when a transaction cannot be committed.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrStaleUpdate is returned when a guarded status update no longer
	// matches the stored task.
	ErrStaleUpdate = errors.New("stale status update")

	ErrTaskNotFound   = fmt.Errorf("%w: task", ErrNotFound)
	ErrPresetNotFound = fmt.Errorf("%w: preset", ErrNotFound)
)

// IsNotFoundError reports whether err is ErrNotFound or wraps it, which
// includes ErrTaskNotFound and ErrPresetNotFound.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError reports whether err wraps ErrDuplicate.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}
