package task

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
)

// Default backoff bounds for transient status check failures.
const (
	DefaultBackoffFloor = 2 * time.Second
	DefaultBackoffCap   = 30 * time.Second
)

// BackoffController tracks the retry delay of each task. The delay starts at
// zero, becomes the floor on the first transient failure and doubles on each
// consecutive one, never exceeding the cap.
type BackoffController struct {
	floor   time.Duration
	ceiling time.Duration

	mu      sync.Mutex
	entries map[uuid.UUID]*backoffEntry
}

type backoffEntry struct {
	policy  *backoff.ExponentialBackOff
	current time.Duration
}

// NewBackoffController creates a BackoffController. Non-positive bounds fall
// back to the defaults and a cap below the floor is raised to the floor.
func NewBackoffController(floor, ceiling time.Duration) *BackoffController {
	if floor <= 0 {
		floor = DefaultBackoffFloor
	}
	if ceiling <= 0 {
		ceiling = DefaultBackoffCap
	}
	if ceiling < floor {
		ceiling = floor
	}

	return &BackoffController{
		floor:   floor,
		ceiling: ceiling,
		entries: make(map[uuid.UUID]*backoffEntry),
	}
}

func (c *BackoffController) newPolicy() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.floor
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = c.ceiling
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Next records a transient failure for taskID and returns the delay to wait
// before the next attempt.
func (c *BackoffController) Next(taskID uuid.UUID) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[taskID]
	if !ok {
		e = &backoffEntry{policy: c.newPolicy()}
		c.entries[taskID] = e
	}

	e.current = e.policy.NextBackOff()
	return e.current
}

// Reset returns the delay for taskID to zero.
func (c *BackoffController) Reset(taskID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[taskID]; ok {
		e.policy.Reset()
		e.current = 0
	}
}

// Current returns the last delay handed out for taskID, or zero.
func (c *BackoffController) Current(taskID uuid.UUID) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[taskID]; ok {
		return e.current
	}
	return 0
}

// Forget drops all state for taskID.
func (c *BackoffController) Forget(taskID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, taskID)
}
