package task

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
)

// pollingSession is the in-memory polling state of one running task.
// The session's ticker goroutine lives exactly as long as ctx.
type pollingSession struct {
	taskID uuid.UUID
	handle string

	// inFlight is held from the start of a status check until its decision
	// is applied, and for the backoff delay after a transient failure.
	inFlight atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
}

func newPollingSession(parent context.Context, taskID uuid.UUID, handle string) *pollingSession {
	ctx, cancel := context.WithCancel(parent)
	return &pollingSession{
		taskID: taskID,
		handle: handle,
		ctx:    ctx,
		cancel: cancel,
	}
}

// tryAcquire takes the in-flight guard, reporting false if it is held.
func (s *pollingSession) tryAcquire() bool {
	return s.inFlight.CompareAndSwap(false, true)
}

func (s *pollingSession) release() {
	s.inFlight.Store(false)
}

func (s *pollingSession) stopped() bool {
	return s.ctx.Err() != nil
}
