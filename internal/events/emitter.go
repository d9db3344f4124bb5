package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/phrazzld/scout-api/internal/platform/logger"
)

// InMemoryEventEmitter delivers task change events synchronously to the
// handlers registered in this process, in registration order.
type InMemoryEventEmitter struct {
	mu       sync.RWMutex
	handlers []EventHandler
	logger   *slog.Logger
}

// NewInMemoryEventEmitter creates an emitter with no handlers.
func NewInMemoryEventEmitter(log *slog.Logger) *InMemoryEventEmitter {
	if log == nil {
		log = slog.Default()
	}
	return &InMemoryEventEmitter{
		logger: log.With("component", "event_emitter"),
	}
}

// RegisterHandler subscribes handler to every subsequent event.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler) {
	e.mu.Lock()
	e.handlers = append(e.handlers, handler)
	count := len(e.handlers)
	e.mu.Unlock()

	e.logger.Debug("event handler registered", "handler_count", count)
}

func (e *InMemoryEventEmitter) snapshot() []EventHandler {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]EventHandler(nil), e.handlers...)
}

// EmitEvent implements EventEmitter. Every handler sees the event even when
// an earlier one fails; the first failure is returned.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *TaskChangedEvent) error {
	log := logger.FromContextOrDefault(ctx, e.logger).With(
		"event_id", event.ID,
		"task_id", event.TaskID,
		"change", event.Change)

	handlers := e.snapshot()
	if len(handlers) == 0 {
		log.Debug("task change dropped, no handlers registered")
		return nil
	}

	var firstErr error
	for i, handler := range handlers {
		err := handler.HandleEvent(ctx, event)
		if err == nil {
			continue
		}
		log.Error("event handler failed", "handler_index", i, "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
