package task

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/phrazzld/scout-api/internal/domain"
)

// User-facing messages committed for failed tasks.
const (
	NotFoundGuidance     = "The scraping operation was not found. It may have been deleted or expired. You can safely delete this task and try again."
	UnknownErrorMessage  = "Unknown error"
	statusCheckErrPrefix = "Error checking status: "
)

// DecisionKind is the outcome class of a single poll attempt.
type DecisionKind int

// Poll outcomes.
const (
	DecisionStillRunning DecisionKind = iota
	DecisionSucceeded
	DecisionFailed
	DecisionRetryable
)

// String returns the name used in logs and metrics.
func (k DecisionKind) String() string {
	switch k {
	case DecisionStillRunning:
		return "still_running"
	case DecisionSucceeded:
		return "succeeded"
	case DecisionFailed:
		return "failed"
	case DecisionRetryable:
		return "retryable"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the decision ends polling for the task.
func (k DecisionKind) IsTerminal() bool {
	return k == DecisionSucceeded || k == DecisionFailed
}

// Decision is the classified result of one status check.
type Decision struct {
	Kind DecisionKind
	// Results is set for DecisionSucceeded.
	Results []domain.Profile
	// Reason is the error message committed for DecisionFailed.
	Reason string
	// Err is the underlying error for DecisionFailed and DecisionRetryable.
	Err error
}

// PollExecutor performs single status check attempts and classifies them.
type PollExecutor struct {
	checker StatusChecker
	logger  *slog.Logger
}

// NewPollExecutor creates a PollExecutor.
func NewPollExecutor(checker StatusChecker, logger *slog.Logger) *PollExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PollExecutor{
		checker: checker,
		logger:  logger.With("component", "poll_executor"),
	}
}

// Poll checks the remote status of task exactly once.
func (e *PollExecutor) Poll(ctx context.Context, task *domain.Task) Decision {
	report, err := e.checker.CheckStatus(ctx, task.Handle())
	if err != nil {
		return e.classifyError(task, err)
	}

	switch report.Status {
	case domain.RemoteStatusCompleted:
		return Decision{Kind: DecisionSucceeded, Results: report.Results}
	case domain.RemoteStatusFailed:
		reason := report.Message
		if reason == "" {
			reason = UnknownErrorMessage
		}
		return Decision{Kind: DecisionFailed, Reason: reason}
	default:
		return Decision{Kind: DecisionStillRunning}
	}
}

func (e *PollExecutor) classifyError(task *domain.Task, err error) Decision {
	if isNetworkError(err) {
		e.logger.Warn("transient status check failure",
			"task_id", task.ID,
			"operation", task.Handle(),
			"error", err)
		return Decision{Kind: DecisionRetryable, Err: err}
	}

	if kind, ok := domain.StatusCheckErrorKindOf(err); ok && kind == domain.CheckErrorNotFound {
		e.logger.Info("remote operation not found",
			"task_id", task.ID,
			"operation", task.Handle())
		return Decision{Kind: DecisionFailed, Reason: NotFoundGuidance, Err: err}
	}

	e.logger.Error("status check failed",
		"task_id", task.ID,
		"operation", task.Handle(),
		"error", err)
	return Decision{Kind: DecisionFailed, Reason: statusCheckErrPrefix + err.Error(), Err: err}
}

// isNetworkError reports whether err is a transient connectivity failure.
// Context cancellation counts as transient: the attempt is abandoned, not
// failed.
func isNetworkError(err error) bool {
	if kind, ok := domain.StatusCheckErrorKindOf(err); ok {
		return kind == domain.CheckErrorNetwork
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
