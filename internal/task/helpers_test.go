package task

import (
	"testing"

	"github.com/phrazzld/scout-api/internal/domain"
	"github.com/stretchr/testify/require"
)

// newRunningTask builds a running task with the given operation handle and,
// when non-empty, exec id.
func newRunningTask(t *testing.T, account, handle, execID string) *domain.Task {
	t.Helper()

	task, err := domain.NewTask(account, 0, 0, 0)
	require.NoError(t, err)

	task.Status = domain.TaskStatusRunning
	task.OperationHandle = domain.StringPtr(handle)
	task.ExecID = domain.StringPtr(execID)
	return task
}
