package executor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runbook/internal/models"
	"runbook/internal/runner"
	"runbook/internal/storage"
	"runbook/internal/workflow"
)

type panicRunner struct{}

func (panicRunner) Execute(context.Context, runner.Request) runner.ToolResult {
	panic("runner blew up")
}

func newTestExecutor(t *testing.T) (*Executor, *storage.Storage, *workflow.Store) {
	t.Helper()

	history, err := storage.New(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { history.Close() })

	workflows, err := workflow.NewStore(t.TempDir())
	require.NoError(t, err)

	shell := runner.NewShell(nil, 5*time.Second)
	script := runner.NewScript("", 5*time.Second)
	return New(history, workflows, shell, script), history, workflows
}

func TestRun_Success(t *testing.T) {
	e, history, _ := newTestExecutor(t)

	res, err := e.Run(context.Background(), RunRequest{
		WorkflowName: "hello",
		Code:         "echo OK",
		Language:     models.LanguageBash,
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecStatusSuccess, res.Status)
	assert.Contains(t, res.Stdout, "OK")
	require.NotNil(t, res.ExitCode)
	assert.Equal(t, 0, *res.ExitCode)
	require.NotNil(t, res.FinishedAt)
	assert.False(t, res.FinishedAt.Before(res.StartedAt))
	assert.NotEmpty(t, res.ExecutionID)
	assert.NotZero(t, res.ID)

	// The result was persisted.
	stored, err := history.QueryExecutions(storage.QueryOptions{WorkflowName: "hello"})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, res.ExecutionID, stored[0].ExecutionID)
}

func TestRun_Failure(t *testing.T) {
	e, _, _ := newTestExecutor(t)

	res, err := e.Run(context.Background(), RunRequest{
		WorkflowName: "broken",
		Code:         "echo boom >&2; exit 1",
		Language:     models.LanguageBash,
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecStatusFailed, res.Status)
	assert.Contains(t, res.Stderr, "boom")
	require.NotNil(t, res.ExitCode)
	assert.Equal(t, 1, *res.ExitCode)
	assert.NotEmpty(t, res.ErrorMessage)
}

func TestRun_TimeoutIsDistinctStatus(t *testing.T) {
	e, _, _ := newTestExecutor(t)

	res, err := e.Run(context.Background(), RunRequest{
		WorkflowName: "slow",
		Code:         "sleep 10",
		Language:     models.LanguageBash,
		Timeout:      500 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecStatusTimeout, res.Status)
	assert.Contains(t, res.ErrorMessage, "timed out")
	require.NotNil(t, res.FinishedAt)
}

func TestRun_UnsupportedLanguage(t *testing.T) {
	e, _, _ := newTestExecutor(t)

	res, err := e.Run(context.Background(), RunRequest{
		WorkflowName: "weird",
		Code:         "puts 1",
		Language:     "ruby",
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecStatusFailed, res.Status)
	assert.Contains(t, res.ErrorMessage, "unsupported language")
	assert.Nil(t, res.ExitCode)
}

func TestRun_PanicBecomesFailedResult(t *testing.T) {
	e, _, _ := newTestExecutor(t)
	e.runners[models.LanguageBash] = panicRunner{}

	res, err := e.Run(context.Background(), RunRequest{
		WorkflowName: "panicky",
		Code:         "echo hi",
		Language:     models.LanguageBash,
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecStatusFailed, res.Status)
	assert.Contains(t, res.ErrorMessage, "runner blew up")
}

func TestRunWorkflow(t *testing.T) {
	e, _, workflows := newTestExecutor(t)

	require.NoError(t, workflows.Save(&models.Workflow{
		Name:     "greet",
		Language: models.LanguageBash,
		Code:     "echo hello $NAME",
		Timeout:  5,
		EnvVars:  map[string]string{"NAME": "runbook"},
	}))

	res, err := e.RunWorkflow(context.Background(), "greet")
	require.NoError(t, err)

	assert.Equal(t, models.ExecStatusSuccess, res.Status)
	assert.Contains(t, res.Stdout, "hello runbook")
}

func TestRunWorkflow_Missing(t *testing.T) {
	e, _, _ := newTestExecutor(t)

	_, err := e.RunWorkflow(context.Background(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
