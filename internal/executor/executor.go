package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"runbook/internal/logger"
	"runbook/internal/models"
	"runbook/internal/runner"
	"runbook/internal/storage"
	"runbook/internal/workflow"
)

// Executor dispatches workflow code to the runner matching its
// declared language, converts the outcome into an ExecutionResult, and
// appends it to the history store. It is the last fault boundary: no
// panic from a runner escapes to the caller.
type Executor struct {
	runners   map[models.Language]runner.Runner
	history   *storage.Storage
	workflows *workflow.Store
}

func New(history *storage.Storage, workflows *workflow.Store, shell runner.Runner, script runner.Runner) *Executor {
	return &Executor{
		runners: map[models.Language]runner.Runner{
			models.LanguageBash:   shell,
			models.LanguagePython: script,
		},
		history:   history,
		workflows: workflows,
	}
}

// RunRequest describes one execution of a piece of workflow code.
type RunRequest struct {
	WorkflowName string
	Code         string
	Language     models.Language
	Timeout      time.Duration
	WorkingDir   string
	Env          map[string]string
	Requirements []string
}

// Run executes the request and returns the persisted record. The
// returned result is always terminal; errors from the history store
// are reported alongside the result.
func (e *Executor) Run(ctx context.Context, req RunRequest) (*models.ExecutionResult, error) {
	res := &models.ExecutionResult{
		ExecutionID:  uuid.NewString(),
		WorkflowName: req.WorkflowName,
		Status:       models.ExecStatusRunning,
		StartedAt:    time.Now(),
	}

	tool := e.dispatch(ctx, req)

	finished := time.Now()
	res.FinishedAt = &finished
	res.Duration = finished.Sub(res.StartedAt).Seconds()
	res.Stdout = tool.Output

	if code, ok := tool.ExitCode(); ok {
		res.ExitCode = &code
	}

	switch {
	case tool.Success:
		res.Status = models.ExecStatusSuccess
	case tool.TimedOut:
		res.Status = models.ExecStatusTimeout
		res.ErrorMessage = tool.Error
	default:
		res.Status = models.ExecStatusFailed
		res.ErrorMessage = tool.Error
		// tool.Error is captured stderr only when a process actually
		// ran; gate rejections and faults carry a plain message.
		if res.ExitCode != nil {
			res.Stderr = tool.Error
		}
	}

	logger.Logger.Info().
		Str("workflow", req.WorkflowName).
		Str("execution_id", res.ExecutionID).
		Str("status", string(res.Status)).
		Float64("duration", res.Duration).
		Msg("execution finished")

	id, err := e.history.SaveExecution(res)
	if err != nil {
		return res, fmt.Errorf("failed to record execution: %w", err)
	}
	res.ID = id

	return res, nil
}

// dispatch picks the runner for the declared language and guards it
// with a recover so a runner fault becomes a failed result.
func (e *Executor) dispatch(ctx context.Context, req RunRequest) (tool runner.ToolResult) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			tool = runner.ToolResult{
				Success:  false,
				Error:    fmt.Sprintf("execution error: %v", r),
				Duration: time.Since(start),
			}
		}
	}()

	r, ok := e.runners[req.Language]
	if !ok {
		return runner.ToolResult{
			Success:  false,
			Error:    fmt.Sprintf("unsupported language: %s", req.Language),
			Duration: time.Since(start),
		}
	}

	return r.Execute(ctx, runner.Request{
		Payload:      req.Code,
		Timeout:      req.Timeout,
		WorkingDir:   req.WorkingDir,
		Env:          req.Env,
		Requirements: req.Requirements,
	})
}

// RunWorkflow loads a stored workflow and executes it with its
// declared language, timeout, and environment.
func (e *Executor) RunWorkflow(ctx context.Context, name string) (*models.ExecutionResult, error) {
	wf, err := e.workflows.Load(name)
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, fmt.Errorf("workflow %q not found", name)
	}

	return e.Run(ctx, RunRequest{
		WorkflowName: wf.Name,
		Code:         wf.Code,
		Language:     wf.Language,
		Timeout:      time.Duration(wf.Timeout) * time.Second,
		Env:          wf.EnvVars,
	})
}
