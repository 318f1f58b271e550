package runner

import (
	"context"
	"strings"
	"time"
)

// DefaultTimeout bounds executions that do not declare their own.
const DefaultTimeout = 5 * time.Minute

// ToolResult is the transient outcome of one runner invocation. The
// executor translates it into a persisted ExecutionResult.
type ToolResult struct {
	Success  bool
	Output   string
	Error    string
	Data     map[string]any
	Duration time.Duration
	TimedOut bool
}

// ExitCode extracts the exit code from the result's data side-channel.
func (r ToolResult) ExitCode() (int, bool) {
	if r.Data == nil {
		return 0, false
	}
	code, ok := r.Data["exit_code"].(int)
	return code, ok
}

// Request describes one execution attempt.
type Request struct {
	// Payload is the command string (shell runner) or script source
	// (script runner).
	Payload    string
	Timeout    time.Duration
	WorkingDir string
	Env        map[string]string

	// Requirements are packages to install before a script run.
	// Ignored by the shell runner.
	Requirements []string
}

// Runner executes untrusted payloads as isolated child processes. All
// failure modes are resolved into the returned ToolResult; Execute
// never panics outward. Implementations hold only read-only
// configuration and are safe for concurrent use.
type Runner interface {
	Execute(ctx context.Context, req Request) ToolResult
}

// sanitize replaces undecodable bytes in captured process output.
func sanitize(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}

func failure(start time.Time, msg string) ToolResult {
	return ToolResult{
		Success:  false,
		Error:    msg,
		Duration: time.Since(start),
	}
}
