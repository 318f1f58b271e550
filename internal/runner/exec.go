package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// killWait bounds the second wait after a forced termination. Errors
// from the kill and from this wait are swallowed so the timeout result
// is always the one returned.
const killWait = 5 * time.Second

// spawn starts name/args as an independent child process in its own
// process group, captures stdout and stderr, and waits at most timeout
// for completion. On timeout the whole group is killed and awaited so
// no zombie is left behind.
func spawn(ctx context.Context, name string, args []string, workingDir string, env map[string]string, timeout time.Duration, start time.Time) ToolResult {
	cmd := exec.Command(name, args...)
	if workingDir != "" {
		cmd.Dir = workingDir
	}
	if len(env) > 0 {
		merged := os.Environ()
		for k, v := range env {
			merged = append(merged, k+"="+v)
		}
		cmd.Env = merged
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Own process group so a timeout kill reaps grandchildren too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return failure(start, fmt.Sprintf("failed to start process: %v", err))
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return completed(cmd, err, stdout.Bytes(), stderr.Bytes(), start)

	case <-ctx.Done():
		terminate(cmd, done)
		return failure(start, fmt.Sprintf("execution canceled: %v", ctx.Err()))

	case <-timer.C:
		terminate(cmd, done)
		return ToolResult{
			Success:  false,
			Output:   sanitize(stdout.Bytes()),
			TimedOut: true,
			Error: fmt.Sprintf("execution timed out after %gs (%.1fs elapsed)",
				timeout.Seconds(), time.Since(start).Seconds()),
			Duration: time.Since(start),
		}
	}
}

// terminate force-kills the process group, then waits briefly for the
// child to be reaped. Best effort on every step.
func terminate(cmd *exec.Cmd, done <-chan error) {
	if cmd.Process != nil {
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	select {
	case <-done:
	case <-time.After(killWait):
	}
}

func completed(cmd *exec.Cmd, err error, stdout, stderr []byte, start time.Time) ToolResult {
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return failure(start, fmt.Sprintf("execution error: %v", err))
		}
	}

	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}

	res := ToolResult{
		Success: exitCode == 0,
		Output:  sanitize(stdout),
		Data: map[string]any{
			"exit_code": exitCode,
		},
		Duration: time.Since(start),
	}
	if exitCode != 0 {
		res.Error = sanitize(stderr)
	}
	return res
}
