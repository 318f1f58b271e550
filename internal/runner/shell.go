package runner

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"runbook/internal/gate"
)

// ShellRunner executes a command string through the shell. Every
// payload passes the command gate before a process is spawned.
type ShellRunner struct {
	gate           *gate.Gate
	shell          string
	defaultTimeout time.Duration
}

func NewShell(g *gate.Gate, defaultTimeout time.Duration) *ShellRunner {
	if g == nil {
		g = gate.New(nil, nil)
	}
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}
	return &ShellRunner{
		gate:           g,
		shell:          "/bin/bash",
		defaultTimeout: defaultTimeout,
	}
}

func (r *ShellRunner) Execute(ctx context.Context, req Request) ToolResult {
	start := time.Now()

	if strings.TrimSpace(req.Payload) == "" {
		return failure(start, "command is empty")
	}

	if allowed, reason := r.gate.Check(req.Payload); !allowed {
		return failure(start, fmt.Sprintf("command blocked: %s", reason))
	}

	if req.WorkingDir != "" {
		if _, err := os.Stat(req.WorkingDir); err != nil {
			return failure(start, fmt.Sprintf("working directory does not exist: %s", req.WorkingDir))
		}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}

	res := spawn(ctx, r.shell, []string{"-c", req.Payload}, req.WorkingDir, req.Env, timeout, start)
	if res.Data != nil {
		res.Data["command"] = req.Payload
	}
	return res
}
