package runner

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// installTimeout bounds the optional dependency install. Much longer
// than a typical script timeout since it may hit the network.
const installTimeout = 2 * time.Minute

// ScriptRunner writes a script payload to a private temp file and runs
// it with a fresh interpreter process. The temp file is removed on
// every exit path.
type ScriptRunner struct {
	interpreter    string
	defaultTimeout time.Duration
}

func NewScript(interpreter string, defaultTimeout time.Duration) *ScriptRunner {
	if interpreter == "" {
		interpreter = "python3"
	}
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}
	return &ScriptRunner{
		interpreter:    interpreter,
		defaultTimeout: defaultTimeout,
	}
}

func (r *ScriptRunner) Execute(ctx context.Context, req Request) ToolResult {
	start := time.Now()

	if strings.TrimSpace(req.Payload) == "" {
		return failure(start, "script is empty")
	}

	if req.WorkingDir != "" {
		if _, err := os.Stat(req.WorkingDir); err != nil {
			return failure(start, fmt.Sprintf("working directory does not exist: %s", req.WorkingDir))
		}
	}

	script, err := writeTempScript(req.Payload)
	if err != nil {
		return failure(start, fmt.Sprintf("failed to write script file: %v", err))
	}
	defer os.Remove(script)

	if len(req.Requirements) > 0 {
		if res := r.installRequirements(ctx, req.Requirements); !res.Success {
			return res
		}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}

	return spawn(ctx, r.interpreter, []string{script}, req.WorkingDir, req.Env, timeout, start)
}

// installRequirements runs a pip install with its own fixed timeout. A
// failed install aborts the run; the script is never attempted.
func (r *ScriptRunner) installRequirements(ctx context.Context, requirements []string) ToolResult {
	start := time.Now()

	args := append([]string{"-m", "pip", "install"}, requirements...)
	res := spawn(ctx, r.interpreter, args, "", nil, installTimeout, start)
	if !res.Success {
		res.Error = fmt.Sprintf("failed to install requirements: %s", res.Error)
	}
	return res
}

func writeTempScript(code string) (string, error) {
	f, err := os.CreateTemp("", "runbook-*.py")
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(code); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
