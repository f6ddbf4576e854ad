package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/haasonsaas/graphloom/internal/agent"
)

// Subprocess bounds for run_transformer.
const (
	defaultRunTimeout = 60 * time.Second
	maxRunTimeout     = 600 * time.Second
	maxOutputBytes    = 4 << 10
)

// RunTransformerTool executes a transformation script inside the sandbox
// with a timeout. Only registered in code mode.
type RunTransformerTool struct {
	resolver Resolver
	workDir  string
}

// NewRunTransformerTool creates a script runner scoped to the sandbox.
func NewRunTransformerTool(tc Context) *RunTransformerTool {
	return &RunTransformerTool{
		resolver: Resolver{Root: tc.WorkDir},
		workDir:  tc.WorkDir,
	}
}

func (t *RunTransformerTool) Name() string {
	return "run_transformer"
}

func (t *RunTransformerTool) Description() string {
	return "Run a Python transformation script inside the sandbox and capture its output. Defaults to ./transform.py."
}

func (t *RunTransformerTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"script_path": map[string]any{
				"type":        "string",
				"description": "Script to run, relative to the sandbox (default: ./transform.py).",
			},
			"timeout_seconds": map[string]any{
				"type":        "integer",
				"description": "Kill the script after this many seconds (default: 60).",
				"minimum":     1,
			},
		},
	})
}

func (t *RunTransformerTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		ScriptPath     string `json:"script_path"`
		TimeoutSeconds int    `json:"timeout_seconds"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &input); err != nil {
			return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
		}
	}
	script := strings.TrimSpace(input.ScriptPath)
	if script == "" {
		script = "./transform.py"
	}
	timeout := defaultRunTimeout
	if input.TimeoutSeconds > 0 {
		timeout = time.Duration(input.TimeoutSeconds) * time.Second
		if timeout > maxRunTimeout {
			timeout = maxRunTimeout
		}
	}

	resolved, err := t.resolver.Resolve(script)
	if err != nil {
		return toolError(err.Error()), nil
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "python3", resolved)
	cmd.Dir = t.workDir
	// Run in its own process group so the timeout kills children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	timedOut := errors.Is(runCtx.Err(), context.DeadlineExceeded)
	if runErr != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(runErr, &exitErr):
			exitCode = exitErr.ExitCode()
		case timedOut:
			exitCode = -1
		default:
			return toolError(fmt.Sprintf("run script: %v", runErr)), nil
		}
	}

	result := map[string]any{
		"script_path": script,
		"success":     runErr == nil,
		"exit_code":   exitCode,
		"timed_out":   timedOut,
		"elapsed_ms":  elapsed.Milliseconds(),
		"stdout":      tailTruncate(stdout.String()),
		"stderr":      tailTruncate(stderr.String()),
	}
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &agent.ToolResult{Content: string(payload), IsError: runErr != nil}, nil
}

// tailTruncate keeps the last maxOutputBytes of s, where the useful error
// context usually is.
func tailTruncate(s string) string {
	if len(s) <= maxOutputBytes {
		return s
	}
	return "... (truncated)\n" + s[len(s)-maxOutputBytes:]
}
