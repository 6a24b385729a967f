package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
	"time"

	"github.com/hollowlabs/revenant/core"
)

const (
	maxExecTimeout = 5 * time.Minute
	maxOutputBytes = 256 * 1024
)

// DefaultExecTimeout applies when a call does not set timeout_seconds.
// Set before registering the exec tools.
var DefaultExecTimeout = 30 * time.Second

// ExecTools returns command-execution tools. Commands run through the shell
// with the workspace as working directory.
func ExecTools(root string) []core.Tool {
	return []core.Tool{
		&funcTool{
			def: core.ToolDefinition{
				Name:        "run_command",
				Description: "Run a shell command in the workspace and capture its output.",
				InputSchema: ObjectSchema(map[string]interface{}{
					"command":         StringProperty("Shell command to run"),
					"timeout_seconds": IntegerProperty("Timeout in seconds (default 30, max 300)"),
				}, "command"),
			},
			fn: func(ctx context.Context, input json.RawMessage) (*core.ToolResult, error) {
				var args struct {
					Command        string `json:"command"`
					TimeoutSeconds int    `json:"timeout_seconds"`
				}
				if err := json.Unmarshal(input, &args); err != nil {
					return failure("invalid input: %v", err), nil
				}
				if args.Command == "" {
					return failure("command is required"), nil
				}
				return runShell(ctx, root, args.Command, timeoutFor(args.TimeoutSeconds))
			},
		},
		&funcTool{
			def: core.ToolDefinition{
				Name:        "run_script",
				Description: "Run a script file from the workspace with an interpreter.",
				InputSchema: ObjectSchema(map[string]interface{}{
					"path":            StringProperty("Workspace-relative script path"),
					"interpreter":     StringProperty("Interpreter (default: sh)"),
					"timeout_seconds": IntegerProperty("Timeout in seconds (default 30, max 300)"),
				}, "path"),
			},
			fn: func(ctx context.Context, input json.RawMessage) (*core.ToolResult, error) {
				var args struct {
					Path           string `json:"path"`
					Interpreter    string `json:"interpreter"`
					TimeoutSeconds int    `json:"timeout_seconds"`
				}
				if err := json.Unmarshal(input, &args); err != nil {
					return failure("invalid input: %v", err), nil
				}
				path, err := resolvePath(root, args.Path)
				if err != nil {
					return failure("%v", err), nil
				}
				interpreter := args.Interpreter
				if interpreter == "" {
					interpreter = "sh"
				}
				return runProcess(ctx, root, timeoutFor(args.TimeoutSeconds), interpreter, path)
			},
		},
	}
}

func timeoutFor(seconds int) time.Duration {
	if seconds <= 0 {
		return DefaultExecTimeout
	}
	d := time.Duration(seconds) * time.Second
	if d > maxExecTimeout {
		return maxExecTimeout
	}
	return d
}

func runShell(ctx context.Context, root, command string, timeout time.Duration) (*core.ToolResult, error) {
	return runProcess(ctx, root, timeout, "sh", "-c", command)
}

func runProcess(ctx context.Context, root string, timeout time.Duration, name string, args ...string) (*core.ToolResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = root

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	} else if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return failure("command timed out after %s", timeout), nil
		}
		return failure("exec: %v", err), nil
	}

	return &core.ToolResult{
		Success: exitCode == 0,
		Data: map[string]any{
			"stdout":     truncateOutput(stdout.String()),
			"stderr":     truncateOutput(stderr.String()),
			"exit_code":  exitCode,
			"elapsed_ms": elapsed.Milliseconds(),
		},
		Error: exitError(exitCode),
	}, nil
}

func exitError(code int) string {
	if code == 0 {
		return ""
	}
	return "command exited with code " + strconv.Itoa(code)
}

func truncateOutput(s string) string {
	if len(s) <= maxOutputBytes {
		return s
	}
	return s[:maxOutputBytes] + "\n... (output truncated)"
}
