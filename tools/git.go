package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/hollowlabs/revenant/core"
)

const gitTimeout = 30 * time.Second

// GitTools returns git tools operating on the workspace repository.
func GitTools(root string) []core.Tool {
	return []core.Tool{
		&funcTool{
			def: core.ToolDefinition{
				Name:        "git_status",
				Description: "Show the working tree status of the workspace repository.",
				InputSchema: ObjectSchema(map[string]interface{}{}),
			},
			fn: func(ctx context.Context, input json.RawMessage) (*core.ToolResult, error) {
				return runGit(ctx, root, "status", "--porcelain", "--branch")
			},
		},
		&funcTool{
			def: core.ToolDefinition{
				Name:        "git_log",
				Description: "Show recent commits.",
				InputSchema: ObjectSchema(map[string]interface{}{
					"limit": IntegerProperty("Number of commits to show (default: 10)"),
				}),
			},
			fn: func(ctx context.Context, input json.RawMessage) (*core.ToolResult, error) {
				var args struct {
					Limit int `json:"limit"`
				}
				if len(input) > 0 {
					if err := json.Unmarshal(input, &args); err != nil {
						return failure("invalid input: %v", err), nil
					}
				}
				if args.Limit <= 0 {
					args.Limit = 10
				}
				return runGit(ctx, root, "log", "--oneline", "-n", strconv.Itoa(args.Limit))
			},
		},
		&funcTool{
			def: core.ToolDefinition{
				Name:        "git_diff",
				Description: "Show unstaged changes, or changes for a specific path.",
				InputSchema: ObjectSchema(map[string]interface{}{
					"path":   StringProperty("Optional workspace-relative path to diff"),
					"staged": BooleanProperty("Diff staged changes instead of unstaged"),
				}),
			},
			fn: func(ctx context.Context, input json.RawMessage) (*core.ToolResult, error) {
				var args struct {
					Path   string `json:"path"`
					Staged bool   `json:"staged"`
				}
				if len(input) > 0 {
					if err := json.Unmarshal(input, &args); err != nil {
						return failure("invalid input: %v", err), nil
					}
				}
				gitArgs := []string{"diff"}
				if args.Staged {
					gitArgs = append(gitArgs, "--cached")
				}
				if args.Path != "" {
					if _, err := resolvePath(root, args.Path); err != nil {
						return failure("%v", err), nil
					}
					gitArgs = append(gitArgs, "--", args.Path)
				}
				return runGit(ctx, root, gitArgs...)
			},
		},
		&funcTool{
			def: core.ToolDefinition{
				Name:        "git_add",
				Description: "Stage files for commit.",
				InputSchema: ObjectSchema(map[string]interface{}{
					"paths": ArrayProperty("Workspace-relative paths to stage", StringProperty("path")),
				}, "paths"),
			},
			fn: func(ctx context.Context, input json.RawMessage) (*core.ToolResult, error) {
				var args struct {
					Paths []string `json:"paths"`
				}
				if err := json.Unmarshal(input, &args); err != nil {
					return failure("invalid input: %v", err), nil
				}
				if len(args.Paths) == 0 {
					return failure("paths is required"), nil
				}
				gitArgs := []string{"add", "--"}
				for _, p := range args.Paths {
					if _, err := resolvePath(root, p); err != nil {
						return failure("%v", err), nil
					}
					gitArgs = append(gitArgs, p)
				}
				return runGit(ctx, root, gitArgs...)
			},
		},
		&funcTool{
			def: core.ToolDefinition{
				Name:        "git_commit",
				Description: "Commit staged changes with a message.",
				InputSchema: ObjectSchema(map[string]interface{}{
					"message": StringProperty("Commit message"),
				}, "message"),
			},
			fn: func(ctx context.Context, input json.RawMessage) (*core.ToolResult, error) {
				var args struct {
					Message string `json:"message"`
				}
				if err := json.Unmarshal(input, &args); err != nil {
					return failure("invalid input: %v", err), nil
				}
				if strings.TrimSpace(args.Message) == "" {
					return failure("commit message is required"), nil
				}
				return runGit(ctx, root, "commit", "-m", args.Message)
			},
		},
		&funcTool{
			def: core.ToolDefinition{
				Name:        "git_branch",
				Description: "List branches, or create one when name is given.",
				InputSchema: ObjectSchema(map[string]interface{}{
					"name": StringProperty("Optional branch name to create"),
				}),
			},
			fn: func(ctx context.Context, input json.RawMessage) (*core.ToolResult, error) {
				var args struct {
					Name string `json:"name"`
				}
				if len(input) > 0 {
					if err := json.Unmarshal(input, &args); err != nil {
						return failure("invalid input: %v", err), nil
					}
				}
				if args.Name != "" {
					return runGit(ctx, root, "branch", args.Name)
				}
				return runGit(ctx, root, "branch", "--list")
			},
		},
		&funcTool{
			def: core.ToolDefinition{
				Name:        "git_checkout",
				Description: "Switch to a branch or commit.",
				InputSchema: ObjectSchema(map[string]interface{}{
					"ref": StringProperty("Branch name or commit to check out"),
				}, "ref"),
			},
			fn: func(ctx context.Context, input json.RawMessage) (*core.ToolResult, error) {
				var args struct {
					Ref string `json:"ref"`
				}
				if err := json.Unmarshal(input, &args); err != nil {
					return failure("invalid input: %v", err), nil
				}
				if args.Ref == "" {
					return failure("ref is required"), nil
				}
				return runGit(ctx, root, "checkout", args.Ref)
			},
		},
	}
}

// runGit executes git in the workspace and returns its combined output as a
// tool result. Non-zero exit is a tool failure, not an error.
func runGit(ctx context.Context, root string, args ...string) (*core.ToolResult, error) {
	ctx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = root

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return failure("git %s: %s", args[0], msg), nil
	}
	return success(map[string]any{
		"command": "git " + strings.Join(args, " "),
		"output":  stdout.String(),
	}), nil
}
