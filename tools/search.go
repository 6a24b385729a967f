package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hollowlabs/revenant/core"
)

// SearchTools returns code-search tools over the workspace.
func SearchTools(root string) []core.Tool {
	return []core.Tool{
		&funcTool{
			def: core.ToolDefinition{
				Name:        "search_text",
				Description: "Search workspace files for a regular expression.",
				InputSchema: ObjectSchema(map[string]interface{}{
					"pattern":     StringProperty("Regular expression to search for"),
					"path":        StringProperty("Workspace-relative directory to search (default: root)"),
					"max_matches": IntegerProperty("Stop after this many matches (default: 100)"),
				}, "pattern"),
			},
			fn: func(ctx context.Context, input json.RawMessage) (*core.ToolResult, error) {
				var args struct {
					Pattern    string `json:"pattern"`
					Path       string `json:"path"`
					MaxMatches int    `json:"max_matches"`
				}
				if err := json.Unmarshal(input, &args); err != nil {
					return failure("invalid input: %v", err), nil
				}
				re, err := regexp.Compile(args.Pattern)
				if err != nil {
					return failure("invalid pattern: %v", err), nil
				}
				dir, err := resolvePath(root, args.Path)
				if err != nil {
					return failure("%v", err), nil
				}
				limit := args.MaxMatches
				if limit <= 0 {
					limit = 100
				}
				matches, err := regexSearch(ctx, dir, root, re, limit)
				if err != nil {
					return failure("search: %v", err), nil
				}
				return success(map[string]any{"pattern": args.Pattern, "matches": matches, "count": len(matches)}), nil
			},
		},
		&funcTool{
			def: core.ToolDefinition{
				Name:        "find_files",
				Description: "Find workspace files whose names match a glob pattern.",
				InputSchema: ObjectSchema(map[string]interface{}{
					"pattern": StringProperty("Glob pattern matched against file names (e.g. *.go)"),
					"path":    StringProperty("Workspace-relative directory to search (default: root)"),
				}, "pattern"),
			},
			fn: func(ctx context.Context, input json.RawMessage) (*core.ToolResult, error) {
				var args struct {
					Pattern string `json:"pattern"`
					Path    string `json:"path"`
				}
				if err := json.Unmarshal(input, &args); err != nil {
					return failure("invalid input: %v", err), nil
				}
				if args.Pattern == "" {
					return failure("pattern is required"), nil
				}
				dir, err := resolvePath(root, args.Path)
				if err != nil {
					return failure("%v", err), nil
				}

				var files []string
				walkErr := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
					if err != nil {
						return nil
					}
					if ctx.Err() != nil {
						return ctx.Err()
					}
					if d.IsDir() {
						if strings.HasPrefix(d.Name(), ".") && path != dir {
							return filepath.SkipDir
						}
						return nil
					}
					if ok, _ := filepath.Match(args.Pattern, d.Name()); ok {
						rel, _ := filepath.Rel(root, path)
						files = append(files, rel)
					}
					return nil
				})
				if walkErr != nil {
					return failure("walk: %v", walkErr), nil
				}
				return success(map[string]any{"pattern": args.Pattern, "files": files, "count": len(files)}), nil
			},
		},
		&funcTool{
			def: core.ToolDefinition{
				Name:        "find_symbol",
				Description: "Find function, type, or class definitions by name across common languages.",
				InputSchema: ObjectSchema(map[string]interface{}{
					"name": StringProperty("Symbol name to look for"),
					"path": StringProperty("Workspace-relative directory to search (default: root)"),
				}, "name"),
			},
			fn: func(ctx context.Context, input json.RawMessage) (*core.ToolResult, error) {
				var args struct {
					Name string `json:"name"`
					Path string `json:"path"`
				}
				if err := json.Unmarshal(input, &args); err != nil {
					return failure("invalid input: %v", err), nil
				}
				if args.Name == "" {
					return failure("name is required"), nil
				}
				dir, err := resolvePath(root, args.Path)
				if err != nil {
					return failure("%v", err), nil
				}

				// Definition patterns for Go, Python, JS/TS, and Rust.
				quoted := regexp.QuoteMeta(args.Name)
				re := regexp.MustCompile(
					`(func\s+(\([^)]+\)\s+)?` + quoted + `\b)` +
						`|(type\s+` + quoted + `\b)` +
						`|(def\s+` + quoted + `\b)` +
						`|(class\s+` + quoted + `\b)` +
						`|((function|const|let|var)\s+` + quoted + `\b)` +
						`|(fn\s+` + quoted + `\b)`,
				)
				matches, err := regexSearch(ctx, dir, root, re, 50)
				if err != nil {
					return failure("search: %v", err), nil
				}
				return success(map[string]any{"name": args.Name, "definitions": matches, "count": len(matches)}), nil
			},
		},
	}
}

// regexSearch walks dir matching re line by line, mirroring grepDir.
func regexSearch(ctx context.Context, dir, root string, re *regexp.Regexp, limit int) ([]map[string]any, error) {
	var matches []map[string]any

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if len(matches) >= limit {
			return filepath.SkipAll
		}

		data, err := os.ReadFile(path)
		if err != nil || !isText(data) {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		for i, line := range strings.Split(string(data), "\n") {
			if re.MatchString(line) {
				matches = append(matches, map[string]any{
					"file": rel,
					"line": i + 1,
					"text": strings.TrimSpace(line),
				})
				if len(matches) >= limit {
					return filepath.SkipAll
				}
			}
		}
		return nil
	})
	if err != nil && err != filepath.SkipAll {
		return nil, err
	}
	return matches, nil
}

// isText rejects files with NUL bytes in the first 1KB.
func isText(data []byte) bool {
	n := len(data)
	if n > 1024 {
		n = 1024
	}
	for _, b := range data[:n] {
		if b == 0 {
			return false
		}
	}
	return true
}
