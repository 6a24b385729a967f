package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hollowlabs/revenant/core"
)

// maxReadBytes caps read_file output so a single tool call cannot blow up
// the model context.
const maxReadBytes = 1 << 20

// FSTools returns the filesystem tools, all rooted at root.
func FSTools(root string) []core.Tool {
	return []core.Tool{
		&funcTool{
			def: core.ToolDefinition{
				Name:        "read_file",
				Description: "Read a file's contents from the workspace.",
				InputSchema: ObjectSchema(map[string]interface{}{
					"path": StringProperty("Workspace-relative file path"),
				}, "path"),
			},
			fn: func(ctx context.Context, input json.RawMessage) (*core.ToolResult, error) {
				var args struct {
					Path string `json:"path"`
				}
				if err := json.Unmarshal(input, &args); err != nil {
					return failure("invalid input: %v", err), nil
				}
				path, err := resolvePath(root, args.Path)
				if err != nil {
					return failure("%v", err), nil
				}
				info, err := os.Stat(path)
				if err != nil {
					return failure("stat: %v", err), nil
				}
				if info.Size() > maxReadBytes {
					return failure("file is %d bytes, limit is %d", info.Size(), maxReadBytes), nil
				}
				data, err := os.ReadFile(path)
				if err != nil {
					return failure("read: %v", err), nil
				}
				return success(map[string]any{
					"path":    args.Path,
					"content": string(data),
					"size":    info.Size(),
				}), nil
			},
		},
		&funcTool{
			def: core.ToolDefinition{
				Name:        "write_file",
				Description: "Write content to a file in the workspace, creating parent directories as needed.",
				InputSchema: ObjectSchema(map[string]interface{}{
					"path":    StringProperty("Workspace-relative file path"),
					"content": StringProperty("File content to write"),
					"append":  BooleanProperty("Append instead of overwrite"),
				}, "path", "content"),
			},
			fn: func(ctx context.Context, input json.RawMessage) (*core.ToolResult, error) {
				var args struct {
					Path    string `json:"path"`
					Content string `json:"content"`
					Append  bool   `json:"append"`
				}
				if err := json.Unmarshal(input, &args); err != nil {
					return failure("invalid input: %v", err), nil
				}
				path, err := resolvePath(root, args.Path)
				if err != nil {
					return failure("%v", err), nil
				}
				if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					return failure("mkdir: %v", err), nil
				}
				flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
				if args.Append {
					flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
				}
				f, err := os.OpenFile(path, flags, 0o644)
				if err != nil {
					return failure("open: %v", err), nil
				}
				n, err := f.WriteString(args.Content)
				if cerr := f.Close(); err == nil {
					err = cerr
				}
				if err != nil {
					return failure("write: %v", err), nil
				}
				return success(map[string]any{"path": args.Path, "bytes_written": n}), nil
			},
		},
		&funcTool{
			def: core.ToolDefinition{
				Name:        "list_dir",
				Description: "List a workspace directory's entries.",
				InputSchema: ObjectSchema(map[string]interface{}{
					"path": StringProperty("Workspace-relative directory path (default: workspace root)"),
				}),
			},
			fn: func(ctx context.Context, input json.RawMessage) (*core.ToolResult, error) {
				var args struct {
					Path string `json:"path"`
				}
				if len(input) > 0 {
					if err := json.Unmarshal(input, &args); err != nil {
						return failure("invalid input: %v", err), nil
					}
				}
				path, err := resolvePath(root, args.Path)
				if err != nil {
					return failure("%v", err), nil
				}
				entries, err := os.ReadDir(path)
				if err != nil {
					return failure("read dir: %v", err), nil
				}
				listing := make([]map[string]any, 0, len(entries))
				for _, e := range entries {
					item := map[string]any{"name": e.Name(), "is_dir": e.IsDir()}
					if info, err := e.Info(); err == nil {
						item["size"] = info.Size()
						item["modified"] = info.ModTime().UTC().Format("2006-01-02T15:04:05Z")
					}
					listing = append(listing, item)
				}
				return success(map[string]any{"path": args.Path, "entries": listing, "count": len(listing)}), nil
			},
		},
		&funcTool{
			def: core.ToolDefinition{
				Name:        "file_info",
				Description: "Get metadata for a workspace file or directory.",
				InputSchema: ObjectSchema(map[string]interface{}{
					"path": StringProperty("Workspace-relative path"),
				}, "path"),
			},
			fn: func(ctx context.Context, input json.RawMessage) (*core.ToolResult, error) {
				var args struct {
					Path string `json:"path"`
				}
				if err := json.Unmarshal(input, &args); err != nil {
					return failure("invalid input: %v", err), nil
				}
				path, err := resolvePath(root, args.Path)
				if err != nil {
					return failure("%v", err), nil
				}
				info, err := os.Stat(path)
				if err != nil {
					return failure("stat: %v", err), nil
				}
				return success(map[string]any{
					"path":     args.Path,
					"size":     info.Size(),
					"is_dir":   info.IsDir(),
					"mode":     info.Mode().String(),
					"modified": info.ModTime().UTC().Format("2006-01-02T15:04:05Z"),
				}), nil
			},
		},
		&funcTool{
			def: core.ToolDefinition{
				Name:        "delete_path",
				Description: "Delete a workspace file, or a directory when recursive is set.",
				InputSchema: ObjectSchema(map[string]interface{}{
					"path":      StringProperty("Workspace-relative path"),
					"recursive": BooleanProperty("Delete directories and their contents"),
				}, "path"),
			},
			fn: func(ctx context.Context, input json.RawMessage) (*core.ToolResult, error) {
				var args struct {
					Path      string `json:"path"`
					Recursive bool   `json:"recursive"`
				}
				if err := json.Unmarshal(input, &args); err != nil {
					return failure("invalid input: %v", err), nil
				}
				path, err := resolvePath(root, args.Path)
				if err != nil {
					return failure("%v", err), nil
				}
				if path == root {
					return failure("refusing to delete the workspace root"), nil
				}
				if args.Recursive {
					err = os.RemoveAll(path)
				} else {
					err = os.Remove(path)
				}
				if err != nil {
					return failure("delete: %v", err), nil
				}
				return success(map[string]any{"path": args.Path, "deleted": true}), nil
			},
		},
		&funcTool{
			def: core.ToolDefinition{
				Name:        "make_dir",
				Description: "Create a workspace directory, including parents.",
				InputSchema: ObjectSchema(map[string]interface{}{
					"path": StringProperty("Workspace-relative directory path"),
				}, "path"),
			},
			fn: func(ctx context.Context, input json.RawMessage) (*core.ToolResult, error) {
				var args struct {
					Path string `json:"path"`
				}
				if err := json.Unmarshal(input, &args); err != nil {
					return failure("invalid input: %v", err), nil
				}
				path, err := resolvePath(root, args.Path)
				if err != nil {
					return failure("%v", err), nil
				}
				if err := os.MkdirAll(path, 0o755); err != nil {
					return failure("mkdir: %v", err), nil
				}
				return success(map[string]any{"path": args.Path, "created": true}), nil
			},
		},
		&funcTool{
			def: core.ToolDefinition{
				Name:        "copy_path",
				Description: "Copy a file within the workspace.",
				InputSchema: ObjectSchema(map[string]interface{}{
					"source":      StringProperty("Workspace-relative source file"),
					"destination": StringProperty("Workspace-relative destination file"),
				}, "source", "destination"),
			},
			fn: func(ctx context.Context, input json.RawMessage) (*core.ToolResult, error) {
				var args struct {
					Source      string `json:"source"`
					Destination string `json:"destination"`
				}
				if err := json.Unmarshal(input, &args); err != nil {
					return failure("invalid input: %v", err), nil
				}
				src, err := resolvePath(root, args.Source)
				if err != nil {
					return failure("%v", err), nil
				}
				dst, err := resolvePath(root, args.Destination)
				if err != nil {
					return failure("%v", err), nil
				}
				if err := copyFileContents(src, dst); err != nil {
					return failure("copy: %v", err), nil
				}
				return success(map[string]any{"source": args.Source, "destination": args.Destination}), nil
			},
		},
		&funcTool{
			def: core.ToolDefinition{
				Name:        "move_path",
				Description: "Move or rename a file or directory within the workspace.",
				InputSchema: ObjectSchema(map[string]interface{}{
					"source":      StringProperty("Workspace-relative source path"),
					"destination": StringProperty("Workspace-relative destination path"),
				}, "source", "destination"),
			},
			fn: func(ctx context.Context, input json.RawMessage) (*core.ToolResult, error) {
				var args struct {
					Source      string `json:"source"`
					Destination string `json:"destination"`
				}
				if err := json.Unmarshal(input, &args); err != nil {
					return failure("invalid input: %v", err), nil
				}
				src, err := resolvePath(root, args.Source)
				if err != nil {
					return failure("%v", err), nil
				}
				dst, err := resolvePath(root, args.Destination)
				if err != nil {
					return failure("%v", err), nil
				}
				if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
					return failure("mkdir: %v", err), nil
				}
				if err := os.Rename(src, dst); err != nil {
					return failure("move: %v", err), nil
				}
				return success(map[string]any{"source": args.Source, "destination": args.Destination}), nil
			},
		},
		&funcTool{
			def: core.ToolDefinition{
				Name:        "grep_files",
				Description: "Search workspace files for a substring, returning matching lines.",
				InputSchema: ObjectSchema(map[string]interface{}{
					"pattern":     StringProperty("Substring to search for (case-insensitive)"),
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
				if args.Pattern == "" {
					return failure("pattern is required"), nil
				}
				dir, err := resolvePath(root, args.Path)
				if err != nil {
					return failure("%v", err), nil
				}
				limit := args.MaxMatches
				if limit <= 0 {
					limit = 100
				}
				matches, err := grepDir(ctx, dir, root, args.Pattern, limit)
				if err != nil {
					return failure("search: %v", err), nil
				}
				return success(map[string]any{"pattern": args.Pattern, "matches": matches, "count": len(matches)}), nil
			},
		},
	}
}

func copyFileContents(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// grepDir scans regular files under dir for pattern, case-insensitively.
// Hidden directories are skipped.
func grepDir(ctx context.Context, dir, root, pattern string, limit int) ([]map[string]any, error) {
	needle := strings.ToLower(pattern)
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

		f, err := os.Open(path)
		if err != nil {
			return nil
		}
		defer f.Close()

		rel, _ := filepath.Rel(root, path)
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := scanner.Text()
			if strings.Contains(strings.ToLower(line), needle) {
				matches = append(matches, map[string]any{
					"file": rel,
					"line": lineNo,
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
