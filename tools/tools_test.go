package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	root := t.TempDir()
	r := NewRegistry()
	RegisterBuiltins(r, root)
	return r, root
}

func execute(t *testing.T, r *Registry, name string, args map[string]any) map[string]any {
	t.Helper()
	input, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	result, err := r.Execute(context.Background(), name, input)
	if err != nil {
		t.Fatalf("%s errored: %v", name, err)
	}
	if !result.Success {
		t.Fatalf("%s failed: %s", name, result.Error)
	}
	data, ok := result.Data.(map[string]any)
	if !ok {
		t.Fatalf("%s returned %T, want map", name, result.Data)
	}
	return data
}

func TestResolvePath(t *testing.T) {
	root := t.TempDir()

	if _, err := resolvePath(root, "../escape.txt"); err == nil {
		t.Error("expected traversal rejection for ../escape.txt")
	}
	if _, err := resolvePath(root, "a/../../escape.txt"); err == nil {
		t.Error("expected traversal rejection for nested ..")
	}

	// Absolute paths are reinterpreted inside the workspace.
	p, err := resolvePath(root, "/etc/passwd")
	if err != nil {
		t.Fatalf("absolute path rejected: %v", err)
	}
	if !strings.HasPrefix(p, root) {
		t.Errorf("absolute path resolved outside workspace: %s", p)
	}

	p, err = resolvePath(root, "sub/file.txt")
	if err != nil {
		t.Fatalf("relative path rejected: %v", err)
	}
	if p != filepath.Join(root, "sub", "file.txt") {
		t.Errorf("resolved to %s", p)
	}
}

func TestFSWriteReadRoundTrip(t *testing.T) {
	r, _ := newTestRegistry(t)

	execute(t, r, "write_file", map[string]any{
		"path":    "notes/hello.txt",
		"content": "hello tools",
	})
	data := execute(t, r, "read_file", map[string]any{"path": "notes/hello.txt"})
	if data["content"] != "hello tools" {
		t.Errorf("content = %v", data["content"])
	}

	listing := execute(t, r, "list_dir", map[string]any{"path": "notes"})
	if listing["count"].(int) != 1 {
		t.Errorf("count = %v, want 1", listing["count"])
	}

	info := execute(t, r, "file_info", map[string]any{"path": "notes/hello.txt"})
	if info["is_dir"] != false {
		t.Errorf("is_dir = %v", info["is_dir"])
	}
}

func TestFSTraversalBlocked(t *testing.T) {
	r, _ := newTestRegistry(t)

	input, _ := json.Marshal(map[string]any{"path": "../../etc/passwd"})
	result, err := r.Execute(context.Background(), "read_file", input)
	if err != nil {
		t.Fatalf("Execute errored: %v", err)
	}
	if result.Success {
		t.Fatal("traversal read succeeded")
	}
	if !strings.Contains(result.Error, "escapes") {
		t.Errorf("error = %q, want traversal message", result.Error)
	}
}

func TestFSCopyMoveDelete(t *testing.T) {
	r, root := newTestRegistry(t)

	execute(t, r, "write_file", map[string]any{"path": "a.txt", "content": "data"})
	execute(t, r, "copy_path", map[string]any{"source": "a.txt", "destination": "b.txt"})
	execute(t, r, "move_path", map[string]any{"source": "b.txt", "destination": "sub/c.txt"})

	if _, err := os.Stat(filepath.Join(root, "sub", "c.txt")); err != nil {
		t.Fatalf("moved file missing: %v", err)
	}

	execute(t, r, "delete_path", map[string]any{"path": "a.txt"})
	if _, err := os.Stat(filepath.Join(root, "a.txt")); !os.IsNotExist(err) {
		t.Errorf("a.txt still present after delete")
	}
}

func TestGrepFiles(t *testing.T) {
	r, _ := newTestRegistry(t)

	execute(t, r, "write_file", map[string]any{"path": "x.go", "content": "package main\nfunc TargetFunc() {}\n"})
	execute(t, r, "write_file", map[string]any{"path": "y.go", "content": "package main\n"})

	data := execute(t, r, "grep_files", map[string]any{"pattern": "targetfunc"})
	if data["count"].(int) != 1 {
		t.Errorf("count = %v, want 1", data["count"])
	}
}

func TestRunCommand(t *testing.T) {
	r, _ := newTestRegistry(t)

	data := execute(t, r, "run_command", map[string]any{"command": "echo hello"})
	stdout := data["stdout"].(string)
	if strings.TrimSpace(stdout) != "hello" {
		t.Errorf("stdout = %q", stdout)
	}
	if data["exit_code"].(int) != 0 {
		t.Errorf("exit_code = %v", data["exit_code"])
	}
}

func TestRunCommandNonZeroExit(t *testing.T) {
	r, _ := newTestRegistry(t)

	input, _ := json.Marshal(map[string]any{"command": "exit 3"})
	result, err := r.Execute(context.Background(), "run_command", input)
	if err != nil {
		t.Fatalf("Execute errored: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure for exit 3")
	}
	data := result.Data.(map[string]any)
	if data["exit_code"].(int) != 3 {
		t.Errorf("exit_code = %v, want 3", data["exit_code"])
	}
}

func TestGitOutsideRepoFails(t *testing.T) {
	r, _ := newTestRegistry(t)

	input, _ := json.Marshal(map[string]any{})
	result, err := r.Execute(context.Background(), "git_status", input)
	if err != nil {
		t.Fatalf("Execute errored: %v", err)
	}
	if result.Success {
		t.Fatal("git_status succeeded outside a repository")
	}
}

func TestSearchText(t *testing.T) {
	r, _ := newTestRegistry(t)

	execute(t, r, "write_file", map[string]any{"path": "code.go", "content": "package main\nfunc HandleRequest() {}\n"})

	data := execute(t, r, "search_text", map[string]any{"pattern": `func\s+Handle\w+`})
	if data["count"].(int) != 1 {
		t.Errorf("count = %v, want 1", data["count"])
	}
}

func TestFindFiles(t *testing.T) {
	r, _ := newTestRegistry(t)

	execute(t, r, "write_file", map[string]any{"path": "main.go", "content": "package main\n"})
	execute(t, r, "write_file", map[string]any{"path": "notes.txt", "content": "text\n"})

	data := execute(t, r, "find_files", map[string]any{"pattern": "*.go"})
	files := data["files"].([]string)
	if len(files) != 1 || files[0] != "main.go" {
		t.Errorf("files = %v, want [main.go]", files)
	}
}

func TestFindSymbol(t *testing.T) {
	r, _ := newTestRegistry(t)

	execute(t, r, "write_file", map[string]any{
		"path":    "svc.go",
		"content": "package svc\n\ntype Worker struct{}\n\nfunc (w *Worker) Process() {}\n",
	})

	data := execute(t, r, "find_symbol", map[string]any{"name": "Worker"})
	if data["count"].(int) < 1 {
		t.Errorf("count = %v, want >= 1", data["count"])
	}
}

func TestSystemInfo(t *testing.T) {
	r, _ := newTestRegistry(t)

	data := execute(t, r, "system_info", map[string]any{})
	if data["os"] == "" || data["cpus"].(int) < 1 {
		t.Errorf("unexpected system info: %v", data)
	}

	disk := execute(t, r, "disk_usage", map[string]any{})
	if disk["total_bytes"].(uint64) == 0 {
		t.Errorf("total_bytes = 0")
	}

	mem := execute(t, r, "memory_usage", map[string]any{})
	if mem["goroutines"].(int) < 1 {
		t.Errorf("goroutines = %v", mem["goroutines"])
	}
}

func TestListProcesses(t *testing.T) {
	r, _ := newTestRegistry(t)

	// The test process itself is always visible in /proc.
	data := execute(t, r, "list_processes", map[string]any{"limit": 5})
	if data["count"].(int) < 1 {
		t.Fatalf("count = %v, want >= 1", data["count"])
	}
	procs := data["processes"].([]map[string]any)
	if len(procs) > 5 {
		t.Errorf("got %d processes, limit was 5", len(procs))
	}
	if procs[0]["pid"].(int) <= 0 {
		t.Errorf("pid = %v", procs[0]["pid"])
	}
}

func TestUnknownTool(t *testing.T) {
	r, _ := newTestRegistry(t)

	result, err := r.Execute(context.Background(), "teleport", nil)
	if err != nil {
		t.Fatalf("Execute errored: %v", err)
	}
	if result.Success {
		t.Fatal("unknown tool reported success")
	}
}

func TestDefinitionsSorted(t *testing.T) {
	r, _ := newTestRegistry(t)

	defs := r.Definitions()
	if len(defs) == 0 {
		t.Fatal("no definitions registered")
	}
	for i := 1; i < len(defs); i++ {
		if defs[i-1].Name > defs[i].Name {
			t.Errorf("definitions not sorted at %d: %s > %s", i, defs[i-1].Name, defs[i].Name)
		}
	}
}

func TestSchemaHelpers(t *testing.T) {
	schema := ObjectSchema(map[string]interface{}{
		"path":  StringProperty("a path"),
		"mode":  StringEnumProperty("a mode", "fast", "slow"),
		"count": IntegerProperty("a count"),
		"tags":  ArrayProperty("some tags", StringProperty("one tag")),
	}, "path")

	if schema["type"] != "object" {
		t.Errorf("type = %v", schema["type"])
	}
	required, ok := schema["required"].([]string)
	if !ok || len(required) != 1 || required[0] != "path" {
		t.Errorf("required = %v", schema["required"])
	}

	props := schema["properties"].(map[string]interface{})
	mode := props["mode"].(map[string]interface{})
	if enum, ok := mode["enum"].([]string); !ok || len(enum) != 2 {
		t.Errorf("enum = %v", mode["enum"])
	}
	tags := props["tags"].(map[string]interface{})
	if items, ok := tags["items"].(map[string]interface{}); !ok || items["type"] != "string" {
		t.Errorf("items = %v", tags["items"])
	}

	// No required names means no required key at all.
	if _, ok := ObjectSchema(map[string]interface{}{})["required"]; ok {
		t.Error("empty required list should be omitted")
	}
}
