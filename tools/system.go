package tools

import (
	"context"
	"encoding/json"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/hollowlabs/revenant/core"
)

// SystemTools returns host-inspection tools. Read-only.
func SystemTools(root string) []core.Tool {
	return []core.Tool{
		&funcTool{
			def: core.ToolDefinition{
				Name:        "system_info",
				Description: "Get host OS, architecture, CPU, and process information.",
				InputSchema: ObjectSchema(map[string]interface{}{}),
			},
			fn: func(ctx context.Context, input json.RawMessage) (*core.ToolResult, error) {
				hostname, _ := os.Hostname()
				wd, _ := os.Getwd()
				return success(map[string]any{
					"hostname":    hostname,
					"os":          runtime.GOOS,
					"arch":        runtime.GOARCH,
					"cpus":        runtime.NumCPU(),
					"go_version":  runtime.Version(),
					"pid":         os.Getpid(),
					"working_dir": wd,
					"workspace":   root,
					"time":        time.Now().UTC().Format(time.RFC3339),
				}), nil
			},
		},
		&funcTool{
			def: core.ToolDefinition{
				Name:        "disk_usage",
				Description: "Get disk usage for the workspace filesystem.",
				InputSchema: ObjectSchema(map[string]interface{}{}),
			},
			fn: func(ctx context.Context, input json.RawMessage) (*core.ToolResult, error) {
				var st unix.Statfs_t
				if err := unix.Statfs(root, &st); err != nil {
					return failure("statfs: %v", err), nil
				}
				total := st.Blocks * uint64(st.Bsize)
				free := st.Bavail * uint64(st.Bsize)
				used := total - free
				return success(map[string]any{
					"path":        root,
					"total_bytes": total,
					"used_bytes":  used,
					"free_bytes":  free,
				}), nil
			},
		},
		&funcTool{
			def: core.ToolDefinition{
				Name:        "memory_usage",
				Description: "Get process memory statistics.",
				InputSchema: ObjectSchema(map[string]interface{}{}),
			},
			fn: func(ctx context.Context, input json.RawMessage) (*core.ToolResult, error) {
				var m runtime.MemStats
				runtime.ReadMemStats(&m)
				return success(map[string]any{
					"heap_alloc_bytes": m.HeapAlloc,
					"heap_sys_bytes":   m.HeapSys,
					"total_alloc":      m.TotalAlloc,
					"num_gc":           m.NumGC,
					"goroutines":       runtime.NumGoroutine(),
				}), nil
			},
		},
		&funcTool{
			def: core.ToolDefinition{
				Name:        "list_processes",
				Description: "List running processes with PID, resident memory, and command name.",
				InputSchema: ObjectSchema(map[string]interface{}{
					"filter": StringProperty("Only include processes whose name contains this substring"),
					"limit":  IntegerProperty("Maximum processes to return (default 50)"),
				}),
			},
			fn: func(ctx context.Context, input json.RawMessage) (*core.ToolResult, error) {
				var args struct {
					Filter string `json:"filter"`
					Limit  int    `json:"limit"`
				}
				if len(input) > 0 {
					if err := json.Unmarshal(input, &args); err != nil {
						return failure("invalid input: %v", err), nil
					}
				}
				if args.Limit <= 0 {
					args.Limit = 50
				}
				procs, err := listProcesses(args.Filter, args.Limit)
				if err != nil {
					return failure("list processes: %v", err), nil
				}
				return success(map[string]any{"processes": procs, "count": len(procs)}), nil
			},
		},
		&funcTool{
			def: core.ToolDefinition{
				Name:        "env_info",
				Description: "List environment variable names visible to the process. Values are omitted for safety.",
				InputSchema: ObjectSchema(map[string]interface{}{
					"prefix": StringProperty("Only list names starting with this prefix"),
				}),
			},
			fn: func(ctx context.Context, input json.RawMessage) (*core.ToolResult, error) {
				var args struct {
					Prefix string `json:"prefix"`
				}
				if len(input) > 0 {
					if err := json.Unmarshal(input, &args); err != nil {
						return failure("invalid input: %v", err), nil
					}
				}
				var names []string
				for _, kv := range os.Environ() {
					name, _, _ := strings.Cut(kv, "=")
					if args.Prefix == "" || strings.HasPrefix(name, args.Prefix) {
						names = append(names, name)
					}
				}
				sort.Strings(names)
				return success(map[string]any{"names": names, "count": len(names)}), nil
			},
		},
	}
}

// listProcesses walks /proc. Unreadable entries (processes that exited or
// belong to another user) are skipped silently.
func listProcesses(filter string, limit int) ([]map[string]any, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, err
	}
	pageSize := int64(os.Getpagesize())

	var procs []map[string]any
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		comm, err := os.ReadFile("/proc/" + e.Name() + "/comm")
		if err != nil {
			continue
		}
		name := strings.TrimSpace(string(comm))
		if filter != "" && !strings.Contains(name, filter) {
			continue
		}
		var rss int64
		if statm, err := os.ReadFile("/proc/" + e.Name() + "/statm"); err == nil {
			if fields := strings.Fields(string(statm)); len(fields) >= 2 {
				if pages, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
					rss = pages * pageSize
				}
			}
		}
		procs = append(procs, map[string]any{
			"pid":       pid,
			"name":      name,
			"rss_bytes": rss,
		})
		if len(procs) >= limit {
			break
		}
	}
	return procs, nil
}
