// Package tools provides the tool registry and the built-in sandboxed
// tools: filesystem, git, command execution, code search, and system info.
// Every built-in is rooted at a configured workspace directory and rejects
// paths that escape it.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/hollowlabs/revenant/core"
)

// Registry holds the tools available to the engine.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]core.Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]core.Tool)}
}

// Register adds tools to the registry. Re-registering a name replaces it.
func (r *Registry) Register(tools ...core.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tools {
		r.tools[t.Definition().Name] = t
	}
}

// Get returns the named tool.
func (r *Registry) Get(name string) (core.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns all tool definitions, sorted by name.
func (r *Registry) Definitions() []core.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]core.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Execute runs the named tool. Unknown names are a tool failure, not an
// infrastructure error, so the caller can surface them to the model.
func (r *Registry) Execute(ctx context.Context, name string, input json.RawMessage) (*core.ToolResult, error) {
	tool, ok := r.Get(name)
	if !ok {
		return &core.ToolResult{Success: false, Error: fmt.Sprintf("unknown tool: %s", name)}, nil
	}

	log.Printf("[TOOLS] Executing %s", name)
	result, err := tool.Execute(ctx, &core.ToolParams{Input: input})
	if err != nil {
		log.Printf("[TOOLS] %s failed: %v", name, err)
		return nil, err
	}
	if result != nil && !result.Success {
		log.Printf("[TOOLS] %s returned error: %s", name, result.Error)
	}
	return result, nil
}

// RegisterBuiltins registers every built-in tool family rooted at root,
// skipping the named families ("fs", "git", "exec", "search", "system").
func RegisterBuiltins(r *Registry, root string, skip ...string) {
	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[s] = true
	}
	if !skipped["fs"] {
		r.Register(FSTools(root)...)
	}
	if !skipped["git"] {
		r.Register(GitTools(root)...)
	}
	if !skipped["exec"] {
		r.Register(ExecTools(root)...)
	}
	if !skipped["search"] {
		r.Register(SearchTools(root)...)
	}
	if !skipped["system"] {
		r.Register(SystemTools(root)...)
	}
}

// funcTool adapts a function to the core.Tool interface. All built-ins use
// it; custom tools can implement core.Tool directly.
type funcTool struct {
	def core.ToolDefinition
	fn  func(ctx context.Context, input json.RawMessage) (*core.ToolResult, error)
}

func (t *funcTool) Definition() core.ToolDefinition { return t.def }

func (t *funcTool) Execute(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
	return t.fn(ctx, params.Input)
}

// failure builds a tool-level failure result.
func failure(format string, args ...any) *core.ToolResult {
	return &core.ToolResult{Success: false, Error: fmt.Sprintf(format, args...)}
}

// success builds a successful result with structured data.
func success(data map[string]any) *core.ToolResult {
	return &core.ToolResult{Success: true, Data: data}
}
