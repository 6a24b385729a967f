package core

import (
	"context"
	"encoding/json"
)

// ToolDefinition describes a tool to the model and to API clients.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// ToolParams carries one tool invocation.
type ToolParams struct {
	// Input is the raw JSON arguments for the tool.
	Input json.RawMessage

	// SessionID identifies the requesting session, for logging.
	SessionID string
}

// ToolResult is the outcome of a tool invocation. Execute returns an error
// only for infrastructure failures; a tool that ran but failed reports
// Success=false with Error set.
type ToolResult struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Tool is the contract every tool implements.
type Tool interface {
	Definition() ToolDefinition
	Execute(ctx context.Context, params *ToolParams) (*ToolResult, error)
}
