// Package core holds the shared types that flow between the server, the
// engine, the LLM providers, and the tools. It has no dependencies on any
// of them.
package core

// Role identifies a chat message author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation turn in provider-neutral form.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// AgentRequest is a query submitted to the agent.
type AgentRequest struct {
	// Query is the user's message. Required.
	Query string `json:"query"`

	// SessionID groups exchanges for memory recording. Empty means the
	// engine assigns one.
	SessionID string `json:"session_id,omitempty"`

	// History carries prior turns the caller wants replayed. Optional.
	History []Message `json:"history,omitempty"`
}

// AgentResponse is the agent's answer to a query.
type AgentResponse struct {
	Response     string `json:"response"`
	SessionID    string `json:"session_id"`
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	MemoriesUsed int    `json:"memories_used"`
	ElapsedMs    int64  `json:"elapsed_ms"`
}
