// Package engine orchestrates a query: persona and memory context go into
// the system prompt, the provider produces the answer, and the exchange is
// recorded back into memory. The engine adds no reasoning of its own.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hollowlabs/revenant/core"
	"github.com/hollowlabs/revenant/llm"
	"github.com/hollowlabs/revenant/memory"
	"github.com/hollowlabs/revenant/tools"
)

// DefaultPersona is the system prompt used when none is configured.
const DefaultPersona = `You are Revenant, a local AI assistant with a persistent memory of past
interactions and a set of workspace tools.

Answer directly and concisely. When relevant past interactions are provided
below, use them; do not mention the memory system itself. Tools listed below
are executed by the user through the API, not by you; reference them by
name when suggesting an action.`

// Engine runs agent queries against a provider.
type Engine struct {
	provider llm.Provider
	registry *tools.Registry
	memory   *memory.Manager
	persona  string
}

// Option configures the engine.
type Option func(*Engine)

// WithMemory attaches a memory manager. Without one the engine runs
// stateless.
func WithMemory(m *memory.Manager) Option {
	return func(e *Engine) { e.memory = m }
}

// WithRegistry attaches a tool registry for catalog injection and direct
// execution.
func WithRegistry(r *tools.Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithPersona overrides the default persona text.
func WithPersona(persona string) Option {
	return func(e *Engine) { e.persona = persona }
}

// New creates an engine over the given provider.
func New(provider llm.Provider, opts ...Option) *Engine {
	e := &Engine{
		provider: provider,
		persona:  DefaultPersona,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Provider returns the engine's LLM backend.
func (e *Engine) Provider() llm.Provider { return e.provider }

// Registry returns the engine's tool registry, or nil.
func (e *Engine) Registry() *tools.Registry { return e.registry }

// Memory returns the engine's memory manager, or nil.
func (e *Engine) Memory() *memory.Manager { return e.memory }

// Query answers a request with a full (non-streaming) completion.
func (e *Engine) Query(ctx context.Context, req *core.AgentRequest) (*core.AgentResponse, error) {
	return e.run(ctx, req, nil)
}

// QueryStream answers a request, invoking onChunk for each text fragment.
func (e *Engine) QueryStream(ctx context.Context, req *core.AgentRequest, onChunk func(string)) (*core.AgentResponse, error) {
	return e.run(ctx, req, onChunk)
}

func (e *Engine) run(ctx context.Context, req *core.AgentRequest, onChunk func(string)) (*core.AgentResponse, error) {
	if req == nil || strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("engine: query is required")
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	system, memoriesUsed := e.systemPrompt(ctx, req.Query)

	messages := make([]core.Message, 0, len(req.History)+1)
	messages = append(messages, req.History...)
	messages = append(messages, core.Message{Role: core.RoleUser, Content: req.Query})

	start := time.Now()
	var reply *llm.Reply
	var err error
	if onChunk != nil {
		reply, err = e.provider.ChatStream(ctx, system, messages, onChunk)
	} else {
		reply, err = e.provider.Chat(ctx, system, messages)
	}
	if err != nil {
		return nil, fmt.Errorf("engine: provider %s: %w", e.provider.Name(), err)
	}
	elapsed := time.Since(start)

	// Memory failures never abort the run.
	if e.memory != nil {
		if err := e.memory.RecordExchange(ctx, sessionID, req.Query, reply.Content); err != nil {
			log.Printf("[ENGINE] Failed to record exchange: %v", err)
		}
	}

	model := reply.Model
	if model == "" {
		model = "unknown"
	}
	return &core.AgentResponse{
		Response:     reply.Content,
		SessionID:    sessionID,
		Provider:     e.provider.Name(),
		Model:        model,
		MemoriesUsed: memoriesUsed,
		ElapsedMs:    elapsed.Milliseconds(),
	}, nil
}

// systemPrompt assembles persona, memory enrichment, and the tool catalog.
func (e *Engine) systemPrompt(ctx context.Context, query string) (string, int) {
	parts := []string{e.persona}
	memoriesUsed := 0

	if e.memory != nil {
		enrichment, count, err := e.memory.Retrieve(ctx, query)
		if err != nil {
			log.Printf("[ENGINE] Memory retrieval failed: %v", err)
		} else if enrichment != "" {
			parts = append(parts, enrichment)
			memoriesUsed = count
		}
	}

	if e.registry != nil {
		if catalog := toolCatalog(e.registry); catalog != "" {
			parts = append(parts, catalog)
		}
	}
	return strings.Join(parts, "\n\n"), memoriesUsed
}

func toolCatalog(r *tools.Registry) string {
	defs := r.Definitions()
	if len(defs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("=== AVAILABLE TOOLS ===")
	for _, d := range defs {
		b.WriteString(fmt.Sprintf("\n- %s: %s", d.Name, d.Description))
	}
	return b.String()
}

// ExecuteTool runs a registered tool directly, bypassing the model.
func (e *Engine) ExecuteTool(ctx context.Context, name string, input json.RawMessage) (*core.ToolResult, error) {
	if e.registry == nil {
		return nil, fmt.Errorf("engine: no tool registry configured")
	}
	return e.registry.Execute(ctx, name, input)
}

// HealthCheck reports provider reachability.
func (e *Engine) HealthCheck(ctx context.Context) error {
	return e.provider.HealthCheck(ctx)
}
