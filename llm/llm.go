// Package llm abstracts chat-completion backends behind a single Provider
// interface. Three dialects are supported: OpenAI-compatible servers
// (llama.cpp, vLLM, OpenAI itself), Ollama, and Anthropic.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/hollowlabs/revenant/core"
)

// Reply is a completed chat response.
type Reply struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Provider is a chat-completion backend.
type Provider interface {
	// Name identifies the dialect ("openai", "ollama", "anthropic").
	Name() string

	// Chat runs a full completion over the system prompt and messages.
	Chat(ctx context.Context, system string, messages []core.Message) (*Reply, error)

	// ChatStream streams the completion, invoking onChunk for each text
	// fragment, and returns the accumulated reply.
	ChatStream(ctx context.Context, system string, messages []core.Message, onChunk func(chunk string)) (*Reply, error)

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error

	// ListModels returns the model names the backend offers.
	ListModels(ctx context.Context) ([]string, error)
}

// Config selects and configures a provider.
type Config struct {
	// Provider is the dialect: "openai", "ollama", or "anthropic".
	Provider string

	// Model is the model name passed to the backend.
	Model string

	// BaseURL overrides the backend endpoint. For the openai dialect this
	// is how llama.cpp and other compatible servers are reached.
	BaseURL string

	// APIKey authenticates hosted backends. Local servers ignore it.
	APIKey string

	// MaxTokens caps the response length. Zero means 4096.
	MaxTokens int64

	// Timeout bounds each request.
	Timeout time.Duration
}

// New creates the provider selected by cfg.Provider.
func New(cfg Config) (Provider, error) {
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}
	switch cfg.Provider {
	case "openai", "llamacpp", "openai-compatible":
		return newOpenAI(cfg)
	case "ollama":
		return newOllama(cfg)
	case "anthropic":
		return newAnthropic(cfg)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
