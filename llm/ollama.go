package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	api "github.com/ollama/ollama/api"

	"github.com/hollowlabs/revenant/core"
)

type ollamaProvider struct {
	client *api.Client
	model  string
}

func newOllama(cfg Config) (*ollamaProvider, error) {
	host := cfg.BaseURL
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = "http://localhost:11434"
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("llm: parse ollama host %q: %w", host, err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	model := cfg.Model
	if model == "" {
		model = "llama3.2"
	}

	return &ollamaProvider{
		client: api.NewClient(u, &http.Client{Timeout: timeout}),
		model:  model,
	}, nil
}

func (p *ollamaProvider) Name() string { return "ollama" }

func (p *ollamaProvider) apiMessages(system string, messages []core.Message) []api.Message {
	msgs := make([]api.Message, 0, len(messages)+1)
	if system != "" {
		msgs = append(msgs, api.Message{Role: "system", Content: system})
	}
	for _, m := range messages {
		msgs = append(msgs, api.Message{Role: string(m.Role), Content: m.Content})
	}
	return msgs
}

func (p *ollamaProvider) Chat(ctx context.Context, system string, messages []core.Message) (*Reply, error) {
	stream := false
	req := &api.ChatRequest{
		Model:    p.model,
		Messages: p.apiMessages(system, messages),
		Stream:   &stream,
	}

	var reply Reply
	err := p.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		reply.Content += resp.Message.Content
		if resp.Done {
			reply.Model = resp.Model
			reply.PromptTokens = resp.PromptEvalCount
			reply.CompletionTokens = resp.EvalCount
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("llm: ollama chat: %w", err)
	}
	return &reply, nil
}

func (p *ollamaProvider) ChatStream(ctx context.Context, system string, messages []core.Message, onChunk func(string)) (*Reply, error) {
	req := &api.ChatRequest{
		Model:    p.model,
		Messages: p.apiMessages(system, messages),
	}

	var reply Reply
	err := p.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		if resp.Message.Content != "" {
			reply.Content += resp.Message.Content
			if onChunk != nil {
				onChunk(resp.Message.Content)
			}
		}
		if resp.Done {
			reply.Model = resp.Model
			reply.PromptTokens = resp.PromptEvalCount
			reply.CompletionTokens = resp.EvalCount
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("llm: ollama stream: %w", err)
	}
	return &reply, nil
}

func (p *ollamaProvider) HealthCheck(ctx context.Context) error {
	if err := p.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("llm: ollama health: %w", err)
	}
	return nil
}

func (p *ollamaProvider) ListModels(ctx context.Context) ([]string, error) {
	resp, err := p.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("llm: ollama list models: %w", err)
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	return names, nil
}
