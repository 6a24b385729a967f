package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hollowlabs/revenant/core"
)

// openaiProvider speaks the OpenAI chat-completions dialect. With BaseURL
// set it serves llama.cpp, vLLM, and other compatible servers; those accept
// any non-empty API key.
type openaiProvider struct {
	client    *openai.Client
	model     string
	maxTokens int
}

func newOpenAI(cfg Config) (*openaiProvider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		if cfg.BaseURL == "" {
			return nil, errors.New("llm: openai provider requires an API key or a base URL")
		}
		// Local servers validate presence, not value.
		apiKey = "not-needed"
	}

	config := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = "local-model"
	}

	return &openaiProvider{
		client:    openai.NewClientWithConfig(config),
		model:     model,
		maxTokens: int(cfg.MaxTokens),
	}, nil
}

func (p *openaiProvider) Name() string { return "openai" }

func (p *openaiProvider) request(system string, messages []core.Message) openai.ChatCompletionRequest {
	reqMsgs := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		reqMsgs = append(reqMsgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, m := range messages {
		reqMsgs = append(reqMsgs, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return openai.ChatCompletionRequest{
		Model:     p.model,
		Messages:  reqMsgs,
		MaxTokens: p.maxTokens,
	}
}

func (p *openaiProvider) Chat(ctx context.Context, system string, messages []core.Message) (*Reply, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.request(system, messages))
	if err != nil {
		return nil, fmt.Errorf("llm: openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("llm: openai returned no choices")
	}
	return &Reply{
		Content:          resp.Choices[0].Message.Content,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func (p *openaiProvider) ChatStream(ctx context.Context, system string, messages []core.Message, onChunk func(string)) (*Reply, error) {
	req := p.request(system, messages)
	req.Stream = true

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("llm: openai stream: %w", err)
	}
	defer stream.Close()

	var content string
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("llm: openai stream recv: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta != "" {
			content += delta
			if onChunk != nil {
				onChunk(delta)
			}
		}
	}
	return &Reply{Content: content, Model: p.model}, nil
}

func (p *openaiProvider) HealthCheck(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return fmt.Errorf("llm: openai health: %w", err)
	}
	return nil
}

func (p *openaiProvider) ListModels(ctx context.Context) ([]string, error) {
	resp, err := p.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("llm: openai list models: %w", err)
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.ID)
	}
	return names, nil
}
