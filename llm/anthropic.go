package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hollowlabs/revenant/core"
)

type anthropicProvider struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

func newAnthropic(cfg Config) (*anthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm: anthropic provider requires an API key")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_20250514)
	}

	return &anthropicProvider{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

func (p *anthropicProvider) Name() string { return "anthropic" }

func (p *anthropicProvider) params(system string, messages []core.Message) anthropic.MessageNewParams {
	apiMsgs := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case core.RoleAssistant:
			apiMsgs = append(apiMsgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		case core.RoleSystem:
			// The API takes system text out of band.
			system += "\n\n" + m.Content
		default:
			apiMsgs = append(apiMsgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: p.maxTokens,
		Messages:  apiMsgs,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	return params
}

func (p *anthropicProvider) Chat(ctx context.Context, system string, messages []core.Message) (*Reply, error) {
	resp, err := p.client.Messages.New(ctx, p.params(system, messages))
	if err != nil {
		return nil, fmt.Errorf("llm: anthropic completion: %w", err)
	}
	return p.reply(resp), nil
}

func (p *anthropicProvider) ChatStream(ctx context.Context, system string, messages []core.Message, onChunk func(string)) (*Reply, error) {
	stream := p.client.Messages.NewStreaming(ctx, p.params(system, messages))
	defer stream.Close()

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			continue
		}
		switch evt := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := evt.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" && onChunk != nil {
				onChunk(delta.Text)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("llm: anthropic stream: %w", err)
	}
	return p.reply(&message), nil
}

func (p *anthropicProvider) reply(resp *anthropic.Message) *Reply {
	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	return &Reply{
		Content:          content,
		Model:            string(resp.Model),
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
	}
}

func (p *anthropicProvider) HealthCheck(ctx context.Context) error {
	if _, err := p.ListModels(ctx); err != nil {
		return fmt.Errorf("llm: anthropic health: %w", err)
	}
	return nil
}

func (p *anthropicProvider) ListModels(ctx context.Context) ([]string, error) {
	page, err := p.client.Models.List(ctx, anthropic.ModelListParams{})
	if err != nil {
		return nil, fmt.Errorf("llm: anthropic list models: %w", err)
	}
	names := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		names = append(names, m.ID)
	}
	return names, nil
}
