package ai

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicModel     = string(anthropic.ModelClaudeSonnet4_5_20250929)
	defaultAnthropicMaxTokens = 1024 // MaxTokens is required by the Anthropic API
)

// AnthropicProvider implements Provider over the Anthropic messages API.
// Incremental text arrives as content_block_delta events with delta.text.
type AnthropicProvider struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicProvider creates an Anthropic provider. The API key is
// required; baseURL and model fall back to defaults when empty.
func NewAnthropicProvider(baseURL, apiKey, model string) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, ErrNoCredential
	}
	if model == "" {
		model = defaultAnthropicModel
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	client := anthropic.NewClient(opts...)
	return &AnthropicProvider{
		client: &client,
		model:  model,
	}, nil
}

// Model returns the configured model name.
func (p *AnthropicProvider) Model() string {
	return p.model
}

// Stream implements Provider.Stream.
func (p *AnthropicProvider) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	messages, system := convertToAnthropicMessages(req.Messages)

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(modelOrDefault(req.Model, p.model)),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if len(system) > 0 {
		params.System = system
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)

		stream := p.client.Messages.NewStreaming(ctx, params)
		for stream.Next() {
			event := stream.Current()
			switch eventVariant := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				switch deltaVariant := eventVariant.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					select {
					case out <- Chunk{Content: deltaVariant.Text}:
					case <-ctx.Done():
						return
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			out <- Chunk{Err: fmt.Errorf("anthropic streaming error: %w", err)}
		}
	}()

	return out, nil
}

// convertToAnthropicMessages splits system turns out of the history; the
// Anthropic API takes them as a separate system field.
func convertToAnthropicMessages(messages []Message) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	converted := make([]anthropic.MessageParam, 0, len(messages))
	var system []anthropic.TextBlockParam

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case RoleAssistant:
			converted = append(converted, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			converted = append(converted, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	return converted, system
}
