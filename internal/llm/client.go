// Package llm wraps the Anthropic Messages API behind the narrow interface
// the planner and LLM-driven specialists need: a single text completion
// call given a system prompt and a user prompt. The wire protocol to "the
// specific LLM provider" is named out of scope by spec §1; this package is
// the one concrete default adapter that keeps the rest of the system
// compiling and runnable, grounded on goadesign-goa-ai's
// anthropic-sdk-go-backed model client.
package llm

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Client is the subset of capability the orchestrator needs from an LLM
// provider: one-shot text completion with an optional system prompt.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// messagesClient captures the subset of *sdk.MessageService this package
// calls, so tests can substitute a fake without hitting the network.
type messagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// AnthropicClient is the default Client implementation.
type AnthropicClient struct {
	msg         messagesClient
	model       string
	maxTokens   int
	temperature float64
}

// New builds an AnthropicClient from an API key, model identifier (e.g.
// "claude-sonnet-4-5-20250929"), and a max-tokens cap applied to every
// completion.
func New(apiKey, model string, maxTokens int) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("llm: api key is required")
	}
	if model == "" {
		return nil, errors.New("llm: model identifier is required")
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClient{msg: &ac.Messages, model: model, maxTokens: maxTokens, temperature: 0.2}, nil
}

// Complete issues a single non-streaming Messages.New call and returns the
// concatenated text of every text content block in the response.
func (c *AnthropicClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if userPrompt == "" {
		return "", errors.New("llm: user prompt is required")
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(userPrompt)),
		},
		Temperature: sdk.Float(c.temperature),
	}
	if systemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: systemPrompt}}
	}

	msg, err := c.msg.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("llm: messages.new: %w", err)
	}

	var out string
	for _, block := range msg.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	return out, nil
}
