package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const AnthropicVersion = "2023-06-01"

type AnthropicClient struct {
	*transport
	apiKey string
	model  string
}

type anthropicRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func NewAnthropicClient(cfg Config) *AnthropicClient {
	return &AnthropicClient{
		transport: newTransport(cfg),
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
	}
}

func (c *AnthropicClient) Kind() Kind {
	return KindAnthropic
}

func (c *AnthropicClient) BuildRequest(tokens int) ([]byte, error) {
	payload := anthropicRequest{
		Model:     c.model,
		MaxTokens: tokens,
		Messages: []chatMessage{
			{Role: "user", Content: ActivationContent(tokens)},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return body, nil
}

func (c *AnthropicClient) Headers() http.Header {
	h := make(http.Header)
	h.Set("x-api-key", c.apiKey)
	h.Set("anthropic-version", AnthropicVersion)
	h.Set("Content-Type", "application/json")
	return h
}

func (c *AnthropicClient) SendActivation(ctx context.Context, tokens int) (*Response, error) {
	return send(ctx, c, c.transport, tokens, parseAnthropicUsage)
}

func parseAnthropicUsage(raw json.RawMessage) *Usage {
	var u anthropicUsage
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil
	}

	return &Usage{
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
		TotalTokens:  u.InputTokens + u.OutputTokens,
	}
}
