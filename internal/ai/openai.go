package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type OpenAIClient struct {
	*transport
	apiKey string
	model  string
}

type openAIRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func NewOpenAIClient(cfg Config) *OpenAIClient {
	return &OpenAIClient{
		transport: newTransport(cfg),
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
	}
}

func (c *OpenAIClient) Kind() Kind {
	return KindOpenAI
}

func (c *OpenAIClient) BuildRequest(tokens int) ([]byte, error) {
	payload := openAIRequest{
		Model: c.model,
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

func (c *OpenAIClient) Headers() http.Header {
	h := make(http.Header)
	h.Set("Authorization", "Bearer "+c.apiKey)
	h.Set("Content-Type", "application/json")
	return h
}

func (c *OpenAIClient) SendActivation(ctx context.Context, tokens int) (*Response, error) {
	return send(ctx, c, c.transport, tokens, parseOpenAIUsage)
}

func parseOpenAIUsage(raw json.RawMessage) *Usage {
	var u openAIUsage
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil
	}

	total := u.TotalTokens
	if total == 0 {
		total = u.PromptTokens + u.CompletionTokens
	}

	return &Usage{
		InputTokens:  u.PromptTokens,
		OutputTokens: u.CompletionTokens,
		TotalTokens:  total,
	}
}
