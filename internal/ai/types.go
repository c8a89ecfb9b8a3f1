package ai

import (
	"encoding/json"
	"net/http"
	"time"
)

type Kind string

const (
	KindOpenAI    Kind = "openai"
	KindAnthropic Kind = "anthropic"
)

// Config carries everything a provider client needs. Endpoint may be a base URL;
// the registry normalizes it before the constructor sees it.
type Config struct {
	Endpoint   string
	APIKey     string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type Response struct {
	StatusCode int
	Model      string
	Usage      *Usage
	Raw        json.RawMessage
}
