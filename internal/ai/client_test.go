package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestActivationContent(t *testing.T) {
	if got := ActivationContent(3); got != "the the the " {
		t.Fatalf("unexpected content %q", got)
	}
	if got := ActivationContent(0); got != "" {
		t.Fatalf("expected empty content, got %q", got)
	}
}

func TestOpenAIBuildRequestShape(t *testing.T) {
	c := NewOpenAIClient(Config{Endpoint: "https://api.openai.com/v1/chat/completions", APIKey: "sk-test", Model: "gpt-4o-mini"})
	body, err := c.BuildRequest(5)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded["model"] != "gpt-4o-mini" {
		t.Fatalf("unexpected model: %v", decoded["model"])
	}
	if _, ok := decoded["max_tokens"]; ok {
		t.Fatalf("openai body must not carry max_tokens: %s", body)
	}
	messages, ok := decoded["messages"].([]any)
	if !ok || len(messages) != 1 {
		t.Fatalf("expected one message, got %v", decoded["messages"])
	}
	msg := messages[0].(map[string]any)
	if msg["role"] != "user" {
		t.Fatalf("unexpected role: %v", msg["role"])
	}
	if msg["content"] != "the the the the the " {
		t.Fatalf("unexpected content: %q", msg["content"])
	}
}

func TestAnthropicBuildRequestShape(t *testing.T) {
	c := NewAnthropicClient(Config{Endpoint: "https://api.anthropic.com/v1/messages", APIKey: "ak", Model: "claude-3-haiku"})
	body, err := c.BuildRequest(4)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}

	var decoded anthropicRequest
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded.Model != "claude-3-haiku" || decoded.MaxTokens != 4 {
		t.Fatalf("unexpected anthropic request: %+v", decoded)
	}
	if len(decoded.Messages) != 1 || decoded.Messages[0].Content != "the the the the " {
		t.Fatalf("unexpected messages: %+v", decoded.Messages)
	}
}

func TestHeadersPerProvider(t *testing.T) {
	openai := NewOpenAIClient(Config{APIKey: "sk-1"}).Headers()
	if openai.Get("Authorization") != "Bearer sk-1" || openai.Get("Content-Type") != "application/json" {
		t.Fatalf("unexpected openai headers: %v", openai)
	}
	if openai.Get("x-api-key") != "" {
		t.Fatalf("openai headers must not carry x-api-key")
	}

	anthropic := NewAnthropicClient(Config{APIKey: "ak-1"}).Headers()
	if anthropic.Get("x-api-key") != "ak-1" || anthropic.Get("anthropic-version") != AnthropicVersion {
		t.Fatalf("unexpected anthropic headers: %v", anthropic)
	}
	if anthropic.Get("Authorization") != "" {
		t.Fatalf("anthropic headers must not carry Authorization")
	}
}

func TestOpenAISendActivationParsesUsage(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"model":"gpt-4o-mini-2024","usage":{"prompt_tokens":7,"completion_tokens":2,"total_tokens":9}}`)
	}))
	defer srv.Close()

	client, err := DefaultRegistry().New(KindOpenAI, Config{Endpoint: srv.URL + "/v1", APIKey: "sk-x", Model: "gpt-4o-mini"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Close()

	resp, err := client.SendActivation(context.Background(), 3)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotPath != "/v1/chat/completions" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer sk-x" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotBody.Model != "gpt-4o-mini" || len(gotBody.Messages) != 1 {
		t.Fatalf("unexpected request body: %+v", gotBody)
	}
	if resp.StatusCode != http.StatusOK || resp.Model != "gpt-4o-mini-2024" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Usage == nil || resp.Usage.InputTokens != 7 || resp.Usage.OutputTokens != 2 || resp.Usage.TotalTokens != 9 {
		t.Fatalf("unexpected usage: %+v", resp.Usage)
	}
}

func TestAnthropicSendActivationParsesUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("anthropic-version") != AnthropicVersion {
			t.Errorf("missing anthropic-version header")
		}
		_, _ = io.WriteString(w, `{"model":"claude-3-haiku","usage":{"input_tokens":12,"output_tokens":1}}`)
	}))
	defer srv.Close()

	client, err := DefaultRegistry().New(KindAnthropic, Config{Endpoint: srv.URL + "/v1/", APIKey: "ak", Model: "claude-3-haiku"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Close()

	resp, err := client.SendActivation(context.Background(), 12)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if resp.Usage == nil || resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 1 || resp.Usage.TotalTokens != 13 {
		t.Fatalf("unexpected usage: %+v", resp.Usage)
	}
}

func TestSendActivationToleratesMissingUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, "not json at all")
	}))
	defer srv.Close()

	client := NewOpenAIClient(Config{Endpoint: srv.URL, APIKey: "k", Model: "m"})
	defer client.Close()

	resp, err := client.SendActivation(context.Background(), 1)
	if err != nil {
		t.Fatalf("expected best-effort parse, got %v", err)
	}
	if resp.StatusCode != http.StatusCreated || resp.Usage != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestSendActivationReturnsHTTPError(t *testing.T) {
	cases := []struct {
		status    int
		retryable bool
	}{
		{status: http.StatusUnauthorized, retryable: false},
		{status: http.StatusBadRequest, retryable: false},
		{status: http.StatusInternalServerError, retryable: true},
		{status: http.StatusBadGateway, retryable: true},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = io.WriteString(w, `{"error":{"message":"nope"}}`)
		}))

		client := NewAnthropicClient(Config{Endpoint: srv.URL, APIKey: "k", Model: "m"})
		_, err := client.SendActivation(context.Background(), 1)
		_ = client.Close()
		srv.Close()

		var httpErr *HTTPError
		if !errors.As(err, &httpErr) {
			t.Fatalf("status=%d expected HTTPError, got %v", tc.status, err)
		}
		if httpErr.StatusCode != tc.status || httpErr.Retryable() != tc.retryable {
			t.Fatalf("status=%d unexpected error: %+v retryable=%v", tc.status, httpErr, httpErr.Retryable())
		}
	}
}

func TestSendActivationReturnsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	client := NewOpenAIClient(Config{Endpoint: endpoint, APIKey: "k", Model: "m"})
	defer client.Close()

	_, err := client.SendActivation(context.Background(), 1)
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if !netErr.Retryable() {
		t.Fatalf("network errors must be retryable")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	client := NewOpenAIClient(Config{Endpoint: "https://api.openai.com/v1/chat/completions"})
	if err := client.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestHTTPErrorTruncatesOnRuneBoundary(t *testing.T) {
	body := strings.Repeat("a", 299) + "错误详情"
	msg := (&HTTPError{StatusCode: 503, Body: body}).Error()
	if !utf8.ValidString(msg) {
		t.Fatalf("error text is not valid utf-8: %q", msg)
	}
	if !strings.HasSuffix(msg, strings.Repeat("a", 299)+"...") {
		t.Fatalf("expected cut before the multi-byte rune, got %q", msg[len(msg)-10:])
	}

	if got := truncate("héllo", 2); got != "h..." {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("short strings must be kept, got %q", got)
	}
}
