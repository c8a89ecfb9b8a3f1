package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	defaultTimeout     = 30 * time.Second
	activationWord     = "the "
	maxErrorBodyLength = 4096
)

// Client sends activation requests to one provider endpoint.
type Client interface {
	Kind() Kind
	Endpoint() string
	BuildRequest(tokens int) ([]byte, error)
	Headers() http.Header
	SendActivation(ctx context.Context, tokens int) (*Response, error)
	Close() error
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ActivationContent returns the filler prompt, one word per requested token.
func ActivationContent(tokens int) string {
	if tokens <= 0 {
		return ""
	}
	return strings.Repeat(activationWord, tokens)
}

// transport is shared by every provider variant. It owns the pooled HTTP client.
type transport struct {
	endpoint   string
	httpClient *http.Client
	closeOnce  sync.Once
}

func newTransport(cfg Config) *transport {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        5,
				MaxIdleConnsPerHost: 5,
				MaxConnsPerHost:     10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	return &transport{
		endpoint:   cfg.Endpoint,
		httpClient: httpClient,
	}
}

func (t *transport) Endpoint() string {
	return t.endpoint
}

func (t *transport) post(ctx context.Context, body []byte, headers http.Header) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return 0, nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &NetworkError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, respBody, &HTTPError{
			StatusCode: resp.StatusCode,
			Body:       truncate(string(respBody), maxErrorBodyLength),
		}
	}

	return resp.StatusCode, respBody, nil
}

// Close releases pooled connections. Calls after the first are no-ops.
func (t *transport) Close() error {
	t.closeOnce.Do(func() {
		t.httpClient.CloseIdleConnections()
	})
	return nil
}

type usageParser func(raw json.RawMessage) *Usage

// send builds, posts and parses one activation for a provider variant.
func send(ctx context.Context, c Client, t *transport, tokens int, parseUsage usageParser) (*Response, error) {
	body, err := c.BuildRequest(tokens)
	if err != nil {
		return nil, err
	}

	status, respBody, err := t.post(ctx, body, c.Headers())
	if err != nil {
		return nil, err
	}

	return parseResponse(status, respBody, parseUsage), nil
}

// parseResponse never fails: usage metadata is optional.
func parseResponse(status int, body []byte, parseUsage usageParser) *Response {
	resp := &Response{StatusCode: status}

	var envelope struct {
		Model string          `json:"model"`
		Usage json.RawMessage `json:"usage"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return resp
	}

	resp.Raw = json.RawMessage(body)
	resp.Model = envelope.Model
	if len(envelope.Usage) > 0 && string(envelope.Usage) != "null" {
		resp.Usage = parseUsage(envelope.Usage)
	}

	return resp
}
