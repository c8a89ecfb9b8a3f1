package ai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDefaultRegistryIncludesBuiltins(t *testing.T) {
	reg := DefaultRegistry()

	kinds := reg.Kinds()
	if len(kinds) != 2 || kinds[0] != KindAnthropic || kinds[1] != KindOpenAI {
		t.Fatalf("unexpected built-in kinds: %v", kinds)
	}
	if !reg.Supports("OPENAI") {
		t.Fatalf("kind lookup should be case-insensitive")
	}
}

func TestRegistryNewSelectsVariant(t *testing.T) {
	reg := DefaultRegistry()

	c, err := reg.New(KindAnthropic, Config{Endpoint: "https://api.anthropic.com/v1", APIKey: "k", Model: "m"})
	if err != nil {
		t.Fatalf("new anthropic: %v", err)
	}
	if _, ok := c.(*AnthropicClient); !ok {
		t.Fatalf("expected AnthropicClient, got %T", c)
	}
	if c.Endpoint() != "https://api.anthropic.com/v1/messages" {
		t.Fatalf("endpoint was not normalized: %s", c.Endpoint())
	}
}

func TestRegistryNewCleansCompleteEndpoint(t *testing.T) {
	paths := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	for _, raw := range []string{
		"  " + srv.URL + "/v1/chat/completions",
		srv.URL + "/v1/chat/completions/",
	} {
		c, err := DefaultRegistry().New(KindOpenAI, Config{Endpoint: raw, APIKey: "k", Model: "m"})
		if err != nil {
			t.Fatalf("new %q: %v", raw, err)
		}
		if c.Endpoint() != srv.URL+"/v1/chat/completions" {
			t.Fatalf("unexpected endpoint for %q: %q", raw, c.Endpoint())
		}
		if _, err := c.SendActivation(context.Background(), 1); err != nil {
			t.Fatalf("send via %q: %v", raw, err)
		}
		_ = c.Close()
	}
	if len(paths) != 2 {
		t.Fatalf("expected two requests, got %d", len(paths))
	}
	close(paths)
	for p := range paths {
		if p != "/v1/chat/completions" {
			t.Fatalf("unexpected request path %q", p)
		}
	}
}

func TestRegistryRejectsUnknownKind(t *testing.T) {
	_, err := DefaultRegistry().New("gemini", Config{Endpoint: "https://example.com"})
	if !errors.Is(err, ErrUnsupportedInterface) {
		t.Fatalf("expected ErrUnsupportedInterface, got %v", err)
	}
}

func TestRegistryNewRejectsInvalidURL(t *testing.T) {
	_, err := DefaultRegistry().New(KindOpenAI, Config{Endpoint: "not-a-url"})
	if !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL, got %v", err)
	}
}

func TestRegistryRejectsDuplicateKind(t *testing.T) {
	reg := DefaultRegistry()
	err := reg.Register(Definition{
		Kind:   "OpenAI",
		Suffix: "/chat/completions",
		New:    func(cfg Config) Client { return NewOpenAIClient(cfg) },
	})
	if err == nil {
		t.Fatalf("expected duplicate interface type to fail")
	}
}

func TestRegistryAcceptsNewProvider(t *testing.T) {
	reg := DefaultRegistry()
	err := reg.Register(Definition{
		Kind:   "compat",
		Suffix: "/v2/chat",
		New:    func(cfg Config) Client { return NewOpenAIClient(cfg) },
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	endpoint, err := reg.Normalize("https://llm.internal", "compat")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if endpoint != "https://llm.internal/v2/chat" {
		t.Fatalf("unexpected endpoint %q", endpoint)
	}
}

func TestRegistryRejectsIncompleteDefinitions(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(Definition{Kind: "", Suffix: "/x", New: func(Config) Client { return nil }}); err == nil {
		t.Fatalf("expected empty kind to fail")
	}
	if err := reg.Register(Definition{Kind: "x", Suffix: "x", New: func(Config) Client { return nil }}); err == nil {
		t.Fatalf("expected relative suffix to fail")
	}
	if err := reg.Register(Definition{Kind: "x", Suffix: "/x"}); err == nil {
		t.Fatalf("expected nil constructor to fail")
	}
}
