package ai

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Definition describes one interface kind: the path its endpoints end in and how
// to build a client for it.
type Definition struct {
	Kind   Kind
	Suffix string
	New    func(cfg Config) Client
}

type Registry struct {
	mu     sync.RWMutex
	byKind map[Kind]Definition
}

func NewRegistry(defs ...Definition) *Registry {
	r := &Registry{
		byKind: map[Kind]Definition{},
	}
	for _, def := range defs {
		_ = r.Register(def)
	}
	return r
}

func DefaultRegistry() *Registry {
	return NewRegistry(
		Definition{
			Kind:   KindOpenAI,
			Suffix: endpointSuffixes[KindOpenAI],
			New:    func(cfg Config) Client { return NewOpenAIClient(cfg) },
		},
		Definition{
			Kind:   KindAnthropic,
			Suffix: endpointSuffixes[KindAnthropic],
			New:    func(cfg Config) Client { return NewAnthropicClient(cfg) },
		},
	)
}

func (r *Registry) Register(def Definition) error {
	kind := normalizeKind(string(def.Kind))
	if kind == "" {
		return fmt.Errorf("interface type is required")
	}
	if !strings.HasPrefix(def.Suffix, "/") {
		return fmt.Errorf("endpoint suffix for %s must start with /", kind)
	}
	if def.New == nil {
		return fmt.Errorf("constructor for %s is nil", kind)
	}
	def.Kind = kind

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byKind[kind]; exists {
		return fmt.Errorf("client already registered for interface type=%s", kind)
	}
	r.byKind[kind] = def
	return nil
}

func (r *Registry) Resolve(kind Kind) (Definition, bool) {
	if r == nil {
		return Definition{}, false
	}
	normalized := normalizeKind(string(kind))
	if normalized == "" {
		return Definition{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.byKind[normalized]
	return def, ok
}

func (r *Registry) Supports(kind Kind) bool {
	_, ok := r.Resolve(kind)
	return ok
}

// Normalize completes raw with the endpoint suffix registered for kind.
func (r *Registry) Normalize(raw string, kind Kind) (string, error) {
	def, ok := r.Resolve(kind)
	if !ok {
		return "", r.unsupported(kind)
	}
	return normalizeURL(raw, def.Suffix)
}

// New normalizes cfg.Endpoint for kind and builds the matching client.
func (r *Registry) New(kind Kind, cfg Config) (Client, error) {
	def, ok := r.Resolve(kind)
	if !ok {
		return nil, r.unsupported(kind)
	}

	endpoint, err := normalizeURL(cfg.Endpoint, def.Suffix)
	if err != nil {
		return nil, err
	}
	cfg.Endpoint = endpoint

	return def.New(cfg), nil
}

func (r *Registry) Kinds() []Kind {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]Kind, 0, len(r.byKind))
	for kind := range r.byKind {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool {
		return kinds[i] < kinds[j]
	})
	return kinds
}

func (r *Registry) unsupported(kind Kind) error {
	names := make([]string, 0)
	for _, k := range r.Kinds() {
		names = append(names, string(k))
	}
	return fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedInterface, kind, strings.Join(names, ", "))
}

func normalizeKind(kind string) Kind {
	return Kind(strings.ToLower(strings.TrimSpace(kind)))
}
