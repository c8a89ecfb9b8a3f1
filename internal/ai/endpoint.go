package ai

import (
	"fmt"
	"net/url"
	"strings"
)

var endpointSuffixes = map[Kind]string{
	KindOpenAI:    "/chat/completions",
	KindAnthropic: "/messages",
}

// NormalizeEndpoint completes a base URL with the path the interface kind expects.
// URLs that already end in that path are returned untouched, query string included.
func NormalizeEndpoint(raw string, kind Kind) (string, error) {
	suffix, ok := endpointSuffixes[normalizeKind(string(kind))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedInterface, kind)
	}
	return normalizeURL(raw, suffix)
}

// ValidateURL checks that raw is an absolute http(s) URL with a host.
func ValidateURL(raw string) error {
	_, err := parseURL(raw)
	return err
}

func normalizeURL(raw, suffix string) (string, error) {
	u, err := parseURL(raw)
	if err != nil {
		return "", err
	}

	if strings.HasSuffix(strings.ToLower(u.Path), suffix) {
		return strings.TrimSpace(raw), nil
	}

	escaped := strings.TrimRight(u.EscapedPath(), "/")
	// a complete endpoint with trailing slashes only loses the slashes
	if !strings.HasSuffix(strings.ToLower(strings.TrimRight(u.Path, "/")), suffix) {
		escaped += suffix
	}
	path, err := url.PathUnescape(escaped)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	u.Path = path
	u.RawPath = escaped

	return u.String(), nil
}

func parseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: url is empty", ErrInvalidURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme must be http or https: %s", ErrInvalidURL, raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host: %s", ErrInvalidURL, raw)
	}

	return u, nil
}
