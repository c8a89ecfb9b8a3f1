package ai

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	ErrInvalidURL           = errors.New("invalid url")
	ErrUnsupportedInterface = errors.New("unsupported interface type")
)

type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.StatusCode, truncate(e.Body, 300))
}

// Retryable reports whether the server side failure may go away on its own.
func (e *HTTPError) Retryable() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func (e *NetworkError) Retryable() bool {
	return true
}

// truncate cuts s to at most maxLen bytes without splitting a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}
