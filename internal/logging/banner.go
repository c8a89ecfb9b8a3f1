package logging

import (
	"log/slog"
)

type Banner struct {
	InterfaceType string
	Endpoint      string
	Model         string
	Cadence       string
	Tokens        int
	HistoryPath   string
}

// LogBanner prints the effective settings at startup. Credentials are not part of Banner.
func LogBanner(logger *slog.Logger, b Banner) {
	attrs := []any{
		"interface_type", b.InterfaceType,
		"endpoint", b.Endpoint,
		"model", b.Model,
		"schedule", b.Cadence,
		"tokens", b.Tokens,
	}
	if b.HistoryPath != "" {
		attrs = append(attrs, "history_db", b.HistoryPath)
	}
	logger.Info("activator starting", attrs...)
}

// LogNormalized warns when the configured URL had to be completed.
func LogNormalized(logger *slog.Logger, original, normalized string) {
	if original == normalized {
		return
	}
	logger.Warn("api url normalized", "original", original, "normalized", normalized)
}
