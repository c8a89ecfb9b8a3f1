package logging

import (
	"log/slog"
	"time"

	"github.com/strrl/activator/internal/scheduler"
)

// Reporter logs one record per finished cycle and per scheduled retry.
type Reporter struct {
	logger *slog.Logger
}

func NewReporter(logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{logger: logger}
}

func (r *Reporter) CycleFinished(res scheduler.Result) {
	attrs := []any{
		"cycle_id", res.CycleID,
		"fired_at", res.Timestamp.Format(time.RFC3339),
		"attempts", res.Attempts,
	}

	switch res.Outcome {
	case scheduler.OutcomeSucceeded:
		if res.Model != "" {
			attrs = append(attrs, "model", res.Model)
		}
		if u := res.Usage; u != nil {
			attrs = append(attrs,
				"input_tokens", u.InputTokens,
				"output_tokens", u.OutputTokens,
				"total_tokens", u.TotalTokens,
			)
		}
		attrs = append(attrs, "next_run", res.NextRunTime.Format(time.RFC3339))
		r.logger.Info("activation succeeded", attrs...)
	case scheduler.OutcomeFailed:
		attrs = append(attrs,
			"error_kind", string(res.ErrorKind),
			"error", errString(res.Err),
			"next_run", res.NextRunTime.Format(time.RFC3339),
		)
		r.logger.Error("activation failed", attrs...)
	case scheduler.OutcomeCancelled:
		r.logger.Info("activation cancelled", attrs...)
	}
}

func (r *Reporter) RetryScheduled(cycleID string, attempt int, delay time.Duration, err error) {
	r.logger.Warn("retry scheduled",
		"cycle_id", cycleID,
		"attempt", attempt,
		"delay", delay.String(),
		"error_kind", string(scheduler.ClassifyError(err)),
		"error", errString(err),
	)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
