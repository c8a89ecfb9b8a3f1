package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/strrl/activator/internal/scheduler"
)

const writeTimeout = 5 * time.Second

// Reporter writes every finished cycle to the ledger. Write failures are
// logged and never stop the scheduler.
type Reporter struct {
	store         *Store
	interfaceType string
	model         string
	logger        *slog.Logger
}

func NewReporter(store *Store, interfaceType, model string, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reporter{store: store, interfaceType: interfaceType, model: model, logger: logger}
}

func (r *Reporter) CycleFinished(res scheduler.Result) {
	// the run context may already be cancelled when the last cycle lands
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.store.Record(ctx, FromResult(res, r.interfaceType, r.model)); err != nil {
		r.logger.Error("failed to write activation history", "cycle_id", res.CycleID, "error", err)
	}
}

func (r *Reporter) RetryScheduled(string, int, time.Duration, error) {}
