package scheduler

import (
	"errors"
	"time"

	"github.com/strrl/activator/internal/ai"
	"github.com/strrl/activator/internal/retry"
)

type Status string

const (
	StatusIdle           Status = "idle"
	StatusRunning        Status = "running"
	StatusSendingRequest Status = "sending_request"
	StatusWaiting        Status = "waiting"
	StatusShuttingDown   Status = "shutting_down"
	StatusStopped        Status = "stopped"
)

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

type ErrorKind string

const (
	ErrorKindNone           ErrorKind = ""
	ErrorKindNetwork        ErrorKind = "network"
	ErrorKindHTTP4xx        ErrorKind = "http_4xx"
	ErrorKindHTTP5xx        ErrorKind = "http_5xx"
	ErrorKindRetryExhausted ErrorKind = "retry_exhausted"
	ErrorKindCancelled      ErrorKind = "cancelled"
	ErrorKindInternal       ErrorKind = "internal"
)

// Result describes one finished cycle.
type Result struct {
	CycleID     string
	Timestamp   time.Time
	Outcome     Outcome
	Attempts    int
	Usage       *ai.Usage
	Model       string
	Err         error
	ErrorKind   ErrorKind
	NextRunTime time.Time
}

func (r Result) Succeeded() bool {
	return r.Outcome == OutcomeSucceeded
}

// Reporter receives cycle outcomes. Calls happen on the scheduler goroutine.
type Reporter interface {
	CycleFinished(result Result)
	RetryScheduled(cycleID string, attempt int, delay time.Duration, err error)
}

type multiReporter []Reporter

// Reporters fans events out to every non-nil reporter in order.
func Reporters(reporters ...Reporter) Reporter {
	out := make(multiReporter, 0, len(reporters))
	for _, r := range reporters {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (m multiReporter) CycleFinished(result Result) {
	for _, r := range m {
		r.CycleFinished(result)
	}
}

func (m multiReporter) RetryScheduled(cycleID string, attempt int, delay time.Duration, err error) {
	for _, r := range m {
		r.RetryScheduled(cycleID, attempt, delay, err)
	}
}

// ClassifyError maps an activation error onto the kind used in events.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}
	if errors.Is(err, retry.ErrCancelled) {
		return ErrorKindCancelled
	}
	if errors.Is(err, retry.ErrExhausted) {
		return ErrorKindRetryExhausted
	}

	var httpErr *ai.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.Retryable() {
			return ErrorKindHTTP5xx
		}
		return ErrorKindHTTP4xx
	}

	var netErr *ai.NetworkError
	if errors.As(err, &netErr) {
		return ErrorKindNetwork
	}

	return ErrorKindInternal
}
