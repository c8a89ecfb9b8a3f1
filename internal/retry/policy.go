// Package retry runs one operation with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/hyp3rd/go-again"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
	DefaultMaxDelay   = 60 * time.Second
	DefaultFactor     = 2.0
)

// attemptBudget is the room left for a single attempt when sizing the retrier timeout.
const attemptBudget = 5 * time.Minute

var (
	ErrExhausted = errors.New("retries exhausted")
	ErrCancelled = errors.New("cancelled")
	// ErrTemporary marks an attempt failure the retrier should back off from.
	ErrTemporary = errors.New("temporary failure")
)

// ExhaustedError carries the last failure seen before the policy gave up.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}

type CancelledError struct {
	Attempts int
	Cause    error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("cancelled after %d attempts: %v", e.Attempts, e.Cause)
}

func (e *CancelledError) Unwrap() error {
	return e.Cause
}

func (e *CancelledError) Is(target error) bool {
	return target == ErrCancelled
}

// Policy is safe to reuse; every Execute call keeps its own attempt counter.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Factor     float64

	// OnRetry is called before each backoff wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
		Factor:     DefaultFactor,
	}
}

// Execute calls fn until it succeeds, fails fatally, runs out of retries or ctx
// is cancelled. It returns the number of attempts made.
func (p Policy) Execute(ctx context.Context, fn func(ctx context.Context, attempt int) error) (int, error) {
	maxAttempts := p.MaxRetries + 1
	if p.MaxRetries < 0 {
		maxAttempts = 1
	}
	if err := ctx.Err(); err != nil {
		return 0, &CancelledError{Attempts: 0, Cause: err}
	}

	retrier, err := p.retrier(ctx, maxAttempts)
	if err != nil {
		return 0, fmt.Errorf("failed to build retrier: %w", err)
	}

	// interrupted is set when ctx ended while fn was running rather than during a wait
	var (
		attempts    int
		lastErr     error
		succeeded   bool
		fatal       bool
		interrupted bool
	)
	// the retrier only keeps going while the closure returns ErrTemporary;
	// attempt accounting and the final verdict stay here
	_ = retrier.Do(ctx, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		attempts++
		err := fn(ctx, attempts)
		if err == nil {
			succeeded = true
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			interrupted = true
			return err
		}
		if !IsRetryable(err) {
			fatal = true
			return err
		}
		if attempts >= maxAttempts {
			return err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempts, p.Delay(attempts), err)
		}
		return fmt.Errorf("%w: %w", ErrTemporary, err)
	}, ErrTemporary)

	switch {
	case succeeded:
		return attempts, nil
	case ctx.Err() != nil:
		cause := ctx.Err()
		if interrupted {
			cause = lastErr
		}
		return attempts, &CancelledError{Attempts: attempts, Cause: cause}
	case fatal:
		return attempts, lastErr
	}
	return attempts, &ExhaustedError{Attempts: attempts, Last: lastErr}
}

// retrier builds the backoff driver for one Execute call. The retry budget is
// enforced by Execute, so the retrier is given one spare attempt.
func (p Policy) retrier(ctx context.Context, maxAttempts int) (*again.Retrier, error) {
	interval := p.Delay(1)
	jitter := interval / 4
	if jitter < time.Millisecond {
		jitter = time.Millisecond
	}
	factor := p.Factor
	if factor < 1 {
		factor = DefaultFactor
	}
	timeout := time.Duration(maxAttempts) * (p.Delay(maxAttempts) + jitter + attemptBudget)

	return again.NewRetrier(
		ctx,
		again.WithMaxRetries(maxAttempts+1),
		again.WithInterval(interval),
		again.WithBackoffFactor(factor),
		again.WithJitter(jitter),
		again.WithTimeout(timeout),
	)
}

// Delay returns the wait before retry number n (1-based), capped at MaxDelay.
func (p Policy) Delay(n int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	factor := p.Factor
	if factor < 1 {
		factor = DefaultFactor
	}
	if n < 1 {
		n = 1
	}

	delay := float64(base) * math.Pow(factor, float64(n-1))
	if delay >= float64(maxDelay) || math.IsInf(delay, 0) {
		return maxDelay
	}
	return time.Duration(delay)
}

type retryable interface {
	Retryable() bool
}

// IsRetryable reports whether err asked for another attempt. Errors that do not
// classify themselves are fatal.
func IsRetryable(err error) bool {
	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return false
}
