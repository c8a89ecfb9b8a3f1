// Package scheduler drives the activation loop: an immediate first activation,
// then one activation per scheduled tick until the run context is cancelled.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/strrl/activator/internal/ai"
	"github.com/strrl/activator/internal/retry"
)

type Config struct {
	Tokens   int
	Schedule Schedule
}

type State struct {
	Status  Status
	NextRun time.Time
	Cycles  int
}

type Scheduler struct {
	client   ai.Client
	policy   retry.Policy
	reporter Reporter
	logger   *slog.Logger
	tokens   int
	schedule Schedule

	mu    sync.RWMutex
	state State
}

type Option func(*Scheduler)

func WithPolicy(p retry.Policy) Option {
	return func(s *Scheduler) {
		s.policy = p
	}
}

func WithReporter(r Reporter) Option {
	return func(s *Scheduler) {
		if r != nil {
			s.reporter = r
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(client ai.Client, cfg Config, opts ...Option) (*Scheduler, error) {
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if cfg.Tokens <= 0 {
		return nil, fmt.Errorf("tokens must be positive, got %d", cfg.Tokens)
	}
	if cfg.Schedule == nil {
		return nil, fmt.Errorf("schedule is required")
	}
	if iv, ok := cfg.Schedule.(intervalSchedule); ok && iv.interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", iv.interval)
	}

	s := &Scheduler{
		client:   client,
		policy:   retry.DefaultPolicy(),
		reporter: Reporters(),
		logger:   slog.New(slog.DiscardHandler),
		tokens:   cfg.Tokens,
		schedule: cfg.Schedule,
		state:    State{Status: StatusIdle},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Scheduler) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Run blocks until ctx is cancelled. It returns nil on graceful shutdown; the
// client is closed exactly once on the way out.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.state.Status != StatusIdle {
		status := s.state.Status
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started (status=%s)", status)
	}
	s.state.Status = StatusRunning
	s.mu.Unlock()

	defer s.setStatus(StatusStopped)
	defer func() {
		if err := s.client.Close(); err != nil {
			s.logger.Warn("failed to release client", "error", err)
		}
	}()

	s.logger.Info("scheduler started", "endpoint", s.client.Endpoint(), "tokens", s.tokens)

	next := time.Now()
	for {
		if !s.wait(ctx, next) {
			break
		}

		s.setStatus(StatusSendingRequest)
		result := s.runCycle(ctx)
		s.reporter.CycleFinished(result)

		if result.Outcome == OutcomeCancelled {
			break
		}
		next = result.NextRunTime
	}

	s.setStatus(StatusShuttingDown)
	s.logger.Info("scheduler stopping", "cycles", s.State().Cycles)
	return nil
}

// wait returns false when ctx ends before next. A next time in the past fires at once.
func (s *Scheduler) wait(ctx context.Context, next time.Time) bool {
	if ctx.Err() != nil {
		return false
	}

	delay := time.Until(next)
	if delay <= 0 {
		return true
	}

	s.setStatus(StatusWaiting)
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *Scheduler) runCycle(ctx context.Context) Result {
	cycleID := uuid.NewString()
	started := time.Now()

	policy := s.policy
	userHook := policy.OnRetry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		s.reporter.RetryScheduled(cycleID, attempt, delay, err)
		if userHook != nil {
			userHook(attempt, delay, err)
		}
	}

	var resp *ai.Response
	attempts, err := policy.Execute(ctx, func(ctx context.Context, attempt int) error {
		r, sendErr := s.client.SendActivation(ctx, s.tokens)
		if sendErr != nil {
			return sendErr
		}
		resp = r
		return nil
	})

	result := Result{
		CycleID:   cycleID,
		Timestamp: started,
		Attempts:  attempts,
		Err:       err,
		ErrorKind: ClassifyError(err),
	}

	switch {
	case err == nil:
		result.Outcome = OutcomeSucceeded
		if resp != nil {
			result.Usage = resp.Usage
			result.Model = resp.Model
		}
	case errors.Is(err, retry.ErrCancelled):
		result.Outcome = OutcomeCancelled
		s.bumpCycles(time.Time{})
		return result
	default:
		result.Outcome = OutcomeFailed
	}

	result.NextRunTime = s.schedule.Next(started)
	s.bumpCycles(result.NextRunTime)
	return result
}

func (s *Scheduler) setStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Status = status
}

func (s *Scheduler) bumpCycles(next time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Cycles++
	s.state.NextRun = next
}
