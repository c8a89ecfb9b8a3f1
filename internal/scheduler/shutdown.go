package scheduler

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Shutdown turns the first interrupt into a cancelled context. Further signals
// are absorbed so a second Ctrl-C does not kill the process mid-shutdown.
type Shutdown struct {
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	stop   sync.Once
	sigCh  chan os.Signal
	done   chan struct{}
	logger *slog.Logger
}

func NewShutdown(parent context.Context, logger *slog.Logger, sigs ...os.Signal) *Shutdown {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithCancel(parent)
	s := &Shutdown{
		ctx:    ctx,
		cancel: cancel,
		sigCh:  make(chan os.Signal, 1),
		done:   make(chan struct{}),
		logger: logger,
	}

	signal.Notify(s.sigCh, sigs...)
	go s.loop()
	return s
}

func (s *Shutdown) loop() {
	for {
		select {
		case sig := <-s.sigCh:
			s.trigger(sig.String())
		case <-s.done:
			return
		}
	}
}

func (s *Shutdown) Context() context.Context {
	return s.ctx
}

// Trigger requests shutdown as if a signal had arrived.
func (s *Shutdown) Trigger() {
	s.trigger("manual")
}

func (s *Shutdown) trigger(source string) {
	fired := false
	s.once.Do(func() {
		fired = true
		s.logger.Info("shutdown requested, stopping gracefully", "source", source)
		s.cancel()
	})
	if !fired {
		s.logger.Debug("shutdown already in progress", "source", source)
	}
}

// Stop unregisters the signal handler. The context stays cancelled if it was.
func (s *Shutdown) Stop() {
	s.stop.Do(func() {
		signal.Stop(s.sigCh)
		close(s.done)
	})
}
