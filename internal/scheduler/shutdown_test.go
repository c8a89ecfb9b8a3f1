package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestShutdownTriggerCancelsContextOnce(t *testing.T) {
	sd := NewShutdown(context.Background(), nil)
	defer sd.Stop()

	if sd.Context().Err() != nil {
		t.Fatalf("context cancelled before any signal")
	}
	sd.Trigger()
	sd.Trigger()

	select {
	case <-sd.Context().Done():
	case <-time.After(time.Second):
		t.Fatalf("trigger did not cancel the context")
	}
}

func TestShutdownFollowsParent(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	sd := NewShutdown(parent, nil)
	defer sd.Stop()

	cancel()
	select {
	case <-sd.Context().Done():
	case <-time.After(time.Second):
		t.Fatalf("parent cancellation did not propagate")
	}
}

func TestShutdownStopsSchedulerWhileWaiting(t *testing.T) {
	client := &fakeClient{}
	rep := newRecordingReporter()
	s, err := New(client, Config{Tokens: 1, Schedule: Every(time.Hour)}, WithReporter(rep))
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	sd := NewShutdown(context.Background(), nil)
	defer sd.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Run(sd.Context())
	}()
	rep.next(t, 2*time.Second)

	sd.Trigger()
	waitStopped(t, errCh, 500*time.Millisecond)
}

func TestShutdownStopIsIdempotent(t *testing.T) {
	sd := NewShutdown(context.Background(), nil)
	sd.Stop()
	sd.Stop()
	sd.Trigger()
	if sd.Context().Err() == nil {
		t.Fatalf("trigger after stop should still cancel")
	}
}
