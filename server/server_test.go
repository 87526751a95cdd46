package server

import (
	"testing"
)

// fakeBroadcaster 记录投递调用
type fakeBroadcaster struct {
	toGame int
	toAll  int
}

func (f *fakeBroadcaster) BroadcastToGame(gameID string, data []byte) error {
	f.toGame++
	return nil
}

func (f *fakeBroadcaster) BroadcastToAll(data []byte) error {
	f.toAll++
	return nil
}

type fakeCounter struct {
	count int
}

func (f *fakeCounter) IncBroadcastsSent() { f.count++ }

func TestMonitoredBroadcaster_CountsTopicBroadcasts(t *testing.T) {
	inner := &fakeBroadcaster{}
	counter := &fakeCounter{}
	b := &monitoredBroadcaster{Broadcaster: inner, counter: counter}

	if err := b.BroadcastToGame("G1", []byte("x")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.BroadcastToGame("G1", []byte("y")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if inner.toGame != 2 {
		t.Errorf("expected 2 deliveries, got %d", inner.toGame)
	}
	if counter.count != 2 {
		t.Errorf("expected counter at 2, got %d", counter.count)
	}
}

func TestMonitoredBroadcaster_ServerWideNoticesNotCounted(t *testing.T) {
	inner := &fakeBroadcaster{}
	counter := &fakeCounter{}
	b := &monitoredBroadcaster{Broadcaster: inner, counter: counter}

	if err := b.BroadcastToAll([]byte("notice")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if inner.toAll != 1 {
		t.Errorf("expected 1 delivery, got %d", inner.toAll)
	}
	if counter.count != 0 {
		t.Errorf("server-wide notices are not topic broadcasts, counter at %d", counter.count)
	}
}
