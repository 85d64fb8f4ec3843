package progress

import (
	"sync"
	"testing"
	"time"
)

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.C:
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestPublisher_ReplayToNewSubscriber(t *testing.T) {
	pub := NewPublisher()
	pub.Publish(SnapshotEvent(Snapshot{Current: 10, Highest: 20}))

	sub := pub.Subscribe()
	defer sub.Close()

	ev := receive(t, sub)
	if ev.Snapshot == nil || ev.Snapshot.Current != 10 {
		t.Fatalf("expected replayed snapshot current=10, got %+v", ev)
	}

	pub.Publish(ErrorEvent(UnavailableBackend))
	ev = receive(t, sub)
	if ev.Err != UnavailableBackend {
		t.Errorf("expected %s, got %+v", UnavailableBackend, ev)
	}
}

func TestPublisher_NoReplayWhenEmpty(t *testing.T) {
	pub := NewPublisher()
	sub := pub.Subscribe()
	defer sub.Close()

	select {
	case ev := <-sub.C:
		t.Fatalf("expected no event, got %+v", ev)
	default:
	}

	if _, ok := pub.Latest(); ok {
		t.Error("Latest() reported a value on an empty publisher")
	}
}

func TestPublisher_SlowSubscriberSeesNewest(t *testing.T) {
	pub := NewPublisher()
	sub := pub.Subscribe()
	defer sub.Close()

	for i := uint64(1); i <= 50; i++ {
		pub.Publish(SnapshotEvent(Snapshot{Current: i, Highest: 50}))
	}

	ev := receive(t, sub)
	if ev.Snapshot.Current != 50 {
		t.Errorf("expected newest event (50), got %d", ev.Snapshot.Current)
	}
}

func TestPublisher_FanOut(t *testing.T) {
	pub := NewPublisher()

	subs := make([]*Subscription, 5)
	for i := range subs {
		subs[i] = pub.Subscribe()
	}

	pub.Publish(ErrorEvent(NoActiveConnections))

	for i, sub := range subs {
		ev := receive(t, sub)
		if ev.Err != NoActiveConnections {
			t.Errorf("subscriber %d: got %+v", i, ev)
		}
		sub.Close()
	}

	if n := pub.SubscriberCount(); n != 0 {
		t.Errorf("expected 0 subscribers after close, got %d", n)
	}
}

func TestPublisher_Close(t *testing.T) {
	pub := NewPublisher()
	sub := pub.Subscribe()

	pub.Close()

	if _, ok := <-sub.C; ok {
		t.Error("expected closed channel after publisher Close")
	}

	// no panic on double close or publish after close
	sub.Close()
	pub.Close()
	pub.Publish(ErrorEvent(UnavailableBackend))

	late := pub.Subscribe()
	if _, ok := <-late.C; ok {
		t.Error("expected subscription on closed publisher to be closed")
	}
}

func TestPublisher_ConcurrentPublish(t *testing.T) {
	pub := NewPublisher()
	sub := pub.Subscribe()
	defer sub.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n uint64) {
			defer wg.Done()
			pub.Publish(SnapshotEvent(Snapshot{Current: n, Highest: 100}))
		}(uint64(i))
	}
	wg.Wait()

	latest, ok := pub.Latest()
	if !ok || latest.Snapshot == nil {
		t.Fatal("expected a latest snapshot")
	}
	ev := receive(t, sub)
	if ev.Snapshot == nil {
		t.Fatal("expected snapshot event")
	}
}

func TestSnapshot_Helpers(t *testing.T) {
	tests := []struct {
		name      string
		snap      Snapshot
		synced    bool
		remaining uint64
		percent   float64
	}{
		{"halfway", Snapshot{Current: 50, Highest: 100}, false, 50, 50},
		{"synced", Snapshot{Current: 100, Highest: 100}, true, 0, 100},
		{"unknown highest", Snapshot{Current: 0, Highest: 0}, true, 0, 100},
		{"ahead", Snapshot{Current: 101, Highest: 100}, false, 0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.snap.Synced(); got != tt.synced {
				t.Errorf("Synced() = %v, want %v", got, tt.synced)
			}
			if got := tt.snap.Remaining(); got != tt.remaining {
				t.Errorf("Remaining() = %d, want %d", got, tt.remaining)
			}
			if got := tt.snap.Percent(); got != tt.percent {
				t.Errorf("Percent() = %v, want %v", got, tt.percent)
			}
		})
	}
}
