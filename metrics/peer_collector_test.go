package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"syncmonitor/nodeapi"
)

type mockPeerReader struct {
	mu     sync.Mutex
	status *nodeapi.ConnectionStatus
	err    error
	calls  int
}

func (m *mockPeerReader) ConnectionStatus(ctx context.Context) (*nodeapi.ConnectionStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.status, nil
}

func (m *mockPeerReader) set(status *nodeapi.ConnectionStatus, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status, m.err = status, err
}

func (m *mockPeerReader) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func threePeers() *nodeapi.ConnectionStatus {
	return &nodeapi.ConnectionStatus{Connections: []nodeapi.Connection{
		{ID: 1, Address: "10.0.0.1:6000", Outgoing: true},
		{ID: 2, Address: "10.0.0.2:6000", Outgoing: true},
		{ID: 3, Address: "10.0.0.3:6000"},
	}}
}

func TestNewPeerCollector_Defaults(t *testing.T) {
	c := NewPeerCollector(PeerCollectorConfig{}, &mockPeerReader{}, nil)

	if c.config.CollectionInterval != 30*time.Second {
		t.Errorf("CollectionInterval = %v, want 30s", c.config.CollectionInterval)
	}
	if c.histCap != 120 {
		t.Errorf("histCap = %d, want 120", c.histCap)
	}
	if c.config.ReadTimeout != 10*time.Second {
		t.Errorf("ReadTimeout = %v, want 10s", c.config.ReadTimeout)
	}
}

func TestPeerCollector_CollectOnce(t *testing.T) {
	t.Run("successful read", func(t *testing.T) {
		reader := &mockPeerReader{status: threePeers()}
		var got PeerSample
		c := NewPeerCollector(DefaultPeerCollectorConfig(), reader, func(s PeerSample) { got = s })

		c.collectOnce()

		if !c.IsAvailable() || c.GetLastError() != nil {
			t.Errorf("available = %v, err = %v", c.IsAvailable(), c.GetLastError())
		}
		cur := c.GetCurrent()
		if cur.Total != 3 || cur.Outgoing != 2 || cur.At.IsZero() {
			t.Errorf("GetCurrent() = %+v", cur)
		}
		if got != cur {
			t.Errorf("callback got %+v, want %+v", got, cur)
		}
	})

	t.Run("failed read keeps last sample", func(t *testing.T) {
		reader := &mockPeerReader{status: threePeers()}
		calls := 0
		c := NewPeerCollector(DefaultPeerCollectorConfig(), reader, func(PeerSample) { calls++ })

		c.collectOnce()
		reader.set(nil, errors.New("connection refused"))
		c.collectOnce()

		if c.IsAvailable() {
			t.Error("IsAvailable() should be false after a failed read")
		}
		if c.GetLastError() == nil {
			t.Error("GetLastError() should be set")
		}
		if c.GetCurrent().Total != 3 {
			t.Errorf("last good sample lost: %+v", c.GetCurrent())
		}
		if len(c.GetHistory(10)) != 1 {
			t.Errorf("failed read must not be added to history")
		}
		if calls != 1 {
			t.Errorf("callback calls = %d, want 1", calls)
		}
	})

	t.Run("no connections", func(t *testing.T) {
		reader := &mockPeerReader{status: &nodeapi.ConnectionStatus{}}
		c := NewPeerCollector(DefaultPeerCollectorConfig(), reader, nil)

		c.collectOnce()

		if c.GetCurrent().Total != 0 || !c.IsAvailable() {
			t.Errorf("GetCurrent() = %+v", c.GetCurrent())
		}
	})
}

func TestPeerCollector_History(t *testing.T) {
	reader := &mockPeerReader{}
	c := NewPeerCollector(PeerCollectorConfig{HistorySize: 3}, reader, nil)

	for i := 1; i <= 4; i++ {
		conns := make([]nodeapi.Connection, i)
		reader.set(&nodeapi.ConnectionStatus{Connections: conns}, nil)
		c.collectOnce()
	}

	history := c.GetHistory(10)
	if len(history) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(history))
	}
	for i, want := range []int{2, 3, 4} {
		if history[i].Total != want {
			t.Errorf("history[%d].Total = %d, want %d", i, history[i].Total, want)
		}
	}
	if got := c.GetHistory(0); len(got) != 0 {
		t.Errorf("GetHistory(0) = %v", got)
	}
}

func TestPeerCollector_StartStop(t *testing.T) {
	reader := &mockPeerReader{status: threePeers()}
	store := NewMetricsStore(DefaultStoreConfig(), time.Now())
	c := NewPeerCollector(PeerCollectorConfig{CollectionInterval: 10 * time.Millisecond}, reader, store.UpdatePeers)

	c.Start()
	deadline := time.Now().Add(2 * time.Second)
	for reader.callCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	c.Stop()

	if reader.callCount() < 3 {
		t.Fatalf("expected at least 3 reads, got %d", reader.callCount())
	}
	if got := store.GetPollMetrics().Peers.Total; got != 3 {
		t.Errorf("store peers = %d, want 3", got)
	}

	after := reader.callCount()
	time.Sleep(30 * time.Millisecond)
	if reader.callCount() != after {
		t.Error("collector kept reading after Stop")
	}
}
