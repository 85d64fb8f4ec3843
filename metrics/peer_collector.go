// Package metrics provides the PeerCollector, which samples the node's peer
// connections on a fixed interval.
package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"syncmonitor/nodeapi"
)

// PeerReader reads the node's connections. *nodeapi.Client implements it.
type PeerReader interface {
	ConnectionStatus(ctx context.Context) (*nodeapi.ConnectionStatus, error)
}

// PeerCollectorConfig configures the PeerCollector behavior.
type PeerCollectorConfig struct {
	// CollectionInterval is how often to sample
	CollectionInterval time.Duration

	// HistorySize is the number of samples to retain (120 = 1 hour at 30s intervals)
	HistorySize int

	// ReadTimeout bounds a single read
	ReadTimeout time.Duration
}

// DefaultPeerCollectorConfig returns a default configuration.
func DefaultPeerCollectorConfig() PeerCollectorConfig {
	return PeerCollectorConfig{
		CollectionInterval: 30 * time.Second,
		HistorySize:        120,
		ReadTimeout:        10 * time.Second,
	}
}

// PeerCollector periodically samples peer connections and keeps a history.
// It runs independently of the poll cycle and never publishes on the
// progress stream.
type PeerCollector struct {
	mu sync.RWMutex

	config PeerCollectorConfig
	reader PeerReader

	// History storage (circular buffer)
	history  []PeerSample
	histHead int
	histSize int
	histCap  int

	lastSample PeerSample
	available  bool
	lastError  error

	onSample func(PeerSample)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPeerCollector creates a PeerCollector. onSample is invoked after every
// successful read and may be nil.
func NewPeerCollector(config PeerCollectorConfig, reader PeerReader, onSample func(PeerSample)) *PeerCollector {
	if config.CollectionInterval <= 0 {
		config.CollectionInterval = 30 * time.Second
	}
	if config.HistorySize < 1 {
		config.HistorySize = 120
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &PeerCollector{
		config:   config,
		reader:   reader,
		history:  make([]PeerSample, config.HistorySize),
		histCap:  config.HistorySize,
		onSample: onSample,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins sampling in a background goroutine.
func (c *PeerCollector) Start() {
	c.wg.Add(1)
	go c.collectLoop()
}

// Stop halts sampling and waits for the goroutine to exit.
func (c *PeerCollector) Stop() {
	c.cancel()
	c.wg.Wait()
}

// IsAvailable reports whether the last read succeeded.
func (c *PeerCollector) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.available
}

// GetLastError returns the error of the last read, nil if it succeeded.
func (c *PeerCollector) GetLastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError
}

// GetCurrent returns the latest successful sample.
func (c *PeerCollector) GetCurrent() PeerSample {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSample
}

// GetHistory returns the last limit samples, oldest first.
func (c *PeerCollector) GetHistory(limit int) []PeerSample {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if limit <= 0 || c.histSize == 0 {
		return []PeerSample{}
	}
	if limit > c.histSize {
		limit = c.histSize
	}

	result := make([]PeerSample, limit)
	for i := 0; i < limit; i++ {
		idx := (c.histHead - limit + i + c.histCap) % c.histCap
		result[i] = c.history[idx]
	}
	return result
}

func (c *PeerCollector) collectLoop() {
	defer c.wg.Done()

	c.collectOnce()

	ticker := time.NewTicker(c.config.CollectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.collectOnce()
		}
	}
}

func (c *PeerCollector) collectOnce() {
	sample, err := c.read()
	if errors.Is(err, context.Canceled) && c.ctx.Err() != nil {
		return
	}

	c.mu.Lock()
	if err != nil {
		// keep the last good sample but don't add to history
		c.available = false
		c.lastError = err
	} else {
		c.available = true
		c.lastError = nil
		c.lastSample = sample

		c.history[c.histHead] = sample
		c.histHead = (c.histHead + 1) % c.histCap
		if c.histSize < c.histCap {
			c.histSize++
		}
	}
	c.mu.Unlock()

	if c.onSample != nil && err == nil {
		c.onSample(sample)
	}
}

func (c *PeerCollector) read() (PeerSample, error) {
	ctx, cancel := context.WithTimeout(c.ctx, c.config.ReadTimeout)
	defer cancel()

	status, err := c.reader.ConnectionStatus(ctx)
	if err != nil {
		return PeerSample{}, err
	}
	return summarizePeers(status, time.Now()), nil
}

// summarizePeers reduces a connection list to counts.
func summarizePeers(status *nodeapi.ConnectionStatus, at time.Time) PeerSample {
	sample := PeerSample{At: at}
	if status == nil {
		return sample
	}
	sample.Total = len(status.Connections)
	for _, conn := range status.Connections {
		if conn.Outgoing {
			sample.Outgoing++
		}
	}
	return sample
}
