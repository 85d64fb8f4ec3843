package db

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultChannelCapacity is the default buffer size for async writes.
const DefaultChannelCapacity = 64

// WriteOperation is one queued write.
type WriteOperation struct {
	// Data holds the write payload
	Data interface{}
	// Timestamp when the operation was queued
	Timestamp time.Time
}

// WriteHandler processes a single write operation.
type WriteHandler func(op WriteOperation) error

// AsyncWriter applies writes on a background goroutine so callers on a hot
// path never wait on SQLite. Writes that do not fit in the buffer are
// dropped and counted.
type AsyncWriter struct {
	writeChan chan WriteOperation
	handler   WriteHandler
	onError   func(error)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool

	dropped atomic.Int64
	failed  atomic.Int64
}

// AsyncWriterConfig holds configuration for the async writer.
type AsyncWriterConfig struct {
	// ChannelCapacity is the buffer size for pending writes
	ChannelCapacity int
	// OnError is called for every failed write (optional)
	OnError func(error)
}

// DefaultAsyncWriterConfig returns the default configuration.
func DefaultAsyncWriterConfig() AsyncWriterConfig {
	return AsyncWriterConfig{ChannelCapacity: DefaultChannelCapacity}
}

// NewAsyncWriter creates an async writer. Call Start before writing.
func NewAsyncWriter(handler WriteHandler, config AsyncWriterConfig) *AsyncWriter {
	if config.ChannelCapacity <= 0 {
		config.ChannelCapacity = DefaultChannelCapacity
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &AsyncWriter{
		writeChan: make(chan WriteOperation, config.ChannelCapacity),
		handler:   handler,
		onError:   config.OnError,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the background goroutine. Further calls are no-ops.
func (w *AsyncWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return
	}
	w.started = true
	w.wg.Add(1)
	go w.run()
}

func (w *AsyncWriter) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			w.drain()
			return
		case op := <-w.writeChan:
			w.apply(op)
		}
	}
}

// drain applies whatever is still buffered at shutdown.
func (w *AsyncWriter) drain() {
	for {
		select {
		case op := <-w.writeChan:
			w.apply(op)
		default:
			return
		}
	}
}

func (w *AsyncWriter) apply(op WriteOperation) {
	if err := w.handler(op); err != nil {
		w.failed.Add(1)
		if w.onError != nil {
			w.onError(err)
		}
	}
}

// Write queues data without blocking. It returns false when the buffer is
// full or the writer has been stopped.
func (w *AsyncWriter) Write(data interface{}) bool {
	if w.ctx.Err() != nil {
		w.dropped.Add(1)
		return false
	}

	select {
	case w.writeChan <- WriteOperation{Data: data, Timestamp: time.Now()}:
		return true
	default:
		w.dropped.Add(1)
		return false
	}
}

// Pending returns the number of buffered writes.
func (w *AsyncWriter) Pending() int {
	return len(w.writeChan)
}

// Dropped returns how many writes were rejected.
func (w *AsyncWriter) Dropped() int64 {
	return w.dropped.Load()
}

// Failed returns how many writes returned an error from the handler.
func (w *AsyncWriter) Failed() int64 {
	return w.failed.Load()
}

// IsStarted reports whether Start has been called.
func (w *AsyncWriter) IsStarted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started
}

// Stop drains buffered writes and waits for the goroutine, up to timeout.
// It returns false if the drain did not finish in time.
func (w *AsyncWriter) Stop(timeout time.Duration) bool {
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
