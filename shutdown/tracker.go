// Package shutdown coordinates the daemon's graceful stop: signal handling,
// background task tracking and ordered cleanup hooks.
package shutdown

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrClosed is returned by Go once shutdown has begun.
var ErrClosed = errors.New("task group is closed")

// ErrWaitTimeout is returned when tasks are still running after Wait's timeout.
var ErrWaitTimeout = errors.New("tasks did not finish in time")

// TaskGroup tracks named background goroutines so shutdown can wait for them.
type TaskGroup struct {
	wg      sync.WaitGroup
	mu      sync.Mutex
	running map[string]int
	closed  bool
}

// NewTaskGroup returns an open, empty group.
func NewTaskGroup() *TaskGroup {
	return &TaskGroup{running: make(map[string]int)}
}

// Go runs fn in a new goroutine under name. It returns ErrClosed without
// running fn once Close has been called.
func (g *TaskGroup) Go(name string, fn func()) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrClosed
	}
	g.running[name]++
	g.wg.Add(1)
	g.mu.Unlock()

	go func() {
		defer g.done(name)
		fn()
	}()
	return nil
}

func (g *TaskGroup) done(name string) {
	g.mu.Lock()
	if g.running[name]--; g.running[name] <= 0 {
		delete(g.running, name)
	}
	g.mu.Unlock()
	g.wg.Done()
}

// Close rejects further tasks. Running ones are unaffected.
func (g *TaskGroup) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}

// Wait blocks until every task has returned or timeout elapses. The timeout
// error names the tasks still running.
func (g *TaskGroup) Wait(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: %v", ErrWaitTimeout, g.Running())
	}
}

// Running returns the names of tasks that have not returned, sorted.
func (g *TaskGroup) Running() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := make([]string, 0, len(g.running))
	for name := range g.running {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of running tasks.
func (g *TaskGroup) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.running {
		n += c
	}
	return n
}
