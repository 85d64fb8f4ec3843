package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"syncmonitor/core"
)

// Hook priorities. Lower values run first.
const (
	PriorityServer  = 10 // stop accepting HTTP and websocket clients
	PriorityMonitor = 20 // stop polling and background collectors
	PriorityStorage = 30 // flush writers, close the database
	PriorityLogger  = 90
)

type hook struct {
	name     string
	priority int
	seq      int
	fn       core.ShutdownFunc
}

// Registry holds cleanup hooks and runs them once, in priority order.
// Hooks with equal priority run in registration order.
type Registry struct {
	mu    sync.Mutex
	hooks []hook
	ran   bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a hook. It is ignored after Run.
func (r *Registry) Register(name string, priority int, fn core.ShutdownFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ran {
		return
	}
	r.hooks = append(r.hooks, hook{name: name, priority: priority, seq: len(r.hooks), fn: fn})
}

// Run calls every hook, even after failures, and joins their errors. Each
// error is prefixed with its hook's name. Only the first call runs hooks.
func (r *Registry) Run(ctx context.Context, onDone func(name string, err error)) error {
	r.mu.Lock()
	if r.ran {
		r.mu.Unlock()
		return nil
	}
	r.ran = true
	hooks := r.sorted()
	r.mu.Unlock()

	var errs []error
	for _, h := range hooks {
		err := h.fn(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
		if onDone != nil {
			onDone(h.name, err)
		}
	}
	return errors.Join(errs...)
}

// Names lists hooks in run order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	hooks := r.sorted()
	names := make([]string, len(hooks))
	for i, h := range hooks {
		names[i] = h.name
	}
	return names
}

// caller holds r.mu
func (r *Registry) sorted() []hook {
	hooks := append([]hook(nil), r.hooks...)
	sort.Slice(hooks, func(i, j int) bool {
		if hooks[i].priority != hooks[j].priority {
			return hooks[i].priority < hooks[j].priority
		}
		return hooks[i].seq < hooks[j].seq
	})
	return hooks
}
