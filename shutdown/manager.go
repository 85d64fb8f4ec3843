package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"syncmonitor/core"
	"syncmonitor/logging"

	"go.uber.org/zap"
)

// DefaultTimeout bounds the whole shutdown sequence.
const DefaultTimeout = 30 * time.Second

// Manager owns the daemon's root context. Start cancels it on SIGINT or
// SIGTERM; a second signal exits immediately. Shutdown then waits for
// background tasks and runs the registered hooks.
//
//	m := shutdown.NewManager(logger)
//	m.Register("database", shutdown.PriorityStorage, db.Close)
//	m.Go("webui", func(ctx context.Context) { server.Start(ctx) })
//	m.Start()
//	m.Wait()
//	err := m.Shutdown()
type Manager struct {
	logger  *logging.Logger
	timeout time.Duration
	exit    func(code int)

	ctx    context.Context
	cancel context.CancelFunc

	tasks   *TaskGroup
	hooks   *Registry
	signals *signalCounter
	sigCh   chan os.Signal

	mu       sync.Mutex
	started  bool
	stopping bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithExitFunc replaces os.Exit for the forced exit on a second signal.
func WithExitFunc(exit func(code int)) Option {
	return func(m *Manager) {
		m.exit = exit
	}
}

// NewManager returns a manager whose context is live until a signal
// arrives or Trigger is called.
func NewManager(logger *logging.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		logger:  logger.Named("shutdown"),
		timeout: DefaultTimeout,
		exit:    os.Exit,
		ctx:     ctx,
		cancel:  cancel,
		tasks:   NewTaskGroup(),
		hooks:   NewRegistry(),
		sigCh:   make(chan os.Signal, 2),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.signals = newSignalCounter(2, func() {
		m.logger.Warn("second signal received, exiting immediately")
		m.exit(core.ExitCodeError)
	})
	return m
}

// Context is cancelled when shutdown begins.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Register adds a cleanup hook; see the Priority constants.
func (m *Manager) Register(name string, priority int, fn core.ShutdownFunc) {
	m.hooks.Register(name, priority, fn)
	m.logger.Debug("registered shutdown hook", zap.String("hook", name), zap.Int("priority", priority))
}

// Go runs fn with the manager's context as a tracked background task.
func (m *Manager) Go(name string, fn func(ctx context.Context)) error {
	err := m.tasks.Go(name, func() { fn(m.ctx) })
	if err != nil {
		m.logger.Debug("task rejected, shutting down", zap.String("task", name))
	}
	return err
}

// Start listens for SIGINT and SIGTERM. Calling it again has no effect.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true

	signal.Notify(m.sigCh, os.Interrupt, syscall.SIGTERM)
	go m.watch()
}

func (m *Manager) watch() {
	for sig := range m.sigCh {
		m.handleSignal(sig)
	}
}

func (m *Manager) handleSignal(sig os.Signal) {
	if m.signals.observe(sig) {
		m.logger.Info("signal received, shutting down", zap.String("signal", sig.String()))
		m.cancel()
	}
}

// Trigger begins shutdown without a signal, e.g. when the service manager
// asks the daemon to stop.
func (m *Manager) Trigger(reason string) {
	m.logger.Info("shutdown requested", zap.String("reason", reason))
	m.cancel()
}

// Wait blocks until shutdown begins.
func (m *Manager) Wait() {
	<-m.ctx.Done()
}

// Shutdown cancels the context, waits for tasks and runs the hooks, all
// within the timeout. Only the first call does anything.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return nil
	}
	m.stopping = true
	started := m.started
	m.mu.Unlock()

	begin := time.Now()
	m.cancel()
	m.tasks.Close()

	// tasks such as the HTTP server only return once their hook has run
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.logger.Info("running shutdown hooks", zap.Strings("hooks", m.hooks.Names()))
	err := m.hooks.Run(ctx, func(name string, err error) {
		if err != nil {
			m.logger.Error("shutdown hook failed", zap.String("hook", name), zap.Error(err))
			return
		}
		m.logger.Debug("shutdown hook done", zap.String("hook", name))
	})

	remaining := m.timeout - time.Since(begin)
	if remaining < time.Second {
		remaining = time.Second
	}
	if werr := m.tasks.Wait(remaining); werr != nil {
		m.logger.Warn("background tasks still running", zap.Strings("tasks", m.tasks.Running()))
	}

	if started {
		signal.Stop(m.sigCh)
		close(m.sigCh)
	}

	m.logger.Info("shutdown complete",
		zap.Duration("duration", time.Since(begin)),
		zap.Bool("clean", err == nil))
	return err
}

// ExitCode is 130 or 143 when a signal triggered shutdown, else 0.
func (m *Manager) ExitCode() int {
	return m.signals.exitCode()
}

// Hooks lists hook names in run order.
func (m *Manager) Hooks() []string {
	return m.hooks.Names()
}

// Tasks lists the background tasks still running.
func (m *Manager) Tasks() []string {
	return m.tasks.Running()
}
