package shutdown

import (
	"context"
	"errors"
	"os"
	"reflect"
	"syscall"
	"testing"
	"time"

	"syncmonitor/core"
	"syncmonitor/logging"

	"go.uber.org/zap/zaptest"
)

func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	return NewManager(logging.NewFromZap(zaptest.NewLogger(t)), opts...)
}

func TestManager_Defaults(t *testing.T) {
	m := NewManager(nil)
	if m.timeout != DefaultTimeout {
		t.Errorf("timeout = %v", m.timeout)
	}
	if m.Context().Err() != nil {
		t.Error("context cancelled before shutdown")
	}
	if m.ExitCode() != core.ExitCodeSuccess {
		t.Errorf("ExitCode() = %d", m.ExitCode())
	}

	if NewManager(nil, WithTimeout(5*time.Second)).timeout != 5*time.Second {
		t.Error("WithTimeout ignored")
	}
	if NewManager(nil, WithTimeout(-1)).timeout != DefaultTimeout {
		t.Error("non-positive timeout accepted")
	}
}

func TestManager_ShutdownSequence(t *testing.T) {
	m := newTestManager(t, WithTimeout(2*time.Second))

	var order []string
	stopped := make(chan struct{})
	m.Register("database", PriorityStorage, func(ctx context.Context) error {
		order = append(order, "database")
		return nil
	})
	m.Register("webui", PriorityServer, func(ctx context.Context) error {
		order = append(order, "webui")
		close(stopped)
		return nil
	})

	taskDone := make(chan struct{})
	if err := m.Go("webui", func(ctx context.Context) {
		<-stopped
		close(taskDone)
	}); err != nil {
		t.Fatal(err)
	}

	if err := m.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	select {
	case <-taskDone:
	default:
		t.Error("Shutdown returned before the task finished")
	}
	if !reflect.DeepEqual(order, []string{"webui", "database"}) {
		t.Errorf("hook order = %v", order)
	}
	if m.Context().Err() == nil {
		t.Error("context not cancelled by Shutdown")
	}
	if err := m.Go("late", func(ctx context.Context) {}); !errors.Is(err, ErrClosed) {
		t.Errorf("Go() after Shutdown error = %v", err)
	}
	if err := m.Shutdown(); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}

func TestManager_TasksSeeCancellation(t *testing.T) {
	m := newTestManager(t)
	exited := make(chan struct{})
	m.Go("poller", func(ctx context.Context) {
		<-ctx.Done()
		close(exited)
	})

	m.Trigger("test")
	m.Wait()

	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("task did not observe cancellation")
	}
	if err := m.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if len(m.Tasks()) != 0 {
		t.Errorf("Tasks() = %v", m.Tasks())
	}
}

func TestManager_HookErrors(t *testing.T) {
	m := newTestManager(t)
	m.Register("database", PriorityStorage, func(ctx context.Context) error {
		return errors.New("busy")
	})
	m.Register("logger", PriorityLogger, func(ctx context.Context) error { return nil })

	err := m.Shutdown()
	if err == nil || err.Error() != "database: busy" {
		t.Errorf("Shutdown() error = %v", err)
	}
	if got := m.Hooks(); !reflect.DeepEqual(got, []string{"database", "logger"}) {
		t.Errorf("Hooks() = %v", got)
	}
}

func TestManager_StuckTaskDoesNotBlock(t *testing.T) {
	m := newTestManager(t, WithTimeout(10*time.Millisecond))
	release := make(chan struct{})
	defer close(release)
	m.Go("stuck", func(ctx context.Context) { <-release })

	done := make(chan error, 1)
	go func() { done <- m.Shutdown() }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Shutdown blocked on a stuck task")
	}
	if got := m.Tasks(); !reflect.DeepEqual(got, []string{"stuck"}) {
		t.Errorf("Tasks() = %v", got)
	}
}

func TestManager_Signals(t *testing.T) {
	exitCode := -1
	m := newTestManager(t, WithExitFunc(func(code int) { exitCode = code }))

	m.handleSignal(syscall.SIGTERM)
	select {
	case <-m.Context().Done():
	default:
		t.Fatal("first signal did not cancel the context")
	}
	if exitCode != -1 {
		t.Error("first signal forced an exit")
	}

	m.handleSignal(os.Interrupt)
	if exitCode != core.ExitCodeError {
		t.Errorf("forced exit code = %d", exitCode)
	}
	if m.ExitCode() != core.ExitCodeSIGTERM {
		t.Errorf("ExitCode() = %d, want %d", m.ExitCode(), core.ExitCodeSIGTERM)
	}
}

func TestManager_StartIdempotent(t *testing.T) {
	m := newTestManager(t)
	m.Start()
	m.Start()
	if err := m.Shutdown(); err != nil {
		t.Fatal(err)
	}
}
