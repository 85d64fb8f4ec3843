package shutdown

import (
	"os"
	"sync"
	"syscall"

	"syncmonitor/core"
)

// signalCounter counts shutdown signals. The first one starts a graceful
// stop; reaching forceAfter calls onForce.
type signalCounter struct {
	mu         sync.Mutex
	count      int
	first      os.Signal
	forceAfter int
	onForce    func()
}

func newSignalCounter(forceAfter int, onForce func()) *signalCounter {
	if forceAfter < 1 {
		forceAfter = 1
	}
	return &signalCounter{forceAfter: forceAfter, onForce: onForce}
}

// observe records sig and reports whether it was the first one.
// onForce runs outside the lock.
func (s *signalCounter) observe(sig os.Signal) (first bool) {
	s.mu.Lock()
	s.count++
	first = s.count == 1
	if first {
		s.first = sig
	}
	force := s.count >= s.forceAfter && !first
	s.mu.Unlock()

	if force && s.onForce != nil {
		s.onForce()
	}
	return first
}

// exitCode maps the first signal to its conventional exit code, or
// ExitCodeSuccess if none arrived.
func (s *signalCounter) exitCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.first {
	case nil:
		return core.ExitCodeSuccess
	case syscall.SIGTERM:
		return core.ExitCodeSIGTERM
	default:
		return core.ExitCodeSIGINT
	}
}
