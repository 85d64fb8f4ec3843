package webui

import (
	"context"
	"sync"
	"time"
)

// attemptWindow tracks failed logins from one address.
type attemptWindow struct {
	count   int
	resetAt time.Time
}

// RateLimiter blocks an address after too many failed logins.
//
// Failures are counted inside a fixed window opened by the first failure.
// Reaching maxAttempts blocks the address for the block duration; a
// successful login clears it.
type RateLimiter struct {
	mu          sync.RWMutex
	attempts    map[string]attemptWindow
	maxAttempts int
	window      time.Duration
	block       time.Duration
	now         func() time.Time
}

// NewRateLimiter creates a limiter allowing maxAttempts failures per window
// before blocking for block.
func NewRateLimiter(maxAttempts int, window, block time.Duration) *RateLimiter {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RateLimiter{
		attempts:    make(map[string]attemptWindow),
		maxAttempts: maxAttempts,
		window:      window,
		block:       block,
		now:         time.Now,
	}
}

// Allow reports whether addr may try to log in and, if not, how long until
// the block lifts.
func (r *RateLimiter) Allow(addr string) (bool, time.Duration) {
	r.mu.RLock()
	w, ok := r.attempts[addr]
	r.mu.RUnlock()

	now := r.now()
	if !ok || !now.Before(w.resetAt) {
		return true, 0
	}
	if w.count >= r.maxAttempts {
		return false, w.resetAt.Sub(now)
	}
	return true, 0
}

// RecordAttempt records a failed login from addr.
func (r *RateLimiter) RecordAttempt(addr string) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.attempts[addr]
	if !ok || !now.Before(w.resetAt) {
		w = attemptWindow{resetAt: now.Add(r.window)}
	}
	w.count++
	if w.count == r.maxAttempts {
		w.resetAt = now.Add(r.block)
	}
	r.attempts[addr] = w
}

// Reset forgets addr's failures.
func (r *RateLimiter) Reset(addr string) {
	r.mu.Lock()
	delete(r.attempts, addr)
	r.mu.Unlock()
}

// Remaining returns how many failures addr may still make before it is
// blocked.
func (r *RateLimiter) Remaining(addr string) int {
	r.mu.RLock()
	w, ok := r.attempts[addr]
	r.mu.RUnlock()

	if !ok || !r.now().Before(w.resetAt) {
		return r.maxAttempts
	}
	if w.count >= r.maxAttempts {
		return 0
	}
	return r.maxAttempts - w.count
}

// Cleanup drops expired windows and returns how many were dropped.
func (r *RateLimiter) Cleanup() int {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for addr, w := range r.attempts {
		if !now.Before(w.resetAt) {
			delete(r.attempts, addr)
			removed++
		}
	}
	return removed
}

// StartCleanupTicker runs Cleanup every interval until ctx is cancelled.
func (r *RateLimiter) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	go runCleanup(ctx, interval, func() { r.Cleanup() })
}

// Count returns the number of tracked addresses.
func (r *RateLimiter) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.attempts)
}
