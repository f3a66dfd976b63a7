// Package lockmgr provides named in-process mutexes with a bounded
// wait and a bounded pending queue per key. The flat-file booking
// store uses it to serialize its read-check-write critical section.
package lockmgr

import (
	"context"
	"errors"
	"sync"
	"time"

	"quadra/internal/metrics"
)

var (
	// ErrTimeout is returned when the lock is not granted within the
	// configured wait. Safe to retry.
	ErrTimeout = errors.New("lock wait timed out")

	// ErrQueueFull is returned immediately when too many acquisitions
	// are already pending for the key.
	ErrQueueFull = errors.New("lock queue full")
)

// Config holds lock manager settings. Both values are process-wide
// configuration, not per-call parameters.
type Config struct {
	// WaitTimeout caps how long an acquisition may wait for the lock.
	WaitTimeout time.Duration
	// MaxPending caps the number of queued acquisitions per key.
	MaxPending int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		WaitTimeout: 10 * time.Second,
		MaxPending:  32,
	}
}

type entry struct {
	sem     chan struct{} // capacity 1; holding the token means holding the lock
	pending int
}

// Manager hands out named locks.
type Manager struct {
	cfg   Config
	mu    sync.Mutex
	locks map[string]*entry
}

// New creates a Manager, falling back to defaults for zero values.
func New(cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = def.WaitTimeout
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = def.MaxPending
	}
	return &Manager{cfg: cfg, locks: make(map[string]*entry)}
}

func (m *Manager) enter(key string) (*entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.locks[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		e.sem <- struct{}{}
		m.locks[key] = e
	}
	if e.pending >= m.cfg.MaxPending {
		return nil, ErrQueueFull
	}
	e.pending++
	return e, nil
}

func (m *Manager) leave(e *entry) {
	m.mu.Lock()
	e.pending--
	m.mu.Unlock()
}

// Acquire runs fn while holding the lock named by key. It waits at
// most the configured timeout for the lock and rejects immediately
// when the pending queue for the key is full.
func (m *Manager) Acquire(ctx context.Context, key string, fn func() error) error {
	e, err := m.enter(key)
	if err != nil {
		return err
	}
	defer m.leave(e)

	start := time.Now()
	timer := time.NewTimer(m.cfg.WaitTimeout)
	defer timer.Stop()

	select {
	case token := <-e.sem:
		metrics.ObserveLockWait(key, time.Since(start))
		defer func() { e.sem <- token }()
		return fn()
	case <-timer.C:
		return ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsBusy reports whether err is a transient contention failure
// (timeout or full queue) as opposed to a business rejection.
func IsBusy(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrQueueFull)
}
