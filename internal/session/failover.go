package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// FailoverManager reads and writes through a primary Manager and falls
// back to a secondary one while the primary is down. Fallback states
// are process-local, so a dialogue may lose a step across a restart;
// that only forces the visitor to start over, never corrupts bookings.
type FailoverManager struct {
	primary  Manager
	fallback Manager
	logger   *zerolog.Logger

	isDown    atomic.Bool
	downSince atomic.Int64

	// RetryInterval controls how often the primary is re-probed.
	RetryInterval time.Duration
}

// NewFailoverManager wraps primary with fallback.
func NewFailoverManager(primary, fallback Manager, logger *zerolog.Logger) *FailoverManager {
	return &FailoverManager{
		primary:       primary,
		fallback:      fallback,
		logger:        logger,
		RetryInterval: 30 * time.Second,
	}
}

func (m *FailoverManager) markDown(err error) {
	if m.isDown.CompareAndSwap(false, true) {
		m.downSince.Store(time.Now().UnixNano())
		m.logger.Warn().Err(err).Msg("session primary down, using fallback")
	}
}

func (m *FailoverManager) shouldTryPrimary() bool {
	if !m.isDown.Load() {
		return true
	}
	since := time.Unix(0, m.downSince.Load())
	if time.Since(since) < m.RetryInterval {
		return false
	}
	// Probe window: one caller retries the primary.
	m.downSince.Store(time.Now().UnixNano())
	return true
}

func (m *FailoverManager) recovered() {
	if m.isDown.CompareAndSwap(true, false) {
		m.logger.Info().Msg("session primary recovered")
	}
}

func (m *FailoverManager) Get(ctx context.Context, phone string) (*State, error) {
	if m.shouldTryPrimary() {
		state, err := m.primary.Get(ctx, phone)
		if err == nil {
			m.recovered()
			return state, nil
		}
		m.markDown(err)
	}
	return m.fallback.Get(ctx, phone)
}

func (m *FailoverManager) Set(ctx context.Context, state *State) error {
	if m.shouldTryPrimary() {
		if err := m.primary.Set(ctx, state); err == nil {
			m.recovered()
			return nil
		} else {
			m.markDown(err)
		}
	}
	return m.fallback.Set(ctx, state)
}

func (m *FailoverManager) Clear(ctx context.Context, phone string) error {
	// Clear both so a recovery cannot resurrect a finished dialogue.
	var primaryErr error
	if m.shouldTryPrimary() {
		primaryErr = m.primary.Clear(ctx, phone)
		if primaryErr == nil {
			m.recovered()
		} else {
			m.markDown(primaryErr)
		}
	}
	if err := m.fallback.Clear(ctx, phone); err != nil {
		return err
	}
	return primaryErr
}
