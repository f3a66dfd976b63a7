// Package session holds the ephemeral per-conversation dialogue state,
// keyed by the channel identity of the visitor.
package session

import (
	"context"
	"sync"
	"time"
)

// State is the scratch record for one dialogue, mutated at every step
// and cleared on completion, abandonment or restart.
type State struct {
	Phone     string                 `json:"phone"`
	Step      string                 `json:"step"`
	Data      map[string]interface{} `json:"data"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// NewState creates an empty state for phone at the given step.
func NewState(phone, step string) *State {
	return &State{
		Phone:     phone,
		Step:      step,
		Data:      make(map[string]interface{}),
		UpdatedAt: time.Now(),
	}
}

// Set stores a scratch value.
func (s *State) Set(key string, value interface{}) {
	if s.Data == nil {
		s.Data = make(map[string]interface{})
	}
	s.Data[key] = value
}

// GetString returns a string scratch value or "".
func (s *State) GetString(key string) string {
	if v, ok := s.Data[key].(string); ok {
		return v
	}
	return ""
}

// GetStrings returns a string-slice scratch value. JSON round trips
// store slices as []interface{}, so both shapes are accepted.
func (s *State) GetStrings(key string) []string {
	switch v := s.Data[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// Manager stores dialogue states. Implementations must be safe for
// concurrent use by independent conversations.
type Manager interface {
	// Get returns the state for phone, or nil when none exists.
	Get(ctx context.Context, phone string) (*State, error)
	Set(ctx context.Context, state *State) error
	Clear(ctx context.Context, phone string) error
}

// MemoryManager keeps states in a process-local map with a TTL.
type MemoryManager struct {
	mu     sync.Mutex
	states map[string]*State
	ttl    time.Duration
}

// NewMemoryManager creates a MemoryManager. A non-positive ttl
// defaults to 30 minutes.
func NewMemoryManager(ttl time.Duration) *MemoryManager {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &MemoryManager{states: make(map[string]*State), ttl: ttl}
}

func (m *MemoryManager) Get(_ context.Context, phone string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[phone]
	if !ok {
		return nil, nil
	}
	if time.Since(state.UpdatedAt) > m.ttl {
		delete(m.states, phone)
		return nil, nil
	}
	return state, nil
}

func (m *MemoryManager) Set(_ context.Context, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state.UpdatedAt = time.Now()
	m.states[state.Phone] = state
	return nil
}

func (m *MemoryManager) Clear(_ context.Context, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, phone)
	return nil
}

// Cleanup removes expired states and returns how many were dropped.
func (m *MemoryManager) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for phone, state := range m.states {
		if time.Since(state.UpdatedAt) > m.ttl {
			delete(m.states, phone)
			removed++
		}
	}
	return removed
}
