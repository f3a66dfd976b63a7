package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisManager keeps dialogue states in redis so they survive restarts.
type RedisManager struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisManager creates a RedisManager. A non-positive ttl defaults
// to 30 minutes.
func NewRedisManager(client *redis.Client, ttl time.Duration) *RedisManager {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisManager{client: client, ttl: ttl, prefix: "session:"}
}

func (m *RedisManager) key(phone string) string {
	return m.prefix + phone
}

func (m *RedisManager) Get(ctx context.Context, phone string) (*State, error) {
	data, err := m.client.Get(ctx, m.key(phone)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", phone, err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", phone, err)
	}
	return &state, nil
}

func (m *RedisManager) Set(ctx context.Context, state *State) error {
	state.UpdatedAt = time.Now()
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", state.Phone, err)
	}
	if err := m.client.Set(ctx, m.key(state.Phone), data, m.ttl).Err(); err != nil {
		return fmt.Errorf("set session %s: %w", state.Phone, err)
	}
	return nil
}

func (m *RedisManager) Clear(ctx context.Context, phone string) error {
	if err := m.client.Del(ctx, m.key(phone)).Err(); err != nil {
		return fmt.Errorf("clear session %s: %w", phone, err)
	}
	return nil
}
