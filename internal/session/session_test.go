package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryManagerRoundTrip(t *testing.T) {
	m := NewMemoryManager(time.Minute)
	ctx := context.Background()

	got, err := m.Get(ctx, "5511999990001")
	require.NoError(t, err)
	assert.Nil(t, got)

	state := NewState("5511999990001", "unit_select")
	state.Set("unit", "A")
	require.NoError(t, m.Set(ctx, state))

	got, err = m.Get(ctx, "5511999990001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "unit_select", got.Step)
	assert.Equal(t, "A", got.GetString("unit"))

	require.NoError(t, m.Clear(ctx, "5511999990001"))
	got, err = m.Get(ctx, "5511999990001")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryManagerTTL(t *testing.T) {
	m := NewMemoryManager(50 * time.Millisecond)
	ctx := context.Background()

	state := NewState("5511999990002", "date_select")
	require.NoError(t, m.Set(ctx, state))

	time.Sleep(80 * time.Millisecond)

	got, err := m.Get(ctx, "5511999990002")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryManagerCleanup(t *testing.T) {
	m := NewMemoryManager(50 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, NewState("a", "unit_select")))
	require.NoError(t, m.Set(ctx, NewState("b", "unit_select")))

	time.Sleep(80 * time.Millisecond)
	require.NoError(t, m.Set(ctx, NewState("c", "unit_select")))

	assert.Equal(t, 2, m.Cleanup())

	got, err := m.Get(ctx, "c")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func newRedisManager(t *testing.T) *RedisManager {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisManager(client, time.Minute)
}

func TestRedisManagerRoundTrip(t *testing.T) {
	m := newRedisManager(t)
	ctx := context.Background()

	got, err := m.Get(ctx, "5511999990003")
	require.NoError(t, err)
	assert.Nil(t, got)

	state := NewState("5511999990003", "time_select")
	state.Set("unit", "B")
	state.Set("dates", []string{"2024-06-10", "2024-06-11"})
	require.NoError(t, m.Set(ctx, state))

	got, err = m.Get(ctx, "5511999990003")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "time_select", got.Step)
	assert.Equal(t, "B", got.GetString("unit"))
	// JSON stores slices as []interface{}; GetStrings must recover them.
	assert.Equal(t, []string{"2024-06-10", "2024-06-11"}, got.GetStrings("dates"))

	require.NoError(t, m.Clear(ctx, "5511999990003"))
	got, err = m.Get(ctx, "5511999990003")
	require.NoError(t, err)
	assert.Nil(t, got)
}

// brokenManager always fails, standing in for an unreachable redis.
type brokenManager struct{}

func (brokenManager) Get(context.Context, string) (*State, error) {
	return nil, errors.New("connection refused")
}
func (brokenManager) Set(context.Context, *State) error   { return errors.New("connection refused") }
func (brokenManager) Clear(context.Context, string) error { return errors.New("connection refused") }

func TestFailoverFallsBackWhenPrimaryDown(t *testing.T) {
	logger := zerolog.Nop()
	fallback := NewMemoryManager(time.Minute)
	m := NewFailoverManager(brokenManager{}, fallback, &logger)
	ctx := context.Background()

	state := NewState("5511999990004", "name_entry")
	require.NoError(t, m.Set(ctx, state))

	got, err := m.Get(ctx, "5511999990004")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "name_entry", got.Step)
}

func TestFailoverSkipsPrimaryUntilRetryInterval(t *testing.T) {
	logger := zerolog.Nop()
	fallback := NewMemoryManager(time.Minute)
	m := NewFailoverManager(brokenManager{}, fallback, &logger)
	m.RetryInterval = time.Hour
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, NewState("x", "unit_select")))
	assert.False(t, m.shouldTryPrimary())
}

func TestFailoverRecovers(t *testing.T) {
	logger := zerolog.Nop()
	primary := NewMemoryManager(time.Minute)
	fallback := NewMemoryManager(time.Minute)
	m := NewFailoverManager(primary, fallback, &logger)
	ctx := context.Background()

	// Force the down state, then allow an immediate probe.
	m.markDown(errors.New("connection refused"))
	m.RetryInterval = 0

	require.NoError(t, m.Set(ctx, NewState("5511999990005", "confirm")))
	assert.False(t, m.isDown.Load())

	got, err := primary.Get(ctx, "5511999990005")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestFailoverClearClearsBoth(t *testing.T) {
	logger := zerolog.Nop()
	primary := NewMemoryManager(time.Minute)
	fallback := NewMemoryManager(time.Minute)
	m := NewFailoverManager(primary, fallback, &logger)
	ctx := context.Background()

	require.NoError(t, primary.Set(ctx, NewState("y", "confirm")))
	require.NoError(t, fallback.Set(ctx, NewState("y", "confirm")))

	require.NoError(t, m.Clear(ctx, "y"))

	got, err := primary.Get(ctx, "y")
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = fallback.Get(ctx, "y")
	require.NoError(t, err)
	assert.Nil(t, got)
}
