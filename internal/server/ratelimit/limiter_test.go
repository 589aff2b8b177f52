package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jorenvermeersch/budget-api/internal/logging"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLimiter(client, logging.Discard()), mr
}

func TestAllow_WithinAndOverLimit(t *testing.T) {
	l, _ := newLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "login:10.0.0.1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "hit %d", i+1)
	}

	ok, err := l.Allow(ctx, "login:10.0.0.1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	l, _ := newLimiter(t)
	ctx := context.Background()

	ok, err := l.Allow(ctx, "a", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Allow(ctx, "b", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Allow(ctx, "a", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAllow_WindowExpires(t *testing.T) {
	l, mr := newLimiter(t)
	ctx := context.Background()

	_, err := l.Allow(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	ok, _ := l.Allow(ctx, "k", 1, time.Minute)
	require.False(t, ok)

	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+"k"))
	mr.FastForward(time.Minute)

	ok, err = l.Allow(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAllow_FailsOpen(t *testing.T) {
	l, mr := newLimiter(t)
	mr.Close()

	ok, err := l.Allow(context.Background(), "k", 1, time.Minute)
	assert.Error(t, err)
	assert.True(t, ok)
}
