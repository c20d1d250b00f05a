package ratelimit

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T) (*RedisRateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRateLimiter(client, nil), mr
}

func TestAllowRequest_WithinLimit(t *testing.T) {
	rl, _ := newLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, remaining, err := rl.AllowRequest(ctx, "u-1", 3, 60)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, 3-(i+1), remaining)
	}

	allowed, remaining, err := rl.AllowRequest(ctx, "u-1", 3, 60)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 0, remaining)
}

func TestAllowRequest_UsersAreIndependent(t *testing.T) {
	rl, mr := newLimiter(t)
	ctx := context.Background()

	_, _, err := rl.AllowRequest(ctx, "u-1", 1, 60)
	require.NoError(t, err)
	allowed, _, err := rl.AllowRequest(ctx, "u-1", 1, 60)
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, _, err = rl.AllowRequest(ctx, "u-2", 1, 60)
	require.NoError(t, err)
	assert.True(t, allowed)

	assert.True(t, mr.Exists("ratelimit:user:u-1"))
	assert.Greater(t, mr.TTL("ratelimit:user:u-1").Seconds(), 60.0)
}

func TestAllowRequest_RedisDown(t *testing.T) {
	rl, mr := newLimiter(t)
	mr.Close()

	_, _, err := rl.AllowRequest(context.Background(), "u-1", 1, 60)
	assert.Error(t, err)
}
