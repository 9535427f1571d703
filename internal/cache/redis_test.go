//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration tests against a local redis
// Run with: go test -v -tags=integration ./internal/cache/...

func setupTestCache(t *testing.T) (*RedisCache, context.Context) {
	cache, err := NewRedisCache(Config{Host: "localhost", Port: "6379", DB: 15})
	require.NoError(t, err, "Failed to connect to test redis")
	t.Cleanup(func() { cache.Close() })
	return cache, context.Background()
}

func TestRedisCache_SetGet(t *testing.T) {
	cache, ctx := setupTestCache(t)

	key := "synergy:/ncaamb/seasons:test"
	require.NoError(t, cache.Set(ctx, key, []byte(`{"data":[]}`), time.Minute))

	value, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"data":[]}`, string(value))
}

func TestRedisCache_Miss(t *testing.T) {
	cache, ctx := setupTestCache(t)

	value, ok, err := cache.Get(ctx, "synergy:missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, value)
}

func TestRedisCache_Invalidate(t *testing.T) {
	cache, ctx := setupTestCache(t)

	require.NoError(t, cache.Set(ctx, "synergy:/ncaamb/teams?seasonId=1", []byte("a"), time.Minute))
	require.NoError(t, cache.Set(ctx, "synergy:/ncaamb/teams?seasonId=2", []byte("b"), time.Minute))

	removed, err := cache.Invalidate(ctx, "synergy:/ncaamb/teams")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, ok, err := cache.Get(ctx, "synergy:/ncaamb/teams?seasonId=1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_Health(t *testing.T) {
	cache, ctx := setupTestCache(t)
	assert.NoError(t, cache.Health(ctx))
}
