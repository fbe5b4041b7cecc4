package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) (*PendingCountCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewPendingCountCache(client, ttl), mr
}

func TestPendingCountCache_GetSet(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "sup1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "sup1", 4))
	require.NoError(t, c.Set(ctx, "acc", 0))

	n, ok, err := c.Get(ctx, "sup1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 4, n)

	n, ok, err = c.Get(ctx, "acc")
	require.NoError(t, err)
	assert.True(t, ok, "a cached zero is still a hit")
	assert.Zero(t, n)
}

func TestPendingCountCache_InvalidateDropsEveryUser(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "sup1", 4))
	require.NoError(t, c.Set(ctx, "sup2", 1))
	require.NoError(t, c.Invalidate(ctx))

	for _, user := range []string{"sup1", "sup2"} {
		_, ok, err := c.Get(ctx, user)
		require.NoError(t, err)
		assert.False(t, ok, user)
	}

	require.NoError(t, c.Set(ctx, "sup1", 2))
	n, ok, err := c.Get(ctx, "sup1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, n)
}

func TestPendingCountCache_TTL(t *testing.T) {
	c, mr := newTestCache(t, 30*time.Second)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "sup1", 4))
	assert.Equal(t, 30*time.Second, mr.TTL("bills:pending:0:sup1"))

	mr.FastForward(31 * time.Second)
	_, ok, err := c.Get(ctx, "sup1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPendingCountCache_ServerDown(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	mr.Close()

	_, _, err := c.Get(context.Background(), "sup1")
	assert.Error(t, err)
	assert.Error(t, c.Invalidate(context.Background()))
}

func TestNew_PingFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(context.Background(), Config{Addr: addr})
	assert.Error(t, err)
}
