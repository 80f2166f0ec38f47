package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/config"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewClient(config.RedisConfig{Addr: mr.Addr(), PoolSize: 2})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSetOperations(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.SAdd(ctx, "vocab:tag", "THESIS", "BOOK"))
	require.NoError(t, c.SAdd(ctx, "vocab:tag"))

	ok, err := c.SIsMember(ctx, "vocab:tag", "BOOK")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SIsMember(ctx, "vocab:tag", "SERIAL")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := c.SCard(ctx, "vocab:tag")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestFlushByPattern(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.SAdd(ctx, "vocab:a", "1"))
	require.NoError(t, c.SAdd(ctx, "vocab:b", "2"))
	require.NoError(t, c.SAdd(ctx, "other", "3"))

	deleted, err := c.FlushByPattern(ctx, "vocab:*")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	n, err := c.SCard(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestNewClientUnreachable(t *testing.T) {
	_, err := NewClient(config.RedisConfig{Addr: "127.0.0.1:1"})
	assert.ErrorContains(t, err, "redis ping failed")
}

func TestNewFromClient(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewFromClient(backend.NewClient(&backend.Options{Addr: mr.Addr()}))
	defer c.Close()
	assert.NoError(t, c.Ping(context.Background()))
}
