package vocabulary

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/redis"
)

// DefaultKeyPrefix prefixes the Redis set of every vocabulary type.
const DefaultKeyPrefix = "vocab:"

// RedisCache keeps one Redis set per vocabulary type so that several
// migrator processes share confirmed keys. Sets never expire.
type RedisCache struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisCache creates a RedisCache storing its sets under prefix.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisCache{
		client: client,
		prefix: prefix,
		logger: slog.Default().With("component", "vocab-redis-cache"),
	}
}

func (c *RedisCache) setKey(vocabType string) string {
	return c.prefix + vocabType
}

func (c *RedisCache) Has(ctx context.Context, vocabType, key string) (bool, error) {
	ok, err := c.client.SIsMember(ctx, c.setKey(vocabType), key)
	if err != nil {
		return false, fmt.Errorf("checking cached key %s/%s: %w", vocabType, key, err)
	}
	return ok, nil
}

func (c *RedisCache) Add(ctx context.Context, vocabType string, keys []string) error {
	if err := c.client.SAdd(ctx, c.setKey(vocabType), keys...); err != nil {
		return fmt.Errorf("caching %d keys of %s: %w", len(keys), vocabType, err)
	}
	return nil
}

// Reset deletes every set under the cache prefix.
func (c *RedisCache) Reset(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, c.prefix+"*")
	if err != nil {
		return fmt.Errorf("resetting vocabulary cache: %w", err)
	}
	c.logger.Info("vocabulary cache reset", "prefix", c.prefix, "sets_deleted", deleted)
	return nil
}

// Len returns the number of cached keys of vocabType.
func (c *RedisCache) Len(ctx context.Context, vocabType string) (int64, error) {
	return c.client.SCard(ctx, c.setKey(vocabType))
}

// TieredCache answers from a local cache first and falls back to a shared
// one, copying shared hits into the local tier.
type TieredCache struct {
	local  *MemoryCache
	shared Cache
}

// NewTieredCache puts local in front of shared.
func NewTieredCache(local *MemoryCache, shared Cache) *TieredCache {
	return &TieredCache{local: local, shared: shared}
}

// Has checks local first and copies keys found in shared into it.
func (c *TieredCache) Has(ctx context.Context, vocabType, key string) (bool, error) {
	if ok, _ := c.local.Has(ctx, vocabType, key); ok {
		return true, nil
	}
	ok, err := c.shared.Has(ctx, vocabType, key)
	if err != nil || !ok {
		return false, err
	}
	_ = c.local.Add(ctx, vocabType, []string{key})
	return true, nil
}

func (c *TieredCache) Add(ctx context.Context, vocabType string, keys []string) error {
	if err := c.shared.Add(ctx, vocabType, keys); err != nil {
		return err
	}
	return c.local.Add(ctx, vocabType, keys)
}

func (c *TieredCache) Reset(ctx context.Context) error {
	if err := c.shared.Reset(ctx); err != nil {
		return err
	}
	return c.local.Reset(ctx)
}
