package vocabulary

import (
	"context"
	"sort"
	"sync"
)

// Cache remembers vocabulary keys that a source has confirmed. Entries are
// only ever added; Reset is the one way to remove them.
type Cache interface {
	Has(ctx context.Context, vocabType, key string) (bool, error)
	Add(ctx context.Context, vocabType string, keys []string) error
	Reset(ctx context.Context) error
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu   sync.RWMutex
	sets map[string]map[string]struct{}
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{sets: make(map[string]map[string]struct{})}
}

func (c *MemoryCache) Has(_ context.Context, vocabType, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.sets[vocabType][key]
	return ok, nil
}

func (c *MemoryCache) Add(_ context.Context, vocabType string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.sets[vocabType]
	if !ok {
		set = make(map[string]struct{}, len(keys))
		c.sets[vocabType] = set
	}
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return nil
}

func (c *MemoryCache) Reset(_ context.Context) error {
	c.mu.Lock()
	c.sets = make(map[string]map[string]struct{})
	c.mu.Unlock()
	return nil
}

// Len returns the number of cached keys of vocabType.
func (c *MemoryCache) Len(vocabType string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sets[vocabType])
}

// Keys returns the cached keys of vocabType, sorted.
func (c *MemoryCache) Keys(vocabType string) []string {
	c.mu.RLock()
	keys := make([]string, 0, len(c.sets[vocabType]))
	for k := range c.sets[vocabType] {
		keys = append(keys, k)
	}
	c.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Types returns the vocabulary types with at least one cached key, sorted.
func (c *MemoryCache) Types() []string {
	c.mu.RLock()
	types := make([]string, 0, len(c.sets))
	for t, set := range c.sets {
		if len(set) > 0 {
			types = append(types, t)
		}
	}
	c.mu.RUnlock()
	sort.Strings(types)
	return types
}
