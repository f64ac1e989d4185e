// Package ristretto implements the cache port using dgraph-io/ristretto as an in-process cache.
package ristretto

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/Strob0t/replatform-mcp/internal/port/cache"
)

// Cache wraps a ristretto cache of query responses.
type Cache struct {
	c *ristretto.Cache[string, string]
}

var _ cache.Cache = (*Cache)(nil)

// New creates a ristretto-backed cache. maxCostBytes is the maximum total
// size of cached responses in bytes.
func New(maxCostBytes int64) (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: max(maxCostBytes/100*10, 1000), // ~10x expected items
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c}, nil
}

// Get retrieves a response from the cache.
func (c *Cache) Get(_ context.Context, key string) (string, bool) {
	return c.c.Get(key)
}

// Set stores a response with the given TTL. The write is visible to Get
// once Set returns.
func (c *Cache) Set(_ context.Context, key, value string, ttl time.Duration) {
	if c.c.SetWithTTL(key, value, int64(len(key)+len(value)), ttl) {
		c.c.Wait()
	}
}

// Delete removes a response from the cache.
func (c *Cache) Delete(_ context.Context, key string) {
	c.c.Del(key)
}

// Close shuts down the cache and releases resources.
func (c *Cache) Close() {
	c.c.Close()
}
