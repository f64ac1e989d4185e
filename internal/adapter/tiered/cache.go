// Package tiered implements a two-level (L1 + L2) cache adapter.
package tiered

import (
	"context"
	"time"

	"github.com/Strob0t/replatform-mcp/internal/port/cache"
)

// Cache combines an L1 (in-process) and L2 (remote) cache.
// Get checks L1 first, then L2 (backfilling L1 on L2 hit).
// Set and Delete operate on both levels.
type Cache struct {
	l1       cache.Cache
	l2       cache.Cache
	l1Expire time.Duration
}

var _ cache.Cache = (*Cache)(nil)

// New creates a tiered cache with the given L1 and L2 backends.
// l1Expire controls how long L2 backfill entries live in L1.
func New(l1, l2 cache.Cache, l1Expire time.Duration) *Cache {
	return &Cache{l1: l1, l2: l2, l1Expire: l1Expire}
}

// Get checks L1, then L2. On L2 hit, backfills L1.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	if val, ok := c.l1.Get(ctx, key); ok {
		return val, true
	}
	val, ok := c.l2.Get(ctx, key)
	if ok {
		c.l1.Set(ctx, key, val, c.l1Expire)
	}
	return val, ok
}

// Set writes to both L1 and L2.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	c.l1.Set(ctx, key, value, ttl)
	c.l2.Set(ctx, key, value, ttl)
}

// Delete removes from both L1 and L2.
func (c *Cache) Delete(ctx context.Context, key string) {
	c.l1.Delete(ctx, key)
	c.l2.Delete(ctx, key)
}
