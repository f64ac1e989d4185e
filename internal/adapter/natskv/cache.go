// Package natskv implements the cache port on a NATS JetStream key-value
// bucket, shared by every server instance connected to the same NATS.
package natskv

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/replatform-mcp/internal/port/cache"
)

// Cache wraps a NATS JetStream KeyValue bucket as a remote response cache.
type Cache struct {
	kv jetstream.KeyValue
}

var _ cache.Cache = (*Cache)(nil)

// New creates a NATS KV-backed cache.
func New(kv jetstream.KeyValue) *Cache {
	return &Cache{kv: kv}
}

// kvKey maps an arbitrary cache key onto the KV key alphabet.
func kvKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Get retrieves a response. Remote failures are logged and reported as a miss.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	entry, err := c.kv.Get(ctx, kvKey(key))
	if err != nil {
		if !errors.Is(err, jetstream.ErrKeyNotFound) {
			slog.Warn("nats kv get failed", "error", err)
		}
		return "", false
	}
	return string(entry.Value()), true
}

// Set stores a response. TTL is managed at bucket level.
func (c *Cache) Set(ctx context.Context, key, value string, _ time.Duration) {
	if _, err := c.kv.Put(ctx, kvKey(key), []byte(value)); err != nil {
		slog.Warn("nats kv put failed", "error", err)
	}
}

// Delete removes a response.
func (c *Cache) Delete(ctx context.Context, key string) {
	if err := c.kv.Delete(ctx, kvKey(key)); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		slog.Warn("nats kv delete failed", "error", err)
	}
}
