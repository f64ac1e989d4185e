// Package cache defines the port for caching remote query responses.
package cache

import (
	"context"
	"time"
)

// Cache stores text responses keyed by request.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// Key builds the cache key for a query sent to endpoint.
func Key(endpoint, query string) string {
	return endpoint + "\x00" + query
}
