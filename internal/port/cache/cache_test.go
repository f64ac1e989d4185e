package cache_test

import (
	"testing"

	"github.com/Strob0t/replatform-mcp/internal/port/cache"
)

func TestKeySeparatesEndpointAndQuery(t *testing.T) {
	if cache.Key("a", "bc") == cache.Key("ab", "c") {
		t.Fatal("keys for different endpoint/query splits must differ")
	}
	if cache.Key("e", "q") != cache.Key("e", "q") {
		t.Fatal("key must be deterministic")
	}
}
