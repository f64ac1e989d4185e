package natskv

import (
	"context"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/Strob0t/replatform-mcp/internal/adapter/nats"
	"github.com/Strob0t/replatform-mcp/internal/port/cache"
)

func TestKVKeyIsValidAndStable(t *testing.T) {
	valid := regexp.MustCompile(`^[-/_=.a-zA-Z0-9]+$`)
	k := cache.Key("https://n8n.example/webhook/rag", "how do I migrate?")

	got := kvKey(k)
	if !valid.MatchString(got) {
		t.Fatalf("key %q is not a valid KV key", got)
	}
	if got != kvKey(k) {
		t.Fatal("key mapping is not stable")
	}
	if got == kvKey(cache.Key("https://n8n.example/webhook/graph", "how do I migrate?")) {
		t.Fatal("different endpoints must map to different keys")
	}
}

func TestCacheRoundTrip(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("requires NATS_URL")
	}
	ctx := context.Background()

	client, err := nats.Connect(ctx, url, "replatformtest")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	kv, err := client.KeyValue(ctx, "replatform-test-cache", time.Minute)
	if err != nil {
		t.Fatalf("KeyValue: %v", err)
	}
	c := New(kv)
	key := cache.Key("endpoint", t.Name())

	if _, ok := c.Get(ctx, key); ok {
		t.Fatal("expected miss before Set")
	}
	c.Set(ctx, key, "answer", time.Minute)
	if v, ok := c.Get(ctx, key); !ok || v != "answer" {
		t.Fatalf("expected hit, got %q %v", v, ok)
	}
	c.Delete(ctx, key)
	if _, ok := c.Get(ctx, key); ok {
		t.Fatal("expected miss after Delete")
	}
}
