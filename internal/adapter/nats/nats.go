// Package nats publishes tracked agent events to NATS JetStream and exposes
// the JetStream key-value store used as a shared query cache.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/replatform-mcp/internal/domain/agent"
)

const streamName = "REPLATFORM"

// Client publishes agent events under a subject prefix.
type Client struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	prefix string
}

// Connect establishes a connection to NATS and ensures the JetStream stream
// capturing prefix.> exists.
func Connect(ctx context.Context, url, prefix string) (*Client, error) {
	nc, err := nats.Connect(url, nats.Name("replatform-mcp"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{prefix + ".>"},
		MaxAge:   24 * time.Hour,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", streamName, "prefix", prefix)
	return &Client{nc: nc, js: js, prefix: prefix}, nil
}

// Subject returns the subject ev is published on: <prefix>.<agentId>.<type>.
func (c *Client) Subject(ev *agent.Event) string {
	return c.prefix + "." + token(ev.AgentID) + "." + token(string(ev.Kind))
}

// token makes s safe for use as a single subject token.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

// Record publishes ev as JSON. It satisfies sink.Sink.
func (c *Client) Record(ctx context.Context, ev agent.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := c.Subject(&ev)
	if _, err := c.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe delivers events published after the call to handler until the
// returned stop function is called. agentID narrows delivery to one agent;
// empty means all agents.
func (c *Client) Subscribe(ctx context.Context, agentID string, handler func(agent.Event)) (func(), error) {
	filter := c.prefix + ".>"
	if agentID != "" {
		filter = c.prefix + "." + token(agentID) + ".*"
	}
	consumer, err := c.js.OrderedConsumer(ctx, streamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{filter},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		var ev agent.Event
		if err := json.Unmarshal(msg.Data(), &ev); err != nil {
			slog.Error("nats event decode failed", "subject", msg.Subject(), "error", err)
			return
		}
		handler(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}
	return cons.Stop, nil
}

// KeyValue opens or creates the named bucket with a per-entry TTL.
func (c *Client) KeyValue(ctx context.Context, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := c.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
		TTL:    ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("jetstream kv %s: %w", bucket, err)
	}
	return kv, nil
}

// Close drains pending publishes and closes the connection.
func (c *Client) Close() error {
	return c.nc.Drain()
}
