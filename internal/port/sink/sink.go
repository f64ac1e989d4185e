// Package sink defines the port for best-effort external recording of agent events.
package sink

import (
	"context"

	"github.com/Strob0t/replatform-mcp/internal/domain/agent"
)

// Sink records a tracked event somewhere outside the process.
// Implementations may fail; callers never depend on them succeeding.
type Sink interface {
	Record(ctx context.Context, ev agent.Event) error
}

// Func adapts a function to Sink.
type Func func(ctx context.Context, ev agent.Event) error

// Record calls f.
func (f Func) Record(ctx context.Context, ev agent.Event) error { return f(ctx, ev) }
