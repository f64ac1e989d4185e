package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Strob0t/replatform-mcp/internal/domain/agent"
)

const tracerName = "replatform-mcp"

// StartToolCallSpan starts a span covering one remote query tool call.
func StartToolCallSpan(ctx context.Context, agentID, tool string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "toolcall",
		trace.WithAttributes(
			attribute.String("agent.id", agentID),
			attribute.String("toolcall.tool", tool),
		),
	)
}

// EventSink records every tracked event as a span named agent.<type>.
type EventSink struct {
	tracer trace.Tracer
}

// NewEventSink returns a sink writing to tp, or to the global provider when
// tp is nil.
func NewEventSink(tp trace.TracerProvider) *EventSink {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &EventSink{tracer: tp.Tracer(tracerName)}
}

// Record emits one span for ev.
func (s *EventSink) Record(ctx context.Context, ev agent.Event) error {
	attrs := []attribute.KeyValue{
		attribute.String("agent.id", ev.AgentID),
		attribute.String("event.type", string(ev.Kind)),
		attribute.String("event.message", ev.Message),
	}
	if ev.ToolName != "" {
		attrs = append(attrs, attribute.String("toolcall.tool", ev.ToolName))
	}
	if id := ev.TraceID(); id != "" {
		attrs = append(attrs, attribute.String("toolcall.trace_id", id))
	}
	if ev.Duration != nil {
		attrs = append(attrs, attribute.Float64("event.duration_seconds", *ev.Duration))
	}
	if ev.Progress != nil {
		attrs = append(attrs, attribute.Int("event.progress", *ev.Progress))
	}

	_, span := s.tracer.Start(ctx, "agent."+string(ev.Kind),
		trace.WithTimestamp(ev.Timestamp),
		trace.WithAttributes(attrs...),
	)
	if ev.Kind == agent.KindError {
		details := ""
		if ev.Metadata != nil {
			details = ev.Metadata.ErrorDetails
		}
		span.SetStatus(codes.Error, details)
	}
	span.End(trace.WithTimestamp(ev.Timestamp))
	return nil
}
