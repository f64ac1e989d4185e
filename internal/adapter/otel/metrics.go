package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "replatform-mcp"

// Metrics holds the tool call instruments.
type Metrics struct {
	ToolCalls        metric.Int64Counter
	ToolCallsFailed  metric.Int64Counter
	ToolCallDuration metric.Float64Histogram
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsFrom(otel.GetMeterProvider())
}

// NewMetricsFrom creates the instruments on mp.
func NewMetricsFrom(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	m.ToolCalls, err = meter.Int64Counter("replatform.toolcalls",
		metric.WithDescription("Number of remote query tool calls"))
	if err != nil {
		return nil, err
	}

	m.ToolCallsFailed, err = meter.Int64Counter("replatform.toolcalls.failed",
		metric.WithDescription("Number of remote query tool calls that failed"))
	if err != nil {
		return nil, err
	}

	m.ToolCallDuration, err = meter.Float64Histogram("replatform.toolcall.duration_seconds",
		metric.WithDescription("Tool call duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
