// Package metrics exposes tracker aggregates and HTTP request metrics in
// the Prometheus exposition format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Strob0t/replatform-mcp/internal/domain/agent"
)

const namespace = "replatform"

// Source is the read side of the session tracker.
type Source interface {
	Metrics() agent.Metrics
	ObserverCount() int
}

// Collector reads a fresh Metrics snapshot on every scrape.
type Collector struct {
	src Source

	requests    *prometheus.Desc
	successful  *prometheus.Desc
	failed      *prometheus.Desc
	avgResponse *prometheus.Desc
	active      *prometheus.Desc
	toolUsage   *prometheus.Desc
	observers   *prometheus.Desc
}

// NewCollector creates a Collector over src.
func NewCollector(src Source) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "agents", name), help, labels, nil)
	}
	return &Collector{
		src:         src,
		requests:    desc("requests_total", "Tool calls recorded across tracked sessions."),
		successful:  desc("requests_successful_total", "Tool calls that completed with a response."),
		failed:      desc("requests_failed_total", "Tool calls that completed with an error."),
		avgResponse: desc("average_response_seconds", "Mean duration of successful tool calls."),
		active:      desc("active", "Sessions currently in the active state."),
		toolUsage:   desc("tool_usage_total", "Tool calls per tool name.", "tool"),
		observers:   desc("dashboard_connections", "Connected dashboard observers."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.requests
	ch <- c.successful
	ch <- c.failed
	ch <- c.avgResponse
	ch <- c.active
	ch <- c.toolUsage
	ch <- c.observers
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.src.Metrics()

	ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(m.TotalRequests))
	ch <- prometheus.MustNewConstMetric(c.successful, prometheus.CounterValue, float64(m.SuccessfulRequests))
	ch <- prometheus.MustNewConstMetric(c.failed, prometheus.CounterValue, float64(m.FailedRequests))
	ch <- prometheus.MustNewConstMetric(c.avgResponse, prometheus.GaugeValue, m.AverageResponseTime)
	ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(m.ActiveAgents))
	for tool, n := range m.ToolUsage {
		ch <- prometheus.MustNewConstMetric(c.toolUsage, prometheus.CounterValue, float64(n), tool)
	}
	ch <- prometheus.MustNewConstMetric(c.observers, prometheus.GaugeValue, float64(c.src.ObserverCount()))
}
