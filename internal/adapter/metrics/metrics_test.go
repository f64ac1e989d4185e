package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Strob0t/replatform-mcp/internal/domain/agent"
)

type fakeSource struct {
	m         agent.Metrics
	observers int
}

func (f *fakeSource) Metrics() agent.Metrics { return f.m }
func (f *fakeSource) ObserverCount() int     { return f.observers }

func TestCollectorExposesTrackerMetrics(t *testing.T) {
	src := &fakeSource{
		m: agent.Metrics{
			TotalRequests:       4,
			SuccessfulRequests:  2,
			FailedRequests:      1,
			AverageResponseTime: 1.5,
			ActiveAgents:        1,
			ToolUsage:           map[string]int{"query_codebase_rag": 3, "query_codebase_graph": 1},
		},
		observers: 2,
	}

	want := `
# HELP replatform_agents_requests_total Tool calls recorded across tracked sessions.
# TYPE replatform_agents_requests_total counter
replatform_agents_requests_total 4
# HELP replatform_agents_tool_usage_total Tool calls per tool name.
# TYPE replatform_agents_tool_usage_total counter
replatform_agents_tool_usage_total{tool="query_codebase_graph"} 1
replatform_agents_tool_usage_total{tool="query_codebase_rag"} 3
# HELP replatform_agents_dashboard_connections Connected dashboard observers.
# TYPE replatform_agents_dashboard_connections gauge
replatform_agents_dashboard_connections 2
# HELP replatform_agents_average_response_seconds Mean duration of successful tool calls.
# TYPE replatform_agents_average_response_seconds gauge
replatform_agents_average_response_seconds 1.5
`
	err := testutil.CollectAndCompare(NewCollector(src), strings.NewReader(want),
		"replatform_agents_requests_total",
		"replatform_agents_tool_usage_total",
		"replatform_agents_dashboard_connections",
		"replatform_agents_average_response_seconds",
	)
	if err != nil {
		t.Fatal(err)
	}
}

func TestCollectorReadsFreshSnapshot(t *testing.T) {
	src := &fakeSource{m: agent.Metrics{ToolUsage: map[string]int{}}}
	c := NewCollector(src)

	// six fixed series, no tool usage yet
	if n := testutil.CollectAndCount(c); n != 6 {
		t.Fatalf("expected 6 series, got %d", n)
	}

	src.m.ToolUsage["query_codebase_rag"] = 1
	if n := testutil.CollectAndCount(c, "replatform_agents_tool_usage_total"); n != 1 {
		t.Fatalf("expected 1 tool usage series, got %d", n)
	}
}

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	reg, err := NewRegistry(nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	r := chi.NewRouter()
	r.Use(reg.Middleware)
	r.Get("/api/v1/sessions/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id, http.NoBody))
	}

	got := testutil.ToFloat64(reg.requestTotal.WithLabelValues(http.MethodGet, "/api/v1/sessions/{id}", "404"))
	if got != 3 {
		t.Fatalf("expected 3 requests on the route pattern, got %v", got)
	}
}

func TestRegistryHandler(t *testing.T) {
	reg, err := NewRegistry(&fakeSource{m: agent.Metrics{TotalRequests: 7, ToolUsage: map[string]int{}}})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	srv := httptest.NewServer(reg.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL) //nolint:noctx // test
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), "replatform_agents_requests_total 7") {
		t.Fatalf("exposition missing tracker metric:\n%s", body)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Fatal("exposition missing runtime metrics")
	}
}
