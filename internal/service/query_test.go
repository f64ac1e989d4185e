package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Strob0t/replatform-mcp/internal/adapter/n8n"
	rpotel "github.com/Strob0t/replatform-mcp/internal/adapter/otel"
	"github.com/Strob0t/replatform-mcp/internal/domain/agent"
)

type fakeQuerier struct {
	mu       sync.Mutex
	delay    time.Duration
	response string
	err      error
	calls    []string
}

func (f *fakeQuerier) Query(ctx context.Context, endpoint, query string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, endpoint+" "+query)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.response, f.err
}

func newTestQueryService(t *testing.T, q Querier, opts ...QueryOption) (*QueryService, *Tracker) {
	t.Helper()
	tr, _, _ := newTestTracker(t)
	tools := []QueryTool{RAGTool("http://rag"), GraphTool("http://graph")}
	return NewQueryService(tr, q, tools, opts...), tr
}

func TestQueryServiceRunSuccess(t *testing.T) {
	q := &fakeQuerier{response: "the answer"}
	svc, tr := newTestQueryService(t, q, WithProgress(false))

	resp, err := svc.Run(context.Background(), ToolRAG, "", "how do I migrate?")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp != "the answer" {
		t.Fatalf("unexpected response %q", resp)
	}
	if len(q.calls) != 1 || q.calls[0] != "http://rag how do I migrate?" {
		t.Fatalf("unexpected querier calls %v", q.calls)
	}

	sessions := tr.Sessions()
	if len(sessions) != 1 {
		t.Fatalf("expected a generated session, got %d", len(sessions))
	}
	evs := sessions[0].Events
	if len(evs) != 3 {
		t.Fatalf("expected thinking, tool_call, response; got %d events", len(evs))
	}
	if evs[0].Kind != agent.KindThinking || evs[0].Message != `Analyzing query: "how do I migrate?"` {
		t.Fatalf("unexpected thinking event %+v", evs[0])
	}
	if evs[1].Kind != agent.KindToolCall || evs[1].ToolName != ToolRAG {
		t.Fatalf("unexpected tool call event %+v", evs[1])
	}
	if evs[2].Kind != agent.KindResponse || evs[2].Metadata.Response != "the answer" {
		t.Fatalf("unexpected response event %+v", evs[2])
	}
	if evs[2].TraceID() != evs[1].TraceID() {
		t.Fatal("response must carry the tool call's trace id")
	}
	if sessions[0].Status != agent.StatusIdle {
		t.Fatalf("expected idle, got %s", sessions[0].Status)
	}
}

func TestQueryServiceRunFailure(t *testing.T) {
	q := &fakeQuerier{err: errors.New("Rate limit exceeded. Please try again later.")}
	svc, tr := newTestQueryService(t, q, WithProgress(false))

	_, err := svc.Run(context.Background(), ToolGraph, "agent-7", "deps of x")
	if err == nil {
		t.Fatal("expected error")
	}

	sess, ok := tr.Session("agent-7")
	if !ok {
		t.Fatal("explicit agent id must create its session on first use")
	}
	last := sess.Events[len(sess.Events)-1]
	if last.Kind != agent.KindError || last.Metadata.ErrorDetails != "Rate limit exceeded. Please try again later." {
		t.Fatalf("unexpected terminal event %+v", last)
	}
	if last.Message != "Graph query failed: Rate limit exceeded. Please try again later." {
		t.Fatalf("unexpected failure message %q", last.Message)
	}
	if sess.Status != agent.StatusError {
		t.Fatalf("expected error status, got %s", sess.Status)
	}
}

func TestQueryServiceFailureUsesCallerFacingText(t *testing.T) {
	upstream := fmt.Errorf("query http://rag: %w", &n8n.StatusError{
		Code: 401, Status: "Unauthorized", Kind: n8n.ErrUnauthorized,
	})
	q := &fakeQuerier{err: upstream}
	svc, tr := newTestQueryService(t, q, WithProgress(false), WithErrorText(n8n.Describe))

	_, err := svc.Run(context.Background(), ToolRAG, "a1", "who calls x?")
	if !errors.Is(err, n8n.ErrUnauthorized) {
		t.Fatalf("expected the raw error back, got %v", err)
	}

	sess, _ := tr.Session("a1")
	last := sess.Events[len(sess.Events)-1]
	const want = "Authentication failed. Please check credentials."
	if last.Metadata.ErrorDetails != want {
		t.Fatalf("errorDetails = %q, want %q", last.Metadata.ErrorDetails, want)
	}
	if last.Message != "RAG query failed: "+want {
		t.Fatalf("message = %q", last.Message)
	}
	if last.ToolName != ToolRAG {
		t.Fatalf("failure must carry the tool name, got %q", last.ToolName)
	}
}

func TestQueryServiceReusesExplicitSession(t *testing.T) {
	q := &fakeQuerier{response: "ok"}
	svc, tr := newTestQueryService(t, q, WithProgress(false))

	for range 3 {
		if _, err := svc.Run(context.Background(), ToolRAG, "a1", "q"); err != nil {
			t.Fatalf("Run: %v", err)
		}
	}

	if n := len(tr.Sessions()); n != 1 {
		t.Fatalf("expected one session, got %d", n)
	}
	if m := tr.Metrics(); m.TotalRequests != 3 || m.SuccessfulRequests != 3 {
		t.Fatalf("unexpected metrics %+v", m)
	}
}

func TestQueryServiceUnknownTool(t *testing.T) {
	svc, tr := newTestQueryService(t, &fakeQuerier{})

	if _, err := svc.Run(context.Background(), "nope", "", "q"); !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
	if len(tr.Sessions()) != 0 {
		t.Fatal("unknown tool must not touch the tracker")
	}
}

func TestQueryServiceProgressWhileInFlight(t *testing.T) {
	q := &fakeQuerier{response: "ok", delay: 350 * time.Millisecond}
	svc, tr := newTestQueryService(t, q)

	if _, err := svc.Run(context.Background(), ToolRAG, "a1", "q"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	sess, _ := tr.Session("a1")
	call := sess.Events[1]
	if call.Progress == nil || *call.Progress != 30 {
		t.Fatalf("expected first progress step applied, got %+v", call.Progress)
	}
	if call.Message != "Processing query..." {
		t.Fatalf("unexpected progress message %q", call.Message)
	}
}

func TestQueryServiceProgressStopsOnCompletion(t *testing.T) {
	q := &fakeQuerier{response: "ok"}
	svc, tr := newTestQueryService(t, q)

	if _, err := svc.Run(context.Background(), ToolGraph, "a1", "q"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	time.Sleep(250 * time.Millisecond)

	sess, _ := tr.Session("a1")
	if *sess.Events[1].Progress != 0 {
		t.Fatalf("no progress may land after completion, got %d", *sess.Events[1].Progress)
	}
}

func TestQueryServiceInstruments(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	inst, err := rpotel.NewMetricsFrom(mp)
	if err != nil {
		t.Fatalf("NewMetricsFrom: %v", err)
	}

	q := &fakeQuerier{response: "ok"}
	svc, _ := newTestQueryService(t, q, WithProgress(false), WithInstruments(inst))
	_, _ = svc.Run(context.Background(), ToolRAG, "", "q")
	q.err = errors.New("down")
	_, _ = svc.Run(context.Background(), ToolRAG, "", "q")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if data, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	if sums["replatform.toolcalls"] != 2 || sums["replatform.toolcalls.failed"] != 1 {
		t.Fatalf("unexpected counter values %v", sums)
	}
}

func TestQueryServiceDashboard(t *testing.T) {
	q := &fakeQuerier{response: "ok"}
	svc, _ := newTestQueryService(t, q, WithProgress(false))
	_, _ = svc.Run(context.Background(), ToolRAG, "a1", "q")

	d := svc.Dashboard()
	if len(d.Sessions) != 1 || d.Metrics.TotalRequests != 1 {
		t.Fatalf("unexpected dashboard %+v", d)
	}
	if d.Timestamp.IsZero() {
		t.Fatal("dashboard must be timestamped")
	}
}

func TestThinkingMessage(t *testing.T) {
	short := thinkingMessage("short")
	if short != `Analyzing query: "short"` {
		t.Fatalf("unexpected message %q", short)
	}

	long := thinkingMessage(strings.Repeat("é", 60))
	want := `Analyzing query: "` + strings.Repeat("é", 50) + `..."`
	if long != want {
		t.Fatalf("unexpected truncation %q", long)
	}
}
