package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	rpotel "github.com/Strob0t/replatform-mcp/internal/adapter/otel"
	"github.com/Strob0t/replatform-mcp/internal/domain/agent"
)

// Tool names exposed over MCP.
const (
	ToolRAG       = "query_codebase_rag"
	ToolGraph     = "query_codebase_graph"
	ToolDashboard = "get_agent_dashboard"
)

// ErrUnknownTool is returned by Run for a tool that was not registered.
var ErrUnknownTool = errors.New("unknown query tool")

// Querier sends a query to a remote analysis endpoint.
type Querier interface {
	Query(ctx context.Context, endpoint, query string) (string, error)
}

// ProgressStep is one staged progress update, After the start of the call.
type ProgressStep struct {
	After    time.Duration
	Progress int
	Message  string
}

// QueryTool binds a tool name to its endpoint and progress schedule.
type QueryTool struct {
	Name     string
	Label    string // human name used in error texts, e.g. "RAG"
	Endpoint string
	Steps    []ProgressStep
}

// RAGTool returns the retrieval tool bound to endpoint.
func RAGTool(endpoint string) QueryTool {
	return QueryTool{
		Name:     ToolRAG,
		Label:    "RAG",
		Endpoint: endpoint,
		Steps: []ProgressStep{
			{After: 100 * time.Millisecond, Progress: 30, Message: "Processing query..."},
			{After: 500 * time.Millisecond, Progress: 60, Message: "Searching knowledge base..."},
			{After: time.Second, Progress: 90, Message: "Generating response..."},
		},
	}
}

// GraphTool returns the code graph tool bound to endpoint.
func GraphTool(endpoint string) QueryTool {
	return QueryTool{
		Name:     ToolGraph,
		Label:    "graph",
		Endpoint: endpoint,
		Steps: []ProgressStep{
			{After: 100 * time.Millisecond, Progress: 25, Message: "Connecting to graph database..."},
			{After: 400 * time.Millisecond, Progress: 50, Message: "Traversing code relationships..."},
			{After: 800 * time.Millisecond, Progress: 80, Message: "Analyzing dependencies..."},
		},
	}
}

// QueryOption configures a QueryService.
type QueryOption func(*QueryService)

// WithProgress toggles the staged progress updates.
func WithProgress(enabled bool) QueryOption {
	return func(s *QueryService) { s.progress = enabled }
}

// WithErrorText sets how a failed query is worded on the dashboard. It
// should match what the tool caller is shown. Defaults to err.Error().
func WithErrorText(text func(error) string) QueryOption {
	return func(s *QueryService) { s.errorText = text }
}

// WithInstruments records tool call counters and durations.
func WithInstruments(m *rpotel.Metrics) QueryOption {
	return func(s *QueryService) { s.instruments = m }
}

// QueryService runs remote queries as tracked tool calls.
type QueryService struct {
	tracker     *Tracker
	querier     Querier
	tools       map[string]QueryTool
	progress    bool
	instruments *rpotel.Metrics
	errorText   func(error) string
	now         func() time.Time
}

// NewQueryService creates a QueryService serving the given tools.
func NewQueryService(tracker *Tracker, querier Querier, tools []QueryTool, opts ...QueryOption) *QueryService {
	s := &QueryService{
		tracker:  tracker,
		querier:  querier,
		tools:    make(map[string]QueryTool, len(tools)),
		progress:  true,
		errorText: func(err error) string { return err.Error() },
		now:       time.Now,
	}
	for _, t := range tools {
		s.tools[t.Name] = t
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Tool returns the registered tool called name.
func (s *QueryService) Tool(name string) (QueryTool, bool) {
	t, ok := s.tools[name]
	return t, ok
}

// Run sends query through the named tool on behalf of agentID, recording
// the thinking step, the tool call, its progress and its outcome. An empty
// agentID starts a new session; an unknown one is created on first use.
// Validation of query is the caller's job.
func (s *QueryService) Run(ctx context.Context, toolName, agentID, query string) (string, error) {
	tool, ok := s.tools[toolName]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, toolName)
	}

	id := s.tracker.CreateSession(agentID)
	start := s.now()

	ctx, span := rpotel.StartToolCallSpan(ctx, id, toolName)
	defer span.End()

	s.tracker.TrackEvent(id, agent.Event{
		Kind:    agent.KindThinking,
		Message: thinkingMessage(query),
	})
	traceID := s.tracker.StartToolCall(id, toolName, query)
	span.SetAttributes(attribute.String("toolcall.trace_id", traceID))

	progressCtx, stopProgress := context.WithCancel(ctx)
	var wg sync.WaitGroup
	if s.progress && len(tool.Steps) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runProgress(progressCtx, id, traceID, tool.Steps)
		}()
	}

	resp, err := s.querier.Query(ctx, tool.Endpoint, query)
	stopProgress()
	wg.Wait()

	duration := s.now().Sub(start).Seconds()
	s.record(ctx, toolName, duration, err)

	if err != nil {
		slog.Warn("query failed", "tool", toolName, "agent_id", id, "trace_id", traceID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		text := s.errorText(err)
		s.tracker.FailToolCall(id, traceID, failureSummary(tool.Label, text), text, duration)
		return "", err
	}

	slog.Info("query completed", "tool", toolName, "agent_id", id, "trace_id", traceID, "duration_s", duration)
	s.tracker.CompleteToolCall(id, traceID, resp, duration, true)
	return resp, nil
}

// failureSummary reads "RAG query failed: <text>".
func failureSummary(label, text string) string {
	if label != "" {
		label = strings.ToUpper(label[:1]) + label[1:]
	}
	return fmt.Sprintf("%s query failed: %s", label, text)
}

// runProgress applies steps at their offsets from now until ctx ends.
func (s *QueryService) runProgress(ctx context.Context, agentID, traceID string, steps []ProgressStep) {
	start := time.Now()
	for _, st := range steps {
		timer := time.NewTimer(max(st.After-time.Since(start), 0))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		s.tracker.UpdateToolProgress(agentID, traceID, st.Progress, st.Message)
	}
}

func (s *QueryService) record(ctx context.Context, tool string, seconds float64, err error) {
	if s.instruments == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("tool", tool))
	s.instruments.ToolCalls.Add(ctx, 1, attrs)
	s.instruments.ToolCallDuration.Record(ctx, seconds, attrs)
	if err != nil {
		s.instruments.ToolCallsFailed.Add(ctx, 1, attrs)
	}
}

// Dashboard is the snapshot returned by the dashboard tool.
type Dashboard struct {
	Metrics   agent.Metrics   `json:"metrics"`
	Sessions  []agent.Session `json:"sessions"`
	Timestamp time.Time       `json:"timestamp"`
}

// Dashboard returns the current metrics and sessions.
func (s *QueryService) Dashboard() Dashboard {
	return Dashboard{
		Metrics:   s.tracker.Metrics(),
		Sessions:  s.tracker.Sessions(),
		Timestamp: s.now().UTC(),
	}
}

func thinkingMessage(query string) string {
	const limit = 50
	if r := []rune(query); len(r) > limit {
		query = string(r[:limit]) + "..."
	}
	return `Analyzing query: "` + query + `"`
}
