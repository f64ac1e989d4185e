package nats

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Strob0t/replatform-mcp/internal/domain/agent"
)

func TestSubject(t *testing.T) {
	c := &Client{prefix: "agents.events"}

	tests := []struct {
		agentID string
		kind    agent.Kind
		want    string
	}{
		{"agent-1", agent.KindToolCall, "agents.events.agent-1.tool_call"},
		{"team.a", agent.KindResponse, "agents.events.team_a.response"},
		{"a b*>", agent.KindError, "agents.events.a_b__.error"},
		{"", agent.KindThinking, "agents.events._.thinking"},
	}
	for _, tt := range tests {
		ev := agent.Event{AgentID: tt.agentID, Kind: tt.kind}
		if got := c.Subject(&ev); got != tt.want {
			t.Errorf("Subject(%q, %s) = %q, want %q", tt.agentID, tt.kind, got, tt.want)
		}
	}
}

// testConnect connects to NATS or skips the test if NATS_URL is not set.
func testConnect(t *testing.T) *Client {
	t.Helper()

	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("requires NATS_URL")
	}

	c, err := Connect(context.Background(), url, "replatformtest")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return c
}

func TestClient_RecordSubscribe(t *testing.T) {
	c := testConnect(t)
	ctx := context.Background()
	agentID := "agent-" + t.Name()

	got := make(chan agent.Event, 1)
	stop, err := c.Subscribe(ctx, agentID, func(ev agent.Event) {
		select {
		case got <- ev:
		default:
		}
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stop()

	want := agent.Event{
		AgentID:   agentID,
		Timestamp: time.Now().UTC().Truncate(time.Millisecond),
		Kind:      agent.KindToolCall,
		ToolName:  "query_codebase_rag",
		Message:   "Calling query_codebase_rag...",
		Metadata:  &agent.Metadata{TraceID: "trace-1"},
	}
	if err := c.Record(ctx, want); err != nil {
		t.Fatalf("Record: %v", err)
	}

	select {
	case ev := <-got:
		if ev.AgentID != agentID || ev.Kind != agent.KindToolCall || ev.TraceID() != "trace-1" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}
