package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/replatform-mcp/internal/adapter/postgres"
	"github.com/Strob0t/replatform-mcp/internal/config"
	"github.com/Strob0t/replatform-mcp/internal/domain/agent"
)

// setupEventStore connects to DATABASE_URL, runs all migrations and returns a
// ready-to-use EventStore. The pool is closed via t.Cleanup.
func setupEventStore(t *testing.T) *postgres.EventStore {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("requires DATABASE_URL")
	}

	ctx := context.Background()
	if err := postgres.Migrate(ctx, dsn); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	cfg := config.Defaults().Postgres
	cfg.DSN = dsn
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return postgres.NewEventStore(pool)
}

func TestEventStoreRecordAndLoad(t *testing.T) {
	store := setupEventStore(t)
	ctx := context.Background()
	agentID := "agent-" + uuid.NewString()
	start := time.Now().UTC().Truncate(time.Millisecond)

	events := []agent.Event{
		{AgentID: agentID, Timestamp: start, Kind: agent.KindThinking, Message: "Analyzing query"},
		{
			AgentID: agentID, Timestamp: start.Add(time.Second), Kind: agent.KindToolCall,
			ToolName: "query_codebase_rag", Message: "Calling query_codebase_rag...", Progress: agent.Int(0),
			Metadata: &agent.Metadata{Query: "q", TraceID: "trace-1"},
		},
		{
			AgentID: agentID, Timestamp: start.Add(2 * time.Second), Kind: agent.KindResponse,
			ToolName: "query_codebase_rag", Message: "Tool completed (1.00s)", Duration: agent.Float64(1),
			Metadata: &agent.Metadata{Response: "answer", TraceID: "trace-1"},
		},
	}
	for _, ev := range events {
		if err := store.Record(ctx, ev); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	got, err := store.LoadByAgent(ctx, agentID, 0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[0].Kind != agent.KindThinking || got[0].Metadata != nil {
		t.Fatalf("unexpected first event %+v", got[0])
	}
	if got[1].Progress == nil || *got[1].Progress != 0 || got[1].TraceID() != "trace-1" {
		t.Fatalf("unexpected tool call %+v", got[1])
	}
	if got[2].Duration == nil || *got[2].Duration != 1 || got[2].Metadata.Response != "answer" {
		t.Fatalf("unexpected response %+v", got[2])
	}
	if !got[2].Timestamp.Equal(start.Add(2 * time.Second)) {
		t.Fatalf("timestamp not preserved: %v", got[2].Timestamp)
	}

	latest, err := store.LoadByAgent(ctx, agentID, 1)
	if err != nil {
		t.Fatalf("load latest: %v", err)
	}
	if len(latest) != 1 || latest[0].Kind != agent.KindResponse {
		t.Fatalf("expected only the newest event, got %+v", latest)
	}
}

func TestEventStorePurge(t *testing.T) {
	store := setupEventStore(t)
	ctx := context.Background()
	agentID := "agent-" + uuid.NewString()
	old := time.Now().Add(-48 * time.Hour)

	if err := store.Record(ctx, agent.Event{AgentID: agentID, Timestamp: old, Kind: agent.KindThinking}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.Record(ctx, agent.Event{AgentID: agentID, Timestamp: time.Now(), Kind: agent.KindThinking}); err != nil {
		t.Fatalf("record: %v", err)
	}

	n, err := store.Purge(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n < 1 {
		t.Fatalf("expected at least one purged row, got %d", n)
	}

	got, err := store.LoadByAgent(ctx, agentID, 0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 remaining event, got %d", len(got))
	}
}

func TestMigrationVersion(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("requires DATABASE_URL")
	}
	ctx := context.Background()
	m, err := postgres.NewMigrator(dsn)
	if err != nil {
		t.Fatalf("new migrator: %v", err)
	}
	defer func() { _ = m.Close() }()

	if _, err := m.Up(ctx); err != nil {
		t.Fatalf("up: %v", err)
	}
	v, err := m.Version(ctx)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v < 1 {
		t.Fatalf("expected version >= 1, got %d", v)
	}

	states, err := m.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, st := range states {
		if !st.Applied {
			t.Errorf("migration %d %s not applied after up", st.Version, st.Name)
		}
	}

	// A second up is a no-op.
	n, err := m.Up(ctx)
	if err != nil {
		t.Fatalf("second up: %v", err)
	}
	if n != 0 {
		t.Fatalf("second up applied %d migrations", n)
	}
}
