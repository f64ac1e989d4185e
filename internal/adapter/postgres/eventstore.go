package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/replatform-mcp/internal/domain/agent"
)

// EventStore is an append-only agent event log in the agent_events table.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Record appends ev. It satisfies sink.Sink.
func (s *EventStore) Record(ctx context.Context, ev agent.Event) error {
	var meta []byte
	if ev.Metadata != nil {
		var err error
		if meta, err = json.Marshal(ev.Metadata); err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO agent_events (agent_id, event_type, tool_name, message, duration_s, progress, trace_id, metadata, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ev.AgentID, string(ev.Kind), ev.ToolName, ev.Message, ev.Duration, ev.Progress, ev.TraceID(), meta, ev.Timestamp)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

const eventColumns = `agent_id, event_type, tool_name, message, duration_s, progress, metadata, occurred_at`

// scanEvent scans a row into an agent.Event.
func scanEvent(scanner interface{ Scan(dest ...any) error }) (agent.Event, error) {
	var (
		ev   agent.Event
		kind string
		meta []byte
	)
	if err := scanner.Scan(&ev.AgentID, &kind, &ev.ToolName, &ev.Message, &ev.Duration, &ev.Progress, &meta, &ev.Timestamp); err != nil {
		return agent.Event{}, err
	}
	ev.Kind = agent.Kind(kind)
	if len(meta) > 0 {
		ev.Metadata = &agent.Metadata{}
		if err := json.Unmarshal(meta, ev.Metadata); err != nil {
			return agent.Event{}, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return ev, nil
}

// LoadByAgent returns up to limit of the most recent events recorded for
// agentID, oldest first.
func (s *EventStore) LoadByAgent(ctx context.Context, agentID string, limit int) ([]agent.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM (
			SELECT %s, id FROM agent_events WHERE agent_id = $1 ORDER BY id DESC LIMIT $2
		) recent ORDER BY id ASC`, eventColumns, eventColumns), agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("load events by agent %s: %w", agentID, err)
	}
	defer rows.Close()

	events := make([]agent.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Purge deletes events that occurred before cutoff and returns how many
// rows were removed.
func (s *EventStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM agent_events WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge events: %w", err)
	}
	return tag.RowsAffected(), nil
}
