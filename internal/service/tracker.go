package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/Strob0t/replatform-mcp/internal/adapter/ws"
	"github.com/Strob0t/replatform-mcp/internal/domain/agent"
	"github.com/Strob0t/replatform-mcp/internal/port/broadcast"
)

// DefaultRetention is how long a non-active session is kept after its last
// activity.
const DefaultRetention = time.Hour

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// WithIDs replaces the session and trace id generators.
func WithIDs(session, trace func() string) TrackerOption {
	return func(t *Tracker) {
		if session != nil {
			t.newSessionID = session
		}
		if trace != nil {
			t.newTraceID = trace
		}
	}
}

// WithRetention sets the reaper retention window.
func WithRetention(d time.Duration) TrackerOption {
	return func(t *Tracker) { t.retention = d }
}

// WithRecorder hands every tracked event to r.
func WithRecorder(r *Recorder) TrackerOption {
	return func(t *Tracker) { t.recorder = r }
}

// Tracker records agent sessions and their events and mirrors every change
// to the broadcaster.
//
// A single mutex covers each mutation, the metrics recompute that follows it
// and the broadcast enqueue, so observers see deltas in mutation order and
// Attach can never interleave with a half-applied change.
//
// Tracker methods never return errors: unknown sessions and stale trace ids
// are logged and ignored.
type Tracker struct {
	mu      sync.Mutex
	store   *Store
	metrics agent.Metrics
	hub     broadcast.Broadcaster

	recorder     *Recorder
	retention    time.Duration
	now          func() time.Time
	newSessionID func() string
	newTraceID   func() string
}

// NewTracker returns a Tracker broadcasting through hub.
func NewTracker(hub broadcast.Broadcaster, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		hub:          hub,
		metrics:      agent.ComputeMetrics(nil),
		retention:    DefaultRetention,
		now:          time.Now,
		newSessionID: uuid.NewString,
		newTraceID:   func() string { return ulid.Make().String() },
	}
	for _, o := range opts {
		o(t)
	}
	t.store = NewStore(t.newSessionID)
	return t
}

// CreateSession registers a session and returns its id. An empty id gets a
// generated one. An id that is already tracked is returned unchanged and
// nothing is broadcast.
func (t *Tracker) CreateSession(id string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	sess, _ := t.ensureLocked(id)
	return sess.AgentID
}

// ensureLocked returns the session for id, creating and announcing it when
// it is new.
func (t *Tracker) ensureLocked(id string) (*agent.Session, bool) {
	sess, created := t.store.Create(id, t.now())
	if !created {
		return sess, false
	}
	slog.Info("agent session created", "agent_id", sess.AgentID)
	t.publishMetricsLocked()
	t.hub.BroadcastEvent(context.Background(), ws.EventSessionCreated, sess.Clone())
	return sess, true
}

// TrackEvent appends ev to the session's log. The timestamp and agent id
// are always set here; whatever the caller put there is overwritten.
func (t *Tracker) TrackEvent(id string, ev agent.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.trackLocked(id, ev)
}

func (t *Tracker) trackLocked(id string, ev agent.Event) bool {
	if !ev.Kind.Valid() {
		slog.Warn("ignoring event with unknown type", "agent_id", id, "type", ev.Kind)
		return false
	}
	sess, ok := t.store.Get(id)
	if !ok {
		slog.Warn("ignoring event for unknown session", "agent_id", id, "type", ev.Kind)
		return false
	}

	ev.AgentID = sess.AgentID
	ev.Timestamp = t.now()
	sess.Append(ev)

	t.publishMetricsLocked()
	added := sess.Events[len(sess.Events)-1].Clone()
	t.hub.BroadcastEvent(context.Background(), ws.EventEventAdded, ws.EventAddedEvent{
		AgentID: sess.AgentID,
		Event:   added,
	})
	if t.recorder != nil {
		t.recorder.Record(added)
	}
	return true
}

// StartToolCall records a tool_call event at progress 0 and returns the
// trace id that correlates its progress updates and completion. The trace
// id is returned even when the session is unknown.
func (t *Tracker) StartToolCall(id, tool, query string) string {
	traceID := t.newTraceID()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.trackLocked(id, agent.Event{
		Kind:     agent.KindToolCall,
		ToolName: tool,
		Message:  fmt.Sprintf("Calling %s...", tool),
		Progress: agent.Int(0),
		Metadata: &agent.Metadata{Query: query, TraceID: traceID},
	})
	return traceID
}

// UpdateToolProgress mutates the newest tool_call event carrying traceID.
// Progress is clamped to 0-100; an empty message keeps the current one.
// No matching call is a no-op.
func (t *Tracker) UpdateToolProgress(id, traceID string, progress int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sess, ok := t.store.Get(id)
	if !ok {
		slog.Warn("ignoring progress for unknown session", "agent_id", id, "trace_id", traceID)
		return
	}
	idx := sess.LatestToolCall(traceID)
	if idx < 0 {
		slog.Debug("ignoring progress for unknown tool call", "agent_id", id, "trace_id", traceID)
		return
	}

	ev := &sess.Events[idx]
	ev.Progress = agent.Int(agent.ClampProgress(progress))
	if message != "" {
		ev.Message = message
	}
	sess.Touch(t.now())

	t.hub.BroadcastEvent(context.Background(), ws.EventEventUpdated, ws.EventUpdatedEvent{
		AgentID:    sess.AgentID,
		EventIndex: idx,
		Event:      ev.Clone(),
	})
}

// CompleteToolCall appends the terminal event of a tool call: a response on
// success, an error otherwise. duration is in seconds. The originating
// tool_call event is left as it is.
func (t *Tracker) CompleteToolCall(id, traceID, response string, duration float64, success bool) {
	if !success {
		t.FailToolCall(id, traceID, "Tool failed", response, duration)
		return
	}
	t.completeToolCall(id, agent.Event{
		Kind:     agent.KindResponse,
		Message:  fmt.Sprintf("Tool completed (%.2fs)", duration),
		Duration: agent.Float64(duration),
		Metadata: &agent.Metadata{TraceID: traceID, Response: response},
	})
}

// FailToolCall records an error terminating the tool call traceID, with
// summary as the event message and details as metadata.errorDetails.
func (t *Tracker) FailToolCall(id, traceID, summary, details string, duration float64) {
	t.completeToolCall(id, agent.Event{
		Kind:     agent.KindError,
		Message:  summary,
		Duration: agent.Float64(duration),
		Metadata: &agent.Metadata{TraceID: traceID, ErrorDetails: details},
	})
}

// completeToolCall appends a terminal event, labelled with the tool of the
// call it ends.
func (t *Tracker) completeToolCall(id string, ev agent.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if sess, ok := t.store.Get(id); ok {
		if idx := sess.LatestToolCall(ev.Metadata.TraceID); idx >= 0 {
			ev.ToolName = sess.Events[idx].ToolName
		}
	}
	t.trackLocked(id, ev)
}

// Metrics recomputes and returns the aggregate metrics.
func (t *Tracker) Metrics() agent.Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics = agent.ComputeMetrics(t.store.List())
	return t.metrics.Clone()
}

// Sessions returns copies of every session in creation order.
func (t *Tracker) Sessions() []agent.Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.snapshotLocked()
}

// Session returns a copy of one session.
func (t *Tracker) Session(id string) (agent.Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sess, ok := t.store.Get(id)
	if !ok {
		return agent.Session{}, false
	}
	return sess.Clone(), true
}

// Attach joins obs to the broadcaster with an initial_state snapshot. The
// snapshot and the join happen under the tracker lock, so obs sees every
// later delta exactly once and no earlier one.
func (t *Tracker) Attach(ctx context.Context, obs broadcast.Observer) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics = agent.ComputeMetrics(t.store.List())
	t.hub.Join(ctx, obs, ws.EventInitialState, ws.InitialStateEvent{
		Sessions: t.snapshotLocked(),
		Metrics:  t.metrics.Clone(),
	})
}

// Cleanup evicts every session the retention policy allows and returns how
// many were removed. Active sessions are never evicted.
func (t *Tracker) Cleanup() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var evicted int
	for _, sess := range t.store.List() {
		if !agent.Expired(sess, now, t.retention) {
			continue
		}
		t.store.Remove(sess.AgentID)
		evicted++
		slog.Info("agent session reaped", "agent_id", sess.AgentID, "status", sess.Status,
			"idle", now.Sub(sess.LastActivity).Round(time.Second))
		t.hub.BroadcastEvent(context.Background(), ws.EventSessionRemoved, ws.SessionRemovedEvent{
			AgentID: sess.AgentID,
		})
	}
	if evicted > 0 {
		t.publishMetricsLocked()
	}
	return evicted
}

// ObserverCount returns the number of live observers.
func (t *Tracker) ObserverCount() int {
	return t.hub.ConnectionCount()
}

// Shutdown closes every observer and drains the event recorder.
func (t *Tracker) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	t.hub.Close()
	t.mu.Unlock()

	if t.recorder != nil {
		if err := t.recorder.Close(ctx); err != nil {
			return fmt.Errorf("drain event recorder: %w", err)
		}
	}
	return nil
}

func (t *Tracker) publishMetricsLocked() {
	t.metrics = agent.ComputeMetrics(t.store.List())
	t.hub.BroadcastEvent(context.Background(), ws.EventMetricsUpdated, t.metrics.Clone())
}

func (t *Tracker) snapshotLocked() []agent.Session {
	live := t.store.List()
	out := make([]agent.Session, len(live))
	for i, s := range live {
		out[i] = s.Clone()
	}
	return out
}
