package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Strob0t/replatform-mcp/internal/domain/agent"
)

// Event type constants for WebSocket messages.
const (
	EventInitialState   = "initial_state"
	EventSessionCreated = "session_created"
	EventEventAdded     = "event_added"
	EventEventUpdated   = "event_updated"
	EventMetricsUpdated = "metrics_updated"
	EventSessionRemoved = "session_removed"
)

// InitialStateEvent is sent once to each observer when it joins.
type InitialStateEvent struct {
	Sessions []agent.Session `json:"sessions"`
	Metrics  agent.Metrics   `json:"metrics"`
}

// EventAddedEvent is broadcast when an event is appended to a session.
type EventAddedEvent struct {
	AgentID string      `json:"agentId"`
	Event   agent.Event `json:"event"`
}

// EventUpdatedEvent is broadcast when an in-flight tool call changes.
type EventUpdatedEvent struct {
	AgentID    string      `json:"agentId"`
	EventIndex int         `json:"eventIndex"`
	Event      agent.Event `json:"event"`
}

// SessionRemovedEvent is broadcast when the reaper evicts a session.
type SessionRemovedEvent struct {
	AgentID string `json:"agentId"`
}

// BroadcastEvent marshals a typed event once and broadcasts it.
func (h *Hub) BroadcastEvent(_ context.Context, eventType string, payload any) {
	data, err := h.encode(eventType, payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}
	h.Broadcast(data)
}

func (h *Hub) encode(eventType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	data, err := json.Marshal(Message{Type: eventType, Data: raw, Timestamp: h.now().UTC()})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", eventType, err)
	}
	return data, nil
}
