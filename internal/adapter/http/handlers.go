package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/replatform-mcp/internal/domain/agent"
)

// SessionReader is the read side of the session tracker.
type SessionReader interface {
	Sessions() []agent.Session
	Session(id string) (agent.Session, bool)
	Metrics() agent.Metrics
	ObserverCount() int
}

// StateReporter reports the state of a dependency such as a circuit breaker.
type StateReporter interface {
	State() string
}

// EventHistory reads persisted events, which outlive in-memory retention.
type EventHistory interface {
	LoadByAgent(ctx context.Context, agentID string, limit int) ([]agent.Event, error)
}

// Handlers serves the dashboard REST API.
type Handlers struct {
	Sessions SessionReader
	History  EventHistory  // optional
	Breaker  StateReporter // optional
	Version  string
	Now      func() time.Time
}

type healthStatus struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Sessions    int    `json:"sessions"`
	Connections int    `json:"connections"`
	Breaker     string `json:"breaker,omitempty"`
}

// Health reports liveness plus a short summary of tracker state.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := healthStatus{
		Status:      "ok",
		Version:     h.Version,
		Sessions:    len(h.Sessions.Sessions()),
		Connections: h.Sessions.ObserverCount(),
	}
	if h.Breaker != nil {
		status.Breaker = h.Breaker.State()
		if status.Breaker == "open" {
			status.Status = "degraded"
		}
	}
	writeJSON(w, r, http.StatusOK, status)
}

// ListSessions returns every tracked session in creation order.
func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.Sessions.Sessions())
}

// GetSession returns one session with its full event log.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s, ok := h.Sessions.Session(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, r, http.StatusOK, s)
}

// GetMetrics returns the aggregate metrics.
func (h *Handlers) GetMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.Sessions.Metrics())
}

type dashboardResponse struct {
	Metrics   agent.Metrics   `json:"metrics"`
	Sessions  []agent.Session `json:"sessions"`
	Timestamp time.Time       `json:"timestamp"`
}

// GetDashboard returns metrics and sessions in one snapshot, the same shape
// the get_agent_dashboard tool returns.
func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	writeJSON(w, r, http.StatusOK, dashboardResponse{
		Metrics:   h.Sessions.Metrics(),
		Sessions:  h.Sessions.Sessions(),
		Timestamp: now().UTC(),
	})
}

// GetHistory returns persisted events for one agent. ?limit caps the count.
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}
	events, err := h.History.LoadByAgent(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "load history failed", "agent_id", chi.URLParam(r, "id"), "error", err)
		writeError(w, r, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeJSON(w, r, http.StatusOK, events)
}
