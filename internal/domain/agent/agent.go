// Package agent defines the agent session, its event timeline and the
// metrics derived from them.
package agent

import "time"

// Status represents the current state of an agent session.
type Status string

const (
	StatusActive    Status = "active"
	StatusIdle      Status = "idle"
	StatusError     Status = "error"
	StatusCompleted Status = "completed"
)

// Session is one logical agent run and its ordered event log.
type Session struct {
	AgentID      string    `json:"agentId"`
	StartTime    time.Time `json:"startTime"`
	LastActivity time.Time `json:"lastActivity"`
	Events       []Event   `json:"events"`
	Status       Status    `json:"status"`
}

// NewSession returns an empty active session started at now.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		AgentID:      id,
		StartTime:    now,
		LastActivity: now,
		Events:       []Event{},
		Status:       StatusActive,
	}
}

// Append adds ev to the end of the log and recomputes the status.
func (s *Session) Append(ev Event) {
	s.Events = append(s.Events, ev)
	s.LastActivity = ev.Timestamp
	s.Status = DeriveStatus(s.Events)
}

// Touch marks the session as active at now without changing its log.
func (s *Session) Touch(now time.Time) {
	s.LastActivity = now
}

// LatestToolCall returns the index of the most recently appended tool_call
// event carrying traceID, or -1. The scan runs from the end so that the
// newest call wins when trace ids collide.
func (s *Session) LatestToolCall(traceID string) int {
	if traceID == "" {
		return -1
	}
	for i := len(s.Events) - 1; i >= 0; i-- {
		ev := &s.Events[i]
		if ev.Kind == KindToolCall && ev.TraceID() == traceID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() Session {
	c := *s
	c.Events = make([]Event, len(s.Events))
	for i := range s.Events {
		c.Events[i] = s.Events[i].Clone()
	}
	return c
}

// DeriveStatus computes a session status from its event log. The status is
// decided by the most recent relevant event:
//
//	error                          -> error
//	response without progress      -> idle
//	tool_call                      -> active
//
// Other events leave the status untouched; a log without relevant events is
// active.
func DeriveStatus(events []Event) Status {
	for i := len(events) - 1; i >= 0; i-- {
		if st, ok := statusFor(&events[i]); ok {
			return st
		}
	}
	return StatusActive
}

func statusFor(ev *Event) (Status, bool) {
	switch ev.Kind {
	case KindError:
		return StatusError, true
	case KindResponse:
		if ev.Progress == nil || *ev.Progress == 0 {
			return StatusIdle, true
		}
	case KindToolCall:
		return StatusActive, true
	}
	return "", false
}

// Expired reports whether the reaper may evict s: it has been inactive for
// longer than retention and is not active.
func Expired(s *Session, now time.Time, retention time.Duration) bool {
	return s.Status != StatusActive && now.Sub(s.LastActivity) > retention
}
