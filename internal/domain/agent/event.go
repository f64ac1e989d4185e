package agent

import "time"

// Kind identifies what an event records. The set is closed.
type Kind string

const (
	KindThinking Kind = "thinking"
	KindToolCall Kind = "tool_call"
	KindResponse Kind = "response"
	KindError    Kind = "error"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindThinking, KindToolCall, KindResponse, KindError:
		return true
	}
	return false
}

// Terminal reports whether events of this kind close a tool call.
// Terminal events are never mutated after they are appended.
func (k Kind) Terminal() bool {
	return k == KindResponse || k == KindError
}

// Metadata carries the optional payload of an event.
type Metadata struct {
	Query        string `json:"query,omitempty"`
	Response     string `json:"response,omitempty"`
	ErrorDetails string `json:"errorDetails,omitempty"`
	TraceID      string `json:"traceId,omitempty"`
}

// Event is one fact in a session's timeline.
type Event struct {
	AgentID   string    `json:"agentId"`
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"type"`
	ToolName  string    `json:"toolName,omitempty"`
	Message   string    `json:"message"`
	Duration  *float64  `json:"duration,omitempty"` // seconds, terminal events only
	Progress  *int      `json:"progress,omitempty"` // 0-100 while a tool call is in flight
	Metadata  *Metadata `json:"metadata,omitempty"`
}

// TraceID returns the correlation id of the event, or "" when it has none.
func (e *Event) TraceID() string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata.TraceID
}

// Clone returns a copy of e that shares no pointers with it.
func (e *Event) Clone() Event {
	c := *e
	if e.Duration != nil {
		d := *e.Duration
		c.Duration = &d
	}
	if e.Progress != nil {
		p := *e.Progress
		c.Progress = &p
	}
	if e.Metadata != nil {
		m := *e.Metadata
		c.Metadata = &m
	}
	return c
}

// ClampProgress bounds a progress value to 0-100.
func ClampProgress(p int) int {
	return min(max(p, 0), 100)
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
