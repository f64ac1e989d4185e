package agent

// Metrics is the aggregate view over every tracked session.
type Metrics struct {
	TotalRequests       int            `json:"totalRequests"`
	SuccessfulRequests  int            `json:"successfulRequests"`
	FailedRequests      int            `json:"failedRequests"`
	AverageResponseTime float64        `json:"averageResponseTime"`
	ToolUsage           map[string]int `json:"toolUsage"`
	ActiveAgents        int            `json:"activeAgents"`
}

// Clone returns a copy of m with its own ToolUsage map.
func (m Metrics) Clone() Metrics {
	usage := make(map[string]int, len(m.ToolUsage))
	for k, v := range m.ToolUsage {
		usage[k] = v
	}
	m.ToolUsage = usage
	return m
}

// ComputeMetrics derives Metrics from the full set of sessions.
//
// This is a full scan, O(total events), run after every mutation. Every
// counter, including the success and failure counts, is read off the event
// logs so the numbers can never drift from the events they describe:
// successes are response events, failures are error events.
func ComputeMetrics(sessions []*Session) Metrics {
	m := Metrics{ToolUsage: map[string]int{}}

	var durationSum float64
	var timed int
	for _, s := range sessions {
		if s.Status == StatusActive {
			m.ActiveAgents++
		}
		for i := range s.Events {
			ev := &s.Events[i]
			switch ev.Kind {
			case KindToolCall:
				m.TotalRequests++
				if ev.ToolName != "" {
					m.ToolUsage[ev.ToolName]++
				}
			case KindResponse:
				m.SuccessfulRequests++
				if ev.Duration != nil {
					durationSum += *ev.Duration
					timed++
				}
			case KindError:
				m.FailedRequests++
			}
		}
	}
	if timed > 0 {
		m.AverageResponseTime = durationSum / float64(timed)
	}
	return m
}
