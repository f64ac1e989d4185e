package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Strob0t/replatform-mcp/internal/domain/agent"
	"github.com/Strob0t/replatform-mcp/internal/port/sink"
)

// Recorder fans tracked events out to external sinks off the caller's
// goroutine. Events are dropped when the queue is full and sink errors are
// only logged, so a slow or broken sink never affects tracking.
type Recorder struct {
	sinks   []sink.Sink
	timeout time.Duration
	mu      sync.RWMutex
	ch      chan agent.Event
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Int64
}

// DefaultSinkTimeout bounds one sink write when RecorderConfig.Timeout is unset.
const DefaultSinkTimeout = 5 * time.Second

// RecorderConfig sizes the recorder queue and its workers.
type RecorderConfig struct {
	Buffer  int
	Workers int
	Timeout time.Duration // per sink write
}

// NewRecorder starts cfg.Workers workers draining a queue of cfg.Buffer
// events into sinks.
func NewRecorder(cfg RecorderConfig, sinks ...sink.Sink) *Recorder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSinkTimeout
	}
	r := &Recorder{
		sinks:   sinks,
		timeout: cfg.Timeout,
		ch:      make(chan agent.Event, max(cfg.Buffer, 1)),
	}
	for range max(cfg.Workers, 1) {
		r.wg.Add(1)
		go r.drain()
	}
	return r
}

func (r *Recorder) drain() {
	defer r.wg.Done()
	for ev := range r.ch {
		for _, s := range r.sinks {
			r.write(s, ev)
		}
	}
}

// write gives one sink at most r.timeout so a hung backend cannot stall the
// queue.
func (r *Recorder) write(s sink.Sink, ev agent.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := s.Record(ctx, ev); err != nil {
		slog.Debug("event sink failed", "agent_id", ev.AgentID, "type", ev.Kind, "error", err)
	}
}

// Record enqueues ev without blocking.
func (r *Recorder) Record(ev agent.Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed || len(r.sinks) == 0 {
		return
	}
	select {
	case r.ch <- ev:
	default:
		r.dropped.Add(1)
	}
}

// DroppedCount returns the number of events dropped on a full queue.
func (r *Recorder) DroppedCount() int64 {
	return r.dropped.Load()
}

// Close stops accepting events and waits for the queue to drain or ctx to
// end, whichever comes first.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
