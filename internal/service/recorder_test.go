package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Strob0t/replatform-mcp/internal/domain/agent"
	"github.com/Strob0t/replatform-mcp/internal/port/sink"
)

func sinkFunc(fn func(agent.Event)) sink.Sink {
	return sink.Func(func(_ context.Context, ev agent.Event) error {
		fn(ev)
		return nil
	})
}

func TestRecorderFansOutToEverySink(t *testing.T) {
	var a, b atomic.Int64
	failing := sink.Func(func(context.Context, agent.Event) error { return errors.New("down") })

	r := NewRecorder(RecorderConfig{Buffer: 64, Workers: 2},
		sinkFunc(func(agent.Event) { a.Add(1) }),
		failing,
		sinkFunc(func(agent.Event) { b.Add(1) }),
	)
	for range 10 {
		r.Record(agent.Event{Kind: agent.KindThinking})
	}
	if err := r.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if a.Load() != 10 || b.Load() != 10 {
		t.Fatalf("a failing sink must not stop the others: a=%d b=%d", a.Load(), b.Load())
	}
}

func TestRecorderDropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	started := make(chan struct{})
	r := NewRecorder(RecorderConfig{Buffer: 1, Workers: 1}, sinkFunc(func(agent.Event) {
		once.Do(func() { close(started) })
		<-release
	}))

	r.Record(agent.Event{Kind: agent.KindThinking})
	<-started
	for range 10 {
		r.Record(agent.Event{Kind: agent.KindThinking})
	}
	if r.DroppedCount() == 0 {
		t.Fatal("expected drops while the sink is blocked")
	}

	close(release)
	if err := r.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestRecorderCloseHonoursContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	r := NewRecorder(RecorderConfig{Buffer: 4, Workers: 1}, sinkFunc(func(agent.Event) { <-block }))
	r.Record(agent.Event{Kind: agent.KindThinking})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}

	// Recording after close is ignored.
	r.Record(agent.Event{Kind: agent.KindThinking})
}

func TestRecorderWithoutSinks(t *testing.T) {
	r := NewRecorder(RecorderConfig{Buffer: 1, Workers: 1})
	for range 5 {
		r.Record(agent.Event{Kind: agent.KindThinking})
	}
	if r.DroppedCount() != 0 {
		t.Fatal("a recorder without sinks must not count drops")
	}
	if err := r.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestRecorderBoundsEachSinkWrite(t *testing.T) {
	var timedOut, delivered atomic.Int64
	hung := sink.Func(func(ctx context.Context, ev agent.Event) error {
		if ev.Message != "first" {
			delivered.Add(1)
			return nil
		}
		<-ctx.Done()
		timedOut.Add(1)
		return ctx.Err()
	})

	r := NewRecorder(RecorderConfig{Buffer: 8, Workers: 1, Timeout: 20 * time.Millisecond}, hung)
	r.Record(agent.Event{Kind: agent.KindThinking, Message: "first"})
	r.Record(agent.Event{Kind: agent.KindThinking, Message: "second"})
	r.Record(agent.Event{Kind: agent.KindThinking, Message: "third"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Close(ctx); err != nil {
		t.Fatalf("a hung sink must not stall the queue: %v", err)
	}
	if timedOut.Load() != 1 || delivered.Load() != 2 {
		t.Fatalf("timed out %d, delivered %d; want 1 and 2", timedOut.Load(), delivered.Load())
	}
	if r.DroppedCount() != 0 {
		t.Fatalf("nothing should drop, got %d", r.DroppedCount())
	}
}

func TestRecorderDefaultsSinkTimeout(t *testing.T) {
	r := NewRecorder(RecorderConfig{Buffer: 1, Workers: 1})
	defer func() { _ = r.Close(context.Background()) }()
	if r.timeout != DefaultSinkTimeout {
		t.Fatalf("timeout = %v, want %v", r.timeout, DefaultSinkTimeout)
	}
}
