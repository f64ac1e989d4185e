package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultReapInterval is how often the reaper sweeps for expired sessions.
const DefaultReapInterval = 5 * time.Minute

// Cleaner evicts expired sessions and returns how many it removed.
type Cleaner interface {
	Cleanup() int
}

// Reaper runs Cleanup on a fixed schedule.
type Reaper struct {
	cron     *cron.Cron
	cleaner  Cleaner
	interval time.Duration
}

// NewReaper returns a stopped reaper sweeping every interval.
func NewReaper(cleaner Cleaner, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	return &Reaper{
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		cleaner:  cleaner,
		interval: interval,
	}
}

// Start schedules the sweep.
func (r *Reaper) Start() error {
	if _, err := r.cron.AddFunc("@every "+r.interval.String(), r.sweep); err != nil {
		return fmt.Errorf("schedule reaper: %w", err)
	}
	r.cron.Start()
	slog.Info("session reaper started", "interval", r.interval)
	return nil
}

func (r *Reaper) sweep() {
	if n := r.cleaner.Cleanup(); n > 0 {
		slog.Info("session reaper evicted sessions", "count", n)
	}
}

// Stop unschedules the sweep and waits for a running one to finish.
func (r *Reaper) Stop(ctx context.Context) error {
	done := r.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
