package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/voidwell/autodelete/internal/metrics"
	"github.com/voidwell/autodelete/internal/store"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Sweeper periodically re-runs the stale-record sweep while the process is
// up, catching config edits made through a side channel (another process
// sharing the database), and refreshes the pending gauge.
type Sweeper struct {
	channels *store.Channels
	messages *store.Messages
	sched    cron.Schedule
	waker    interface{ Wake() }
}

// SweeperOpts holds parameters for creating a Sweeper.
type SweeperOpts struct {
	Channels *store.Channels
	Messages *store.Messages
	Cron     string            // 5-field cron expression
	Waker    interface{ Wake() } // optional; poked after a sweep that removed records
}

// NewSweeper creates a Sweeper from a cron expression.
func NewSweeper(opts SweeperOpts) (*Sweeper, error) {
	if opts.Channels == nil || opts.Messages == nil {
		return nil, fmt.Errorf("scheduler: sweeper requires both stores")
	}
	sched, err := cronParser.Parse(opts.Cron)
	if err != nil {
		return nil, fmt.Errorf("scheduler: parse sweep cron %q: %w", opts.Cron, err)
	}
	return &Sweeper{
		channels: opts.Channels,
		messages: opts.Messages,
		sched:    sched,
		waker:    opts.Waker,
	}, nil
}

// Run fires the sweep on the cron schedule until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	for {
		next := s.sched.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		s.sweep()
	}
}

// sweep runs one stale-record pass and updates the pending gauge.
func (s *Sweeper) sweep() {
	purged, err := SweepStale(s.channels, s.messages)
	if err != nil {
		log.Printf("scheduler: maintenance sweep: %v", err)
		return
	}
	if purged > 0 {
		log.Printf("scheduler: maintenance sweep purged %d stale records", purged)
		if s.waker != nil {
			s.waker.Wake()
		}
	}
	if n, err := s.messages.PendingCount(); err == nil {
		metrics.SetPending(n)
	}
}
