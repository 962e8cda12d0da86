// Package scheduler owns the time-ordered execution of pending deletions:
// the live scheduling loop, the startup recovery pass, and the periodic
// maintenance sweep. It holds no authoritative state — everything it knows
// is re-read from the stores and safe to lose on a crash.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/voidwell/autodelete/internal/executor"
	"github.com/voidwell/autodelete/internal/metrics"
	"github.com/voidwell/autodelete/internal/store"
)

// Defaults for Opts zero values.
const (
	DefaultBatchSize       = 100
	DefaultRefreshInterval = 5 * time.Minute
	DefaultRetryInterval   = 10 * time.Second
)

// Scheduler runs the single scheduling loop. It sleeps until the next
// deadline (capped by the refresh interval, so far-future records never need
// to sit in memory), wakes early on Wake, and dispatches due batches to the
// executor.
type Scheduler struct {
	msgs            *store.Messages
	exec            *executor.Executor
	batchSize       int
	refreshInterval time.Duration
	retryInterval   time.Duration
	wake            chan struct{}
	now             func() time.Time
}

// Opts holds parameters for creating a Scheduler.
type Opts struct {
	Messages        *store.Messages
	Executor        *executor.Executor
	BatchSize       int           // max records per PopDue (default 100)
	RefreshInterval time.Duration // window re-query bound (default 5m)
	RetryInterval   time.Duration // pause after a storage error (default 10s)
	Now             func() time.Time
}

// New creates a Scheduler.
func New(opts Opts) (*Scheduler, error) {
	if opts.Messages == nil {
		return nil, fmt.Errorf("scheduler: message store is required")
	}
	if opts.Executor == nil {
		return nil, fmt.Errorf("scheduler: executor is required")
	}
	s := &Scheduler{
		msgs:            opts.Messages,
		exec:            opts.Executor,
		batchSize:       opts.BatchSize,
		refreshInterval: opts.RefreshInterval,
		retryInterval:   opts.RetryInterval,
		wake:            make(chan struct{}, 1),
		now:             opts.Now,
	}
	if s.batchSize <= 0 {
		s.batchSize = DefaultBatchSize
	}
	if s.refreshInterval <= 0 {
		s.refreshInterval = DefaultRefreshInterval
	}
	if s.retryInterval <= 0 {
		s.retryInterval = DefaultRetryInterval
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Wake signals the loop that the store changed: a new message was tracked or
// a config mutation invalidated the in-memory view. Never blocks.
func (s *Scheduler) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run executes the scheduling loop until ctx is cancelled. Storage errors
// are retried after a pause rather than crashing the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Printf("scheduler: loop started")
	for {
		next, ok, err := s.msgs.NextDeadline()
		if err != nil {
			log.Printf("scheduler: next deadline: %v — retrying in %v", err, s.retryInterval)
			if !s.sleep(ctx, s.retryInterval) {
				return nil
			}
			continue
		}

		var timer *time.Timer
		var timerC <-chan time.Time
		if ok {
			wait := next.Sub(s.now())
			if wait > s.refreshInterval {
				// Far-future deadline: re-check the store periodically
				// instead of trusting one long sleep.
				wait = s.refreshInterval
			}
			if wait < 0 {
				wait = 0
			}
			timer = time.NewTimer(wait)
			timerC = timer.C
		}
		// With nothing pending there is no timer; only a wake or shutdown
		// can end this select.

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			log.Printf("scheduler: loop stopped")
			return nil
		case <-s.wake:
			if timer != nil {
				timer.Stop()
			}
		case <-timerC:
		}

		s.drainDue(ctx)
	}
}

// drainDue pops and dispatches due batches until the store has nothing due
// or a batch fails to fully settle (whatever is left is overdue and will be
// picked up again after backoff-sized sleeps).
func (s *Scheduler) drainDue(ctx context.Context) {
	for ctx.Err() == nil {
		batch, err := s.msgs.PopDue(s.now(), s.batchSize)
		if err != nil {
			log.Printf("scheduler: pop due: %v", err)
			return
		}
		if len(batch) == 0 {
			break
		}
		settled := s.exec.Dispatch(ctx, batch)
		if settled < len(batch) {
			break
		}
	}

	if n, err := s.msgs.PendingCount(); err == nil {
		metrics.SetPending(n)
	}
}

// sleep blocks for d or until ctx is cancelled; reports false on cancel.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
