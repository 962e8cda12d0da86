// Package executor drives external delete calls with retry, backoff, and
// at-most-once semantics per tracked message.
package executor

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/voidwell/autodelete/internal/gateway"
	"github.com/voidwell/autodelete/internal/metrics"
	"github.com/voidwell/autodelete/internal/models"
	"github.com/voidwell/autodelete/internal/store"
)

// Defaults for ExecutorOpts zero values.
const (
	DefaultMaxAttempts = 4
	DefaultBaseBackoff = 2 * time.Second
	DefaultMaxBackoff  = time.Minute
	DefaultWorkers     = 4
)

// Executor deletes tracked messages through a gateway adapter and settles
// their store records according to the outcome.
type Executor struct {
	msgs        *store.Messages
	deleter     gateway.Adapter
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	workers     int
}

// Opts holds parameters for creating an Executor.
type Opts struct {
	Messages    *store.Messages
	Deleter     gateway.Adapter
	MaxAttempts int           // attempts per message before giving up (default 4)
	BaseBackoff time.Duration // first retry delay (default 2s)
	MaxBackoff  time.Duration // backoff cap (default 1m)
	Workers     int           // concurrent channels per batch (default 4)
}

// New creates an Executor.
func New(opts Opts) (*Executor, error) {
	if opts.Messages == nil {
		return nil, fmt.Errorf("executor: message store is required")
	}
	if opts.Deleter == nil {
		return nil, fmt.Errorf("executor: deleter is required")
	}
	e := &Executor{
		msgs:        opts.Messages,
		deleter:     opts.Deleter,
		maxAttempts: opts.MaxAttempts,
		baseBackoff: opts.BaseBackoff,
		maxBackoff:  opts.MaxBackoff,
		workers:     opts.Workers,
	}
	if e.maxAttempts <= 0 {
		e.maxAttempts = DefaultMaxAttempts
	}
	if e.baseBackoff <= 0 {
		e.baseBackoff = DefaultBaseBackoff
	}
	if e.maxBackoff <= 0 {
		e.maxBackoff = DefaultMaxBackoff
	}
	if e.workers <= 0 {
		e.workers = DefaultWorkers
	}
	return e, nil
}

// Process deletes one tracked message synchronously, retrying transient
// failures with exponential backoff. On success, already-gone, or permanent
// failure the record is removed from the store; on exhausted transient
// retries it is left in place, still overdue, to be retried by the next
// scheduler or recovery pass. Returns true if the record was settled.
func (e *Executor) Process(ctx context.Context, m models.TrackedMessage) (bool, error) {
	for attempt := 1; ; attempt++ {
		outcome, err := e.deleter.DeleteMessage(ctx, m.ChannelID, m.MessageID)

		switch outcome {
		case gateway.OutcomeDeleted, gateway.OutcomeAlreadyGone:
			metrics.RecordDeletion(outcome.String())
			if rmErr := e.msgs.Remove(m.MessageID); rmErr != nil {
				return false, rmErr
			}
			return true, nil

		case gateway.OutcomePermanent:
			metrics.RecordDeletion(outcome.String())
			log.Printf("executor: permanent failure deleting %s/%s: %v — dropping record",
				m.ChannelID, m.MessageID, err)
			if rmErr := e.msgs.Remove(m.MessageID); rmErr != nil {
				return false, rmErr
			}
			return true, fmt.Errorf("executor: delete %s: %w", m.MessageID, err)

		case gateway.OutcomeTransient:
			if attempt >= e.maxAttempts {
				metrics.RecordDeletion(outcome.String())
				log.Printf("executor: giving up on %s/%s after %d attempts: %v",
					m.ChannelID, m.MessageID, attempt, err)
				return false, fmt.Errorf("executor: delete %s: attempts exhausted: %w", m.MessageID, err)
			}
			metrics.RecordRetry()
			wait := e.backoff(attempt)
			log.Printf("executor: transient failure deleting %s/%s (attempt %d/%d), retrying in %v: %v",
				m.ChannelID, m.MessageID, attempt, e.maxAttempts, wait, err)
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(wait):
			}

		default:
			return false, fmt.Errorf("executor: delete %s: unknown outcome %d", m.MessageID, outcome)
		}
	}
}

// Dispatch processes a batch of due messages and blocks until all are
// handled. Messages are grouped by channel: each channel's deletes run in
// order on one goroutine (the platform rate-limits per channel), with at
// most Workers channels in flight. A message id appears once per batch and
// batches are serialized by the caller, so no two delete calls for the same
// message ever overlap. Returns the number of records settled.
func (e *Executor) Dispatch(ctx context.Context, batch []models.TrackedMessage) int {
	if len(batch) == 0 {
		return 0
	}

	byChannel := make(map[string][]models.TrackedMessage)
	var order []string
	for _, m := range batch {
		if _, seen := byChannel[m.ChannelID]; !seen {
			order = append(order, m.ChannelID)
		}
		byChannel[m.ChannelID] = append(byChannel[m.ChannelID], m)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		settled int
	)
	sem := make(chan struct{}, e.workers)

	for _, ch := range order {
		msgs := byChannel[ch]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			for _, m := range msgs {
				if ctx.Err() != nil {
					return
				}
				ok, err := e.Process(ctx, m)
				if err != nil {
					log.Printf("executor: %v", err)
				}
				if ok {
					mu.Lock()
					settled++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	return settled
}

// backoff returns the exponential delay before the given retry attempt.
func (e *Executor) backoff(attempt int) time.Duration {
	wait := time.Duration(math.Pow(2, float64(attempt-1))) * e.baseBackoff
	if wait > e.maxBackoff {
		wait = e.maxBackoff
	}
	return wait
}
