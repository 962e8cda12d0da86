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

// RecoveryStats summarizes a startup recovery pass.
type RecoveryStats struct {
	Purged  int64 // records dropped by the generation sweep
	Applied int   // overdue deletions executed
}

// RecoverOpts holds parameters for Recover.
type RecoverOpts struct {
	Channels  *store.Channels
	Messages  *store.Messages
	Executor  *executor.Executor
	BatchSize int // default DefaultBatchSize
	Now       func() time.Time
}

// Recover reconciles the stores against wall-clock time. It runs once,
// synchronously, before the live loop starts: first a generation sweep drops
// records orphaned by config changes made while the process was down, then
// every deletion that should already have happened is applied in bounded
// batches. Deletions scheduled in the future are untouched — recovery ends
// as soon as nothing is due.
//
// A storage failure here is returned to the caller and is fatal: the process
// cannot safely schedule anything without the durable state.
func Recover(ctx context.Context, opts RecoverOpts) (RecoveryStats, error) {
	var stats RecoveryStats
	if opts.Channels == nil || opts.Messages == nil || opts.Executor == nil {
		return stats, fmt.Errorf("scheduler: recover requires stores and executor")
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	purged, err := SweepStale(opts.Channels, opts.Messages)
	if err != nil {
		return stats, err
	}
	stats.Purged = purged

	for ctx.Err() == nil {
		batch, err := opts.Messages.PopDue(now(), batchSize)
		if err != nil {
			return stats, err
		}
		if len(batch) == 0 {
			break
		}
		settled := opts.Executor.Dispatch(ctx, batch)
		stats.Applied += settled
		if settled < len(batch) {
			// Whatever failed stays overdue; the live loop retries it.
			break
		}
	}

	metrics.SetRecoveryBacklog(int64(stats.Applied))
	log.Printf("scheduler: recovery done — purged %d stale records, applied %d overdue deletions",
		stats.Purged, stats.Applied)
	return stats, nil
}

// SweepStale purges stale records for every known channel config: records
// from superseded generations, and all records of channels that are now
// disabled. Used at recovery and by the periodic maintenance sweep.
func SweepStale(channels *store.Channels, messages *store.Messages) (int64, error) {
	cfgs, err := channels.List()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, cfg := range cfgs {
		var n int64
		if cfg.Enabled {
			n, err = messages.PurgeStale(cfg.ChannelID, cfg.Generation)
		} else {
			n, err = messages.PurgeChannel(cfg.ChannelID)
		}
		if err != nil {
			return total, err
		}
		total += n
	}
	metrics.RecordPurged(total)
	return total, nil
}
