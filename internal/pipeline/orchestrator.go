package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// StateStore persists resume offsets and running counters between runs.
// Backed by the Valkey cache; unavailability degrades resumability, never
// correctness, so failures here are absorbed through the circuit breaker.
type StateStore interface {
	LoadOffset(ctx context.Context, jobType string) (int64, bool, error)
	SaveOffset(ctx context.Context, jobType string, offset int64) error
	ClearOffset(ctx context.Context, jobType string) error
	SaveStats(ctx context.Context, jobType string, stats Stats) error
}

// Stage is one pipeline step driven over the full dataset in chunks. Process
// handles rows [offset, offset+limit) ordered by timestamp then a stable
// secondary key, honoring the dry-run and skip-existing options itself.
type Stage interface {
	JobType() string
	Count(ctx context.Context) (int64, error)
	Process(ctx context.Context, offset, limit int64, opts Options) (ChunkResult, error)
}

// Options configure one orchestrator run.
type Options struct {
	ChunkSize    int64
	DryRun       bool
	SkipExisting bool
	Resume       bool
	Reset        bool
	BatchDelay   time.Duration
}

// ChunkResult reports what one chunk did. Fetched below the chunk size
// signals the natural end of the dataset. Remaining counts the fetched rows
// still visible to the next fetch under skip-existing: rows written
// downstream drop out of the anti-joined window, so only rows the stage
// left upstream move it forward.
type ChunkResult struct {
	Fetched   int64
	Inserted  int64
	Skipped   int64
	Failed    int64
	Remaining int64
}

// Stats accumulate over a run and are checkpointed after every chunk.
type Stats struct {
	Processed int64 `json:"processed"`
	Inserted  int64 `json:"inserted"`
	Skipped   int64 `json:"skipped"`
	Failed    int64 `json:"failed"`
	Chunks    int64 `json:"chunks"`
}

// Orchestrator drives any stage with chunking, retry, resumable offsets and
// a per-run circuit breaker on the state cache.
type Orchestrator struct {
	state     StateStore
	breaker   *CircuitBreaker
	retry     RetryPolicy
	reconnect func(context.Context) error
	log       *zap.Logger
}

// NewOrchestrator wires the driver. reconnect re-establishes the store client
// between retry attempts and may be nil.
func NewOrchestrator(state StateStore, breaker *CircuitBreaker, retry RetryPolicy, reconnect func(context.Context) error, log *zap.Logger) *Orchestrator {
	if breaker == nil {
		breaker = NewCircuitBreaker(5, time.Minute)
	}
	return &Orchestrator{
		state:     state,
		breaker:   breaker,
		retry:     retry,
		reconnect: reconnect,
		log:       log,
	}
}

// Run processes the whole stage. On failure the last completed offset stays
// persisted so a later run with Resume continues instead of restarting.
func (o *Orchestrator) Run(ctx context.Context, stage Stage, opts Options) (Stats, error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1000
	}
	jobType := stage.JobType()

	var stats Stats
	offset := o.startOffset(ctx, jobType, opts)

	var total int64
	err := withRetry(ctx, o.log, o.retry, o.reconnect, func(ctx context.Context) error {
		var err error
		total, err = stage.Count(ctx)
		return err
	})
	if err != nil {
		return stats, fmt.Errorf("failed to count rows for %s: %w", jobType, err)
	}

	o.log.Info("Starting batch run",
		zap.String("job_type", jobType),
		zap.Int64("total", total),
		zap.Int64("offset", offset),
		zap.Int64("chunk_size", opts.ChunkSize),
		zap.Bool("dry_run", opts.DryRun),
		zap.Bool("skip_existing", opts.SkipExisting))

	for {
		if err := ctx.Err(); err != nil {
			o.checkpoint(ctx, jobType, offset, stats)
			return stats, fmt.Errorf("batch run cancelled: %w", err)
		}

		var result ChunkResult
		err := withRetry(ctx, o.log, o.retry, o.reconnect, func(ctx context.Context) error {
			var err error
			result, err = stage.Process(ctx, offset, opts.ChunkSize, opts)
			return err
		})
		if err != nil {
			// Progress first, then propagate.
			o.checkpoint(ctx, jobType, offset, stats)
			return stats, fmt.Errorf("chunk at offset %d failed: %w", offset, err)
		}

		stats.Processed += result.Fetched
		stats.Inserted += result.Inserted
		stats.Skipped += result.Skipped
		stats.Failed += result.Failed
		stats.Chunks++

		// With skip-existing the rows just written drop out of the
		// anti-joined fetch window, sliding later rows into their place.
		// Advancing past them would leapfrog those rows, so the window
		// moves only over what the stage left upstream. Dry runs write
		// nothing and page normally.
		if opts.SkipExisting && !opts.DryRun {
			offset += result.Remaining
		} else {
			offset += result.Fetched
		}

		o.checkpoint(ctx, jobType, offset, stats)

		o.log.Info("Chunk completed",
			zap.String("job_type", jobType),
			zap.Int64("offset", offset),
			zap.Int64("fetched", result.Fetched),
			zap.Int64("inserted", result.Inserted),
			zap.Int64("skipped", result.Skipped),
			zap.Int64("failed", result.Failed))

		if result.Fetched < opts.ChunkSize {
			break
		}

		if opts.BatchDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(opts.BatchDelay):
			}
		}
	}

	o.clearOffset(ctx, jobType)

	o.log.Info("Batch run finished",
		zap.String("job_type", jobType),
		zap.Int64("processed", stats.Processed),
		zap.Int64("inserted", stats.Inserted),
		zap.Int64("skipped", stats.Skipped),
		zap.Int64("failed", stats.Failed),
		zap.Int64("chunks", stats.Chunks))

	return stats, nil
}

// startOffset resolves where to begin: 0, or the persisted offset when
// resuming. Reset clears any persisted offset first.
func (o *Orchestrator) startOffset(ctx context.Context, jobType string, opts Options) int64 {
	if o.state == nil {
		return 0
	}

	if opts.Reset {
		o.clearOffset(ctx, jobType)
		return 0
	}
	if !opts.Resume {
		return 0
	}
	if !o.breaker.Allow() {
		o.log.Warn("State cache circuit open, starting from offset 0",
			zap.String("job_type", jobType))
		return 0
	}

	offset, found, err := o.state.LoadOffset(ctx, jobType)
	if err != nil {
		o.breaker.RecordFailure()
		o.log.Warn("Failed to load resume offset, starting from 0",
			zap.String("job_type", jobType), zap.Error(err))
		return 0
	}
	o.breaker.RecordSuccess()
	if !found {
		return 0
	}

	o.log.Info("Resuming from persisted offset",
		zap.String("job_type", jobType),
		zap.Int64("offset", offset))
	return offset
}

// checkpoint persists offset and counters through the breaker. Cache loss is
// tolerated: the run continues, only resumability suffers.
func (o *Orchestrator) checkpoint(ctx context.Context, jobType string, offset int64, stats Stats) {
	if o.state == nil || !o.breaker.Allow() {
		return
	}

	if err := o.state.SaveOffset(ctx, jobType, offset); err != nil {
		o.breaker.RecordFailure()
		o.log.Warn("Failed to persist resume offset",
			zap.String("job_type", jobType), zap.Error(err))
		return
	}
	if err := o.state.SaveStats(ctx, jobType, stats); err != nil {
		o.breaker.RecordFailure()
		o.log.Warn("Failed to persist run stats",
			zap.String("job_type", jobType), zap.Error(err))
		return
	}
	o.breaker.RecordSuccess()
}

func (o *Orchestrator) clearOffset(ctx context.Context, jobType string) {
	if o.state == nil || !o.breaker.Allow() {
		return
	}
	if err := o.state.ClearOffset(ctx, jobType); err != nil {
		o.breaker.RecordFailure()
		o.log.Warn("Failed to clear resume offset",
			zap.String("job_type", jobType), zap.Error(err))
		return
	}
	o.breaker.RecordSuccess()
}
