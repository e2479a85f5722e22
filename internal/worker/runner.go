package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"stock-backfill/internal/api"
	"stock-backfill/internal/backfill"
	"stock-backfill/internal/observability"
	"stock-backfill/internal/queue"
)

// DefaultPollInterval is the time between batch requests.
const DefaultPollInterval = time.Hour

// BatchSource hands out ticker batches. Implemented by *Client.
type BatchSource interface {
	GetBatch(ctx context.Context, category queue.Category) (*api.BatchResponse, error)
}

// Runner processes orchestrator batches: history first, gap detection when
// no history work remains.
type Runner struct {
	batches    BatchSource
	executor   *backfill.Executor
	cooldown   *backfill.CooldownTracker
	interval   time.Duration
	maxRetries int
	log        zerolog.Logger
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Batches      BatchSource
	Executor     *backfill.Executor
	Cooldown     *backfill.CooldownTracker // nil creates one with defaults
	PollInterval time.Duration             // default 1h
	MaxRetries   int                       // 0 uses the executor default
	Logger       *zerolog.Logger
}

// NewRunner creates a new worker runner.
func NewRunner(opts RunnerOptions) *Runner {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	cooldown := opts.Cooldown
	if cooldown == nil {
		cooldown = backfill.NewCooldownTracker(backfill.DefaultFailureMargin, 0, nil)
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = opts.Executor.MaxRetries()
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	return &Runner{
		batches:    opts.Batches,
		executor:   opts.Executor,
		cooldown:   cooldown,
		interval:   interval,
		maxRetries: maxRetries,
		log:        log.With().Str("component", "worker").Logger(),
	}
}

// Cooldown returns the tracker shared with the HTTP layer.
func (r *Runner) Cooldown() *backfill.CooldownTracker {
	return r.cooldown
}

// CycleResult summarizes one poll cycle.
type CycleResult struct {
	Category        queue.Category
	Symbols         int
	Successes       int
	Failures        int
	RowsInserted    int
	Skipped         bool // cooldown active, nothing requested
	CooldownStarted bool
}

// Run polls until ctx is cancelled. The first cycle starts immediately.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info().Dur("interval", r.interval).Msg("worker loop started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunCycle(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			r.log.Error().Err(err).Msg("cycle failed")
		}

		select {
		case <-ctx.Done():
			r.log.Info().Msg("worker loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunCycle requests one batch and processes it.
func (r *Runner) RunCycle(ctx context.Context) (*CycleResult, error) {
	if until, active := r.cooldown.Status(); active {
		r.log.Warn().Time("until", until).Msg("in cooldown, skipping cycle")
		return &CycleResult{Skipped: true}, nil
	}

	for _, category := range queue.Categories {
		batch, err := r.batches.GetBatch(ctx, category)
		if err != nil {
			return nil, err
		}
		if len(batch.Tickers) == 0 {
			r.log.Info().Str("category", string(category)).Msg("no work in queue")
			continue
		}

		r.log.Info().
			Str("category", string(category)).
			Str("batch_id", batch.BatchID).
			Int("size", len(batch.Tickers)).
			Int("remaining", batch.RemainingInQueue).
			Msg("processing batch")

		return r.process(ctx, category, batch.Tickers)
	}

	return &CycleResult{}, nil
}

func (r *Runner) process(ctx context.Context, category queue.Category, tickers []string) (*CycleResult, error) {
	result := &CycleResult{Category: category, Symbols: len(tickers)}

	for _, sym := range tickers {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		switch category {
		case queue.History:
			res, err := r.executor.RefreshHistory(ctx, sym)
			if err != nil {
				if ctx.Err() != nil {
					return result, ctx.Err()
				}
				r.log.Error().Err(err).Str("symbol", sym).Msg("history refresh failed")
				result.Failures++
				continue
			}
			result.RowsInserted += res.TotalRowsInserted
			if res.Succeeded() {
				result.Successes++
			} else {
				result.Failures++
			}

		case queue.GapDetection:
			outcome, err := r.executor.FillGaps(ctx, sym, r.maxRetries)
			if err != nil {
				if ctx.Err() != nil {
					return result, ctx.Err()
				}
				r.log.Error().Err(err).Str("symbol", sym).Msg("gap fill failed")
				result.Failures++
				continue
			}
			result.RowsInserted += outcome.TotalRowsInserted
			result.Successes += outcome.GapsFilled
			result.Failures += outcome.Unsuccessful()
		}
	}

	observability.RecordBatchProcessed(time.Now().Unix())
	if r.cooldown.Observe(result.Successes, result.Failures) {
		result.CooldownStarted = true
		until, _ := r.cooldown.Status()
		r.log.Warn().
			Int("successes", result.Successes).
			Int("failures", result.Failures).
			Time("until", until).
			Msg("failure margin exceeded, entering cooldown")
	}

	r.log.Info().
		Str("category", string(category)).
		Int("symbols", result.Symbols).
		Int("successes", result.Successes).
		Int("failures", result.Failures).
		Int("rows", result.RowsInserted).
		Msg("batch complete")
	return result, nil
}
