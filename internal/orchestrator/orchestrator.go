// Package orchestrator reseeds the work queues from the symbol universe.
// Reseed flow: provider fetch (no queue lock held) → swap-in under each
// category lock.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stock-backfill/internal/observability"
	"stock-backfill/internal/queue"
	"stock-backfill/internal/universe"
)

// DefaultReseedTimeout bounds one universe fetch.
const DefaultReseedTimeout = 5 * time.Minute

// Orchestrator owns the queue service and its universe provider.
type Orchestrator struct {
	queue    *queue.Service
	provider universe.Provider
	timeout  time.Duration
	log      zerolog.Logger

	reseedMu sync.Mutex // serializes reseeds; never held with a queue lock
}

// Options for creating Orchestrator.
type Options struct {
	Queue         *queue.Service
	Provider      universe.Provider
	ReseedTimeout time.Duration // default 5m
	Logger        *zerolog.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	timeout := opts.ReseedTimeout
	if timeout <= 0 {
		timeout = DefaultReseedTimeout
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Orchestrator{
		queue:    opts.Queue,
		provider: opts.Provider,
		timeout:  timeout,
		log:      log.With().Str("component", "orchestrator").Logger(),
	}
}

// Queue returns the owned queue service.
func (o *Orchestrator) Queue() *queue.Service {
	return o.queue
}

// Reseed fetches the universe and refreshes both categories.
// On provider failure the queues are left untouched.
func (o *Orchestrator) Reseed(ctx context.Context) (int, error) {
	o.reseedMu.Lock()
	defer o.reseedMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	o.log.Info().Str("provider", o.provider.Name()).Msg("fetching symbol universe")
	tickers, err := o.provider.Symbols(ctx)
	if err != nil {
		observability.RecordReseed("error", 0, 0)
		o.log.Error().Err(err).Str("provider", o.provider.Name()).Msg("reseed failed")
		return 0, fmt.Errorf("fetch universe from %s: %w", o.provider.Name(), err)
	}

	o.queue.Refresh(tickers)
	observability.RecordReseed("success", len(tickers), time.Now().Unix())
	o.log.Info().Int("tickers", len(tickers)).Msg("queues reseeded")
	return len(tickers), nil
}

// ReseedJob wraps Reseed for the scheduler.
func (o *Orchestrator) ReseedJob() Job {
	return Job{
		Name: "reseed_queues",
		Run: func(ctx context.Context) error {
			_, err := o.Reseed(ctx)
			return err
		},
	}
}
