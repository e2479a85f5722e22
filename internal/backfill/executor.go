// Package backfill closes detected gaps by fetching bars from a quote source,
// refreshes full history for a symbol, and tracks the systemic failure signal
// callers use to cool down.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"stock-backfill/internal/clock"
	"stock-backfill/internal/domain"
	"stock-backfill/internal/gaps"
	"stock-backfill/internal/observability"
	"stock-backfill/internal/quotes"
	"stock-backfill/internal/storage"
)

// DefaultMaxRetries is the attempt bound per gap.
const DefaultMaxRetries = 3

// ErrInvalidRetryCount is returned for a non-positive retry bound.
var ErrInvalidRetryCount = errors.New("max retries must be positive")

// GapChecker reports the unsuppressed gaps for a symbol.
// Implemented by *gaps.Detector.
type GapChecker interface {
	CheckGaps(ctx context.Context, symbol string) ([]domain.Gap, error)
}

// Executor fills gaps with bounded retries and blacklists exhausted ones.
type Executor struct {
	checker    GapChecker
	source     quotes.Source
	bars       storage.BarStore
	symbols    storage.SymbolStore
	blacklist  storage.BlacklistStore
	windows    gaps.Config
	fineChunk  time.Duration
	delays     DelayStrategy
	sleep      Sleeper
	clock      clock.Clock
	maxRetries int
	log        zerolog.Logger
}

// Options contains configuration for creating an Executor.
type Options struct {
	Checker        GapChecker
	Source         quotes.Source
	BarStore       storage.BarStore
	SymbolStore    storage.SymbolStore // used by RefreshHistory
	BlacklistStore storage.BlacklistStore
	Windows        *gaps.Config  // retention windows for RefreshHistory, nil uses gaps.DefaultConfig
	FineChunk      time.Duration // 0 uses DefaultFineChunk
	Delays         DelayStrategy // nil uses DefaultDelays
	Sleep          Sleeper       // nil uses Sleep
	Clock          clock.Clock
	MaxRetries     int // 0 uses DefaultMaxRetries
	Logger         *zerolog.Logger
}

// NewExecutor creates a new backfill executor.
func NewExecutor(opts Options) *Executor {
	delays := opts.Delays
	if delays == nil {
		delays = DefaultDelays()
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	windows := gaps.DefaultConfig()
	if opts.Windows != nil {
		windows = *opts.Windows
	}
	fineChunk := opts.FineChunk
	if fineChunk <= 0 {
		fineChunk = DefaultFineChunk
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	return &Executor{
		checker:    opts.Checker,
		source:     opts.Source,
		bars:       opts.BarStore,
		symbols:    opts.SymbolStore,
		blacklist:  opts.BlacklistStore,
		windows:    windows,
		fineChunk:  fineChunk,
		delays:     delays,
		sleep:      sleep,
		clock:      clock.OrReal(opts.Clock),
		maxRetries: maxRetries,
		log:        log.With().Str("component", "backfill_executor").Logger(),
	}
}

// MaxRetries returns the configured default attempt bound.
func (e *Executor) MaxRetries() int {
	return e.maxRetries
}

// FillGaps detects gaps for symbol and attempts each up to maxRetries times.
// Only misuse (bad symbol, non-positive maxRetries), gap detection failure and
// shutdown are returned as errors; per-gap failures are reported in the Outcome.
func (e *Executor) FillGaps(ctx context.Context, symbol string, maxRetries int) (*Outcome, error) {
	if maxRetries <= 0 {
		return nil, fmt.Errorf("fill gaps %q: %w", symbol, ErrInvalidRetryCount)
	}
	sym, err := domain.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	began := time.Now()
	defer func() {
		observability.RecordSymbolDuration("fill_gaps", time.Since(began).Seconds())
	}()

	found, err := e.checker.CheckGaps(ctx, sym)
	if err != nil {
		return nil, fmt.Errorf("detect gaps for %s: %w", sym, err)
	}

	outcome := newOutcome(sym)
	outcome.GapsFound = len(found)
	if len(found) == 0 {
		return outcome, nil
	}

	e.log.Info().Str("symbol", sym).Int("gaps", len(found)).Int("max_retries", maxRetries).Msg("filling gaps")

	for _, gap := range found {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}

		attempt := e.fillGap(ctx, gap, maxRetries)
		observability.RecordGapOutcome(string(attempt.state))

		switch attempt.state {
		case StateFilled:
			outcome.addFilled(attempt.record())
			observability.RecordRowsInserted(gap.Band.String(), attempt.rows)
			continue
		case StateExhausted:
			e.exhausted(ctx, outcome, attempt)
		default:
			outcome.addFailed(attempt.record())
		}

		if err := e.sleep(ctx, e.delays.Cooldown()); err != nil {
			return outcome, err
		}
	}

	e.log.Info().
		Str("symbol", sym).
		Int("filled", outcome.GapsFilled).
		Int("failed", outcome.GapsFailed).
		Int("blacklisted", outcome.GapsBlacklisted).
		Int("rows", outcome.TotalRowsInserted).
		Msg("gap fill complete")

	return outcome, nil
}

// fillGap drives one gap to a terminal state.
func (e *Executor) fillGap(ctx context.Context, gap domain.Gap, maxAttempts int) *gapAttempt {
	a := newGapAttempt(gap, maxAttempts)

	for !a.done() {
		a.begin()

		bars, err := e.source.Fetch(ctx, gap.Symbol, gap.Start, gap.End, gap.Band)
		switch {
		case err != nil:
			observability.RecordFetchAttempt("error")
			a.fail(err)
		default:
			bars = withinGap(bars, gap)
			if len(bars) == 0 {
				observability.RecordFetchAttempt("empty")
				a.fail(errEmptyResponse)
				break
			}
			observability.RecordFetchAttempt("ok")

			inserted, err := e.bars.InsertManyIfAbsent(ctx, bars)
			if err != nil {
				a.abort(fmt.Errorf("insert bars: %w", err))
				break
			}
			a.fill(inserted)
		}

		if a.state != StateRetrying {
			continue
		}
		e.log.Debug().
			Str("symbol", gap.Symbol).
			Str("band", gap.Band.String()).
			Int("attempt", a.attempts).
			Err(a.lastErr).
			Msg("fill attempt failed, retrying")
		if err := e.sleep(ctx, e.delays.RetryDelay(a.attempts)); err != nil {
			a.abort(err)
		}
	}

	return a
}

// exhausted blacklists the gap start. A blacklist write failure downgrades
// the gap to failed.
func (e *Executor) exhausted(ctx context.Context, outcome *Outcome, a *gapAttempt) {
	entry := domain.NewBlacklistEntry(a.gap, e.clock.Now())
	if err := e.blacklist.Insert(ctx, entry); err != nil {
		e.log.Error().Err(err).Str("symbol", a.gap.Symbol).Time("start", a.gap.Start).Msg("blacklist insert failed")
		a.lastErr = fmt.Errorf("blacklist insert: %w", err)
		outcome.addFailed(a.record())
		return
	}

	e.log.Warn().
		Str("symbol", a.gap.Symbol).
		Str("band", a.gap.Band.String()).
		Time("start", a.gap.Start).
		Int("attempts", a.attempts).
		Msg("gap blacklisted")
	outcome.addBlacklisted(a.record())
}

// withinGap keeps structurally valid bars for the gap's symbol and band
// inside [gap.Start, gap.End].
func withinGap(bars []*domain.Bar, gap domain.Gap) []*domain.Bar {
	kept := bars[:0]
	for _, b := range bars {
		if b == nil || b.Timestamp.Before(gap.Start) || b.Timestamp.After(gap.End) {
			continue
		}
		b.Symbol = gap.Symbol
		b.Band = gap.Band
		if b.Validate() != nil {
			continue
		}
		kept = append(kept, b)
	}
	return kept
}
