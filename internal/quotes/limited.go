package quotes

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"stock-backfill/internal/domain"
	"stock-backfill/internal/observability"
)

// RateLimited wraps a Source with a client-side token bucket and records
// fetch latency.
type RateLimited struct {
	source  Source
	limiter *rate.Limiter
}

// NewRateLimited allows rps requests per second with the given burst.
func NewRateLimited(source Source, rps float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		source:  source,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Compile-time interface check.
var _ Source = (*RateLimited)(nil)

// Name returns the wrapped source name.
func (r *RateLimited) Name() string {
	return r.source.Name()
}

// Fetch waits for a token then delegates.
func (r *RateLimited) Fetch(ctx context.Context, symbol string, start, end time.Time, band domain.Band) ([]*domain.Bar, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	began := time.Now()
	bars, err := r.source.Fetch(ctx, symbol, start, end, band)
	observability.RecordQuoteLatency(r.source.Name(), band.String(), time.Since(began).Seconds())
	return bars, err
}
