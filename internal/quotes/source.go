// Package quotes provides bar sources consumed by the backfill executor.
package quotes

import (
	"context"
	"time"

	"stock-backfill/internal/domain"
)

// Source provides historical bars from an external market-data provider.
type Source interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Fetch returns bars for symbol+band within [start, end] (inclusive).
	// An empty result is not an error.
	Fetch(ctx context.Context, symbol string, start, end time.Time, band domain.Band) ([]*domain.Bar, error)
}
