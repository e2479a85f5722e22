package gaps

import (
	"context"
	"fmt"
	"time"

	"stock-backfill/internal/clock"
	"stock-backfill/internal/domain"
	"stock-backfill/internal/storage"
)

// BlacklistFilter removes gaps whose start failed to backfill within the TTL.
type BlacklistFilter struct {
	store storage.BlacklistStore
	ttl   time.Duration
	clock clock.Clock
}

// NewBlacklistFilter creates a filter over store.
func NewBlacklistFilter(store storage.BlacklistStore, ttl time.Duration, clk clock.Clock) *BlacklistFilter {
	if ttl <= 0 {
		ttl = DefaultBlacklistTTL
	}
	return &BlacklistFilter{store: store, ttl: ttl, clock: clock.OrReal(clk)}
}

// TTL returns the suppression window.
func (f *BlacklistFilter) TTL() time.Duration {
	return f.ttl
}

// Filter returns the gaps whose start is not currently suppressed for symbol.
// A store failure is returned as an error; gaps are never passed through unfiltered.
func (f *BlacklistFilter) Filter(ctx context.Context, symbol string, gaps []domain.Gap) ([]domain.Gap, error) {
	if len(gaps) == 0 {
		return gaps, nil
	}

	entries, err := f.store.List(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("list blacklist for %s: %w", symbol, err)
	}
	if len(entries) == 0 {
		return gaps, nil
	}

	now := f.clock.Now()
	active := make(map[int64]struct{}, len(entries))
	for _, e := range entries {
		// Entries never suppress another symbol's gaps.
		if e.Symbol != symbol || !e.ActiveAt(now, f.ttl) {
			continue
		}
		active[domain.TruncateToSecond(e.Timestamp).Unix()] = struct{}{}
	}

	filtered := make([]domain.Gap, 0, len(gaps))
	for _, g := range gaps {
		if _, suppressed := active[domain.TruncateToSecond(g.Start).Unix()]; suppressed {
			continue
		}
		filtered = append(filtered, g)
	}
	return filtered, nil
}
