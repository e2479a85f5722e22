package backfill

import (
	"context"
	"fmt"
	"time"

	"stock-backfill/internal/domain"
	"stock-backfill/internal/observability"
)

// DefaultFineChunk bounds each fine-band request during a history refresh.
const DefaultFineChunk = 6 * 24 * time.Hour

// HistoryResult reports a full-window refresh of one symbol.
type HistoryResult struct {
	Symbol            string         `json:"symbol"`
	SymbolCreated     bool           `json:"symbol_created"`
	RowsByBand        map[string]int `json:"rows_by_band"`
	TotalRowsInserted int            `json:"total_rows_inserted"`
	Requests          int            `json:"requests"`
	FailedRequests    int            `json:"failed_requests"`
	Errors            []string       `json:"errors,omitempty"`
}

// Succeeded reports whether any request returned data.
func (r *HistoryResult) Succeeded() bool {
	return r.Requests > r.FailedRequests
}

// RefreshHistory fetches the full retention window of both bands for symbol.
// The fine band is requested in chunks. Unknown symbols are registered first.
// Exhausted requests are reported in the result and never blacklisted.
func (e *Executor) RefreshHistory(ctx context.Context, symbol string) (*HistoryResult, error) {
	sym, err := domain.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	began := time.Now()
	defer func() {
		observability.RecordSymbolDuration("refresh_history", time.Since(began).Seconds())
	}()

	now := e.clock.Now()
	created, err := e.symbols.EnsureExists(ctx, &domain.Symbol{Symbol: sym, CompanyName: sym, UpdatedAt: now})
	if err != nil {
		return nil, fmt.Errorf("ensure symbol %s: %w", sym, err)
	}
	if created {
		e.log.Info().Str("symbol", sym).Msg("registered new symbol")
	}

	result := &HistoryResult{
		Symbol:        sym,
		SymbolCreated: created,
		RowsByBand:    make(map[string]int, len(domain.Bands)),
	}

	for _, policy := range e.windows.Policies() {
		chunk := policy.Window
		if policy.Band == domain.BandFine {
			chunk = e.fineChunk
		}

		start := now.Add(-policy.Window)
		for start.Before(now) {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			end := start.Add(chunk)
			if end.After(now) {
				end = now
			}

			span := domain.Gap{Symbol: sym, Start: start, End: end, Band: policy.Band, Kind: domain.GapKindEmpty}
			a := e.fillGap(ctx, span, e.maxRetries)
			result.Requests++

			if a.state == StateFilled {
				result.RowsByBand[policy.Band.String()] += a.rows
				result.TotalRowsInserted += a.rows
				observability.RecordRowsInserted(policy.Band.String(), a.rows)
			} else {
				result.FailedRequests++
				if a.lastErr != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("%s %s..%s: %v",
						policy.Band, start.Format(time.RFC3339), end.Format(time.RFC3339), a.lastErr))
				}
				if err := e.sleep(ctx, e.delays.Cooldown()); err != nil {
					return result, err
				}
			}

			start = end
		}
	}

	e.log.Info().
		Str("symbol", sym).
		Int("rows", result.TotalRowsInserted).
		Int("requests", result.Requests).
		Int("failed", result.FailedRequests).
		Msg("history refresh complete")

	return result, nil
}
