package gaps

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"stock-backfill/internal/clock"
	"stock-backfill/internal/domain"
	"stock-backfill/internal/observability"
	"stock-backfill/internal/storage"
)

// Detector computes missing ranges for a symbol across both bands.
type Detector struct {
	symbols storage.SymbolStore
	bars    storage.BarStore
	filter  *BlacklistFilter
	config  Config
	clock   clock.Clock
	log     zerolog.Logger
}

// DetectorOptions contains configuration for creating a Detector.
type DetectorOptions struct {
	SymbolStore    storage.SymbolStore
	BarStore       storage.BarStore
	BlacklistStore storage.BlacklistStore
	Config         *Config // nil uses DefaultConfig
	Clock          clock.Clock
	Logger         *zerolog.Logger
}

// NewDetector creates a new Detector.
func NewDetector(opts DetectorOptions) *Detector {
	cfg := DefaultConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	clk := clock.OrReal(opts.Clock)

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	return &Detector{
		symbols: opts.SymbolStore,
		bars:    opts.BarStore,
		filter:  NewBlacklistFilter(opts.BlacklistStore, cfg.BlacklistTTL, clk),
		config:  cfg,
		clock:   clk,
		log:     log.With().Str("component", "gap_detector").Logger(),
	}
}

// Config returns the detector configuration.
func (d *Detector) Config() Config {
	return d.config
}

// CheckGaps returns the unsuppressed gaps for symbol across both bands.
// An unknown symbol yields no gaps.
func (d *Detector) CheckGaps(ctx context.Context, symbol string) ([]domain.Gap, error) {
	sym, err := domain.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	exists, err := d.symbols.Exists(ctx, sym)
	if err != nil {
		return nil, fmt.Errorf("check symbol %s: %w", sym, err)
	}
	if !exists {
		d.log.Warn().Str("symbol", sym).Msg("symbol not found in store")
		return []domain.Gap{}, nil
	}

	now := d.clock.Now()

	var found []domain.Gap
	for _, policy := range d.config.Policies() {
		timestamps, err := d.bars.ListTimestamps(ctx, sym, policy.Band)
		if err != nil {
			return nil, fmt.Errorf("list %s timestamps for %s: %w", policy.Band, sym, err)
		}
		bandGaps := DetectBand(sym, policy, timestamps, now)
		observability.RecordGapsDetected(policy.Band.String(), len(bandGaps))
		found = append(found, bandGaps...)
	}

	filtered, err := d.filter.Filter(ctx, sym, found)
	if err != nil {
		return nil, err
	}
	if suppressed := len(found) - len(filtered); suppressed > 0 {
		observability.RecordGapsSuppressed(suppressed)
		d.log.Info().Str("symbol", sym).Int("suppressed", suppressed).Msg("gaps filtered by blacklist")
	}

	d.log.Info().Str("symbol", sym).Int("gaps", len(filtered)).Msg("gap check complete")
	return filtered, nil
}

// DetectBand applies the band rules to ascending timestamps.
func DetectBand(symbol string, policy BandPolicy, timestamps []time.Time, now time.Time) []domain.Gap {
	windowStart := now.Add(-policy.Window)

	if len(timestamps) == 0 {
		return []domain.Gap{{
			Symbol: symbol, Start: windowStart, End: now,
			Band: policy.Band, Kind: domain.GapKindEmpty,
		}}
	}

	var gaps []domain.Gap
	for i := 0; i+1 < len(timestamps); i++ {
		cur, next := timestamps[i], timestamps[i+1]
		if next.Sub(cur) > policy.GapThreshold {
			gaps = append(gaps, domain.Gap{
				Symbol: symbol, Start: cur, End: next,
				Band: policy.Band, Kind: domain.GapKindInterior,
			})
		}
	}

	oldest := timestamps[0]
	if oldest.After(windowStart) {
		gaps = append(gaps, domain.Gap{
			Symbol: symbol, Start: windowStart, End: oldest,
			Band: policy.Band, Kind: domain.GapKindHistorical,
		})
	}

	newest := timestamps[len(timestamps)-1]
	if newest.Before(now.Add(-policy.RecencyThreshold)) {
		gaps = append(gaps, domain.Gap{
			Symbol: symbol, Start: newest, End: now,
			Band: policy.Band, Kind: domain.GapKindRecency,
		})
	}

	return gaps
}
