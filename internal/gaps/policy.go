// Package gaps detects missing ranges in stored bar series and suppresses
// ranges that recently failed to backfill.
package gaps

import (
	"fmt"
	"time"

	"stock-backfill/internal/domain"
)

// Default band parameters. The thresholds tolerate weekends and holidays
// without modelling a market calendar.
const (
	DefaultCoarseWindow    = 730 * 24 * time.Hour
	DefaultCoarseThreshold = 7 * 24 * time.Hour
	DefaultCoarseRecency   = 7 * 24 * time.Hour

	DefaultFineWindow    = 30 * 24 * time.Hour
	DefaultFineThreshold = 24 * time.Hour
	DefaultFineRecency   = 24 * time.Hour

	DefaultBlacklistTTL = 24 * time.Hour
)

// BandPolicy holds the completeness rules for one band.
type BandPolicy struct {
	Band             domain.Band
	Window           time.Duration // expected retention ending now
	GapThreshold     time.Duration // max allowed interval between consecutive bars
	RecencyThreshold time.Duration // max allowed age of the newest bar
}

// Validate checks that all durations are positive.
func (p BandPolicy) Validate() error {
	if !p.Band.IsValid() {
		return fmt.Errorf("policy band %q: %w", p.Band, domain.ErrInvalidBand)
	}
	if p.Window <= 0 || p.GapThreshold <= 0 || p.RecencyThreshold <= 0 {
		return fmt.Errorf("policy %s: durations must be positive", p.Band)
	}
	return nil
}

// Config holds detector configuration.
type Config struct {
	Coarse       BandPolicy
	Fine         BandPolicy
	BlacklistTTL time.Duration
}

// DefaultConfig returns the standard two-band configuration.
func DefaultConfig() Config {
	return Config{
		Coarse: BandPolicy{
			Band:             domain.BandCoarse,
			Window:           DefaultCoarseWindow,
			GapThreshold:     DefaultCoarseThreshold,
			RecencyThreshold: DefaultCoarseRecency,
		},
		Fine: BandPolicy{
			Band:             domain.BandFine,
			Window:           DefaultFineWindow,
			GapThreshold:     DefaultFineThreshold,
			RecencyThreshold: DefaultFineRecency,
		},
		BlacklistTTL: DefaultBlacklistTTL,
	}
}

// Policies returns band policies in detection order.
func (c Config) Policies() []BandPolicy {
	return []BandPolicy{c.Coarse, c.Fine}
}

// Policy returns the policy for band.
func (c Config) Policy(band domain.Band) BandPolicy {
	if band == domain.BandFine {
		return c.Fine
	}
	return c.Coarse
}

// Validate checks every policy and the TTL.
func (c Config) Validate() error {
	for _, p := range c.Policies() {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	if c.BlacklistTTL <= 0 {
		return fmt.Errorf("blacklist ttl must be positive")
	}
	return nil
}
