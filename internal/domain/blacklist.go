package domain

import "time"

// BlacklistEntry records a gap start that could not be backfilled.
// Corresponds to blacklist table. Entries are never mutated.
type BlacklistEntry struct {
	ID        int64     // surrogate key assigned by the store
	Symbol    string    // ticker symbol
	Timestamp time.Time // gap start, truncated to whole seconds
	TimeAdded time.Time // insertion time
	Band      Band      // band of the failed gap
}

// TruncateToSecond drops sub-second precision.
func TruncateToSecond(t time.Time) time.Time {
	return t.Truncate(time.Second)
}

// NewBlacklistEntry builds an entry for a failed gap.
func NewBlacklistEntry(gap Gap, now time.Time) *BlacklistEntry {
	return &BlacklistEntry{
		Symbol:    gap.Symbol,
		Timestamp: TruncateToSecond(gap.Start),
		TimeAdded: now,
		Band:      gap.Band,
	}
}

// ActiveAt reports whether the entry still suppresses gaps at now.
func (e *BlacklistEntry) ActiveAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.TimeAdded) < ttl
}
