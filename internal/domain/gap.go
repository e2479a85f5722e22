package domain

import "time"

// GapKind describes which detection rule produced a gap.
type GapKind string

const (
	GapKindEmpty      GapKind = "empty"      // band has no stored bars
	GapKindInterior   GapKind = "interior"   // consecutive bars too far apart
	GapKindHistorical GapKind = "historical" // oldest bar newer than window start
	GapKindRecency    GapKind = "recency"    // newest bar older than recency threshold
)

// Gap is a candidate missing range for one symbol and band.
// Produced by gap detection; never persisted.
type Gap struct {
	Symbol string
	Start  time.Time // exclusive lower bound of missing data, Start < End
	End    time.Time
	Band   Band
	Kind   GapKind
}

// Duration returns End - Start.
func (g Gap) Duration() time.Duration {
	return g.End.Sub(g.Start)
}
