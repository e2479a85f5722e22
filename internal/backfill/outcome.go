package backfill

import (
	"time"

	"stock-backfill/internal/domain"
)

// GapRecord itemizes what happened to one gap.
type GapRecord struct {
	ID           string         `json:"id"`
	Start        time.Time      `json:"start"`
	End          time.Time      `json:"end"`
	Band         domain.Band    `json:"band"`
	Kind         domain.GapKind `json:"kind"`
	Attempts     int            `json:"attempts"`
	Retries      int            `json:"retries"`
	RowsInserted int            `json:"rows_inserted"`
	Error        string         `json:"error,omitempty"`
}

// Outcome is the result of FillGaps. Failures are data, not errors.
type Outcome struct {
	Symbol            string      `json:"symbol"`
	GapsFound         int         `json:"gaps_found"`
	GapsFilled        int         `json:"gaps_filled"`
	GapsFailed        int         `json:"gaps_failed"`
	GapsBlacklisted   int         `json:"gaps_blacklisted"`
	TotalRowsInserted int         `json:"total_rows_inserted"`
	Filled            []GapRecord `json:"filled_gaps"`
	Failed            []GapRecord `json:"failed_gaps"`
	Blacklisted       []GapRecord `json:"blacklisted_gaps"`
}

func newOutcome(symbol string) *Outcome {
	return &Outcome{
		Symbol:      symbol,
		Filled:      []GapRecord{},
		Failed:      []GapRecord{},
		Blacklisted: []GapRecord{},
	}
}

// Unsuccessful returns failed + blacklisted.
func (o *Outcome) Unsuccessful() int {
	return o.GapsFailed + o.GapsBlacklisted
}

func (o *Outcome) addFilled(rec GapRecord) {
	o.GapsFilled++
	o.TotalRowsInserted += rec.RowsInserted
	o.Filled = append(o.Filled, rec)
}

func (o *Outcome) addFailed(rec GapRecord) {
	o.GapsFailed++
	o.Failed = append(o.Failed, rec)
}

func (o *Outcome) addBlacklisted(rec GapRecord) {
	o.GapsBlacklisted++
	o.Blacklisted = append(o.Blacklisted, rec)
}
