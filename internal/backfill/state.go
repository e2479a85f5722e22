package backfill

import (
	"errors"

	"stock-backfill/internal/domain"
	"stock-backfill/internal/idhash"
)

// AttemptState is the position of one gap in the fill state machine.
//
//	pending -> attempting -> filled
//	                      -> retrying -> attempting
//	                      -> exhausted
//	                      -> aborted (store write failed)
type AttemptState string

const (
	StatePending    AttemptState = "pending"
	StateAttempting AttemptState = "attempting"
	StateRetrying   AttemptState = "retrying"
	StateFilled     AttemptState = "filled"
	StateExhausted  AttemptState = "exhausted"
	StateAborted    AttemptState = "aborted"
)

// errEmptyResponse marks an attempt where the source returned no usable bars.
var errEmptyResponse = errors.New("quote source returned no bars in range")

// gapAttempt tracks one gap through the state machine.
// It never sleeps; the executor owns timing.
type gapAttempt struct {
	gap         domain.Gap
	state       AttemptState
	attempts    int
	maxAttempts int
	rows        int
	lastErr     error
}

func newGapAttempt(gap domain.Gap, maxAttempts int) *gapAttempt {
	return &gapAttempt{gap: gap, state: StatePending, maxAttempts: maxAttempts}
}

// begin moves pending or retrying to attempting.
func (a *gapAttempt) begin() {
	a.attempts++
	a.state = StateAttempting
}

// fail records an unsuccessful attempt.
func (a *gapAttempt) fail(err error) {
	a.lastErr = err
	if a.attempts >= a.maxAttempts {
		a.state = StateExhausted
		return
	}
	a.state = StateRetrying
}

// fill records a persisted response.
func (a *gapAttempt) fill(rows int) {
	a.rows = rows
	a.lastErr = nil
	a.state = StateFilled
}

// abort ends the gap without blacklisting it.
func (a *gapAttempt) abort(err error) {
	a.lastErr = err
	a.state = StateAborted
}

// done reports whether the gap reached a terminal state.
func (a *gapAttempt) done() bool {
	switch a.state {
	case StateFilled, StateExhausted, StateAborted:
		return true
	}
	return false
}

// retries is the number of attempts after the first.
func (a *gapAttempt) retries() int {
	if a.attempts == 0 {
		return 0
	}
	return a.attempts - 1
}

func (a *gapAttempt) record() GapRecord {
	rec := GapRecord{
		ID:           idhash.ComputeGapID(a.gap.Symbol, a.gap.Band.String(), a.gap.Start.Unix()),
		Start:        a.gap.Start,
		End:          a.gap.End,
		Band:         a.gap.Band,
		Kind:         a.gap.Kind,
		Attempts:     a.attempts,
		Retries:      a.retries(),
		RowsInserted: a.rows,
	}
	if a.lastErr != nil {
		rec.Error = a.lastErr.Error()
	}
	return rec
}
