package stub

import (
	"context"
	"sync"
	"time"

	"stock-backfill/internal/domain"
)

// Call records one Fetch invocation.
type Call struct {
	Symbol string
	Start  time.Time
	End    time.Time
	Band   domain.Band
}

// ResponseFunc produces the result of the n-th call (0-based).
type ResponseFunc func(n int, call Call) ([]*domain.Bar, error)

// Source returns scripted bars for testing.
// Implements quotes.Source interface.
type Source struct {
	mu      sync.Mutex
	respond ResponseFunc
	calls   []Call
}

// NewSource creates a stub whose responses come from respond.
func NewSource(respond ResponseFunc) *Source {
	return &Source{respond: respond}
}

// NewEmptySource always returns no bars.
func NewEmptySource() *Source {
	return NewSource(func(int, Call) ([]*domain.Bar, error) { return nil, nil })
}

// NewErrorSource always fails with err.
func NewErrorSource(err error) *Source {
	return NewSource(func(int, Call) ([]*domain.Bar, error) { return nil, err })
}

// NewHourlySource generates one bar per step across the requested range.
func NewHourlySource(step time.Duration) *Source {
	return NewSource(func(_ int, c Call) ([]*domain.Bar, error) {
		return GenerateBars(c.Symbol, c.Band, c.Start, c.End, step), nil
	})
}

// Name returns the stub name.
func (s *Source) Name() string {
	return "stub"
}

// Fetch records the call and returns the scripted response.
// Returns copies to prevent mutation.
func (s *Source) Fetch(_ context.Context, symbol string, start, end time.Time, band domain.Band) ([]*domain.Bar, error) {
	s.mu.Lock()
	call := Call{Symbol: symbol, Start: start, End: end, Band: band}
	n := len(s.calls)
	s.calls = append(s.calls, call)
	s.mu.Unlock()

	bars, err := s.respond(n, call)
	if err != nil {
		return nil, err
	}
	result := make([]*domain.Bar, 0, len(bars))
	for _, b := range bars {
		c := *b
		result = append(result, &c)
	}
	return result, nil
}

// Calls returns the recorded calls.
func (s *Source) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// GenerateBars builds bars every step in [start, end].
func GenerateBars(symbol string, band domain.Band, start, end time.Time, step time.Duration) []*domain.Bar {
	var bars []*domain.Bar
	for ts := start; !ts.After(end); ts = ts.Add(step) {
		bars = append(bars, &domain.Bar{
			Symbol: symbol, Timestamp: ts, Band: band,
			Open: 10000, Close: 10050, High: 10100, Low: 9950, Volume: 500,
		})
	}
	return bars
}
