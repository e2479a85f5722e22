package backfill

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-backfill/internal/clock"
	"stock-backfill/internal/domain"
	"stock-backfill/internal/gaps"
	"stock-backfill/internal/quotes"
	"stock-backfill/internal/quotes/stub"
	"stock-backfill/internal/storage"
	"stock-backfill/internal/storage/memory"
)

var testNow = time.Date(2024, 6, 3, 16, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return nil
}

func (r *recordingSleeper) Waits() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.waits...)
}

type fixture struct {
	symbols   *memory.SymbolStore
	bars      *memory.BarStore
	blacklist *memory.BlacklistStore
	clock     *clock.Fixed
	detector  *gaps.Detector
	sleeper   *recordingSleeper
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		symbols:   memory.NewSymbolStore(),
		bars:      memory.NewBarStore(),
		blacklist: memory.NewBlacklistStore(),
		clock:     clock.NewFixed(testNow),
		sleeper:   &recordingSleeper{},
	}
	f.detector = gaps.NewDetector(gaps.DetectorOptions{
		SymbolStore:    f.symbols,
		BarStore:       f.bars,
		BlacklistStore: f.blacklist,
		Clock:          f.clock,
	})
	return f
}

func (f *fixture) executor(source quotes.Source) *Executor {
	return f.executorWith(source, f.bars, f.blacklist)
}

func (f *fixture) executorWith(source quotes.Source, bars storage.BarStore, blacklist storage.BlacklistStore) *Executor {
	return NewExecutor(Options{
		Checker:        f.detector,
		Source:         source,
		BarStore:       bars,
		SymbolStore:    f.symbols,
		BlacklistStore: blacklist,
		Sleep:          f.sleeper.Sleep,
		Clock:          f.clock,
	})
}

// seedWithHoles stores complete coarse and fine series for symbol, leaving
// the coarse interior of each hole empty.
func (f *fixture) seedWithHoles(t *testing.T, symbol string, holes ...[2]time.Time) {
	t.Helper()
	ctx := context.Background()
	_, err := f.symbols.EnsureExists(ctx, &domain.Symbol{Symbol: symbol, CompanyName: symbol})
	require.NoError(t, err)

	cfg := gaps.DefaultConfig()
	var bars []*domain.Bar
	for ts := testNow.Add(-cfg.Coarse.Window); ts.Before(testNow); ts = ts.Add(time.Hour) {
		inHole := false
		for _, h := range holes {
			if ts.After(h[0]) && ts.Before(h[1]) {
				inHole = true
			}
		}
		if !inHole {
			bars = append(bars, &domain.Bar{Symbol: symbol, Timestamp: ts, Band: domain.BandCoarse, Open: 100, Close: 100, High: 100, Low: 100, Volume: 1})
		}
	}
	for ts := testNow.Add(-cfg.Fine.Window); ts.Before(testNow); ts = ts.Add(30 * time.Minute) {
		bars = append(bars, &domain.Bar{Symbol: symbol, Timestamp: ts, Band: domain.BandFine, Open: 100, Close: 100, High: 100, Low: 100, Volume: 1})
	}
	_, err = f.bars.InsertManyIfAbsent(ctx, bars)
	require.NoError(t, err)
}

func hole(fromDaysAgo, toDaysAgo int) [2]time.Time {
	return [2]time.Time{
		testNow.Add(-time.Duration(fromDaysAgo) * day),
		testNow.Add(-time.Duration(toDaysAgo) * day),
	}
}

func TestFillGaps_FirstAttemptSucceeds(t *testing.T) {
	f := newFixture(t)
	f.seedWithHoles(t, "AAPL", hole(410, 400))
	ctx := context.Background()

	found, err := f.detector.CheckGaps(ctx, "AAPL")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, domain.BandCoarse, found[0].Band)
	assert.Equal(t, 10*day, found[0].Duration())

	source := stub.NewHourlySource(time.Hour)
	outcome, err := f.executor(source).FillGaps(ctx, "AAPL", 3)
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.GapsFound)
	assert.Equal(t, 1, outcome.GapsFilled)
	assert.Equal(t, 0, outcome.GapsFailed)
	assert.Equal(t, 0, outcome.GapsBlacklisted)
	// 241 hourly bars in the closed range, both endpoints already stored.
	assert.Equal(t, 239, outcome.TotalRowsInserted)

	require.Len(t, outcome.Filled, 1)
	assert.Equal(t, 0, outcome.Filled[0].Retries)
	assert.Equal(t, 1, outcome.Filled[0].Attempts)
	assert.Equal(t, 239, outcome.Filled[0].RowsInserted)

	assert.Len(t, source.Calls(), 1)
	assert.Empty(t, f.sleeper.Waits(), "no delay after a successful fill")

	again, err := f.detector.CheckGaps(ctx, "AAPL")
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestFillGaps_EmptySourceBlacklistsAfterRetries(t *testing.T) {
	f := newFixture(t)
	f.seedWithHoles(t, "AAPL", hole(410, 400))
	ctx := context.Background()

	source := stub.NewEmptySource()
	outcome, err := f.executor(source).FillGaps(ctx, "AAPL", 3)
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.GapsFound)
	assert.Equal(t, 0, outcome.GapsFilled)
	assert.Equal(t, 0, outcome.GapsFailed)
	assert.Equal(t, 1, outcome.GapsBlacklisted)
	require.Len(t, outcome.Blacklisted, 1)
	assert.Equal(t, 3, outcome.Blacklisted[0].Attempts)
	assert.Equal(t, 2, outcome.Blacklisted[0].Retries)

	assert.Len(t, source.Calls(), 3)
	assert.Equal(t, []time.Duration{DefaultRetryDelay, DefaultRetryDelay, DefaultCooldown}, f.sleeper.Waits())

	entries, err := f.blacklist.List(ctx, "AAPL")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, testNow.Add(-410*day), entries[0].Timestamp)
	assert.Equal(t, domain.BandCoarse, entries[0].Band)
	assert.Equal(t, testNow, entries[0].TimeAdded)

	f.clock.Advance(time.Hour)
	again, err := f.detector.CheckGaps(ctx, "AAPL")
	require.NoError(t, err)
	assert.Empty(t, again, "blacklisted gap suppressed within TTL")

	f.clock.Advance(gaps.DefaultBlacklistTTL)
	expired, err := f.detector.CheckGaps(ctx, "AAPL")
	require.NoError(t, err)
	var coarse []domain.Gap
	for _, g := range expired {
		if g.Band == domain.BandCoarse {
			coarse = append(coarse, g)
		}
	}
	require.Len(t, coarse, 1, "gap reappears once the entry expires")
	assert.Equal(t, testNow.Add(-410*day), coarse[0].Start)
}

func TestFillGaps_RetriesThenFills(t *testing.T) {
	f := newFixture(t)
	f.seedWithHoles(t, "MSFT", hole(300, 290))

	source := stub.NewSource(func(n int, c stub.Call) ([]*domain.Bar, error) {
		if n < 2 {
			return nil, errors.New("upstream timeout")
		}
		return stub.GenerateBars(c.Symbol, c.Band, c.Start, c.End, time.Hour), nil
	})

	outcome, err := f.executor(source).FillGaps(context.Background(), "msft", 3)
	require.NoError(t, err)

	assert.Equal(t, "MSFT", outcome.Symbol)
	assert.Equal(t, 1, outcome.GapsFilled)
	require.Len(t, outcome.Filled, 1)
	assert.Equal(t, 2, outcome.Filled[0].Retries)
	assert.Empty(t, outcome.Filled[0].Error)
	assert.Equal(t, []time.Duration{DefaultRetryDelay, DefaultRetryDelay}, f.sleeper.Waits())
}

func TestFillGaps_DiscardsBarsOutsideGap(t *testing.T) {
	f := newFixture(t)
	f.seedWithHoles(t, "AAPL", hole(410, 400))

	source := stub.NewSource(func(_ int, c stub.Call) ([]*domain.Bar, error) {
		return stub.GenerateBars(c.Symbol, c.Band, c.End.Add(time.Hour), c.End.Add(5*time.Hour), time.Hour), nil
	})

	outcome, err := f.executor(source).FillGaps(context.Background(), "AAPL", 2)
	require.NoError(t, err)
	assert.Equal(t, 0, outcome.GapsFilled)
	assert.Equal(t, 1, outcome.GapsBlacklisted)
	assert.Equal(t, 0, outcome.TotalRowsInserted)
	assert.Len(t, source.Calls(), 2)
}

func TestFillGaps_FailureDoesNotAbortRemainingGaps(t *testing.T) {
	f := newFixture(t)
	f.seedWithHoles(t, "AAPL", hole(600, 590), hole(400, 390))

	cutoff := testNow.Add(-500 * day)
	source := stub.NewSource(func(_ int, c stub.Call) ([]*domain.Bar, error) {
		if c.Start.Before(cutoff) {
			return nil, errors.New("429 too many requests")
		}
		return stub.GenerateBars(c.Symbol, c.Band, c.Start, c.End, time.Hour), nil
	})

	outcome, err := f.executor(source).FillGaps(context.Background(), "AAPL", 3)
	require.NoError(t, err)

	assert.Equal(t, 2, outcome.GapsFound)
	assert.Equal(t, 1, outcome.GapsFilled)
	assert.Equal(t, 1, outcome.GapsBlacklisted)
	assert.Equal(t, 1, outcome.Unsuccessful())
	require.Len(t, outcome.Blacklisted, 1)
	assert.Contains(t, outcome.Blacklisted[0].Error, "429")
	assert.Equal(t, testNow.Add(-600*day), outcome.Blacklisted[0].Start)
}

type failingBarStore struct {
	*memory.BarStore
	err error
}

func (s *failingBarStore) InsertManyIfAbsent(context.Context, []*domain.Bar) (int, error) {
	return 0, s.err
}

func TestFillGaps_StoreInsertErrorFailsOnlyThatGap(t *testing.T) {
	f := newFixture(t)
	f.seedWithHoles(t, "AAPL", hole(410, 400))

	bars := &failingBarStore{BarStore: f.bars, err: errors.New("connection reset")}
	source := stub.NewHourlySource(time.Hour)

	outcome, err := f.executorWith(source, bars, f.blacklist).FillGaps(context.Background(), "AAPL", 3)
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.GapsFailed)
	assert.Equal(t, 0, outcome.GapsBlacklisted)
	require.Len(t, outcome.Failed, 1)
	assert.Contains(t, outcome.Failed[0].Error, "insert bars")
	assert.Len(t, source.Calls(), 1, "store errors are not retried")
	assert.Equal(t, []time.Duration{DefaultCooldown}, f.sleeper.Waits())

	entries, err := f.blacklist.List(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type failingInsertBlacklist struct {
	*memory.BlacklistStore
	err error
}

func (s *failingInsertBlacklist) Insert(context.Context, *domain.BlacklistEntry) error {
	return s.err
}

func TestFillGaps_BlacklistInsertFailureRecordsFailed(t *testing.T) {
	f := newFixture(t)
	f.seedWithHoles(t, "AAPL", hole(410, 400))

	blacklist := &failingInsertBlacklist{BlacklistStore: f.blacklist, err: errors.New("disk full")}
	outcome, err := f.executorWith(stub.NewEmptySource(), f.bars, blacklist).FillGaps(context.Background(), "AAPL", 1)
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.GapsFailed)
	assert.Equal(t, 0, outcome.GapsBlacklisted)
	require.Len(t, outcome.Failed, 1)
	assert.Contains(t, outcome.Failed[0].Error, "blacklist insert")
}

func TestFillGaps_UsageErrors(t *testing.T) {
	f := newFixture(t)
	e := f.executor(stub.NewEmptySource())

	_, err := e.FillGaps(context.Background(), "AAPL", 0)
	assert.ErrorIs(t, err, ErrInvalidRetryCount)

	_, err = e.FillGaps(context.Background(), "AAPL", -1)
	assert.ErrorIs(t, err, ErrInvalidRetryCount)

	_, err = e.FillGaps(context.Background(), "$BAD", 3)
	assert.ErrorIs(t, err, domain.ErrInvalidSymbol)

	assert.Equal(t, DefaultMaxRetries, e.MaxRetries())
}

func TestFillGaps_UnknownSymbolReturnsEmptyOutcome(t *testing.T) {
	f := newFixture(t)
	source := stub.NewEmptySource()

	outcome, err := f.executor(source).FillGaps(context.Background(), "ZZZ", 3)
	require.NoError(t, err)
	assert.Equal(t, 0, outcome.GapsFound)
	assert.NotNil(t, outcome.Filled)
	assert.NotNil(t, outcome.Failed)
	assert.NotNil(t, outcome.Blacklisted)
	assert.Empty(t, source.Calls())
}

func TestFillGaps_DetectionFailureIsReturned(t *testing.T) {
	f := newFixture(t)
	f.seedWithHoles(t, "AAPL", hole(410, 400))
	f.blacklist.FailWith(errors.New("blacklist unreachable"))

	_, err := f.executor(stub.NewHourlySource(time.Hour)).FillGaps(context.Background(), "AAPL", 3)
	assert.ErrorContains(t, err, "blacklist unreachable")
}

func TestFillGaps_StopsOnShutdown(t *testing.T) {
	f := newFixture(t)
	f.seedWithHoles(t, "AAPL", hole(600, 590), hole(400, 390))

	ctx, cancel := context.WithCancel(context.Background())
	e := NewExecutor(Options{
		Checker:        f.detector,
		Source:         stub.NewEmptySource(),
		BarStore:       f.bars,
		BlacklistStore: f.blacklist,
		Sleep: func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		},
		Clock: f.clock,
	})

	outcome, err := e.FillGaps(ctx, "AAPL", 3)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, outcome)
	assert.Equal(t, 1, outcome.GapsFailed)
	assert.Equal(t, 0, outcome.GapsBlacklisted)
}
