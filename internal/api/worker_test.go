package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-backfill/internal/backfill"
	"stock-backfill/internal/clock"
	"stock-backfill/internal/domain"
	"stock-backfill/internal/gaps"
	"stock-backfill/internal/quotes"
	"stock-backfill/internal/quotes/stub"
	"stock-backfill/internal/storage/memory"
)

type workerFixture struct {
	srv       *httptest.Server
	clock     *clock.Fixed
	symbols   *memory.SymbolStore
	bars      *memory.BarStore
	blacklist *memory.BlacklistStore
	cooldown  *backfill.CooldownTracker
}

func newWorkerFixture(t *testing.T, source quotes.Source) *workerFixture {
	t.Helper()
	f := &workerFixture{
		clock:     clock.NewFixed(testNow),
		symbols:   memory.NewSymbolStore(),
		bars:      memory.NewBarStore(),
		blacklist: memory.NewBlacklistStore(),
	}
	f.cooldown = backfill.NewCooldownTracker(backfill.DefaultFailureMargin, 0, f.clock)

	windows := gaps.DefaultConfig()
	windows.Coarse.Window = 3 * 24 * time.Hour
	windows.Fine.Window = 24 * time.Hour

	detector := gaps.NewDetector(gaps.DetectorOptions{
		SymbolStore:    f.symbols,
		BarStore:       f.bars,
		BlacklistStore: f.blacklist,
		Config:         &windows,
		Clock:          f.clock,
	})
	executor := backfill.NewExecutor(backfill.Options{
		Checker:        detector,
		Source:         source,
		BarStore:       f.bars,
		SymbolStore:    f.symbols,
		BlacklistStore: f.blacklist,
		Windows:        &windows,
		Sleep:          func(context.Context, time.Duration) error { return nil },
		Clock:          f.clock,
	})
	h := NewWorkerHandlers(WorkerHandlersOptions{
		Detector:       detector,
		Executor:       executor,
		BarStore:       f.bars,
		BlacklistStore: f.blacklist,
		Cooldown:       f.cooldown,
		Clock:          f.clock,
		Logger:         zerolog.Nop(),
	})

	f.srv = httptest.NewServer(NewServer(":0", zerolog.Nop(), h).Handler())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *workerFixture) addSymbol(t *testing.T, symbol string) {
	t.Helper()
	_, err := f.symbols.EnsureExists(context.Background(), &domain.Symbol{Symbol: symbol, CompanyName: symbol})
	require.NoError(t, err)
}

func TestWorker_GapsAndFill(t *testing.T) {
	f := newWorkerFixture(t, stub.NewHourlySource(time.Hour))
	f.addSymbol(t, "AAPL")

	var gapsResp GapsResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, f.srv.URL+"/gaps/aapl", &gapsResp))
	assert.Equal(t, "AAPL", gapsResp.Symbol)
	assert.Equal(t, 2, gapsResp.Count)
	assert.Equal(t, "empty", gapsResp.Gaps[0].Kind)
	assert.Equal(t, int64(3*24*3600), gapsResp.Gaps[0].DurationSeconds)

	var outcome backfill.Outcome
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, f.srv.URL+"/gaps/AAPL/fill?max_retries=2", &outcome))
	assert.Equal(t, 2, outcome.GapsFound)
	assert.Equal(t, 2, outcome.GapsFilled)
	assert.Greater(t, outcome.TotalRowsInserted, 0)

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, f.srv.URL+"/gaps/AAPL", &gapsResp))
	assert.Equal(t, 0, gapsResp.Count)

	var bars BarsResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, f.srv.URL+"/bars/AAPL?band=hourly", &bars))
	assert.Equal(t, "coarse", bars.Band)
	assert.Equal(t, 73, bars.Count)
	assert.Equal(t, int64(10000), bars.Bars[0].Open)

	start := testNow.Add(-2 * time.Hour).Format(time.RFC3339)
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, f.srv.URL+"/bars/AAPL?band=fine&start="+start, &bars))
	assert.Equal(t, 3, bars.Count)
}

func TestWorker_FillUsageErrors(t *testing.T) {
	f := newWorkerFixture(t, stub.NewEmptySource())

	var e ErrorResponse
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, f.srv.URL+"/gaps/AAPL/fill?max_retries=0", &e))
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, f.srv.URL+"/gaps/AAPL/fill?max_retries=x", &e))
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodGet, f.srv.URL+"/gaps/$$$", &e))
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodGet, f.srv.URL+"/bars/AAPL?band=daily", &e))
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodGet, f.srv.URL+"/bars/AAPL?start=yesterday", &e))
}

func TestWorker_FillBlacklistsAndClears(t *testing.T) {
	f := newWorkerFixture(t, stub.NewEmptySource())
	f.addSymbol(t, "MSFT")
	f.addSymbol(t, "AAPL")

	var outcome backfill.Outcome
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, f.srv.URL+"/gaps/MSFT/fill", &outcome))
	assert.Equal(t, 2, outcome.GapsBlacklisted)
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, f.srv.URL+"/gaps/AAPL/fill?max_retries=1", &outcome))
	assert.Equal(t, 2, outcome.GapsBlacklisted)

	var list BlacklistResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, f.srv.URL+"/blacklist", &list))
	assert.Equal(t, 4, list.Count)
	assert.Nil(t, list.TickerFilter)

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, f.srv.URL+"/blacklist?ticker=msft", &list))
	assert.Equal(t, 2, list.Count)
	require.NotNil(t, list.TickerFilter)
	assert.Equal(t, "MSFT", *list.TickerFilter)
	assert.Equal(t, "MSFT", list.Entries[0].StockSymbol)

	var cleared ClearBlacklistResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodDelete, f.srv.URL+"/blacklist?ticker=MSFT", &cleared))
	assert.Equal(t, 2, cleared.Cleared)

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodDelete, f.srv.URL+"/blacklist", &cleared))
	assert.Equal(t, 2, cleared.Cleared)

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, f.srv.URL+"/blacklist", &list))
	assert.Equal(t, 0, list.Count)
	assert.NotNil(t, list.Entries)
}

func TestWorker_History(t *testing.T) {
	f := newWorkerFixture(t, stub.NewHourlySource(time.Hour))

	var result backfill.HistoryResult
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, f.srv.URL+"/history/nvda", &result))
	assert.Equal(t, "NVDA", result.Symbol)
	assert.True(t, result.SymbolCreated)
	assert.Equal(t, 73, result.RowsByBand["coarse"])
	assert.Equal(t, 25, result.RowsByBand["fine"])
}

func TestWorker_RateLimitStatus(t *testing.T) {
	f := newWorkerFixture(t, stub.NewEmptySource())

	var st RateLimitResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, f.srv.URL+"/rate-limit-status", &st))
	assert.False(t, st.RateLimited)
	assert.Equal(t, "available", st.Status)

	require.True(t, f.cooldown.Observe(0, 10))
	f.clock.Advance(10 * time.Minute)

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, f.srv.URL+"/rate-limit-status", &st))
	assert.True(t, st.RateLimited)
	assert.Equal(t, "limited", st.Status)
	assert.Equal(t, 50*60, st.SecondsUntilReset)
	require.NotNil(t, st.ResetTime)
	assert.True(t, st.ResetTime.Equal(testNow.Add(time.Hour)))
}
