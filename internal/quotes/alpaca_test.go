package quotes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-backfill/internal/domain"
)

type fakeBarsClient struct {
	requests []marketdata.GetBarsRequest
	symbols  []string
	bars     []marketdata.Bar
	err      error
}

func (f *fakeBarsClient) GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	f.symbols = append(f.symbols, symbol)
	f.requests = append(f.requests, req)
	return f.bars, f.err
}

func TestAlpacaSource_FetchConvertsToCents(t *testing.T) {
	ts := time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC)
	client := &fakeBarsClient{bars: []marketdata.Bar{
		{Timestamp: ts, Open: 170.12, High: 171.5, Low: 169.99, Close: 171.01, Volume: 12345},
	}}
	src := newAlpacaSource(client, "")

	start, end := ts.Add(-time.Hour), ts.Add(time.Hour)
	bars, err := src.Fetch(context.Background(), "aapl", start, end, domain.BandCoarse)
	require.NoError(t, err)
	require.Len(t, bars, 1)

	b := bars[0]
	assert.Equal(t, "AAPL", b.Symbol)
	assert.Equal(t, domain.BandCoarse, b.Band)
	assert.Equal(t, int64(17012), b.Open)
	assert.Equal(t, int64(17150), b.High)
	assert.Equal(t, int64(16999), b.Low)
	assert.Equal(t, int64(17101), b.Close)
	assert.Equal(t, int64(12345), b.Volume)

	require.Len(t, client.requests, 1)
	assert.Equal(t, marketdata.OneHour, client.requests[0].TimeFrame)
	assert.Equal(t, start, client.requests[0].Start)
	assert.Equal(t, end, client.requests[0].End)
}

func TestAlpacaSource_FineBandUsesMinuteFrame(t *testing.T) {
	client := &fakeBarsClient{}
	src := newAlpacaSource(client, "sip")

	bars, err := src.Fetch(context.Background(), "MSFT", time.Now().Add(-time.Hour), time.Now(), domain.BandFine)
	require.NoError(t, err)
	assert.Empty(t, bars)
	assert.Equal(t, marketdata.OneMin, client.requests[0].TimeFrame)
}

func TestAlpacaSource_Errors(t *testing.T) {
	client := &fakeBarsClient{err: errors.New("429 too many requests")}
	src := newAlpacaSource(client, "")

	_, err := src.Fetch(context.Background(), "MSFT", time.Now().Add(-time.Hour), time.Now(), domain.BandFine)
	assert.ErrorContains(t, err, "429")

	_, err = src.Fetch(context.Background(), "MSFT", time.Now().Add(-time.Hour), time.Now(), domain.Band("daily"))
	assert.ErrorIs(t, err, domain.ErrInvalidBand)
}
