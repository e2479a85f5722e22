package quotes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"stock-backfill/internal/domain"
)

// barsClient is the subset of marketdata.Client used here.
type barsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// AlpacaOptions configures AlpacaSource.
type AlpacaOptions struct {
	APIKey    string
	APISecret string
	BaseURL   string // data API override, empty for default
	Feed      string // iex or sip
}

// AlpacaSource fetches hourly and minute bars from the Alpaca market-data API.
type AlpacaSource struct {
	client barsClient
	feed   marketdata.Feed
}

// NewAlpacaSource creates a source backed by a new marketdata client.
func NewAlpacaSource(opts AlpacaOptions) *AlpacaSource {
	clientOpts := marketdata.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
	}
	if opts.BaseURL != "" {
		clientOpts.BaseURL = opts.BaseURL
	}
	return newAlpacaSource(marketdata.NewClient(clientOpts), opts.Feed)
}

func newAlpacaSource(client barsClient, feed string) *AlpacaSource {
	f := marketdata.Feed(feed)
	if feed == "" {
		f = marketdata.IEX
	}
	return &AlpacaSource{client: client, feed: f}
}

// Compile-time interface check.
var _ Source = (*AlpacaSource)(nil)

// Name returns the provider name.
func (s *AlpacaSource) Name() string {
	return "alpaca"
}

// Fetch returns bars for symbol+band within [start, end].
func (s *AlpacaSource) Fetch(ctx context.Context, symbol string, start, end time.Time, band domain.Band) ([]*domain.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tf, err := timeFrame(band)
	if err != nil {
		return nil, err
	}

	raw, err := s.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame:  tf,
		Start:      start,
		End:        end,
		Feed:       s.feed,
		Adjustment: marketdata.Raw,
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca GetBars %s %s: %w", symbol, band, err)
	}

	bars := make([]*domain.Bar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, &domain.Bar{
			Symbol:    strings.ToUpper(symbol),
			Timestamp: b.Timestamp.UTC(),
			Band:      band,
			Open:      domain.ToCents(b.Open),
			Close:     domain.ToCents(b.Close),
			High:      domain.ToCents(b.High),
			Low:       domain.ToCents(b.Low),
			Volume:    int64(b.Volume),
		})
	}
	return bars, nil
}

func timeFrame(band domain.Band) (marketdata.TimeFrame, error) {
	switch band {
	case domain.BandCoarse:
		return marketdata.OneHour, nil
	case domain.BandFine:
		return marketdata.OneMin, nil
	}
	return marketdata.TimeFrame{}, fmt.Errorf("band %q: %w", band, domain.ErrInvalidBand)
}
