package app

import (
	"errors"

	"github.com/rs/zerolog"

	"stock-backfill/internal/backfill"
	"stock-backfill/internal/config"
	"stock-backfill/internal/gaps"
	"stock-backfill/internal/quotes"
	"stock-backfill/internal/universe"
)

// ErrMissingCredentials is returned when an Alpaca component has no API key.
var ErrMissingCredentials = errors.New("alpaca credentials not configured (APCA_API_KEY_ID, APCA_API_SECRET_KEY)")

// NewQuoteSource builds the rate-limited Alpaca market-data source.
func NewQuoteSource(cfg *config.Config) (quotes.Source, error) {
	if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
		return nil, ErrMissingCredentials
	}
	source := quotes.NewAlpacaSource(quotes.AlpacaOptions{
		APIKey:    cfg.Alpaca.APIKey,
		APISecret: cfg.Alpaca.APISecret,
		BaseURL:   cfg.Alpaca.DataURL,
		Feed:      cfg.Alpaca.Feed,
	})
	return quotes.NewRateLimited(source, cfg.Alpaca.RateLimit, cfg.Alpaca.Burst), nil
}

// NewUniverse picks the symbol universe: a configured file wins over Alpaca.
func NewUniverse(cfg *config.Config) (universe.Provider, error) {
	if cfg.Orchestrator.UniverseFile != "" {
		return universe.File{Path: cfg.Orchestrator.UniverseFile}, nil
	}
	if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
		return nil, ErrMissingCredentials
	}
	return universe.NewAlpacaProvider(universe.AlpacaOptions{
		APIKey:    cfg.Alpaca.APIKey,
		APISecret: cfg.Alpaca.APISecret,
		BaseURL:   cfg.Alpaca.TradingURL,
	}), nil
}

// Backfill holds the detector and executor built over one set of stores.
type Backfill struct {
	Detector *gaps.Detector
	Executor *backfill.Executor
}

// NewBackfill wires the gap detector and backfill executor.
func NewBackfill(cfg *config.Config, stores *Stores, source quotes.Source, log zerolog.Logger) *Backfill {
	windows := cfg.GapsPolicy()

	detector := gaps.NewDetector(gaps.DetectorOptions{
		SymbolStore:    stores.Symbols,
		BarStore:       stores.Bars,
		BlacklistStore: stores.Blacklist,
		Config:         &windows,
		Logger:         &log,
	})

	executor := backfill.NewExecutor(backfill.Options{
		Checker:        detector,
		Source:         source,
		BarStore:       stores.Bars,
		SymbolStore:    stores.Symbols,
		BlacklistStore: stores.Blacklist,
		Windows:        &windows,
		FineChunk:      cfg.Backfill.FineChunk,
		Delays:         cfg.Delays(),
		MaxRetries:     cfg.Backfill.MaxRetries,
		Logger:         &log,
	})

	return &Backfill{Detector: detector, Executor: executor}
}
