package universe

import (
	"context"
	"fmt"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
)

// assetsClient is the subset of alpaca.Client used here.
type assetsClient interface {
	GetAssets(req alpaca.GetAssetsRequest) ([]alpaca.Asset, error)
}

// AlpacaOptions configures AlpacaProvider.
type AlpacaOptions struct {
	APIKey    string
	APISecret string
	BaseURL   string // trading API, empty for the library default
}

// AlpacaProvider lists active, tradable US equities from the Alpaca trading API.
type AlpacaProvider struct {
	client assetsClient
}

// NewAlpacaProvider creates a provider backed by a new trading client.
func NewAlpacaProvider(opts AlpacaOptions) *AlpacaProvider {
	return &AlpacaProvider{client: alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
		BaseURL:   opts.BaseURL,
	})}
}

// Compile-time interface check.
var _ Provider = (*AlpacaProvider)(nil)

// Name returns "alpaca".
func (p *AlpacaProvider) Name() string { return "alpaca" }

// Symbols returns the filtered universe.
func (p *AlpacaProvider) Symbols(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	assets, err := p.client.GetAssets(alpaca.GetAssetsRequest{
		Status:     "active",
		AssetClass: "us_equity",
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca GetAssets: %w", err)
	}

	symbols := make([]string, 0, len(assets))
	for _, a := range assets {
		if string(a.Status) != "active" || !a.Tradable {
			continue
		}
		symbols = append(symbols, a.Symbol)
	}
	return Filter(symbols), nil
}
