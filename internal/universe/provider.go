// Package universe lists the symbols the orchestrator distributes to workers.
package universe

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"stock-backfill/internal/storage"
)

// Provider returns the current symbol universe.
type Provider interface {
	Name() string
	Symbols(ctx context.Context) ([]string, error)
}

// Filter drops empty symbols and index or special tickers starting with
// '$' or '^', and removes duplicates preserving first-seen order.
func Filter(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.TrimSpace(s)
		if s == "" || strings.HasPrefix(s, "$") || strings.HasPrefix(s, "^") {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Static serves a fixed list.
type Static []string

// Name returns "static".
func (Static) Name() string { return "static" }

// Symbols returns the filtered list.
func (s Static) Symbols(context.Context) ([]string, error) {
	return Filter(s), nil
}

// StoreProvider serves the symbols already known to a SymbolStore.
type StoreProvider struct {
	store storage.SymbolStore
}

// NewStoreProvider creates a provider over store.
func NewStoreProvider(store storage.SymbolStore) *StoreProvider {
	return &StoreProvider{store: store}
}

// Name returns "store".
func (p *StoreProvider) Name() string { return "store" }

// Symbols lists stored symbols in symbol order.
func (p *StoreProvider) Symbols(ctx context.Context) ([]string, error) {
	rows, err := p.store.List(ctx)
	if err != nil {
		return nil, err
	}
	symbols := make([]string, 0, len(rows))
	for _, r := range rows {
		symbols = append(symbols, r.Symbol)
	}
	return Filter(symbols), nil
}

// File reads one symbol per line from a text file on every call.
// Blank lines and lines starting with '#' are ignored.
type File struct {
	Path string
}

// Name returns "file".
func (File) Name() string { return "file" }

// Symbols reads and filters the file.
func (f File) Symbols(ctx context.Context) ([]string, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open universe file: %w", err)
	}
	defer fh.Close()

	var symbols []string
	sc := bufio.NewScanner(fh)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		symbols = append(symbols, strings.ToUpper(line))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read universe file: %w", err)
	}
	return Filter(symbols), nil
}
