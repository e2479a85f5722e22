package storage

import (
	"context"
	"time"

	"stock-backfill/internal/domain"
)

// BarStore provides access to stock_history storage.
// The natural key is (symbol, timestamp, band).
type BarStore interface {
	// InsertIfAbsent adds a bar. Returns false, nil when the key already exists.
	InsertIfAbsent(ctx context.Context, bar *domain.Bar) (bool, error)

	// InsertManyIfAbsent adds bars, skipping existing keys. Returns the number inserted.
	InsertManyIfAbsent(ctx context.Context, bars []*domain.Bar) (int, error)

	// ListTimestamps returns all stored timestamps for symbol+band, ordered ASC.
	ListTimestamps(ctx context.Context, symbol string, band domain.Band) ([]time.Time, error)

	// GetByTimeRange retrieves bars for symbol+band within [start, end] (inclusive), ordered ASC.
	GetByTimeRange(ctx context.Context, symbol string, band domain.Band, start, end time.Time) ([]*domain.Bar, error)
}

// SymbolStore provides access to the stock table.
type SymbolStore interface {
	// Exists reports whether the symbol is known.
	Exists(ctx context.Context, symbol string) (bool, error)

	// EnsureExists inserts the symbol when unknown. Returns true if it was created.
	EnsureExists(ctx context.Context, s *domain.Symbol) (bool, error)

	// List returns all symbols ordered by symbol.
	List(ctx context.Context) ([]*domain.Symbol, error)
}

// BlacklistStore provides access to blacklist storage.
type BlacklistStore interface {
	// Insert adds an entry and assigns its ID.
	Insert(ctx context.Context, e *domain.BlacklistEntry) error

	// List returns entries for symbol, or all entries when symbol is empty.
	// Ordered by time_added ASC.
	List(ctx context.Context, symbol string) ([]*domain.BlacklistEntry, error)

	// Delete removes entries for symbol, or all entries when symbol is empty.
	// Returns the number of entries removed.
	Delete(ctx context.Context, symbol string) (int, error)
}
