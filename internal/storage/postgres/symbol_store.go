package postgres

import (
	"context"
	"fmt"
	"time"

	"stock-backfill/internal/domain"
	"stock-backfill/internal/storage"
)

// SymbolStore implements storage.SymbolStore over incrementum.stock.
type SymbolStore struct {
	pool *Pool
}

// NewSymbolStore creates a new SymbolStore.
func NewSymbolStore(pool *Pool) *SymbolStore {
	return &SymbolStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SymbolStore = (*SymbolStore)(nil)

// Exists reports whether the symbol is known.
func (s *SymbolStore) Exists(ctx context.Context, symbol string) (exists bool, err error) {
	began := time.Now()
	defer func() { observe("symbol_exists", began, err) }()

	err = s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM incrementum.stock WHERE symbol = $1)`, symbol).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check symbol exists: %w", err)
	}
	return exists, nil
}

// EnsureExists inserts the symbol when unknown. Returns true if it was created.
func (s *SymbolStore) EnsureExists(ctx context.Context, sym *domain.Symbol) (created bool, err error) {
	if sym == nil || sym.Symbol == "" {
		return false, storage.ErrInvalidInput
	}

	began := time.Now()
	defer func() { observe("ensure_symbol", began, err) }()

	name := sym.CompanyName
	if name == "" {
		name = sym.Symbol
	}
	updated := sym.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO incrementum.stock (symbol, company_name, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (symbol) DO NOTHING
	`, sym.Symbol, name, updated)
	if err != nil {
		return false, fmt.Errorf("insert symbol: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// List returns all symbols ordered by symbol.
func (s *SymbolStore) List(ctx context.Context) (symbols []*domain.Symbol, err error) {
	began := time.Now()
	defer func() { observe("list_symbols", began, err) }()

	rows, err := s.pool.Query(ctx, `
		SELECT symbol, company_name, updated_at
		FROM incrementum.stock
		ORDER BY symbol ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sym domain.Symbol
		if err := rows.Scan(&sym.Symbol, &sym.CompanyName, &sym.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan symbol row: %w", err)
		}
		sym.UpdatedAt = sym.UpdatedAt.UTC()
		symbols = append(symbols, &sym)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate symbol rows: %w", err)
	}
	return symbols, nil
}
