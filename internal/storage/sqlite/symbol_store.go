package sqlite

import (
	"context"
	"fmt"
	"time"

	"stock-backfill/internal/domain"
	"stock-backfill/internal/storage"
)

// SymbolStore implements storage.SymbolStore.
type SymbolStore struct {
	db *DB
}

// NewSymbolStore creates a new SymbolStore.
func NewSymbolStore(db *DB) *SymbolStore {
	return &SymbolStore{db: db}
}

// Compile-time interface check.
var _ storage.SymbolStore = (*SymbolStore)(nil)

// Exists reports whether the symbol is known.
func (s *SymbolStore) Exists(ctx context.Context, symbol string) (exists bool, err error) {
	began := time.Now()
	defer func() { observe("symbol_exists", began, err) }()

	err = s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM stock WHERE symbol = ?)`, symbol).Scan(&exists)
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
		updated = time.Now()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO stock (symbol, company_name, updated_at) VALUES (?, ?, ?)`,
		sym.Symbol, name, toMillis(updated))
	if err != nil {
		return false, fmt.Errorf("insert symbol: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// List returns all symbols ordered by symbol.
func (s *SymbolStore) List(ctx context.Context) (symbols []*domain.Symbol, err error) {
	began := time.Now()
	defer func() { observe("list_symbols", began, err) }()

	rows, err := s.db.QueryContext(ctx, `SELECT symbol, company_name, updated_at FROM stock ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sym domain.Symbol
		var ms int64
		if err := rows.Scan(&sym.Symbol, &sym.CompanyName, &ms); err != nil {
			return nil, fmt.Errorf("scan symbol row: %w", err)
		}
		sym.UpdatedAt = fromMillis(ms)
		symbols = append(symbols, &sym)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate symbol rows: %w", err)
	}
	return symbols, nil
}
