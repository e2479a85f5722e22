package sqlite

import (
	"context"
	"fmt"
	"time"

	"stock-backfill/internal/domain"
	"stock-backfill/internal/storage"
)

// BlacklistStore implements storage.BlacklistStore.
type BlacklistStore struct {
	db *DB
}

// NewBlacklistStore creates a new BlacklistStore.
func NewBlacklistStore(db *DB) *BlacklistStore {
	return &BlacklistStore{db: db}
}

// Compile-time interface check.
var _ storage.BlacklistStore = (*BlacklistStore)(nil)

// Insert adds an entry and assigns its ID.
func (s *BlacklistStore) Insert(ctx context.Context, e *domain.BlacklistEntry) (err error) {
	if e == nil || e.Symbol == "" || !e.Band.IsValid() {
		return storage.ErrInvalidInput
	}

	began := time.Now()
	defer func() { observe("insert_blacklist", began, err) }()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO blacklist (stock_symbol, timestamp, time_added, is_hourly) VALUES (?, ?, ?, ?)`,
		e.Symbol, toMillis(domain.TruncateToSecond(e.Timestamp)), toMillis(e.TimeAdded), boolInt(e.Band.IsHourly()))
	if err != nil {
		return fmt.Errorf("insert blacklist entry: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	return nil
}

// List returns entries for symbol, or all entries when symbol is empty.
func (s *BlacklistStore) List(ctx context.Context, symbol string) (entries []*domain.BlacklistEntry, err error) {
	began := time.Now()
	defer func() { observe("list_blacklist", began, err) }()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, stock_symbol, timestamp, time_added, is_hourly
		FROM blacklist
		WHERE ?1 = '' OR stock_symbol = ?1
		ORDER BY time_added ASC, id ASC
	`, symbol)
	if err != nil {
		return nil, fmt.Errorf("list blacklist: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e domain.BlacklistEntry
		var ts, added int64
		var hourly int
		if err := rows.Scan(&e.ID, &e.Symbol, &ts, &added, &hourly); err != nil {
			return nil, fmt.Errorf("scan blacklist row: %w", err)
		}
		e.Timestamp = fromMillis(ts)
		e.TimeAdded = fromMillis(added)
		e.Band = domain.BandFromHourly(hourly == 1)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blacklist rows: %w", err)
	}
	return entries, nil
}

// Delete removes entries for symbol, or all entries when symbol is empty.
func (s *BlacklistStore) Delete(ctx context.Context, symbol string) (removed int, err error) {
	began := time.Now()
	defer func() { observe("delete_blacklist", began, err) }()

	res, err := s.db.ExecContext(ctx, `DELETE FROM blacklist WHERE ?1 = '' OR stock_symbol = ?1`, symbol)
	if err != nil {
		return 0, fmt.Errorf("delete blacklist: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}
