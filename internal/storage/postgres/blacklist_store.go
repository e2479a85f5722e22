package postgres

import (
	"context"
	"fmt"
	"time"

	"stock-backfill/internal/domain"
	"stock-backfill/internal/storage"
)

// BlacklistStore implements storage.BlacklistStore over incrementum.blacklist.
type BlacklistStore struct {
	pool *Pool
}

// NewBlacklistStore creates a new BlacklistStore.
func NewBlacklistStore(pool *Pool) *BlacklistStore {
	return &BlacklistStore{pool: pool}
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

	err = s.pool.QueryRow(ctx, `
		INSERT INTO incrementum.blacklist (stock_symbol, "timestamp", time_added, is_hourly)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, e.Symbol, domain.TruncateToSecond(e.Timestamp), e.TimeAdded, e.Band.IsHourly()).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert blacklist entry: %w", err)
	}
	return nil
}

// List returns entries for symbol, or all entries when symbol is empty.
func (s *BlacklistStore) List(ctx context.Context, symbol string) (entries []*domain.BlacklistEntry, err error) {
	began := time.Now()
	defer func() { observe("list_blacklist", began, err) }()

	rows, err := s.pool.Query(ctx, `
		SELECT id, stock_symbol, "timestamp", time_added, is_hourly
		FROM incrementum.blacklist
		WHERE $1::text = '' OR stock_symbol = $1
		ORDER BY time_added ASC, id ASC
	`, symbol)
	if err != nil {
		return nil, fmt.Errorf("list blacklist: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e domain.BlacklistEntry
		var hourly bool
		if err := rows.Scan(&e.ID, &e.Symbol, &e.Timestamp, &e.TimeAdded, &hourly); err != nil {
			return nil, fmt.Errorf("scan blacklist row: %w", err)
		}
		e.Timestamp = e.Timestamp.UTC()
		e.TimeAdded = e.TimeAdded.UTC()
		e.Band = domain.BandFromHourly(hourly)
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

	tag, err := s.pool.Exec(ctx, `DELETE FROM incrementum.blacklist WHERE $1::text = '' OR stock_symbol = $1`, symbol)
	if err != nil {
		return 0, fmt.Errorf("delete blacklist: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
