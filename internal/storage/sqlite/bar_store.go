package sqlite

import (
	"context"
	"fmt"
	"time"

	"stock-backfill/internal/domain"
	"stock-backfill/internal/storage"
)

// BarStore implements storage.BarStore.
type BarStore struct {
	db *DB
}

// NewBarStore creates a new BarStore.
func NewBarStore(db *DB) *BarStore {
	return &BarStore{db: db}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

const insertBarQuery = `
	INSERT OR IGNORE INTO stock_history (
		stock_symbol, day_and_time, is_hourly, open_price, close_price, high, low, volume
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

// InsertIfAbsent adds a bar. Returns false when the key already exists.
func (s *BarStore) InsertIfAbsent(ctx context.Context, bar *domain.Bar) (bool, error) {
	n, err := s.InsertManyIfAbsent(ctx, []*domain.Bar{bar})
	return n == 1, err
}

// InsertManyIfAbsent adds bars in one transaction, skipping existing keys.
func (s *BarStore) InsertManyIfAbsent(ctx context.Context, bars []*domain.Bar) (inserted int, err error) {
	if len(bars) == 0 {
		return 0, nil
	}
	for _, b := range bars {
		if err := b.Validate(); err != nil {
			return 0, fmt.Errorf("%v: %w", err, storage.ErrInvalidInput)
		}
	}

	began := time.Now()
	defer func() { observe("insert_bars", began, err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertBarQuery)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		res, err := stmt.ExecContext(ctx,
			b.Symbol, toMillis(b.Timestamp), boolInt(b.Band.IsHourly()),
			b.Open, b.Close, b.High, b.Low, b.Volume,
		)
		if err != nil {
			return 0, fmt.Errorf("insert bar: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return inserted, nil
}

// ListTimestamps returns all stored timestamps for symbol+band, ordered ASC.
func (s *BarStore) ListTimestamps(ctx context.Context, symbol string, band domain.Band) (timestamps []time.Time, err error) {
	began := time.Now()
	defer func() { observe("list_timestamps", began, err) }()

	rows, err := s.db.QueryContext(ctx, `
		SELECT day_and_time FROM stock_history
		WHERE stock_symbol = ? AND is_hourly = ?
		ORDER BY day_and_time ASC
	`, symbol, boolInt(band.IsHourly()))
	if err != nil {
		return nil, fmt.Errorf("list timestamps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ms int64
		if err := rows.Scan(&ms); err != nil {
			return nil, fmt.Errorf("scan timestamp: %w", err)
		}
		timestamps = append(timestamps, fromMillis(ms))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timestamps: %w", err)
	}
	return timestamps, nil
}

// GetByTimeRange retrieves bars within [start, end] (inclusive), ordered ASC.
func (s *BarStore) GetByTimeRange(ctx context.Context, symbol string, band domain.Band, start, end time.Time) (bars []*domain.Bar, err error) {
	began := time.Now()
	defer func() { observe("get_bars", began, err) }()

	rows, err := s.db.QueryContext(ctx, `
		SELECT stock_symbol, day_and_time, is_hourly, open_price, close_price, high, low, volume
		FROM stock_history
		WHERE stock_symbol = ? AND is_hourly = ? AND day_and_time >= ? AND day_and_time <= ?
		ORDER BY day_and_time ASC
	`, symbol, boolInt(band.IsHourly()), toMillis(start), toMillis(end))
	if err != nil {
		return nil, fmt.Errorf("get bars by time range: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b domain.Bar
		var ms int64
		var hourly int
		if err := rows.Scan(&b.Symbol, &ms, &hourly, &b.Open, &b.Close, &b.High, &b.Low, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}
		b.Timestamp = fromMillis(ms)
		b.Band = domain.BandFromHourly(hourly == 1)
		bars = append(bars, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar rows: %w", err)
	}
	return bars, nil
}
