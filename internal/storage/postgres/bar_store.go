package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"stock-backfill/internal/domain"
	"stock-backfill/internal/storage"
)

// BarStore implements storage.BarStore over incrementum.stock_history.
type BarStore struct {
	pool *Pool
}

// NewBarStore creates a new BarStore.
func NewBarStore(pool *Pool) *BarStore {
	return &BarStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

const insertBarQuery = `
	INSERT INTO incrementum.stock_history (
		stock_symbol, day_and_time, is_hourly, open_price, close_price, high, low, volume
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

// InsertIfAbsent adds a bar. A unique violation is reported as inserted=false.
func (s *BarStore) InsertIfAbsent(ctx context.Context, bar *domain.Bar) (inserted bool, err error) {
	if err := bar.Validate(); err != nil {
		return false, fmt.Errorf("%v: %w", err, storage.ErrInvalidInput)
	}

	began := time.Now()
	defer func() { observe("insert_bar", began, err) }()

	_, err = s.pool.Exec(ctx, insertBarQuery, barArgs(bar)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert bar: %w", err)
	}
	return true, nil
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

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(insertBarQuery+` ON CONFLICT (stock_symbol, day_and_time, is_hourly) DO NOTHING`, barArgs(b)...)
	}

	results := tx.SendBatch(ctx, batch)
	for range bars {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return 0, fmt.Errorf("insert bars in bulk: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return inserted, nil
}

// ListTimestamps returns all stored timestamps for symbol+band, ordered ASC.
func (s *BarStore) ListTimestamps(ctx context.Context, symbol string, band domain.Band) (timestamps []time.Time, err error) {
	began := time.Now()
	defer func() { observe("list_timestamps", began, err) }()

	query := `
		SELECT day_and_time
		FROM incrementum.stock_history
		WHERE stock_symbol = $1 AND is_hourly = $2
		ORDER BY day_and_time ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, band.IsHourly())
	if err != nil {
		return nil, fmt.Errorf("list timestamps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("scan timestamp: %w", err)
		}
		timestamps = append(timestamps, ts.UTC())
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

	query := `
		SELECT stock_symbol, day_and_time, is_hourly, open_price, close_price, high, low, volume
		FROM incrementum.stock_history
		WHERE stock_symbol = $1 AND is_hourly = $2 AND day_and_time >= $3 AND day_and_time <= $4
		ORDER BY day_and_time ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, band.IsHourly(), start, end)
	if err != nil {
		return nil, fmt.Errorf("get bars by time range: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b domain.Bar
		var hourly bool
		if err := rows.Scan(&b.Symbol, &b.Timestamp, &hourly, &b.Open, &b.Close, &b.High, &b.Low, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}
		b.Timestamp = b.Timestamp.UTC()
		b.Band = domain.BandFromHourly(hourly)
		bars = append(bars, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar rows: %w", err)
	}
	return bars, nil
}

func barArgs(b *domain.Bar) []any {
	return []any{b.Symbol, b.Timestamp, b.Band.IsHourly(), b.Open, b.Close, b.High, b.Low, b.Volume}
}
