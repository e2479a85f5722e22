package clickhouse

import (
	"context"
	"fmt"
	"time"

	"stock-backfill/internal/domain"
	"stock-backfill/internal/storage"
)

// BarStore implements storage.BarStore over a ReplacingMergeTree table.
// ClickHouse does not enforce keys at insert time, so inserts check for
// existing keys first and rely on the merge engine to collapse races.
type BarStore struct {
	conn *Conn
}

// NewBarStore creates a new BarStore.
func NewBarStore(conn *Conn) *BarStore {
	return &BarStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// InsertIfAbsent adds a bar. Returns false when the key already exists.
func (s *BarStore) InsertIfAbsent(ctx context.Context, bar *domain.Bar) (bool, error) {
	n, err := s.InsertManyIfAbsent(ctx, []*domain.Bar{bar})
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// InsertManyIfAbsent adds bars, skipping keys already stored or repeated in bars.
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

	existing, err := s.existingKeys(ctx, bars)
	if err != nil {
		return 0, fmt.Errorf("check existing: %w", err)
	}

	var fresh []*domain.Bar
	for _, b := range bars {
		k := b.Key()
		if _, ok := existing[k]; ok {
			continue
		}
		existing[k] = struct{}{}
		fresh = append(fresh, b)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO stock_history (
			stock_symbol, day_and_time, is_hourly, open_price, close_price, high, low, volume
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range fresh {
		err = batch.Append(
			b.Symbol, b.Timestamp.UTC(), hourlyFlag(b.Band),
			b.Open, b.Close, b.High, b.Low, b.Volume,
		)
		if err != nil {
			return 0, fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("send batch: %w", err)
	}
	return len(fresh), nil
}

// existingKeys returns the stored keys among bars.
func (s *BarStore) existingKeys(ctx context.Context, bars []*domain.Bar) (map[domain.BarKey]struct{}, error) {
	type scope struct {
		symbol string
		band   domain.Band
	}
	bounds := make(map[scope][2]time.Time)
	for _, b := range bars {
		sc := scope{b.Symbol, b.Band}
		r, ok := bounds[sc]
		if !ok {
			bounds[sc] = [2]time.Time{b.Timestamp, b.Timestamp}
			continue
		}
		if b.Timestamp.Before(r[0]) {
			r[0] = b.Timestamp
		}
		if b.Timestamp.After(r[1]) {
			r[1] = b.Timestamp
		}
		bounds[sc] = r
	}

	keys := make(map[domain.BarKey]struct{})
	for sc, r := range bounds {
		timestamps, err := s.timestamps(ctx, sc.symbol, sc.band, r[0], r[1])
		if err != nil {
			return nil, err
		}
		for _, ts := range timestamps {
			keys[domain.BarKey{Symbol: sc.symbol, Timestamp: ts.UnixNano(), Band: sc.band}] = struct{}{}
		}
	}
	return keys, nil
}

// ListTimestamps returns all stored timestamps for symbol+band, ordered ASC.
func (s *BarStore) ListTimestamps(ctx context.Context, symbol string, band domain.Band) (timestamps []time.Time, err error) {
	began := time.Now()
	defer func() { observe("list_timestamps", began, err) }()

	rows, err := s.conn.Query(ctx, `
		SELECT DISTINCT day_and_time
		FROM stock_history
		WHERE stock_symbol = ? AND is_hourly = ?
		ORDER BY day_and_time ASC
	`, symbol, hourlyFlag(band))
	if err != nil {
		return nil, fmt.Errorf("list timestamps: %w", err)
	}
	defer rows.Close()

	return scanTimestamps(rows)
}

func (s *BarStore) timestamps(ctx context.Context, symbol string, band domain.Band, start, end time.Time) ([]time.Time, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT DISTINCT day_and_time
		FROM stock_history
		WHERE stock_symbol = ? AND is_hourly = ? AND day_and_time >= ? AND day_and_time <= ?
	`, symbol, hourlyFlag(band), start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query timestamps: %w", err)
	}
	defer rows.Close()

	return scanTimestamps(rows)
}

// GetByTimeRange retrieves bars within [start, end] (inclusive), ordered ASC.
// FINAL collapses rows not yet merged.
func (s *BarStore) GetByTimeRange(ctx context.Context, symbol string, band domain.Band, start, end time.Time) (bars []*domain.Bar, err error) {
	began := time.Now()
	defer func() { observe("get_bars", began, err) }()

	rows, err := s.conn.Query(ctx, `
		SELECT stock_symbol, day_and_time, is_hourly, open_price, close_price, high, low, volume
		FROM stock_history FINAL
		WHERE stock_symbol = ? AND is_hourly = ? AND day_and_time >= ? AND day_and_time <= ?
		ORDER BY day_and_time ASC
	`, symbol, hourlyFlag(band), start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("get bars by time range: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

func hourlyFlag(band domain.Band) uint8 {
	if band.IsHourly() {
		return 1
	}
	return 0
}

func scanTimestamps(rows chRows) ([]time.Time, error) {
	var timestamps []time.Time
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

// scanBars scans multiple rows.
func scanBars(rows chRows) ([]*domain.Bar, error) {
	var bars []*domain.Bar

	for rows.Next() {
		var b domain.Bar
		var hourly uint8

		err := rows.Scan(
			&b.Symbol, &b.Timestamp, &hourly,
			&b.Open, &b.Close, &b.High, &b.Low, &b.Volume,
		)
		if err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}

		b.Timestamp = b.Timestamp.UTC()
		b.Band = domain.BandFromHourly(hourly == 1)
		bars = append(bars, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar rows: %w", err)
	}

	return bars, nil
}
