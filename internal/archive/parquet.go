// Package archive exports stored bars to Parquet files.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"

	"stock-backfill/internal/domain"
	"stock-backfill/internal/storage"
)

// BarRecord is the Parquet schema for exported bars. Prices are cents.
type BarRecord struct {
	Symbol    string `parquet:"symbol"`
	Band      string `parquet:"band"`
	Timestamp int64  `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      int64  `parquet:"open"`
	High      int64  `parquet:"high"`
	Low       int64  `parquet:"low"`
	Close     int64  `parquet:"close"`
	Volume    int64  `parquet:"volume"`
}

// Exporter writes stored bars to Parquet.
type Exporter struct {
	bars storage.BarStore
	log  zerolog.Logger
}

// NewExporter creates an exporter over bars.
func NewExporter(bars storage.BarStore, log zerolog.Logger) *Exporter {
	return &Exporter{bars: bars, log: log.With().Str("component", "archive").Logger()}
}

// Export writes bars for symbol+band within [start, end] to path.
// The parent directory is created when missing. Returns the number of rows written.
func (e *Exporter) Export(ctx context.Context, symbol string, band domain.Band, start, end time.Time, path string) (int, error) {
	sym, err := domain.NormalizeSymbol(symbol)
	if err != nil {
		return 0, err
	}
	if !band.IsValid() {
		return 0, fmt.Errorf("export %s: %w", band, domain.ErrInvalidBand)
	}
	if end.Before(start) {
		return 0, fmt.Errorf("export %s: end before start: %w", sym, storage.ErrInvalidInput)
	}

	bars, err := e.bars.GetByTimeRange(ctx, sym, band, start, end)
	if err != nil {
		return 0, fmt.Errorf("query bars for %s: %w", sym, err)
	}

	records := make([]BarRecord, 0, len(bars))
	for _, b := range bars {
		records = append(records, toRecord(b))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create export dir: %w", err)
	}
	if err := parquet.WriteFile(path, records); err != nil {
		return 0, fmt.Errorf("write parquet %s: %w", path, err)
	}

	e.log.Info().
		Str("symbol", sym).
		Str("band", band.String()).
		Int("rows", len(records)).
		Str("path", path).
		Msg("bars exported")
	return len(records), nil
}

// ReadFile loads an exported file back into bars.
func ReadFile(path string) ([]*domain.Bar, error) {
	records, err := parquet.ReadFile[BarRecord](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	bars := make([]*domain.Bar, 0, len(records))
	for _, r := range records {
		bars = append(bars, fromRecord(r))
	}
	return bars, nil
}

func toRecord(b *domain.Bar) BarRecord {
	return BarRecord{
		Symbol:    b.Symbol,
		Band:      b.Band.String(),
		Timestamp: b.Timestamp.UnixMilli(),
		Open:      b.Open,
		High:      b.High,
		Low:       b.Low,
		Close:     b.Close,
		Volume:    b.Volume,
	}
}

func fromRecord(r BarRecord) *domain.Bar {
	return &domain.Bar{
		Symbol:    r.Symbol,
		Band:      domain.Band(r.Band),
		Timestamp: time.UnixMilli(r.Timestamp).UTC(),
		Open:      r.Open,
		High:      r.High,
		Low:       r.Low,
		Close:     r.Close,
		Volume:    r.Volume,
	}
}
