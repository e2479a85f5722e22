package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-backfill/internal/domain"
	"stock-backfill/internal/quotes/stub"
	"stock-backfill/internal/storage/memory"
)

func TestExport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBarStore()
	start := time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC)

	_, err := store.InsertManyIfAbsent(ctx, stub.GenerateBars("AAPL", domain.BandFine, start, start.Add(59*time.Minute), time.Minute))
	require.NoError(t, err)
	_, err = store.InsertManyIfAbsent(ctx, stub.GenerateBars("AAPL", domain.BandCoarse, start, start.Add(5*time.Hour), time.Hour))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out", "aapl_fine.parquet")
	n, err := NewExporter(store, zerolog.Nop()).Export(ctx, "aapl", domain.BandFine, start, start.Add(30*time.Minute), path)
	require.NoError(t, err)
	assert.Equal(t, 31, n)

	bars, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, bars, 31)
	assert.Equal(t, "AAPL", bars[0].Symbol)
	assert.Equal(t, domain.BandFine, bars[0].Band)
	assert.True(t, bars[0].Timestamp.Equal(start))
	assert.True(t, bars[30].Timestamp.Equal(start.Add(30*time.Minute)))
	assert.Equal(t, int64(10000), bars[0].Open)
	assert.Equal(t, int64(10100), bars[0].High)
	assert.Equal(t, int64(500), bars[0].Volume)
}

func TestExport_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.parquet")
	now := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

	n, err := NewExporter(memory.NewBarStore(), zerolog.Nop()).Export(context.Background(), "MSFT", domain.BandCoarse, now.Add(-time.Hour), now, path)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	bars, err := ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestExport_InvalidArguments(t *testing.T) {
	e := NewExporter(memory.NewBarStore(), zerolog.Nop())
	now := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "x.parquet")

	_, err := e.Export(context.Background(), "", domain.BandCoarse, now, now, path)
	assert.ErrorIs(t, err, domain.ErrInvalidSymbol)

	_, err = e.Export(context.Background(), "AAPL", domain.Band("daily"), now, now, path)
	assert.ErrorIs(t, err, domain.ErrInvalidBand)

	_, err = e.Export(context.Background(), "AAPL", domain.BandCoarse, now, now.Add(-time.Hour), path)
	assert.Error(t, err)
}
