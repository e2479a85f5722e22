package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"stock-backfill/internal/domain"
	"stock-backfill/internal/storage"
)

func testBar(symbol string, ts time.Time, band domain.Band) *domain.Bar {
	return &domain.Bar{
		Symbol: symbol, Timestamp: ts, Band: band,
		Open: 18700, Close: 18750, High: 18800, Low: 18650, Volume: 1200,
	}
}

func TestBarStore_InsertIfAbsentIsIdempotent(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()
	ts := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)

	inserted, err := store.InsertIfAbsent(ctx, testBar("AAPL", ts, domain.BandCoarse))
	if err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if !inserted {
		t.Fatal("expected first insert to report inserted=true")
	}

	inserted, err = store.InsertIfAbsent(ctx, testBar("AAPL", ts, domain.BandCoarse))
	if err != nil {
		t.Fatalf("duplicate insert returned error: %v", err)
	}
	if inserted {
		t.Error("expected duplicate insert to report inserted=false")
	}
	if store.Count() != 1 {
		t.Errorf("expected 1 stored bar, got %d", store.Count())
	}

	// Same instant in another band is a different key.
	inserted, _ = store.InsertIfAbsent(ctx, testBar("AAPL", ts, domain.BandFine))
	if !inserted {
		t.Error("expected fine-band bar at same instant to be inserted")
	}
}

func TestBarStore_InsertManyIfAbsent(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)

	bars := []*domain.Bar{
		testBar("AAPL", base, domain.BandCoarse),
		testBar("AAPL", base.Add(time.Hour), domain.BandCoarse),
		testBar("AAPL", base, domain.BandCoarse), // intra-batch duplicate
	}

	n, err := store.InsertManyIfAbsent(ctx, bars)
	if err != nil {
		t.Fatalf("InsertManyIfAbsent failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 inserted, got %d", n)
	}

	n, err = store.InsertManyIfAbsent(ctx, bars)
	if err != nil {
		t.Fatalf("second InsertManyIfAbsent failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 inserted on rerun, got %d", n)
	}
}

func TestBarStore_InvalidBar(t *testing.T) {
	store := NewBarStore()
	bar := testBar("", time.Now(), domain.BandCoarse)

	_, err := store.InsertIfAbsent(context.Background(), bar)
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestBarStore_ListTimestampsOrdered(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)

	for _, offset := range []int{3, 1, 2} {
		if _, err := store.InsertIfAbsent(ctx, testBar("MSFT", base.Add(time.Duration(offset)*time.Hour), domain.BandCoarse)); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}
	if _, err := store.InsertIfAbsent(ctx, testBar("AAPL", base, domain.BandCoarse)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	ts, err := store.ListTimestamps(ctx, "MSFT", domain.BandCoarse)
	if err != nil {
		t.Fatalf("ListTimestamps failed: %v", err)
	}
	if len(ts) != 3 {
		t.Fatalf("expected 3 timestamps, got %d", len(ts))
	}
	for i := 1; i < len(ts); i++ {
		if !ts[i-1].Before(ts[i]) {
			t.Errorf("timestamps not ascending at %d: %v >= %v", i, ts[i-1], ts[i])
		}
	}

	fine, _ := store.ListTimestamps(ctx, "MSFT", domain.BandFine)
	if len(fine) != 0 {
		t.Errorf("expected no fine timestamps, got %d", len(fine))
	}
}

func TestBarStore_GetByTimeRangeInclusive(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		store.InsertIfAbsent(ctx, testBar("AAPL", base.Add(time.Duration(i)*time.Minute), domain.BandFine))
	}

	bars, err := store.GetByTimeRange(ctx, "AAPL", domain.BandFine, base.Add(time.Minute), base.Add(3*time.Minute))
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(bars))
	}
	if !bars[0].Timestamp.Equal(base.Add(time.Minute)) {
		t.Errorf("unexpected first bar %v", bars[0].Timestamp)
	}
}
