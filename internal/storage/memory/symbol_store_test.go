package memory

import (
	"context"
	"testing"
	"time"

	"stock-backfill/internal/domain"
)

func TestSymbolStore_EnsureExists(t *testing.T) {
	store := NewSymbolStore()
	ctx := context.Background()

	exists, err := store.Exists(ctx, "AAPL")
	if err != nil || exists {
		t.Fatalf("expected unknown symbol, got exists=%v err=%v", exists, err)
	}

	created, err := store.EnsureExists(ctx, &domain.Symbol{Symbol: "AAPL", CompanyName: "Apple Inc.", UpdatedAt: time.Now()})
	if err != nil || !created {
		t.Fatalf("expected creation, got created=%v err=%v", created, err)
	}

	created, err = store.EnsureExists(ctx, &domain.Symbol{Symbol: "AAPL", CompanyName: "ignored"})
	if err != nil || created {
		t.Fatalf("expected no-op, got created=%v err=%v", created, err)
	}

	store.EnsureExists(ctx, &domain.Symbol{Symbol: "AMD", CompanyName: "AMD"})
	list, _ := store.List(ctx)
	if len(list) != 2 || list[0].Symbol != "AAPL" || list[0].CompanyName != "Apple Inc." {
		t.Errorf("unexpected list: %+v", list)
	}
}
