package idhash

import (
	"testing"

	"github.com/mr-tron/base58"
)

func TestComputeBatchID(t *testing.T) {
	tests := []struct {
		name     string
		category string
		workerID string
		takenAt  int64
		tickers  []string
	}{
		{name: "history batch", category: "history", workerID: "worker-1", takenAt: 1717372800000, tickers: []string{"AAPL", "MSFT"}},
		{name: "gap batch", category: "gap_detection", workerID: "worker-2", takenAt: 1717372800000, tickers: []string{"NVDA"}},
		{name: "empty batch", category: "history", workerID: "worker-1", takenAt: 1717372800000, tickers: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeBatchID(tt.category, tt.workerID, tt.takenAt, tt.tickers)

			raw, err := base58.Decode(got)
			if err != nil {
				t.Fatalf("ComputeBatchID() not base58: %v", err)
			}
			if len(raw) != 32 {
				t.Errorf("decoded length = %d, want 32", len(raw))
			}

			got2 := ComputeBatchID(tt.category, tt.workerID, tt.takenAt, tt.tickers)
			if got != got2 {
				t.Errorf("ComputeBatchID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeBatchID_DiffersOnInput(t *testing.T) {
	base := ComputeBatchID("history", "worker-1", 1000, []string{"AAPL", "MSFT"})

	variants := map[string]string{
		"category": ComputeBatchID("gap_detection", "worker-1", 1000, []string{"AAPL", "MSFT"}),
		"worker":   ComputeBatchID("history", "worker-2", 1000, []string{"AAPL", "MSFT"}),
		"time":     ComputeBatchID("history", "worker-1", 1001, []string{"AAPL", "MSFT"}),
		"order":    ComputeBatchID("history", "worker-1", 1000, []string{"MSFT", "AAPL"}),
	}
	for name, v := range variants {
		if v == base {
			t.Errorf("changing %s did not change the batch id", name)
		}
	}
}

func TestComputeGapID(t *testing.T) {
	a := ComputeGapID("AAPL", "coarse", 1700000000)
	b := ComputeGapID("AAPL", "fine", 1700000000)
	if a == b {
		t.Errorf("band not part of gap id")
	}

	raw, err := base58.Decode(a)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(raw) != 16 {
		t.Errorf("decoded length = %d, want 16", len(raw))
	}
	if a != ComputeGapID("AAPL", "coarse", 1700000000) {
		t.Errorf("ComputeGapID() not deterministic")
	}
}
