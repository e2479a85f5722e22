package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "AAPL", want: "AAPL"},
		{in: " msft ", want: "MSFT"},
		{in: "brk.b", want: "BRK.B"},
		{in: "BF-A", want: "BF-A"},
		{in: "", wantErr: true},
		{in: "$SPX", wantErr: true},
		{in: "^VIX", wantErr: true},
		{in: "TOOLONGSYMBOL", wantErr: true},
		{in: "A B", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeSymbol(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSymbol) {
					t.Fatalf("expected ErrInvalidSymbol, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestToCents(t *testing.T) {
	if got := ToCents(187.456); got != 18746 {
		t.Errorf("ToCents(187.456) = %d, want 18746", got)
	}
	if got := ToCents(0.1 + 0.2); got != 30 {
		t.Errorf("ToCents(0.3) = %d, want 30", got)
	}
}

func TestBlacklistEntry_ActiveAt(t *testing.T) {
	added := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	e := &BlacklistEntry{Symbol: "AAPL", TimeAdded: added}
	ttl := 24 * time.Hour

	if !e.ActiveAt(added.Add(23*time.Hour), ttl) {
		t.Error("entry should be active before TTL elapses")
	}
	if e.ActiveAt(added.Add(24*time.Hour), ttl) {
		t.Error("entry should be inert once TTL has elapsed")
	}
}

func TestNewBlacklistEntry_TruncatesStart(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 987654321, time.UTC)
	now := start.Add(time.Hour)
	e := NewBlacklistEntry(Gap{Symbol: "AAPL", Start: start, End: now, Band: BandFine}, now)

	if e.Timestamp.Nanosecond() != 0 {
		t.Errorf("expected truncated timestamp, got %v", e.Timestamp)
	}
	if e.Band != BandFine || e.Symbol != "AAPL" || !e.TimeAdded.Equal(now) {
		t.Errorf("unexpected entry: %+v", e)
	}
}

func TestParseBand(t *testing.T) {
	for in, want := range map[string]Band{"coarse": BandCoarse, "hourly": BandCoarse, "fine": BandFine, "minute": BandFine} {
		got, err := ParseBand(in)
		if err != nil || got != want {
			t.Errorf("ParseBand(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseBand("daily"); !errors.Is(err, ErrInvalidBand) {
		t.Errorf("expected ErrInvalidBand, got %v", err)
	}
}
