package domain

import (
	"errors"
	"fmt"
	"time"
)

// Bar represents one OHLCV observation.
// Corresponds to stock_history table. Prices are integer cents.
type Bar struct {
	Symbol    string    // ticker symbol
	Timestamp time.Time // bar open time
	Band      Band      // coarse | fine
	Open      int64     // open price in cents
	Close     int64     // close price in cents
	High      int64     // high price in cents
	Low       int64     // low price in cents
	Volume    int64     // traded volume, non-negative
}

// BarKey is the natural key of a bar.
type BarKey struct {
	Symbol    string
	Timestamp int64 // Unix nanoseconds
	Band      Band
}

// Key returns the natural key (symbol, timestamp, band).
func (b *Bar) Key() BarKey {
	return BarKey{Symbol: b.Symbol, Timestamp: b.Timestamp.UnixNano(), Band: b.Band}
}

// Validate performs structural checks only.
func (b *Bar) Validate() error {
	if b == nil {
		return errors.New("nil bar")
	}
	if b.Symbol == "" {
		return errors.New("bar symbol is empty")
	}
	if b.Timestamp.IsZero() {
		return errors.New("bar timestamp is zero")
	}
	if !b.Band.IsValid() {
		return fmt.Errorf("bar band %q: %w", b.Band, ErrInvalidBand)
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar volume %d is negative", b.Volume)
	}
	if b.Open < 0 || b.Close < 0 || b.High < 0 || b.Low < 0 {
		return errors.New("bar price is negative")
	}
	return nil
}

// ToCents converts a decimal price to integer cents, rounding half away from zero.
func ToCents(price float64) int64 {
	if price < 0 {
		return -int64(-price*100 + 0.5)
	}
	return int64(price*100 + 0.5)
}
