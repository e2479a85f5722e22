package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrInvalidSymbol is returned for malformed ticker symbols.
var ErrInvalidSymbol = errors.New("invalid symbol")

var symbolPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]{0,9}$`)

// Symbol represents a tracked ticker.
// Corresponds to stock table.
type Symbol struct {
	Symbol      string
	CompanyName string
	UpdatedAt   time.Time
}

// NormalizeSymbol upper-cases and validates a ticker.
func NormalizeSymbol(s string) (string, error) {
	sym := strings.ToUpper(strings.TrimSpace(s))
	if !symbolPattern.MatchString(sym) {
		return "", fmt.Errorf("%q: %w", s, ErrInvalidSymbol)
	}
	return sym, nil
}
