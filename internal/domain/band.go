package domain

import "errors"

// ErrInvalidBand is returned when a band value is neither coarse nor fine.
var ErrInvalidBand = errors.New("invalid band")

// Band represents the frequency band of a bar series.
type Band string

const (
	BandCoarse Band = "coarse" // hourly bars, long retention
	BandFine   Band = "fine"   // minute bars, short retention
)

// Bands lists every band in detection order.
var Bands = []Band{BandCoarse, BandFine}

// String returns the string representation of Band.
func (b Band) String() string {
	return string(b)
}

// IsValid checks if the band is a valid value.
func (b Band) IsValid() bool {
	return b == BandCoarse || b == BandFine
}

// IsHourly reports whether the band is stored with is_hourly = true.
func (b Band) IsHourly() bool {
	return b == BandCoarse
}

// BandFromHourly maps the is_hourly column back to a Band.
func BandFromHourly(hourly bool) Band {
	if hourly {
		return BandCoarse
	}
	return BandFine
}

// ParseBand accepts "coarse"/"fine" as well as the "hourly"/"minute" aliases.
func ParseBand(s string) (Band, error) {
	switch s {
	case "coarse", "hourly", "1h":
		return BandCoarse, nil
	case "fine", "minute", "1m":
		return BandFine, nil
	}
	return "", ErrInvalidBand
}
