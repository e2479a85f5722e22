package api

import (
	"time"

	"stock-backfill/internal/domain"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// BatchResponse is returned by the batch endpoints.
type BatchResponse struct {
	Tickers          []string  `json:"tickers"`
	BatchSize        int       `json:"batch_size"`
	RemainingInQueue int       `json:"remaining_in_queue"`
	TotalProcessed   int       `json:"total_processed"`
	Timestamp        time.Time `json:"timestamp"`
	BatchID          string    `json:"batch_id"`
	Category         string    `json:"category"`
	WorkerID         string    `json:"worker_id,omitempty"`
}

// QueueActionResponse is returned by /refresh and /reset.
type QueueActionResponse struct {
	Success           bool      `json:"success"`
	Message           string    `json:"message"`
	HistoryQueue      int       `json:"history_queue"`
	GapDetectionQueue int       `json:"gap_detection_queue"`
	Timestamp         time.Time `json:"timestamp"`
}

// QueueResponse is returned by GET /queue/{category}.
type QueueResponse struct {
	Category    string     `json:"category"`
	Pending     []string   `json:"pending"`
	Dispatched  []string   `json:"dispatched"`
	LastRefresh *time.Time `json:"last_refresh"`
}

// ServiceInfo is returned by GET /.
type ServiceInfo struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// RateLimitResponse is returned by /rate-limit-status.
type RateLimitResponse struct {
	RateLimited       bool       `json:"rate_limited"`
	Status            string     `json:"status"`
	Message           string     `json:"message"`
	ResetTime         *time.Time `json:"reset_time,omitempty"`
	SecondsUntilReset int        `json:"seconds_until_reset"`
}

// BlacklistEntryResponse is one row of the blacklist.
type BlacklistEntryResponse struct {
	ID          int64     `json:"id"`
	StockSymbol string    `json:"stock_symbol"`
	Timestamp   time.Time `json:"timestamp"`
	TimeAdded   time.Time `json:"time_added"`
	Band        string    `json:"band"`
	IsHourly    bool      `json:"is_hourly"`
}

// BlacklistResponse is returned by GET /blacklist.
type BlacklistResponse struct {
	Count        int                      `json:"count"`
	TickerFilter *string                  `json:"ticker_filter"`
	Entries      []BlacklistEntryResponse `json:"entries"`
}

// ClearBlacklistResponse is returned by DELETE /blacklist.
type ClearBlacklistResponse struct {
	Cleared      int     `json:"cleared"`
	TickerFilter *string `json:"ticker_filter"`
}

// GapResponse describes one detected gap.
type GapResponse struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	Band            string    `json:"band"`
	Kind            string    `json:"kind"`
	DurationSeconds int64     `json:"duration_seconds"`
}

// GapsResponse is returned by GET /gaps/{symbol}.
type GapsResponse struct {
	Symbol string        `json:"symbol"`
	Count  int           `json:"count"`
	Gaps   []GapResponse `json:"gaps"`
}

// BarResponse is one stored bar. Prices are cents.
type BarResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Open      int64     `json:"open"`
	High      int64     `json:"high"`
	Low       int64     `json:"low"`
	Close     int64     `json:"close"`
	Volume    int64     `json:"volume"`
}

// BarsResponse is returned by GET /bars/{symbol}.
type BarsResponse struct {
	Symbol string        `json:"symbol"`
	Band   string        `json:"band"`
	Count  int           `json:"count"`
	Bars   []BarResponse `json:"bars"`
}

func toBlacklistEntry(e *domain.BlacklistEntry) BlacklistEntryResponse {
	return BlacklistEntryResponse{
		ID:          e.ID,
		StockSymbol: e.Symbol,
		Timestamp:   e.Timestamp,
		TimeAdded:   e.TimeAdded,
		Band:        e.Band.String(),
		IsHourly:    e.Band.IsHourly(),
	}
}

func toGap(g domain.Gap) GapResponse {
	return GapResponse{
		Start:           g.Start,
		End:             g.End,
		Band:            g.Band.String(),
		Kind:            string(g.Kind),
		DurationSeconds: int64(g.Duration().Seconds()),
	}
}

func toBar(b *domain.Bar) BarResponse {
	return BarResponse{
		Timestamp: b.Timestamp,
		Open:      b.Open,
		High:      b.High,
		Low:       b.Low,
		Close:     b.Close,
		Volume:    b.Volume,
	}
}
