// Package queue implements the Stock Queue Service: two independently locked
// FIFO work queues over the symbol universe.
package queue

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stock-backfill/internal/clock"
	"stock-backfill/internal/observability"
)

// Category names a work queue.
type Category string

const (
	History      Category = "history"
	GapDetection Category = "gap_detection"
)

// Categories lists every category in priority order.
var Categories = []Category{History, GapDetection}

// Defaults.
const (
	DefaultBatchSize       = 1000
	DefaultRefreshInterval = 24 * time.Hour
)

// ErrUnknownCategory is returned for a category outside Categories.
var ErrUnknownCategory = errors.New("unknown queue category")

// categoryState is owned by Service and guarded by mu.
// Invariant: pending and dispatched are disjoint and together equal the
// last refresh argument.
type categoryState struct {
	mu          sync.Mutex
	pending     []string
	dispatched  []string
	lastRefresh time.Time
	size        int
}

// Batch is the result of one withdrawal.
type Batch struct {
	Category  Category
	WorkerID  string
	Tickers   []string
	Remaining int // pending after withdrawal
	Processed int // dispatched after withdrawal
	TakenAt   time.Time
}

// Service owns the queue state for all categories.
type Service struct {
	categories      map[Category]*categoryState
	batchSize       int
	refreshInterval time.Duration
	clock           clock.Clock
	log             zerolog.Logger
}

// Options contains configuration for creating a Service.
type Options struct {
	BatchSize       int           // default 1000
	RefreshInterval time.Duration // default 24h, used for next_refresh
	Clock           clock.Clock
	Logger          *zerolog.Logger
}

// NewService creates an empty queue service.
func NewService(opts Options) *Service {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	interval := opts.RefreshInterval
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	categories := make(map[Category]*categoryState, len(Categories))
	for _, c := range Categories {
		categories[c] = &categoryState{}
	}

	return &Service{
		categories:      categories,
		batchSize:       batchSize,
		refreshInterval: interval,
		clock:           clock.OrReal(opts.Clock),
		log:             log.With().Str("component", "queue").Logger(),
	}
}

// BatchSize returns the default batch limit.
func (s *Service) BatchSize() int {
	return s.batchSize
}

func (s *Service) category(c Category) (*categoryState, error) {
	st, ok := s.categories[c]
	if !ok {
		return nil, fmt.Errorf("%q: %w", c, ErrUnknownCategory)
	}
	return st, nil
}

// Refresh reseeds every category with tickers.
func (s *Service) Refresh(tickers []string) {
	for _, c := range Categories {
		// Categories are fixed, so the lookup cannot fail.
		_ = s.RefreshCategory(c, tickers)
	}
}

// RefreshCategory replaces pending with a copy of tickers and clears dispatched.
func (s *Service) RefreshCategory(c Category, tickers []string) error {
	st, err := s.category(c)
	if err != nil {
		return err
	}

	pending := append(make([]string, 0, len(tickers)), tickers...)
	now := s.clock.Now()

	st.mu.Lock()
	st.pending = pending
	st.dispatched = nil
	st.lastRefresh = now
	st.size = len(pending)
	st.mu.Unlock()

	observability.UpdateQueueSizes(string(c), len(pending), 0)
	s.log.Info().Str("category", string(c)).Int("size", len(pending)).Msg("queue refreshed")
	return nil
}

// GetBatch withdraws up to limit tickers from the front of pending.
// A non-positive limit uses the default batch size.
func (s *Service) GetBatch(c Category, workerID string, limit int) ([]string, error) {
	b, err := s.Withdraw(c, workerID, limit)
	if err != nil {
		return nil, err
	}
	return b.Tickers, nil
}

// Withdraw is GetBatch plus the queue counts observed under the same lock.
// An empty pending queue yields an empty batch and leaves dispatched untouched.
func (s *Service) Withdraw(c Category, workerID string, limit int) (Batch, error) {
	st, err := s.category(c)
	if err != nil {
		return Batch{}, err
	}
	if limit <= 0 {
		limit = s.batchSize
	}

	st.mu.Lock()
	n := min(limit, len(st.pending))
	tickers := append(make([]string, 0, n), st.pending[:n]...)
	if n > 0 {
		st.pending = append([]string(nil), st.pending[n:]...)
		st.dispatched = append(st.dispatched, tickers...)
	}
	remaining, processed := len(st.pending), len(st.dispatched)
	st.mu.Unlock()

	observability.RecordBatch(string(c), n)
	observability.UpdateQueueSizes(string(c), remaining, processed)
	if n > 0 {
		s.log.Info().
			Str("category", string(c)).
			Str("worker_id", workerID).
			Int("size", n).
			Int("remaining", remaining).
			Msg("batch dispatched")
	}

	return Batch{
		Category:  c,
		WorkerID:  workerID,
		Tickers:   tickers,
		Remaining: remaining,
		Processed: processed,
		TakenAt:   s.clock.Now(),
	}, nil
}

// Reset moves dispatched back to the front of pending in every category.
func (s *Service) Reset() {
	for _, c := range Categories {
		st := s.categories[c]

		st.mu.Lock()
		requeued := len(st.dispatched)
		pending := make([]string, 0, requeued+len(st.pending))
		pending = append(pending, st.dispatched...)
		pending = append(pending, st.pending...)
		st.pending = pending
		st.dispatched = nil
		size := len(pending)
		st.mu.Unlock()

		observability.UpdateQueueSizes(string(c), size, 0)
		s.log.Info().Str("category", string(c)).Int("requeued", requeued).Msg("queue reset")
	}
}
