package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"stock-backfill/internal/domain"
	"stock-backfill/internal/storage"
)

// BarStore is an in-memory implementation of storage.BarStore.
type BarStore struct {
	mu   sync.RWMutex
	data map[domain.BarKey]*domain.Bar
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{
		data: make(map[domain.BarKey]*domain.Bar),
	}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// InsertIfAbsent adds a bar. Returns false when the key already exists.
func (s *BarStore) InsertIfAbsent(_ context.Context, bar *domain.Bar) (bool, error) {
	if err := bar.Validate(); err != nil {
		return false, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertLocked(bar), nil
}

// InsertManyIfAbsent adds bars, skipping existing keys.
func (s *BarStore) InsertManyIfAbsent(_ context.Context, bars []*domain.Bar) (int, error) {
	for _, b := range bars {
		if err := b.Validate(); err != nil {
			return 0, storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, b := range bars {
		if s.insertLocked(b) {
			inserted++
		}
	}
	return inserted, nil
}

func (s *BarStore) insertLocked(bar *domain.Bar) bool {
	key := bar.Key()
	if _, exists := s.data[key]; exists {
		return false
	}
	barCopy := *bar
	s.data[key] = &barCopy
	return true
}

// ListTimestamps returns all stored timestamps for symbol+band, ordered ASC.
func (s *BarStore) ListTimestamps(_ context.Context, symbol string, band domain.Band) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []time.Time
	for _, b := range s.data {
		if b.Symbol == symbol && b.Band == band {
			result = append(result, b.Timestamp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Before(result[j])
	})

	return result, nil
}

// GetByTimeRange retrieves bars within [start, end] (inclusive), ordered ASC.
func (s *BarStore) GetByTimeRange(_ context.Context, symbol string, band domain.Band, start, end time.Time) ([]*domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Bar
	for _, b := range s.data {
		if b.Symbol != symbol || b.Band != band {
			continue
		}
		if b.Timestamp.Before(start) || b.Timestamp.After(end) {
			continue
		}
		barCopy := *b
		result = append(result, &barCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	return result, nil
}

// Count returns the number of stored bars.
func (s *BarStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
