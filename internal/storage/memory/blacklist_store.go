package memory

import (
	"context"
	"sort"
	"sync"

	"stock-backfill/internal/domain"
	"stock-backfill/internal/storage"
)

// BlacklistStore is an in-memory implementation of storage.BlacklistStore.
type BlacklistStore struct {
	mu      sync.RWMutex
	entries []*domain.BlacklistEntry
	nextID  int64

	// failErr, when set, is returned by every call. Used to exercise
	// fail-closed behavior of callers.
	failErr error
}

// NewBlacklistStore creates a new in-memory blacklist store.
func NewBlacklistStore() *BlacklistStore {
	return &BlacklistStore{nextID: 1}
}

// Compile-time interface check.
var _ storage.BlacklistStore = (*BlacklistStore)(nil)

// FailWith makes every subsequent call return err. Pass nil to recover.
func (s *BlacklistStore) FailWith(err error) {
	s.mu.Lock()
	s.failErr = err
	s.mu.Unlock()
}

// Insert adds an entry and assigns its ID.
func (s *BlacklistStore) Insert(_ context.Context, e *domain.BlacklistEntry) error {
	if e == nil || e.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failErr != nil {
		return s.failErr
	}

	entryCopy := *e
	entryCopy.ID = s.nextID
	s.nextID++
	s.entries = append(s.entries, &entryCopy)
	e.ID = entryCopy.ID
	return nil
}

// List returns entries for symbol, or all entries when symbol is empty.
func (s *BlacklistStore) List(_ context.Context, symbol string) ([]*domain.BlacklistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.failErr != nil {
		return nil, s.failErr
	}

	var result []*domain.BlacklistEntry
	for _, e := range s.entries {
		if symbol == "" || e.Symbol == symbol {
			entryCopy := *e
			result = append(result, &entryCopy)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].TimeAdded.Before(result[j].TimeAdded)
	})

	return result, nil
}

// Delete removes entries for symbol, or all entries when symbol is empty.
func (s *BlacklistStore) Delete(_ context.Context, symbol string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failErr != nil {
		return 0, s.failErr
	}

	kept := s.entries[:0]
	removed := 0
	for _, e := range s.entries {
		if symbol == "" || e.Symbol == symbol {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return removed, nil
}
