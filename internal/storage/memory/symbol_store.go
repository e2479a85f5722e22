package memory

import (
	"context"
	"sort"
	"sync"

	"stock-backfill/internal/domain"
	"stock-backfill/internal/storage"
)

// SymbolStore is an in-memory implementation of storage.SymbolStore.
type SymbolStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Symbol
}

// NewSymbolStore creates a new in-memory symbol store.
func NewSymbolStore() *SymbolStore {
	return &SymbolStore{
		data: make(map[string]*domain.Symbol),
	}
}

// Compile-time interface check.
var _ storage.SymbolStore = (*SymbolStore)(nil)

// Exists reports whether the symbol is known.
func (s *SymbolStore) Exists(_ context.Context, symbol string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.data[symbol]
	return ok, nil
}

// EnsureExists inserts the symbol when unknown.
func (s *SymbolStore) EnsureExists(_ context.Context, sym *domain.Symbol) (bool, error) {
	if sym == nil || sym.Symbol == "" {
		return false, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[sym.Symbol]; ok {
		return false, nil
	}
	symCopy := *sym
	s.data[sym.Symbol] = &symCopy
	return true, nil
}

// List returns all symbols ordered by symbol.
func (s *SymbolStore) List(_ context.Context) ([]*domain.Symbol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Symbol, 0, len(s.data))
	for _, sym := range s.data {
		symCopy := *sym
		result = append(result, &symCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})

	return result, nil
}
