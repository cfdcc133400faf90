package memory

import (
	"context"
	"sync"

	"stock-movement-lab/internal/domain"
	"stock-movement-lab/internal/storage"
)

// HistoryStore is an in-memory implementation of storage.HistoryStore.
type HistoryStore struct {
	mu   sync.RWMutex
	data map[domain.Date]*domain.CriticalHistoryEntry
}

// NewHistoryStore creates a new in-memory history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{
		data: make(map[domain.Date]*domain.CriticalHistoryEntry),
	}
}

// Compile-time interface checks.
var (
	_ storage.HistoryStore = (*HistoryStore)(nil)
	_ storage.SeriesWriter = (*HistoryStore)(nil)
)

// Name returns the backend name.
func (s *HistoryStore) Name() string { return "memory" }

// Get retrieves the entry of a day. Returns ErrNotFound if absent.
func (s *HistoryStore) Get(_ context.Context, day domain.Date) (*domain.CriticalHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[day]
	if !ok {
		return nil, storage.ErrNotFound
	}
	entryCopy := *e
	return &entryCopy, nil
}

// Upsert writes e when e.Revision matches the stored revision (0 when absent).
func (s *HistoryStore) Upsert(_ context.Context, e *domain.CriticalHistoryEntry) error {
	if err := storage.ValidateEntry(e); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	if existing, ok := s.data[e.Date]; ok {
		current = existing.Revision
	}
	if current != e.Revision {
		return storage.ErrConflict
	}

	entryCopy := *e
	entryCopy.Revision = current + 1
	s.data[e.Date] = &entryCopy
	return nil
}

// All retrieves every entry ordered by date ASC.
func (s *HistoryStore) All(_ context.Context) ([]*domain.CriticalHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.CriticalHistoryEntry, 0, len(s.data))
	for _, e := range s.data {
		entryCopy := *e
		result = append(result, &entryCopy)
	}
	storage.SortEntries(result)
	return result, nil
}

// ReplaceAll replaces the series. Revisions restart from 1.
func (s *HistoryStore) ReplaceAll(_ context.Context, entries []*domain.CriticalHistoryEntry) error {
	for _, e := range entries {
		if err := storage.ValidateEntry(e); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[domain.Date]*domain.CriticalHistoryEntry, len(entries))
	for _, e := range entries {
		entryCopy := *e
		entryCopy.Revision = 1
		s.data[e.Date] = &entryCopy
	}
	return nil
}
