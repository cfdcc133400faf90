package storage

import (
	"context"

	"stock-movement-lab/internal/domain"
)

// HistoryStore provides access to the critical-item history series.
// At most one entry exists per date.
//
// Upsert is a compare-and-swap. Row stores (memory, SQLite, PostgreSQL,
// ClickHouse) compare e.Revision with the stored revision of e.Date
// (0 when absent) and store e with revision e.Revision+1. Object stores
// (local file, GitHub, GCS) compare the object version read within the call.
// Either way a lost race returns ErrConflict and nothing is written.
type HistoryStore interface {
	// Get retrieves the entry of a day. Returns ErrNotFound if absent.
	Get(ctx context.Context, day domain.Date) (*domain.CriticalHistoryEntry, error)

	// Upsert inserts or overwrites the entry of e.Date. Returns ErrConflict on a lost race.
	Upsert(ctx context.Context, e *domain.CriticalHistoryEntry) error

	// All retrieves every entry ordered by date ASC.
	All(ctx context.Context) ([]*domain.CriticalHistoryEntry, error)
}

// SeriesWriter is implemented by stores that can replace the whole series at once.
type SeriesWriter interface {
	// ReplaceAll replaces the stored series with entries.
	ReplaceAll(ctx context.Context, entries []*domain.CriticalHistoryEntry) error
}

// Named is implemented by stores that report a backend name for logs and metrics.
type Named interface {
	Name() string
}

// NameOf returns the backend name of s, or "unknown".
func NameOf(s HistoryStore) string {
	if n, ok := s.(Named); ok {
		return n.Name()
	}
	return "unknown"
}
