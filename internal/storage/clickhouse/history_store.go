package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stock-movement-lab/internal/domain"
	"stock-movement-lab/internal/storage"
)

// HistoryStore implements storage.HistoryStore using ClickHouse.
//
// Rows are never updated in place: every write appends a row with the next
// revision and ReplacingMergeTree(revision) collapses them. Reads use FINAL.
// The revision check is read-then-insert and not atomic on the server; the
// distributed lock around history writes closes that window.
type HistoryStore struct {
	conn *Conn
}

// NewHistoryStore creates a new HistoryStore.
func NewHistoryStore(conn *Conn) *HistoryStore {
	return &HistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.HistoryStore = (*HistoryStore)(nil)

// Name returns the backend name.
func (s *HistoryStore) Name() string { return "clickhouse" }

// Get retrieves the entry of a day. Returns ErrNotFound if absent.
func (s *HistoryStore) Get(ctx context.Context, day domain.Date) (*domain.CriticalHistoryEntry, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT day, total_items, critical_items, percentage, revision
		FROM critical_history FINAL
		WHERE day = ?
	`, day.Time())
	if err != nil {
		return nil, fmt.Errorf("query history entry: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate history entry: %w", err)
		}
		return nil, storage.ErrNotFound
	}
	return scanEntry(rows)
}

// Upsert appends e with revision e.Revision+1 when e.Revision matches the
// stored revision (0 when absent).
func (s *HistoryStore) Upsert(ctx context.Context, e *domain.CriticalHistoryEntry) error {
	if err := storage.ValidateEntry(e); err != nil {
		return err
	}

	var current int64
	existing, err := s.Get(ctx, e.Date)
	switch {
	case err == nil:
		current = existing.Revision
	case errors.Is(err, storage.ErrNotFound):
	default:
		return err
	}
	if current != e.Revision {
		return storage.ErrConflict
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO critical_history (day, total_items, critical_items, percentage, revision)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	if err := batch.Append(
		e.Date.Time(),
		uint32(e.TotalItems),
		uint32(e.CriticalItems),
		e.Percentage,
		uint64(current+1),
	); err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// All retrieves every entry ordered by date ASC.
func (s *HistoryStore) All(ctx context.Context) ([]*domain.CriticalHistoryEntry, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT day, total_items, critical_items, percentage, revision
		FROM critical_history FINAL
		ORDER BY day ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var result []*domain.CriticalHistoryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(rows rowScanner) (*domain.CriticalHistoryEntry, error) {
	var (
		day      time.Time
		total    uint32
		critical uint32
		pct      float64
		revision uint64
	)
	if err := rows.Scan(&day, &total, &critical, &pct, &revision); err != nil {
		return nil, fmt.Errorf("scan history entry: %w", err)
	}
	return &domain.CriticalHistoryEntry{
		Date:          domain.DateOf(day),
		TotalItems:    int(total),
		CriticalItems: int(critical),
		Percentage:    pct,
		Revision:      int64(revision),
	}, nil
}
