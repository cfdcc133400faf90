package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"stock-movement-lab/internal/domain"
	"stock-movement-lab/internal/storage"
)

// HistoryStore implements storage.HistoryStore using PostgreSQL.
type HistoryStore struct {
	pool *Pool
}

// NewHistoryStore creates a new HistoryStore.
func NewHistoryStore(pool *Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

// Compile-time interface checks.
var (
	_ storage.HistoryStore = (*HistoryStore)(nil)
	_ storage.SeriesWriter = (*HistoryStore)(nil)
)

// Name returns the backend name.
func (s *HistoryStore) Name() string { return "postgres" }

// Get retrieves the entry of a day. Returns ErrNotFound if absent.
func (s *HistoryStore) Get(ctx context.Context, day domain.Date) (*domain.CriticalHistoryEntry, error) {
	query := `
		SELECT day, total_items, critical_items, percentage, revision
		FROM critical_history
		WHERE day = $1
	`

	e, err := scanEntry(s.pool.QueryRow(ctx, query, day.Time()))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get history entry: %w", err)
	}
	return e, nil
}

// Upsert writes e when e.Revision matches the stored revision (0 when absent).
// A revision-0 insert racing another insert surfaces as a unique violation
// and is reported as ErrConflict.
func (s *HistoryStore) Upsert(ctx context.Context, e *domain.CriticalHistoryEntry) error {
	if err := storage.ValidateEntry(e); err != nil {
		return err
	}

	if e.Revision == 0 {
		query := `
			INSERT INTO critical_history (day, total_items, critical_items, percentage, revision)
			VALUES ($1, $2, $3, $4, 1)
		`
		_, err := s.pool.Exec(ctx, query, e.Date.Time(), e.TotalItems, e.CriticalItems, e.Percentage)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrConflict
			}
			return fmt.Errorf("insert history entry: %w", err)
		}
		return nil
	}

	query := `
		UPDATE critical_history
		SET total_items = $2, critical_items = $3, percentage = $4,
		    revision = revision + 1, updated_at = now()
		WHERE day = $1 AND revision = $5
	`
	tag, err := s.pool.Exec(ctx, query, e.Date.Time(), e.TotalItems, e.CriticalItems, e.Percentage, e.Revision)
	if err != nil {
		return fmt.Errorf("update history entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrConflict
	}
	return nil
}

// All retrieves every entry ordered by date ASC.
func (s *HistoryStore) All(ctx context.Context) ([]*domain.CriticalHistoryEntry, error) {
	query := `
		SELECT day, total_items, critical_items, percentage, revision
		FROM critical_history
		ORDER BY day ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var result []*domain.CriticalHistoryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// ReplaceAll replaces the series in one transaction. Revisions of kept days
// are bumped so concurrent writers holding old revisions conflict.
func (s *HistoryStore) ReplaceAll(ctx context.Context, entries []*domain.CriticalHistoryEntry) error {
	for _, e := range entries {
		if err := storage.ValidateEntry(e); err != nil {
			return err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	days := make([]time.Time, len(entries))
	for i, e := range entries {
		days[i] = e.Date.Time()
	}
	if _, err := tx.Exec(ctx, `DELETE FROM critical_history WHERE NOT (day = ANY($1))`, days); err != nil {
		return fmt.Errorf("delete stale days: %w", err)
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO critical_history (day, total_items, critical_items, percentage, revision)
			VALUES ($1, $2, $3, $4, 1)
			ON CONFLICT (day) DO UPDATE SET
				total_items = EXCLUDED.total_items,
				critical_items = EXCLUDED.critical_items,
				percentage = EXCLUDED.percentage,
				revision = critical_history.revision + 1,
				updated_at = now()
		`, e.Date.Time(), e.TotalItems, e.CriticalItems, e.Percentage)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert series: %w", err)
	}

	return tx.Commit(ctx)
}

func scanEntry(row pgx.Row) (*domain.CriticalHistoryEntry, error) {
	var (
		day time.Time
		e   domain.CriticalHistoryEntry
	)
	if err := row.Scan(&day, &e.TotalItems, &e.CriticalItems, &e.Percentage, &e.Revision); err != nil {
		return nil, err
	}
	e.Date = domain.DateOf(day)
	return &e, nil
}
