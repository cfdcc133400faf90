// Package sqlite stores the critical-item history in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"stock-movement-lab/internal/domain"
	"stock-movement-lab/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS critical_history (
	day            TEXT PRIMARY KEY,
	total_items    INTEGER NOT NULL,
	critical_items INTEGER NOT NULL,
	percentage     REAL NOT NULL,
	revision       INTEGER NOT NULL DEFAULT 1,
	updated_at     DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// HistoryStore implements storage.HistoryStore on SQLite.
type HistoryStore struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema.
func Open(path string) (*HistoryStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// one writer at a time; sqlite serializes anyway
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &HistoryStore{db: db}, nil
}

// Close closes the database.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

// Compile-time interface checks.
var (
	_ storage.HistoryStore = (*HistoryStore)(nil)
	_ storage.SeriesWriter = (*HistoryStore)(nil)
)

// Name returns the backend name.
func (s *HistoryStore) Name() string { return "sqlite" }

// Get retrieves the entry of a day. Returns ErrNotFound if absent.
func (s *HistoryStore) Get(ctx context.Context, day domain.Date) (*domain.CriticalHistoryEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT day, total_items, critical_items, percentage, revision
		FROM critical_history
		WHERE day = ?`, day.String())

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get history entry: %w", err)
	}
	return e, nil
}

// Upsert writes e when e.Revision matches the stored revision (0 when absent).
func (s *HistoryStore) Upsert(ctx context.Context, e *domain.CriticalHistoryEntry) error {
	if err := storage.ValidateEntry(e); err != nil {
		return err
	}

	var res sql.Result
	var err error
	if e.Revision == 0 {
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO critical_history (day, total_items, critical_items, percentage, revision)
			VALUES (?, ?, ?, ?, 1)
			ON CONFLICT(day) DO NOTHING`,
			e.Date.String(), e.TotalItems, e.CriticalItems, e.Percentage)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE critical_history
			SET total_items = ?, critical_items = ?, percentage = ?,
			    revision = revision + 1, updated_at = CURRENT_TIMESTAMP
			WHERE day = ? AND revision = ?`,
			e.TotalItems, e.CriticalItems, e.Percentage, e.Date.String(), e.Revision)
	}
	if err != nil {
		return fmt.Errorf("upsert history entry: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrConflict
	}
	return nil
}

// All retrieves every entry ordered by date ASC.
func (s *HistoryStore) All(ctx context.Context) ([]*domain.CriticalHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT day, total_items, critical_items, percentage, revision
		FROM critical_history
		ORDER BY day ASC`)
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

// ReplaceAll replaces the whole series in one transaction.
func (s *HistoryStore) ReplaceAll(ctx context.Context, entries []*domain.CriticalHistoryEntry) error {
	for _, e := range entries {
		if err := storage.ValidateEntry(e); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM critical_history`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO critical_history (day, total_items, critical_items, percentage, revision)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT(day) DO UPDATE SET
			total_items = excluded.total_items,
			critical_items = excluded.critical_items,
			percentage = excluded.percentage`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Date.String(), e.TotalItems, e.CriticalItems, e.Percentage); err != nil {
			return fmt.Errorf("insert %s: %w", e.Date, err)
		}
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*domain.CriticalHistoryEntry, error) {
	var (
		day string
		e   domain.CriticalHistoryEntry
	)
	if err := row.Scan(&day, &e.TotalItems, &e.CriticalItems, &e.Percentage, &e.Revision); err != nil {
		return nil, err
	}
	d, err := domain.ParseDate(day)
	if err != nil {
		return nil, err
	}
	e.Date = d
	return &e, nil
}
