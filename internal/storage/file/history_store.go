// Package file stores the critical-item history as a local CSV file.
package file

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"stock-movement-lab/internal/domain"
	"stock-movement-lab/internal/storage"
)

// HistoryStore keeps the history series in a CSV file with the columns
// Data, Percentual, Total_Items, Items_Criticos. Writes go through a
// temporary file and a rename, so readers never see a partial file.
type HistoryStore struct {
	mu   sync.Mutex
	path string
}

// NewHistoryStore creates a store backed by path. The file is created on first write.
func NewHistoryStore(path string) *HistoryStore {
	return &HistoryStore{path: path}
}

// Compile-time interface checks.
var (
	_ storage.HistoryStore = (*HistoryStore)(nil)
	_ storage.SeriesWriter = (*HistoryStore)(nil)
)

// Name returns the backend name.
func (s *HistoryStore) Name() string { return "file" }

// Path returns the file location.
func (s *HistoryStore) Path() string { return s.path }

// Get retrieves the entry of a day. Returns ErrNotFound if absent.
func (s *HistoryStore) Get(ctx context.Context, day domain.Date) (*domain.CriticalHistoryEntry, error) {
	series, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	if e := storage.FindEntry(series, day); e != nil {
		return e, nil
	}
	return nil, storage.ErrNotFound
}

// All retrieves every entry ordered by date ASC. A missing file is an empty series.
func (s *HistoryStore) All(_ context.Context) ([]*domain.CriticalHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	series, _, err := s.read()
	return series, err
}

// Upsert merges e into the file. Returns ErrConflict when the file changed
// between read and write.
func (s *HistoryStore) Upsert(_ context.Context, e *domain.CriticalHistoryEntry) error {
	if err := storage.ValidateEntry(e); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	series, version, err := s.read()
	if err != nil {
		return err
	}
	return s.write(storage.MergeEntry(series, e), version)
}

// ReplaceAll overwrites the file with entries.
func (s *HistoryStore) ReplaceAll(_ context.Context, entries []*domain.CriticalHistoryEntry) error {
	for _, e := range entries {
		if err := storage.ValidateEntry(e); err != nil {
			return err
		}
	}
	sorted := make([]*domain.CriticalHistoryEntry, len(entries))
	copy(sorted, entries)
	storage.SortEntries(sorted)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(sorted, nil)
}

// read returns the series and a content digest. A missing file digests as empty content.
func (s *HistoryStore) read() ([]*domain.CriticalHistoryEntry, []byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		sum := sha256.Sum256(nil)
		return nil, sum[:], nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read history file: %w", err)
	}
	series, err := storage.DecodeHistoryCSV(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	sum := sha256.Sum256(data)
	return series, sum[:], nil
}

// write stores entries atomically. A non-nil expected digest must still match the file.
func (s *HistoryStore) write(entries []*domain.CriticalHistoryEntry, expected []byte) error {
	var buf bytes.Buffer
	if err := storage.EncodeHistoryCSV(&buf, entries); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".history-*.csv")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if expected != nil {
		current, err := os.ReadFile(s.path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("re-read history file: %w", err)
		}
		sum := sha256.Sum256(current)
		if !bytes.Equal(sum[:], expected) {
			return storage.ErrConflict
		}
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace history file: %w", err)
	}
	return nil
}
