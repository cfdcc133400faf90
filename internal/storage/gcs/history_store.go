// Package gcs mirrors the critical-item history file into a Google Cloud Storage object.
package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"stock-movement-lab/internal/domain"
	internalstorage "stock-movement-lab/internal/storage"
)

// NewClient returns a GCS client. Explicit service-account JSON wins;
// otherwise Application Default Credentials are used.
func NewClient(ctx context.Context, credentialsJSON string, opts ...option.ClientOption) (*storage.Client, error) {
	if strings.TrimSpace(credentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return client, nil
}

// HistoryStore keeps the history CSV as one object. Every write carries a
// generation precondition from the read, so a concurrent writer makes the
// write fail with 412, reported as ErrConflict.
type HistoryStore struct {
	client *storage.Client
	bucket string
	object string
}

// NewHistoryStore creates a store for bucket/object.
func NewHistoryStore(client *storage.Client, bucket, object string) (*HistoryStore, error) {
	if client == nil || bucket == "" || object == "" {
		return nil, fmt.Errorf("%w: gcs store needs client, bucket and object", internalstorage.ErrInvalidInput)
	}
	return &HistoryStore{client: client, bucket: bucket, object: object}, nil
}

// Compile-time interface checks.
var (
	_ internalstorage.HistoryStore = (*HistoryStore)(nil)
	_ internalstorage.SeriesWriter = (*HistoryStore)(nil)
)

// Name returns the backend name.
func (s *HistoryStore) Name() string { return "gcs" }

// Get retrieves the entry of a day. Returns ErrNotFound if absent.
func (s *HistoryStore) Get(ctx context.Context, day domain.Date) (*domain.CriticalHistoryEntry, error) {
	series, _, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if e := internalstorage.FindEntry(series, day); e != nil {
		return e, nil
	}
	return nil, internalstorage.ErrNotFound
}

// All retrieves every entry ordered by date ASC. A missing object is an empty series.
func (s *HistoryStore) All(ctx context.Context) ([]*domain.CriticalHistoryEntry, error) {
	series, _, err := s.fetch(ctx)
	return series, err
}

// Upsert merges e into the object.
func (s *HistoryStore) Upsert(ctx context.Context, e *domain.CriticalHistoryEntry) error {
	if err := internalstorage.ValidateEntry(e); err != nil {
		return err
	}
	series, gen, err := s.fetch(ctx)
	if err != nil {
		return err
	}
	return s.write(ctx, internalstorage.MergeEntry(series, e), gen)
}

// ReplaceAll overwrites the object with entries.
func (s *HistoryStore) ReplaceAll(ctx context.Context, entries []*domain.CriticalHistoryEntry) error {
	_, gen, err := s.fetch(ctx)
	if err != nil {
		return err
	}
	sorted := make([]*domain.CriticalHistoryEntry, len(entries))
	copy(sorted, entries)
	internalstorage.SortEntries(sorted)
	return s.write(ctx, sorted, gen)
}

// fetch returns the series and the object generation, 0 when the object does not exist.
func (s *HistoryStore) fetch(ctx context.Context) ([]*domain.CriticalHistoryEntry, int64, error) {
	r, err := s.client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("open gs://%s/%s: %w", s.bucket, s.object, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("read gs://%s/%s: %w", s.bucket, s.object, err)
	}
	series, err := internalstorage.DecodeHistoryCSV(bytes.NewReader(data))
	if err != nil {
		return nil, 0, err
	}
	return series, r.Attrs.Generation, nil
}

func (s *HistoryStore) write(ctx context.Context, entries []*domain.CriticalHistoryEntry, generation int64) error {
	var buf bytes.Buffer
	if err := internalstorage.EncodeHistoryCSV(&buf, entries); err != nil {
		return err
	}

	cond := storage.Conditions{DoesNotExist: true}
	if generation != 0 {
		cond = storage.Conditions{GenerationMatch: generation}
	}
	w := s.client.Bucket(s.bucket).Object(s.object).If(cond).NewWriter(ctx)
	w.ContentType = "text/csv"

	if _, err := w.Write(buf.Bytes()); err != nil {
		w.Close()
		return mapWriteError(err)
	}
	if err := w.Close(); err != nil {
		return mapWriteError(err)
	}
	return nil
}

// mapWriteError turns a failed precondition into ErrConflict.
func mapWriteError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
		return internalstorage.ErrConflict
	}
	return fmt.Errorf("write history object: %w", err)
}
