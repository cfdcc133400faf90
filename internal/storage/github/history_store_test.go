package github

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-movement-lab/internal/domain"
	"stock-movement-lab/internal/storage"
)

// fakeContents is a minimal GitHub contents API for one file.
type fakeContents struct {
	mu       sync.Mutex
	content  []byte
	sha      string
	puts     int
	messages []string
	branches []string
	auth     []string
}

func (f *fakeContents) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.auth = append(f.auth, r.Header.Get("Authorization"))
	if r.URL.Path != "/repos/acme/stock/contents/data/history.csv" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		f.branches = append(f.branches, r.URL.Query().Get("ref"))
		if f.sha == "" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"sha":      f.sha,
			"encoding": "base64",
			"content":  base64.StdEncoding.EncodeToString(f.content),
		})
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		var req putRequest
		if err := json.Unmarshal(body, &req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.SHA != f.sha {
			w.WriteHeader(http.StatusConflict)
			return
		}
		raw, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.puts++
		f.content = raw
		sum := sha1.Sum(raw)
		f.sha = hex.EncodeToString(sum[:])
		f.messages = append(f.messages, req.Message)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestStore(t *testing.T) (*HistoryStore, *fakeContents) {
	t.Helper()
	fake := &fakeContents{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store, err := NewHistoryStore(Config{
		Token:      "test-token",
		Repository: "acme/stock",
		Path:       "data/history.csv",
		Branch:     "main",
		BaseURL:    srv.URL,
	}, srv.Client())
	require.NoError(t, err)
	return store, fake
}

func day(d int) domain.Date {
	return domain.Date{Year: 2024, Month: time.November, Day: d}
}

func TestNewHistoryStore_Validation(t *testing.T) {
	_, err := NewHistoryStore(Config{Repository: "acme/stock", Path: "h.csv"}, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = NewHistoryStore(Config{Token: "t", Repository: "stock", Path: "h.csv"}, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestHistoryStore_MissingFile(t *testing.T) {
	store, fake := newTestStore(t)

	all, err := store.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)

	_, err = store.Get(context.Background(), day(1))
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, "Bearer test-token", fake.auth[0])
	assert.Equal(t, "main", fake.branches[0])
}

func TestHistoryStore_UpsertCommitsCSV(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, domain.NewCriticalHistoryEntry(day(2), 4, 1)))
	require.NoError(t, store.Upsert(ctx, domain.NewCriticalHistoryEntry(day(1), 10, 5)))
	require.NoError(t, store.Upsert(ctx, domain.NewCriticalHistoryEntry(day(2), 4, 2)))

	assert.Equal(t, 3, fake.puts)
	assert.Equal(t,
		"Data,Percentual,Total_Items,Items_Criticos\n2024-11-01,50,10,5\n2024-11-02,50,4,2\n",
		string(fake.content))
	assert.Contains(t, fake.messages[0], "2024-11-02")

	got, err := store.Get(ctx, day(2))
	require.NoError(t, err)
	assert.Equal(t, 2, got.CriticalItems)
}

func TestHistoryStore_ConcurrentCommitConflicts(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, domain.NewCriticalHistoryEntry(day(1), 1, 1)))

	_, sha, err := store.fetch(ctx)
	require.NoError(t, err)

	// another writer commits in between
	fake.mu.Lock()
	fake.sha = "someone-else"
	fake.mu.Unlock()

	err = store.put(ctx, nil, sha, "stale")
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestHistoryStore_ReplaceAll(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, domain.NewCriticalHistoryEntry(day(9), 1, 1)))

	require.NoError(t, store.ReplaceAll(ctx, []*domain.CriticalHistoryEntry{
		domain.NewCriticalHistoryEntry(day(5), 2, 1),
		domain.NewCriticalHistoryEntry(day(3), 4, 1),
	}))

	assert.Equal(t,
		"Data,Percentual,Total_Items,Items_Criticos\n2024-11-03,25,4,1\n2024-11-05,50,2,1\n",
		string(fake.content))
}

func TestHistoryStore_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	defer srv.Close()

	store, err := NewHistoryStore(Config{Token: "x", Repository: "a/b", Path: "h.csv", BaseURL: srv.URL}, srv.Client())
	require.NoError(t, err)

	_, err = store.All(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
