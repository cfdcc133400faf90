package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-movement-lab/internal/app"
	"stock-movement-lab/internal/config"
	"stock-movement-lab/internal/domain"
	"stock-movement-lab/internal/observability"
)

func newTestServer(t *testing.T, backend string) *Server {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.LoadFile(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	cfg.History.LocalPath = filepath.Join(dir, "local.csv")
	cfg.History.Backend = backend
	cfg.History.DurablePath = filepath.Join(dir, "durable.csv")

	logger, _ := test.NewNullLogger()
	m := observability.NewMetrics("test", prometheus.NewRegistry())
	stack, err := app.OpenHistory(context.Background(), cfg, m, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = stack.Close() })

	return newServer(cfg, logger, m, stack)
}

func TestStatus(t *testing.T) {
	s := newTestServer(t, config.BackendNone)
	_, err := s.sessions.Create()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "running", resp.Status)
	assert.Equal(t, 1, resp.Sessions)
	assert.Equal(t, config.BackendNone, resp.HistoryBackend)
	assert.Equal(t, 0, resp.SyncRuns)
}

func TestHandler_RoutesToAPI(t *testing.T) {
	s := newTestServer(t, config.BackendNone)

	rec := httptest.NewRecorder()
	s.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunSync_PushesLocalOnlyEntries(t *testing.T) {
	s := newTestServer(t, config.BackendFile)
	ctx := context.Background()

	day := domain.Date{Year: 2024, Month: time.June, Day: 3}
	require.NoError(t, s.stack.Local.Upsert(ctx, domain.NewCriticalHistoryEntry(day, 10, 3)))

	s.runSync(ctx)

	s.mu.Lock()
	runs, lastErr := s.syncRuns, s.lastSyncErr
	s.mu.Unlock()
	assert.Equal(t, 1, runs)
	assert.Empty(t, lastErr)

	got, err := s.stack.Durable.Get(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 30.0, got.Percentage)
}

func TestRunSync_NoDurableIsNotAnError(t *testing.T) {
	s := newTestServer(t, config.BackendNone)

	s.runSync(context.Background())

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Equal(t, 1, s.syncRuns)
	assert.NotEmpty(t, s.lastSyncErr)
}

func TestSyncScheduler_DisabledWithoutSchedule(t *testing.T) {
	s := newTestServer(t, config.BackendFile)
	s.cfg.History.SyncSchedule = ""

	done := make(chan struct{})
	go func() {
		s.runSyncScheduler(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not return")
	}
}
