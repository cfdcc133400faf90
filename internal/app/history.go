// Package app wires configured components for the command binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"stock-movement-lab/internal/config"
	"stock-movement-lab/internal/history"
	"stock-movement-lab/internal/lock"
	"stock-movement-lab/internal/observability"
	"stock-movement-lab/internal/storage"
	chstore "stock-movement-lab/internal/storage/clickhouse"
	"stock-movement-lab/internal/storage/file"
	"stock-movement-lab/internal/storage/gcs"
	"stock-movement-lab/internal/storage/github"
	"stock-movement-lab/internal/storage/migrations"
	"stock-movement-lab/internal/storage/postgres"
	"stock-movement-lab/internal/storage/sqlite"
)

// LockPrefix namespaces lock keys in Redis.
const LockPrefix = "stock-movement-lab:"

// HistoryStack is a configured tracker and the resources it holds.
type HistoryStack struct {
	Tracker *history.Tracker
	Local   *file.HistoryStore
	Durable storage.HistoryStore // nil when running local-only
	Backend string

	closers []func() error
}

// OpenHistory builds the tracker from cfg. A durable backend or lock that
// cannot be reached is logged and left out; the tracker then runs local-only
// or unlocked.
func OpenHistory(ctx context.Context, cfg *config.Config, m *observability.Metrics, logger logrus.FieldLogger) (*HistoryStack, error) {
	log := logger.WithFields(logrus.Fields{"module": "app", "op": "open_history"})
	s := &HistoryStack{
		Local:   file.NewHistoryStore(cfg.History.LocalPath),
		Backend: config.BackendNone,
	}

	durable, closer, err := OpenDurable(ctx, cfg, log)
	switch {
	case err != nil:
		log.WithError(err).WithField("backend", cfg.History.Backend).
			Error("durable history store unavailable; running local-only")
	case durable != nil:
		s.Durable = durable
		s.Backend = cfg.History.Backend
		s.addCloser(closer)
	}

	locker, closer, err := OpenLocker(ctx, cfg.Redis)
	if err != nil {
		log.WithError(err).Warn("redis unavailable; history writes run without a distributed lock")
		locker = lock.Noop{}
	} else {
		s.addCloser(closer)
	}

	opts := history.Options{Timeout: cfg.History.GetTimeout(), MaxRetries: cfg.History.MaxRetries}
	s.Tracker = history.NewTracker(s.Local, s.Durable, opts).
		WithLocker(locker).
		WithMetrics(m).
		WithLogger(logger)

	log.WithFields(logrus.Fields{
		"local":   cfg.History.LocalPath,
		"backend": s.Backend,
	}).Info("history tracker ready")
	return s, nil
}

func (s *HistoryStack) addCloser(fn func() error) {
	if fn != nil {
		s.closers = append(s.closers, fn)
	}
}

// Close releases the durable store and lock connections.
func (s *HistoryStack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// OpenDurable opens the configured durable history store. It returns a nil
// store for the "none" backend. The returned closer may be nil.
func OpenDurable(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (storage.HistoryStore, func() error, error) {
	timeout := cfg.History.GetTimeout()
	switch cfg.History.Backend {
	case config.BackendNone, "":
		return nil, nil, nil

	case config.BackendFile:
		return file.NewHistoryStore(cfg.History.DurablePath), nil, nil

	case config.BackendSQLite:
		st, err := sqlite.Open(cfg.History.DurablePath)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil

	case config.BackendPostgres:
		cctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		pool, err := postgres.NewPool(cctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		if err := migrations.RunPostgres(cctx, pool, logger); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		return postgres.NewHistoryStore(pool), func() error { pool.Close(); return nil }, nil

	case config.BackendClickHouse:
		cctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		conn, err := migrations.RunClickhouse(cctx, cfg.ClickHouse.DSN, logger)
		if err != nil {
			return nil, nil, err
		}
		return chstore.NewHistoryStore(conn), conn.Close, nil

	case config.BackendGitHub:
		st, err := github.NewHistoryStore(github.Config{
			Token:      cfg.GitHub.Token,
			Repository: cfg.GitHub.Repository,
			Path:       cfg.GitHub.Path,
			Branch:     cfg.GitHub.Branch,
			BaseURL:    cfg.GitHub.BaseURL,
		}, &http.Client{Timeout: timeout})
		if err != nil {
			return nil, nil, err
		}
		return st, nil, nil

	case config.BackendGCS:
		cctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		client, err := gcs.NewClient(cctx, cfg.GCS.CredentialsJSON)
		if err != nil {
			return nil, nil, err
		}
		st, err := gcs.NewHistoryStore(client, cfg.GCS.Bucket, cfg.GCS.Object)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return st, client.Close, nil
	}
	return nil, nil, fmt.Errorf("%w: unknown history backend %q", storage.ErrInvalidInput, cfg.History.Backend)
}

// OpenLocker returns a Redis locker when an address is configured, else lock.Noop.
func OpenLocker(ctx context.Context, cfg config.RedisConfig) (lock.Locker, func() error, error) {
	if cfg.Addr == "" {
		return lock.Noop{}, nil, nil
	}
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rdb, err := lock.Connect(cctx, cfg.Addr, cfg.Password)
	if err != nil {
		return nil, nil, err
	}
	return lock.NewRedis(rdb, lock.RedisOptions{
		Prefix:  LockPrefix,
		TTL:     cfg.GetLockTTL(),
		Retries: cfg.LockRetries,
	}), rdb.Close, nil
}
