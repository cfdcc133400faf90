// Package history accumulates the daily critical-item percentage into a
// durable series, falling back to a local cache when the durable store is
// unreachable.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"stock-movement-lab/internal/domain"
	"stock-movement-lab/internal/lock"
	"stock-movement-lab/internal/observability"
	"stock-movement-lab/internal/storage"
)

// ErrNotPersisted is returned by Record when neither the durable store nor
// the local cache accepted the write. The computed series is still returned.
var ErrNotPersisted = errors.New("history not persisted")

// ErrNoDurable is returned by Sync when no durable store is configured.
var ErrNoDurable = errors.New("no durable history store configured")

// LockKey is the lock name guarding the history read-modify-write.
const LockKey = "critical-history"

// LocalStore is the local cache: a HistoryStore that can be overwritten whole.
type LocalStore interface {
	storage.HistoryStore
	storage.SeriesWriter
}

// Options configures a Tracker.
type Options struct {
	Timeout    time.Duration // bound on every durable-store call
	MaxRetries int           // extra durable upsert attempts after a conflict
}

// DefaultOptions returns a 10s timeout and 3 retries.
func DefaultOptions() Options {
	return Options{Timeout: 10 * time.Second, MaxRetries: 3}
}

// Tracker records daily critical-item observations.
type Tracker struct {
	local   LocalStore
	durable storage.HistoryStore // may be nil
	locker  lock.Locker
	metrics *observability.Metrics
	logger  logrus.FieldLogger
	opts    Options
}

// NewTracker creates a tracker. durable may be nil for local-only operation.
func NewTracker(local LocalStore, durable storage.HistoryStore, opts Options) *Tracker {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Tracker{
		local:   local,
		durable: durable,
		locker:  lock.Noop{},
		logger:  logrus.StandardLogger(),
		opts:    opts,
	}
}

// WithLocker sets the distributed lock used around Record and Sync.
func (t *Tracker) WithLocker(l lock.Locker) *Tracker {
	if l != nil {
		t.locker = l
	}
	return t
}

// WithMetrics sets the metrics sink.
func (t *Tracker) WithMetrics(m *observability.Metrics) *Tracker {
	t.metrics = m
	return t
}

// WithLogger sets the logger.
func (t *Tracker) WithLogger(l logrus.FieldLogger) *Tracker {
	if l != nil {
		t.logger = l
	}
	return t
}

// HasDurable reports whether a durable store is configured.
func (t *Tracker) HasDurable() bool { return t.durable != nil }

// Result is the outcome of one Record call.
type Result struct {
	Entry    *domain.CriticalHistoryEntry   // the entry recorded for the day
	Series   []*domain.CriticalHistoryEntry // full series, date ASC
	Source   string                         // where the series was loaded from: durable, local or empty
	Durable  bool                           // durable store accepted the write
	Local    bool                           // local cache accepted the write
	Warnings []string
}

// Record upserts the observation of day into the series.
func (t *Tracker) Record(ctx context.Context, day domain.Date, total, critical int) (*Result, error) {
	log := t.logger.WithFields(logrus.Fields{"module": "history", "op": "record", "day": day.String()})

	entry := domain.NewCriticalHistoryEntry(day, total, critical)
	if err := storage.ValidateEntry(entry); err != nil {
		return nil, fmt.Errorf("record %s: %w", day, err)
	}

	release := t.acquire(ctx, log)
	defer release()

	res := &Result{Entry: entry}
	series, source, warnings := t.load(ctx, log)
	res.Source = source
	res.Warnings = append(res.Warnings, warnings...)
	res.Series = storage.MergeEntry(series, entry)

	if err := t.local.ReplaceAll(ctx, res.Series); err != nil {
		log.WithError(err).Warn("local history cache write failed")
		res.Warnings = append(res.Warnings, "local cache write failed: "+err.Error())
	} else {
		res.Local = true
	}

	if t.durable != nil {
		if err := t.upsertDurable(ctx, entry); err != nil {
			log.WithError(err).WithField("backend", storage.NameOf(t.durable)).Warn("durable history write failed; local-only persisted")
			res.Warnings = append(res.Warnings, "local-only persisted: "+err.Error())
		} else {
			res.Durable = true
		}
	}

	switch {
	case res.Durable:
		t.metrics.RecordHistory("durable", entry.Percentage)
	case res.Local:
		t.metrics.RecordHistory("local", entry.Percentage)
	default:
		t.metrics.RecordHistory("none", entry.Percentage)
		return res, fmt.Errorf("record %s: %w", day, ErrNotPersisted)
	}

	log.WithFields(logrus.Fields{
		"total":      total,
		"critical":   critical,
		"percentage": entry.Percentage,
		"durable":    res.Durable,
		"entries":    len(res.Series),
	}).Info("critical history recorded")
	return res, nil
}

// Series returns the current series: durable first, then local, then empty.
func (t *Tracker) Series(ctx context.Context) ([]*domain.CriticalHistoryEntry, string, error) {
	log := t.logger.WithFields(logrus.Fields{"module": "history", "op": "series"})
	series, source, _ := t.load(ctx, log)
	return series, source, nil
}

// SyncResult reports a Sync run.
type SyncResult struct {
	Pushed    int
	Unchanged int
	Failed    int
}

// Sync pushes local entries that are missing or different in the durable store.
func (t *Tracker) Sync(ctx context.Context) (*SyncResult, error) {
	if t.durable == nil {
		return nil, ErrNoDurable
	}
	log := t.logger.WithFields(logrus.Fields{"module": "history", "op": "sync", "backend": storage.NameOf(t.durable)})

	release := t.acquire(ctx, log)
	defer release()

	local, err := t.local.All(ctx)
	if err != nil {
		t.metrics.RecordSync(err)
		return nil, fmt.Errorf("read local history: %w", err)
	}

	res := &SyncResult{}
	var firstErr error
	for _, e := range local {
		current, err := t.getDurable(ctx, e.Date)
		if err == nil && current.SameValues(e) {
			res.Unchanged++
			continue
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			res.Failed++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := t.upsertDurable(ctx, e); err != nil {
			res.Failed++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		res.Pushed++
	}

	if firstErr != nil {
		err := fmt.Errorf("sync %d of %d entries failed: %w", res.Failed, len(local), firstErr)
		t.metrics.RecordSync(err)
		log.WithError(err).Warn("history sync incomplete")
		return res, err
	}
	t.metrics.RecordSync(nil)
	log.WithFields(logrus.Fields{"pushed": res.Pushed, "unchanged": res.Unchanged}).Info("history sync complete")
	return res, nil
}

// acquire takes the history lock. Failure to lock is logged and the caller
// proceeds; the store revision check still rejects lost updates.
func (t *Tracker) acquire(ctx context.Context, log logrus.FieldLogger) func() {
	release, err := t.locker.Acquire(ctx, LockKey)
	if err != nil {
		log.WithError(err).Warn("could not obtain history lock; proceeding without lock")
		return func() {}
	}
	return func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			log.WithError(err).Warn("release history lock")
		}
	}
}

// load reads the series from the durable store, else the local cache, else empty.
func (t *Tracker) load(ctx context.Context, log logrus.FieldLogger) ([]*domain.CriticalHistoryEntry, string, []string) {
	var warnings []string
	if t.durable != nil {
		series, err := t.allDurable(ctx)
		if err == nil {
			return t.withLocalOnly(ctx, series, log), "durable", nil
		}
		log.WithError(err).Warn("durable history unavailable; using local cache")
		warnings = append(warnings, "durable store unavailable: "+err.Error())
	}

	series, err := t.local.All(ctx)
	if err == nil {
		return series, "local", warnings
	}
	log.WithError(err).Warn("local history cache unreadable; starting empty")
	warnings = append(warnings, "local cache unreadable: "+err.Error())
	return nil, "empty", warnings
}

// withLocalOnly adds local cache entries whose day is missing from the durable
// series. Those days were recorded while the durable store was down and stay
// in the cache until Sync pushes them.
func (t *Tracker) withLocalOnly(ctx context.Context, series []*domain.CriticalHistoryEntry, log logrus.FieldLogger) []*domain.CriticalHistoryEntry {
	local, err := t.local.All(ctx)
	if err != nil {
		log.WithError(err).Debug("local history cache unreadable; using durable series only")
		return series
	}
	pending := 0
	for _, e := range local {
		if storage.FindEntry(series, e.Date) == nil {
			series = storage.MergeEntry(series, e)
			pending++
		}
	}
	if pending > 0 {
		log.WithField("pending", pending).Info("local-only history entries not yet in durable store")
	}
	return series
}

// upsertDurable writes e with the current durable revision, retrying on conflict.
func (t *Tracker) upsertDurable(ctx context.Context, e *domain.CriticalHistoryEntry) error {
	backend := storage.NameOf(t.durable)
	var err error
	for attempt := 0; attempt <= t.opts.MaxRetries; attempt++ {
		var current *domain.CriticalHistoryEntry
		current, err = t.getDurable(ctx, e.Date)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		next := *e
		next.Revision = 0
		if current != nil {
			next.Revision = current.Revision
		}

		err = t.timed(ctx, "upsert", func(ctx context.Context) error {
			return t.durable.Upsert(ctx, &next)
		})
		if !errors.Is(err, storage.ErrConflict) {
			return err
		}
		t.metrics.RecordConflict(backend)
		t.logger.WithFields(logrus.Fields{
			"module":  "history",
			"backend": backend,
			"day":     e.Date.String(),
			"attempt": attempt + 1,
		}).Debug("history upsert conflict; retrying")
	}
	return fmt.Errorf("upsert %s after %d attempts: %w", e.Date, t.opts.MaxRetries+1, err)
}

func (t *Tracker) getDurable(ctx context.Context, day domain.Date) (*domain.CriticalHistoryEntry, error) {
	var e *domain.CriticalHistoryEntry
	err := t.timed(ctx, "get", func(ctx context.Context) error {
		var err error
		e, err = t.durable.Get(ctx, day)
		return err
	})
	return e, err
}

func (t *Tracker) allDurable(ctx context.Context) ([]*domain.CriticalHistoryEntry, error) {
	var series []*domain.CriticalHistoryEntry
	err := t.timed(ctx, "all", func(ctx context.Context) error {
		var err error
		series, err = t.durable.All(ctx)
		return err
	})
	return series, err
}

// timed runs fn under the durable timeout and records store metrics.
func (t *Tracker) timed(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, t.opts.Timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	failed := err
	if errors.Is(err, storage.ErrNotFound) {
		failed = nil
	}
	t.metrics.RecordStoreOp(storage.NameOf(t.durable), op, time.Since(start), failed)
	return err
}
