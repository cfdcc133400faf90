// Package main runs the dashboard service:
// - JSON API for uploads, analysis, export and coverage processing
// - websocket feed of analysis and history events
// - scheduled mirror of the local critical history to the durable store
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"stock-movement-lab/internal/api"
	"stock-movement-lab/internal/app"
	"stock-movement-lab/internal/config"
	"stock-movement-lab/internal/history"
	"stock-movement-lab/internal/logging"
	"stock-movement-lab/internal/observability"
	"stock-movement-lab/internal/pipeline"
	"stock-movement-lab/internal/session"
)

// Server holds the components of the service.
type Server struct {
	cfg      *config.Config
	logger   *logrus.Logger
	metrics  *observability.Metrics
	sessions *session.Registry
	hub      *api.Hub
	stack    *app.HistoryStack
	started  time.Time

	mu           sync.Mutex
	lastSync     time.Time
	lastSyncErr  string
	nextSync     time.Time
	syncRuns     int
	syncRunning  bool
	sweptSession int
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		logrus.Fatalf("logger: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.DefaultMetrics
	stack, err := app.OpenHistory(ctx, cfg, metrics, logger)
	if err != nil {
		logging.LogError(logger, "server", "main", "open history", cfg.History.Backend, err)
		os.Exit(1)
	}
	defer stack.Close()

	s := newServer(cfg, logger, metrics, stack)

	done := make(chan error, 1)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.WithField("signal", sig.String()).Info("initiating graceful shutdown")
		cancel()

		select {
		case sig := <-sigCh:
			logger.WithField("signal", sig.String()).Warn("second signal, forcing immediate shutdown")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = s.Run(ctx)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logging.LogError(logger, "server", "Run", "serve", nil, err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func newServer(cfg *config.Config, logger *logrus.Logger, metrics *observability.Metrics, stack *app.HistoryStack) *Server {
	return &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		sessions: session.NewRegistry(cfg.Server.GetSessionIdle()).
			OnChange(metrics.SetActiveSessions),
		hub: api.NewHub().
			WithLogger(logger).
			WithMetrics(metrics).
			WithCheckOrigin(api.CheckOrigin(cfg.Server.AllowedOrigins)),
		stack:   stack,
		started: time.Now(),
	}
}

// Run serves HTTP until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	go s.hub.Run(ctx)
	go s.runSweeper(ctx)
	go s.runSyncScheduler(ctx)

	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", srv.Addr).Info("starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *Server) handler() http.Handler {
	analyzer := pipeline.NewAnalyzer(s.cfg.Analysis.PeakOptions()).
		WithMetrics(s.metrics).
		WithLogger(s.logger)
	processor := pipeline.NewCoverageProcessor(s.cfg.Coverage.Classifier(), s.stack.Tracker).
		WithLogger(s.logger)

	apiHandler := api.NewServer(s.sessions, analyzer, processor).
		WithTracker(s.stack.Tracker).
		WithHub(s.hub).
		WithMetrics(s.metrics, observability.Handler()).
		WithLogger(s.logger).
		WithUploadLimit(int64(s.cfg.Server.MaxUploadMB) << 20).
		WithAllowedOrigins(s.cfg.Server.AllowedOrigins).
		Handler()

	mux := http.NewServeMux()
	mux.Handle("/", apiHandler)
	mux.HandleFunc("/status", s.handleStatus)
	return mux
}

// runSweeper drops idle sessions.
func (s *Server) runSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Server.GetSweepInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.sessions.Sweep(); n > 0 {
				s.mu.Lock()
				s.sweptSession += n
				s.mu.Unlock()
				s.logger.WithFields(logrus.Fields{"module": "server", "expired": n}).Debug("idle sessions swept")
			}
		}
	}
}

// runSyncScheduler mirrors the local history to the durable store on the
// configured cron schedule (5 fields). An empty or invalid schedule disables it.
func (s *Server) runSyncScheduler(ctx context.Context) {
	log := s.logger.WithFields(logrus.Fields{"module": "server", "op": "sync_scheduler"})
	schedule := strings.TrimSpace(s.cfg.History.SyncSchedule)
	if schedule == "" {
		log.Info("history sync disabled (sync_schedule not set)")
		return
	}
	if !s.stack.Tracker.HasDurable() {
		log.Info("history sync disabled: no durable store")
		return
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.WithError(err).WithField("schedule", schedule).Warn("invalid sync_schedule, history sync disabled")
		return
	}
	log.WithFields(logrus.Fields{"schedule": schedule, "backend": s.stack.Backend}).Info("history sync scheduled")

	for {
		now := time.Now()
		next := sched.Next(now)
		s.mu.Lock()
		s.nextSync = next
		s.mu.Unlock()

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		s.runSync(ctx)
	}
}

func (s *Server) runSync(ctx context.Context) {
	s.mu.Lock()
	if s.syncRunning {
		s.mu.Unlock()
		return
	}
	s.syncRunning = true
	s.mu.Unlock()

	res, err := s.stack.Tracker.Sync(ctx)

	s.mu.Lock()
	s.syncRunning = false
	s.syncRuns++
	s.lastSync = time.Now()
	s.lastSyncErr = ""
	if err != nil {
		s.lastSyncErr = err.Error()
	}
	s.mu.Unlock()

	if err != nil && !errors.Is(err, history.ErrNoDurable) {
		logging.LogError(s.logger, "server", "runSync", "scheduled history sync", res, err)
		return
	}
	if res != nil && res.Pushed > 0 {
		series, _, _ := s.stack.Tracker.Series(ctx)
		s.hub.Publish(api.EventHistory, "", series)
	}
}

// StatusResponse is the JSON response for /status.
type StatusResponse struct {
	Status         string    `json:"status"`
	Uptime         string    `json:"uptime"`
	Sessions       int       `json:"sessions"`
	SessionsSwept  int       `json:"sessions_swept"`
	WSClients      int       `json:"ws_clients"`
	HistoryBackend string    `json:"history_backend"`
	SyncRuns       int       `json:"sync_runs"`
	SyncRunning    bool      `json:"sync_running"`
	LastSync       time.Time `json:"last_sync,omitempty"`
	LastSyncError  string    `json:"last_sync_error,omitempty"`
	NextSync       time.Time `json:"next_sync,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:         "running",
		Uptime:         time.Since(s.started).Round(time.Second).String(),
		Sessions:       s.sessions.Len(),
		SessionsSwept:  s.sweptSession,
		WSClients:      s.hub.Clients(),
		HistoryBackend: s.stack.Backend,
		SyncRuns:       s.syncRuns,
		SyncRunning:    s.syncRunning,
		LastSync:       s.lastSync,
		LastSyncError:  s.lastSyncErr,
		NextSync:       s.nextSync,
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
