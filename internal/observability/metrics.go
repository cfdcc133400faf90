// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
// All methods are safe on a nil receiver.
type Metrics struct {
	// Analysis metrics
	AnalysesTotal    *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram
	RowsRead         prometheus.Counter
	RowsDropped      prometheus.Counter
	PeaksDetected    *prometheus.CounterVec
	ExportsWritten   *prometheus.CounterVec

	// History metrics
	HistoryRecords      *prometheus.CounterVec
	HistoryConflicts    *prometheus.CounterVec
	HistoryDegraded     prometheus.Counter
	HistorySyncs        *prometheus.CounterVec
	HistoryCriticalRate prometheus.Gauge

	// Store metrics
	StoreOpDuration *prometheus.HistogramVec
	StoreOpErrors   *prometheus.CounterVec

	// Server metrics
	ActiveSessions   prometheus.Gauge
	WebsocketClients prometheus.Gauge

	// Health metrics
	LastSuccessfulAnalysis prometheus.Gauge
	LastSuccessfulSync     prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered on reg.
// A nil reg registers on the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "stock_movement_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		AnalysesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "runs_total",
			Help:      "Total number of analysis runs by outcome",
		}, []string{"outcome"}),
		AnalysisDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "duration_seconds",
			Help:      "Analysis duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}),
		RowsRead: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "rows_read_total",
			Help:      "Total number of movement rows read",
		}),
		RowsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "rows_dropped_total",
			Help:      "Total number of movement rows dropped by normalization",
		}),
		PeaksDetected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "peaks_detected_total",
			Help:      "Total number of peaks detected by kind",
		}, []string{"kind"}),
		ExportsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "exports_written_total",
			Help:      "Total number of exports written by format",
		}, []string{"format"}),

		HistoryRecords: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "records_total",
			Help:      "Total number of history records by persistence result",
		}, []string{"result"}),
		HistoryConflicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "conflicts_total",
			Help:      "Total number of compare-and-swap conflicts by backend",
		}, []string{"backend"}),
		HistoryDegraded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "local_only_writes_total",
			Help:      "Total number of history writes persisted only to the local cache",
		}),
		HistorySyncs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "syncs_total",
			Help:      "Total number of local to durable sync runs by status",
		}, []string{"status"}),
		HistoryCriticalRate: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "critical_percentage",
			Help:      "Critical item percentage of the last recorded day",
		}),

		StoreOpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "History store operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend", "operation"}),
		StoreOpErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_errors_total",
			Help:      "Total number of history store operation errors",
		}, []string{"backend", "operation"}),

		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "active_sessions",
			Help:      "Number of live analysis sessions",
		}),
		WebsocketClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "websocket_clients",
			Help:      "Number of connected dashboard websocket clients",
		}),

		LastSuccessfulAnalysis: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_analysis_timestamp",
			Help:      "Unix timestamp of last analysis with data",
		}),
		LastSuccessfulSync: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_sync_timestamp",
			Help:      "Unix timestamp of last successful history sync",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordAnalysis records one analysis run.
func (m *Metrics) RecordAnalysis(outcome string, duration time.Duration, rowsRead, rowsDropped int) {
	if m == nil {
		return
	}
	m.AnalysesTotal.WithLabelValues(outcome).Inc()
	m.AnalysisDuration.Observe(duration.Seconds())
	m.RowsRead.Add(float64(rowsRead))
	m.RowsDropped.Add(float64(rowsDropped))
	if outcome == "data" {
		m.LastSuccessfulAnalysis.SetToCurrentTime()
	}
}

// RecordPeaks adds detected peak counts.
func (m *Metrics) RecordPeaks(high, low int) {
	if m == nil {
		return
	}
	m.PeaksDetected.WithLabelValues("high").Add(float64(high))
	m.PeaksDetected.WithLabelValues("low").Add(float64(low))
}

// RecordExport counts a written export.
func (m *Metrics) RecordExport(format string) {
	if m == nil {
		return
	}
	m.ExportsWritten.WithLabelValues(format).Inc()
}

// RecordHistory records where a history write landed: "durable", "local" or "none".
func (m *Metrics) RecordHistory(result string, percentage float64) {
	if m == nil {
		return
	}
	m.HistoryRecords.WithLabelValues(result).Inc()
	if result == "local" {
		m.HistoryDegraded.Inc()
	}
	if result != "none" {
		m.HistoryCriticalRate.Set(percentage)
	}
}

// RecordConflict counts a compare-and-swap conflict.
func (m *Metrics) RecordConflict(backend string) {
	if m == nil {
		return
	}
	m.HistoryConflicts.WithLabelValues(backend).Inc()
}

// RecordSync records a sync run.
func (m *Metrics) RecordSync(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.HistorySyncs.WithLabelValues("error").Inc()
		return
	}
	m.HistorySyncs.WithLabelValues("ok").Inc()
	m.LastSuccessfulSync.SetToCurrentTime()
}

// RecordStoreOp records store operation metrics.
func (m *Metrics) RecordStoreOp(backend, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.StoreOpDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	if err != nil {
		m.StoreOpErrors.WithLabelValues(backend, operation).Inc()
	}
}

// SetActiveSessions sets the live session gauge.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

// SetWebsocketClients sets the websocket client gauge.
func (m *Metrics) SetWebsocketClients(n int) {
	if m == nil {
		return
	}
	m.WebsocketClients.Set(float64(n))
}
