package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_RecordAnalysis(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordAnalysis("data", 200*time.Millisecond, 10, 2)
	m.RecordAnalysis("empty", time.Millisecond, 3, 3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalysesTotal.WithLabelValues("data")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalysesTotal.WithLabelValues("empty")))
	assert.Equal(t, 13.0, testutil.ToFloat64(m.RowsRead))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.RowsDropped))
	assert.Greater(t, testutil.ToFloat64(m.LastSuccessfulAnalysis), 0.0)
}

func TestMetrics_RecordHistory(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordHistory("durable", 25)
	m.RecordHistory("local", 50)
	m.RecordHistory("none", 99)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HistoryDegraded))
	assert.Equal(t, 50.0, testutil.ToFloat64(m.HistoryCriticalRate))
}

func TestMetrics_RecordStoreOpAndSync(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordStoreOp("postgres", "upsert", time.Millisecond, nil)
	m.RecordStoreOp("postgres", "upsert", time.Millisecond, errors.New("boom"))
	m.RecordSync(nil)
	m.RecordSync(errors.New("down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreOpErrors.WithLabelValues("postgres", "upsert")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HistorySyncs.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HistorySyncs.WithLabelValues("error")))
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordAnalysis("data", time.Second, 1, 0)
		m.RecordPeaks(1, 1)
		m.RecordConflict("gcs")
		m.SetActiveSessions(3)
	})
}
