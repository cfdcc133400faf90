package reporting

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-movement-lab/internal/coverage"
	"stock-movement-lab/internal/domain"
	"stock-movement-lab/internal/metrics"
	"stock-movement-lab/internal/peaks"
	"stock-movement-lab/internal/pipeline"
	"stock-movement-lab/internal/table"
)

var fixedTime = time.Date(2024, 12, 18, 12, 0, 0, 0, time.UTC)

func setupAnalysis(t *testing.T) *pipeline.Analysis {
	t.Helper()
	rows := [][]string{
		{"MAE-1", "P", "SA-1", "10", "05/03/2024 08:00:00", "101", "Consumo", "Montagem"},
		{"MAE-1", "P", "SA-1", "12", "05/03/2024 09:00:00", "101", "Consumo", "Montagem"},
		{"MAE-1", "P", "SA-1", "2", "05/03/2024 10:00:00", "101", "Consumo", "Montagem"},
		{"MAE-1", "Q", "SA-1", "1", "05/03/2024 10:00:00", "101", "Consumo", "Montagem"},
		{"MAE-1", "Q", "SA-1", "1", "05/03/2024 10:10:00", "101", "Consumo", "Montagem"},
		{"MAE-1", "Q", "SA-1", "1", "05/03/2024 10:20:00", "101", "Consumo", "Montagem"},
	}
	logger, _ := test.NewNullLogger()
	a, err := pipeline.NewAnalyzer(peaks.DefaultOptions()).WithLogger(logger).Run(context.Background(), pipeline.Request{
		Movements: table.New(domain.MovementColumns, rows),
	})
	require.NoError(t, err)
	return a
}

func TestGenerate(t *testing.T) {
	a := setupAnalysis(t)
	history := []*domain.CriticalHistoryEntry{
		domain.NewCriticalHistoryEntry(domain.Date{Year: 2024, Month: time.December, Day: 18}, 3, 1),
	}

	r := NewGenerator().WithClock(func() time.Time { return fixedTime }).Generate(a, nil, history)

	assert.Equal(t, fixedTime, r.GeneratedAt)
	assert.Equal(t, "data", r.Outcome)
	assert.Equal(t, 6, r.DataSummary.InputRows)
	assert.Equal(t, []string{"P", "Q"}, r.DataSummary.Selected)
	require.Len(t, r.Peaks, 1)
	assert.Equal(t, "Pico Alto", r.Peaks[0].Label)
	assert.Nil(t, r.Coverage)
	assert.Len(t, r.History, 1)
}

func TestRenderMarkdown(t *testing.T) {
	a := setupAnalysis(t)
	cov := &pipeline.CoverageAnalysis{
		Outcome: pipeline.OutcomeData,
		Summary: coverage.Summary{
			TotalItems:      3,
			TotalCritical:   1,
			CriticalPercent: 100.0 / 3,
			CriticalByLine:  []coverage.Count{{Name: "L1", Count: 1}},
		},
		CriticalByLine: []coverage.LineMaterials{{
			Line:      "L1",
			Materials: []coverage.MaterialRow{{Material: "M1", Level: "Crítico"}},
		}},
	}
	history := []*domain.CriticalHistoryEntry{
		domain.NewCriticalHistoryEntry(domain.Date{Year: 2024, Month: time.December, Day: 18}, 3, 1),
	}

	md := RenderMarkdown(NewGenerator().WithClock(func() time.Time { return fixedTime }).Generate(a, cov, history))

	assert.True(t, strings.HasPrefix(md, "# Movement Analysis Report"))
	assert.Contains(t, md, "Generated: 2024-12-18T12:00:00Z")
	assert.Contains(t, md, "| 05/03/2024 09:00 | P |  | Pico Alto | 12.00 |")
	assert.Contains(t, md, "Critical items: 1 of 3 (33.33%)")
	assert.Contains(t, md, "| M1 | Crítico | - | - | - |")
	assert.Contains(t, md, "| 2024-12-18 | 33.33% | 3 | 1 |")
	assert.Contains(t, md, "Insufficient hourly data for peak detection: Q")
}

func TestRenderMarkdown_Empty(t *testing.T) {
	md := RenderMarkdown(NewGenerator().Generate(&pipeline.Analysis{Outcome: pipeline.OutcomeEmpty, Message: "nothing"}, nil, nil))
	assert.Contains(t, md, "Outcome: **empty**")
	assert.Contains(t, md, "> nothing")
	assert.Contains(t, md, "No peaks detected.")
	assert.Contains(t, md, "No history recorded.")
}

func TestFmt2(t *testing.T) {
	assert.Equal(t, "2.68", fmt2(2.675))
	assert.Equal(t, "-1.00", fmt2(-0.999))
	assert.Equal(t, "0.00", fmt2(0))
	assert.Equal(t, "-", fmtPtr2(nil))
}

func TestWriteCSV(t *testing.T) {
	var peaksCSV strings.Builder
	require.NoError(t, WritePeaksCSV(&peaksCSV, []PeakRow{{
		ProjectID: "P,1",
		Label:     "Pico Alto",
		Timestamp: time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC),
		Value:     12,
	}}))
	assert.Equal(t, "timestamp,project_id,direction,type,value\n"+
		"2024-03-05T09:00:00Z,\"P,1\",,Pico Alto,12.000000\n", peaksCSV.String())

	var summaryCSV strings.Builder
	require.NoError(t, WriteProjectSummaryCSV(&summaryCSV, []metrics.ProjectSummary{{ProjectID: "P", Total: 3, Count: 2, SpanDays: 1}}))
	lines := strings.Split(strings.TrimSpace(summaryCSV.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "P,3.000000,"))

	var hourlyCSV strings.Builder
	require.NoError(t, WriteHourlyCSV(&hourlyCSV, []metrics.HourlyRow{{ProjectID: "P", Hour: 9, GroupStats: metrics.GroupStats{Sum: 1, Mean: 1, Count: 1}}}))
	assert.Contains(t, hourlyCSV.String(), "P,9,1.000000,1.000000,1")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteCSV_PropagatesWriteErrors(t *testing.T) {
	rows := []metrics.HourlyRow{{ProjectID: "P", Hour: 9, GroupStats: metrics.GroupStats{Sum: 1, Mean: 1, Count: 1}}}
	err := WriteHourlyCSV(failingWriter{}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	assert.Error(t, WritePeaksCSV(failingWriter{}, nil))
	assert.Error(t, WriteProjectSummaryCSV(failingWriter{}, nil))
}
