package reporting

import (
	"fmt"
	"sort"
	"time"

	"stock-movement-lab/internal/domain"
	"stock-movement-lab/internal/metrics"
	"stock-movement-lab/internal/pipeline"
)

// busiestHoursLimit caps the busiest-hours table.
const busiestHoursLimit = 10

// Generator builds reports from analysis results.
type Generator struct {
	now func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator() *Generator {
	return &Generator{now: func() time.Time { return time.Now().UTC() }}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds a report. cov and history may be nil.
func (g *Generator) Generate(a *pipeline.Analysis, cov *pipeline.CoverageAnalysis, history []*domain.CriticalHistoryEntry) *Report {
	r := &Report{GeneratedAt: g.now(), History: history}
	if a != nil {
		r.Outcome = string(a.Outcome)
		r.Message = a.Message
		r.Warnings = append(r.Warnings, a.Warnings...)
		r.DataSummary = dataSummary(a)
		r.Overview = a.Overview
		r.ProjectSummaries = a.ProjectSummaries
		r.Peaks = peakRows(a.PeakSummary)
		r.BusiestHours = busiestHours(a.Hourly)
		r.Weekdays = a.Weekday
		if a.Peaks != nil {
			for _, s := range a.Peaks.Series {
				if s.Insufficient {
					r.Insufficient = append(r.Insufficient, seriesName(s.ProjectID, s.Direction))
				}
			}
		}
	}
	if cov != nil && cov.Outcome == pipeline.OutcomeData {
		r.Coverage = &CoverageSection{
			Summary:        cov.Summary,
			LevelCounts:    cov.LevelCounts,
			CriticalByLine: cov.CriticalByLine,
			HistoryDurable: cov.History != nil && cov.History.Durable,
		}
		r.Warnings = append(r.Warnings, cov.Warnings...)
	}
	return r
}

func dataSummary(a *pipeline.Analysis) DataSummary {
	ds := DataSummary{
		Projects: a.Projects,
		Selected: a.Selected,
		Start:    a.Start,
		End:      a.End,
	}
	if a.Dataset != nil {
		ds.InputRows = a.Dataset.InputRows
		ds.KeptRows = a.Dataset.KeptRows
		ds.DroppedRows = a.Dataset.DroppedRows
		ds.AcceptedLayout = a.Dataset.AcceptedLayout
	}
	return ds
}

func peakRows(points []domain.PeakPoint) []PeakRow {
	rows := make([]PeakRow, 0, len(points))
	for _, p := range points {
		rows = append(rows, PeakRow{
			ProjectID: p.ProjectID,
			Direction: string(p.Direction),
			Label:     p.Kind.Label(),
			Timestamp: p.Timestamp,
			Value:     p.Value,
		})
	}
	return rows
}

// busiestHours returns the hourly rows with the largest absolute sums.
func busiestHours(rows []metrics.HourlyRow) []metrics.HourlyRow {
	out := append([]metrics.HourlyRow(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool {
		return abs(out[i].Sum) > abs(out[j].Sum)
	})
	if len(out) > busiestHoursLimit {
		out = out[:busiestHoursLimit]
	}
	return out
}

func seriesName(project string, dir domain.Direction) string {
	if dir == domain.DirectionUnknown {
		return project
	}
	return fmt.Sprintf("%s %s", project, dir)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
