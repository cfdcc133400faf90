package reporting

import (
	"time"

	"stock-movement-lab/internal/coverage"
	"stock-movement-lab/internal/domain"
	"stock-movement-lab/internal/metrics"
)

// Report is the rendered view of one analysis run.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	Outcome     string
	Message     string
	Warnings    []string

	// Data Summary
	DataSummary DataSummary
	Overview    metrics.Overview

	// Movement analytics
	ProjectSummaries []metrics.ProjectSummary
	Peaks            []PeakRow
	Insufficient     []string // "<project> <direction>" series with too few buckets
	BusiestHours     []metrics.HourlyRow
	Weekdays         []metrics.WeekdayRow

	// Coverage (nil when no coverage file was processed)
	Coverage *CoverageSection

	// History series, date ASC
	History []*domain.CriticalHistoryEntry
}

// DataSummary describes the input and the applied filter.
type DataSummary struct {
	InputRows      int
	KeptRows       int
	DroppedRows    int
	AcceptedLayout string
	Projects       []string
	Selected       []string
	Start          domain.Date
	End            domain.Date
}

// PeakRow is one row of the peak table.
type PeakRow struct {
	ProjectID string
	Direction string
	Label     string // "Pico Alto" | "Pico Baixo"
	Timestamp time.Time
	Value     float64
}

// CoverageSection summarizes a coverage snapshot.
type CoverageSection struct {
	Summary        coverage.Summary
	LevelCounts    []coverage.Count
	CriticalByLine []coverage.LineMaterials
	HistoryDurable bool
}
