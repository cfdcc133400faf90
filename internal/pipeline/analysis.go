// Package pipeline runs the analysis boundary: raw tables in, one of three
// outcomes out. It never fails on bad input.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"stock-movement-lab/internal/domain"
	"stock-movement-lab/internal/filter"
	"stock-movement-lab/internal/metrics"
	"stock-movement-lab/internal/normalization"
	"stock-movement-lab/internal/observability"
	"stock-movement-lab/internal/peaks"
	"stock-movement-lab/internal/table"
)

// Outcome is the result class of an analysis.
type Outcome string

// Outcomes.
const (
	OutcomeData             Outcome = "data"
	OutcomeEmpty            Outcome = "empty"
	OutcomeValidationFailed Outcome = "validation_failed"
)

// DefaultProjectCount is how many projects are selected when the caller picks none.
const DefaultProjectCount = 5

// DefaultProjects returns the first DefaultProjectCount of the sorted projects.
func DefaultProjects(all []string) []string {
	if len(all) <= DefaultProjectCount {
		return append([]string(nil), all...)
	}
	return append([]string(nil), all[:DefaultProjectCount]...)
}

// Request describes one movement analysis.
//
// Either Movements (single-file mode) or Entries and/or Exits (directional
// mode) is set. A nil Projects selects DefaultProjects; a non-nil empty
// Projects is an explicit empty selection. Nil Start/End default to the
// dataset date bounds.
type Request struct {
	Movements *table.Table
	Entries   *table.Table
	Exits     *table.Table

	Projects []string
	Start    *domain.Date
	End      *domain.Date

	TrackDirection bool // forced on in directional mode
}

// Directional reports whether the request is in two-file mode.
func (r *Request) Directional() bool {
	return r.Entries != nil || r.Exits != nil
}

// Analysis is the result of one run.
type Analysis struct {
	Outcome    Outcome
	Message    string
	Validation *ValidationFailure
	Warnings   []string

	Dataset  *domain.Dataset // normalized, unfiltered
	Filtered *domain.Dataset
	Projects []string // every project of the dataset
	Selected []string
	Start    domain.Date
	End      domain.Date

	Overview              metrics.Overview
	ProjectSummaries      []metrics.ProjectSummary
	Hourly                []metrics.HourlyRow
	DayOfMonth            []metrics.DayOfMonthRow
	Weekday               []metrics.WeekdayRow
	DayHour               []metrics.DayHourRow
	HourlyByDirection     []metrics.DirectionRow
	DayOfMonthByDirection []metrics.DirectionRow
	Peaks                 *peaks.Result
	PeakSummary           []domain.PeakPoint
}

// ValidationFailure names the rejected input and what it lacked.
type ValidationFailure struct {
	Source string // "movements", "entries", "exits" or "coverage"
	*table.ValidationError
}

// Analyzer runs movement analyses.
type Analyzer struct {
	opts    peaks.Options
	metrics *observability.Metrics
	logger  logrus.FieldLogger
	clock   func() time.Time
}

// NewAnalyzer creates an analyzer with the given peak options.
func NewAnalyzer(opts peaks.Options) *Analyzer {
	return &Analyzer{
		opts:   opts,
		logger: logrus.StandardLogger(),
		clock:  time.Now,
	}
}

// WithMetrics sets the metrics sink.
func (a *Analyzer) WithMetrics(m *observability.Metrics) *Analyzer {
	a.metrics = m
	return a
}

// WithLogger sets the logger.
func (a *Analyzer) WithLogger(l logrus.FieldLogger) *Analyzer {
	if l != nil {
		a.logger = l
	}
	return a
}

// WithClock sets a custom clock function for deterministic durations.
func (a *Analyzer) WithClock(clock func() time.Time) *Analyzer {
	a.clock = clock
	return a
}

// Run executes the analysis. The returned error is non-nil only when ctx is done.
func (a *Analyzer) Run(ctx context.Context, req Request) (*Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := a.clock()
	res := a.run(req)

	rowsRead, rowsDropped := 0, 0
	if res.Dataset != nil {
		rowsRead, rowsDropped = res.Dataset.InputRows, res.Dataset.DroppedRows
	}
	a.metrics.RecordAnalysis(string(res.Outcome), a.clock().Sub(start), rowsRead, rowsDropped)
	if res.Peaks != nil {
		a.metrics.RecordPeaks(peaks.Counts(res.Peaks))
	}

	a.logger.WithFields(logrus.Fields{
		"module":   "pipeline",
		"op":       "analyze",
		"outcome":  res.Outcome,
		"rows":     rowsRead,
		"dropped":  rowsDropped,
		"selected": len(res.Selected),
	}).Info("analysis finished")
	return res, nil
}

func (a *Analyzer) run(req Request) *Analysis {
	ds, failed := a.load(req)
	if failed != nil {
		return failed
	}

	res := &Analysis{Outcome: OutcomeData, Dataset: ds, Projects: ds.Projects()}
	if ds.DroppedRows > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d of %d rows dropped on parse failure", ds.DroppedRows, ds.InputRows))
	}

	res.Selected = req.Projects
	if res.Selected == nil {
		res.Selected = DefaultProjects(res.Projects)
	}

	first, last, _ := filter.DateBounds(ds)
	res.Start, res.End = first, last
	if req.Start != nil {
		res.Start = *req.Start
	}
	if req.End != nil {
		res.End = *req.End
	}

	filtered, err := filter.Filter(ds, res.Selected, res.Start, res.End)
	if err != nil {
		res.Outcome = OutcomeEmpty
		res.Message = err.Error()
		return res
	}
	res.Filtered = filtered
	if filtered.Len() == 0 {
		res.Outcome = OutcomeEmpty
		res.Message = "no records match the selected projects and period"
		return res
	}

	opts := a.opts
	opts.TrackDirection = req.TrackDirection || req.Directional()

	res.Overview = metrics.ComputeOverview(filtered)
	res.ProjectSummaries = metrics.ProjectSummaries(filtered)
	res.Hourly = metrics.Hourly(filtered)
	res.DayOfMonth = metrics.DayOfMonth(filtered)
	res.Weekday = metrics.Weekday(filtered)
	res.DayHour = metrics.DayHour(filtered)
	if filtered.HasDirections() {
		res.HourlyByDirection = metrics.HourlyByDirection(filtered)
		res.DayOfMonthByDirection = metrics.DayOfMonthByDirection(filtered)
	}
	res.Peaks = peaks.Detect(filtered, opts)
	res.PeakSummary = peaks.Summary(res.Peaks)
	return res
}

// load normalizes the request tables. On failure it returns the terminal analysis.
func (a *Analyzer) load(req Request) (*domain.Dataset, *Analysis) {
	if !req.Directional() {
		if req.Movements == nil {
			return nil, &Analysis{Outcome: OutcomeEmpty, Message: "no movement data loaded"}
		}
		return normalizeOne("movements", req.Movements)
	}

	var entries, exits *domain.Dataset
	var emptyMsg []string
	for _, in := range []struct {
		source string
		t      *table.Table
		dst    **domain.Dataset
	}{
		{"entries", req.Entries, &entries},
		{"exits", req.Exits, &exits},
	} {
		if in.t == nil {
			continue
		}
		ds, failed := normalizeOne(in.source, in.t)
		if failed != nil {
			if failed.Outcome == OutcomeValidationFailed {
				return nil, failed
			}
			emptyMsg = append(emptyMsg, failed.Message)
			*in.dst = failed.Dataset
			continue
		}
		*in.dst = ds
	}

	merged := normalization.MergeDirections(entries, exits)
	if merged.Len() == 0 {
		return nil, &Analysis{Outcome: OutcomeEmpty, Dataset: merged, Message: strings.Join(emptyMsg, "; ")}
	}
	return merged, nil
}

func normalizeOne(source string, t *table.Table) (*domain.Dataset, *Analysis) {
	ds, err := normalization.Normalize(t)
	if err == nil {
		return ds, nil
	}
	var verr *table.ValidationError
	if errors.As(err, &verr) {
		return nil, &Analysis{
			Outcome:    OutcomeValidationFailed,
			Message:    fmt.Sprintf("%s: %s", source, verr.Error()),
			Validation: &ValidationFailure{Source: source, ValidationError: verr},
		}
	}
	return nil, &Analysis{Outcome: OutcomeEmpty, Dataset: ds, Message: fmt.Sprintf("%s: %s", source, err.Error())}
}
