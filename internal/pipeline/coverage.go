package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"stock-movement-lab/internal/coverage"
	"stock-movement-lab/internal/domain"
	"stock-movement-lab/internal/history"
	"stock-movement-lab/internal/table"
)

// CoverageAnalysis is the result of processing a coverage table.
type CoverageAnalysis struct {
	Outcome    Outcome
	Message    string
	Validation *ValidationFailure
	Warnings   []string

	Snapshot       *coverage.Snapshot
	Summary        coverage.Summary
	LevelCounts    []coverage.Count
	CriticalByLine []coverage.LineMaterials

	Day     domain.Date
	History *history.Result // nil when no tracker is configured or nothing was recorded
}

// CoverageProcessor classifies coverage tables and records the daily history.
type CoverageProcessor struct {
	classifier coverage.Classifier
	tracker    *history.Tracker // optional
	logger     logrus.FieldLogger
	clock      func() time.Time
}

// NewCoverageProcessor creates a processor. tracker may be nil.
func NewCoverageProcessor(c coverage.Classifier, tracker *history.Tracker) *CoverageProcessor {
	return &CoverageProcessor{
		classifier: c,
		tracker:    tracker,
		logger:     logrus.StandardLogger(),
		clock:      time.Now,
	}
}

// WithLogger sets the logger.
func (p *CoverageProcessor) WithLogger(l logrus.FieldLogger) *CoverageProcessor {
	if l != nil {
		p.logger = l
	}
	return p
}

// WithClock sets the clock that dates the snapshot.
func (p *CoverageProcessor) WithClock(clock func() time.Time) *CoverageProcessor {
	p.clock = clock
	return p
}

// Process classifies t and, when record is set and a tracker exists, records
// today's history entry. The returned error is non-nil only when ctx is done.
func (p *CoverageProcessor) Process(ctx context.Context, t *table.Table, record bool) (*CoverageAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := p.logger.WithFields(logrus.Fields{"module": "pipeline", "op": "coverage"})

	now := p.clock()
	res := &CoverageAnalysis{Day: domain.DateOf(now)}

	snap, err := coverage.Process(t, now)
	if err != nil {
		var verr *table.ValidationError
		if errors.As(err, &verr) {
			res.Outcome = OutcomeValidationFailed
			res.Message = "coverage: " + verr.Error()
			res.Validation = &ValidationFailure{Source: "coverage", ValidationError: verr}
			return res, nil
		}
		res.Outcome = OutcomeEmpty
		res.Message = err.Error()
		return res, nil
	}
	res.Snapshot = snap
	if len(snap.Records) == 0 {
		res.Outcome = OutcomeEmpty
		res.Message = "coverage file has no rows"
		return res, nil
	}

	res.Outcome = OutcomeData
	res.Summary = coverage.Summarize(snap, p.classifier)
	res.LevelCounts = coverage.LevelCounts(snap)
	res.CriticalByLine = coverage.CriticalMaterialsByLine(snap, p.classifier)
	if !res.Summary.ClassificationOK {
		res.Summary.LogDivergence(log)
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"summary counts %d critical items, history counts %d (low-level rows are only excluded from the summary)",
			res.Summary.TotalCritical, res.Summary.HistoryCritical))
	}

	if !record || p.tracker == nil {
		return res, nil
	}
	total, critical := coverage.HistoryCounts(snap, p.classifier)
	hist, err := p.tracker.Record(ctx, res.Day, total, critical)
	res.History = hist
	if hist != nil {
		res.Warnings = append(res.Warnings, hist.Warnings...)
	}
	if err != nil {
		log.WithError(err).Error("critical history not persisted")
		res.Warnings = append(res.Warnings, err.Error())
	}
	return res, nil
}
