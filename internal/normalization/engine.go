// Package normalization turns raw movement tables into typed, ordered datasets.
package normalization

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"stock-movement-lab/internal/domain"
	"stock-movement-lab/internal/table"
)

// ErrEmptyResult is returned when no row survives parsing.
// It is a reported outcome, not a processing failure.
var ErrEmptyResult = errors.New("no rows left after normalization")

// Validate returns every required column absent from t, in required order.
func Validate(t *table.Table, required []string) []string {
	return t.Missing(required)
}

// Normalize parses a movement table into a Dataset.
//
// Timestamps are parsed with the first strategy under which at least one row parses;
// rows failing that strategy or the quantity parse are dropped.
// Returns *table.ValidationError when a required column is missing
// and ErrEmptyResult when nothing is left.
func Normalize(t *table.Table) (*domain.Dataset, error) {
	if err := table.Validate(t, domain.MovementColumns); err != nil {
		return nil, err
	}
	if t.Len() == 0 {
		return nil, ErrEmptyResult
	}

	strategy, ok := pickStrategy(t)
	ds := &domain.Dataset{
		InputRows:       t.Len(),
		TimestampColumn: domain.ColTimestamp,
	}
	if !ok {
		ds.DroppedRows = t.Len()
		return ds, fmt.Errorf("%w: no timestamp layout matched %d rows", ErrEmptyResult, t.Len())
	}
	ds.AcceptedLayout = strategy.name

	for i := range t.Rows {
		ts, ok := strategy.parse(t.Value(i, domain.ColTimestamp))
		if !ok {
			ds.DroppedRows++
			continue
		}
		qty, ok := ParseQuantity(t.Value(i, domain.ColQuantity))
		if !ok {
			ds.DroppedRows++
			continue
		}
		ds.Records = append(ds.Records, newRecord(t, i, ts, qty))
	}
	ds.KeptRows = len(ds.Records)

	if ds.KeptRows == 0 {
		return ds, ErrEmptyResult
	}
	SortRecords(ds.Records)
	return ds, nil
}

func pickStrategy(t *table.Table) (timestampStrategy, bool) {
	for _, st := range timestampStrategies {
		for i := range t.Rows {
			if _, ok := st.parse(t.Value(i, domain.ColTimestamp)); ok {
				return st, true
			}
		}
	}
	return timestampStrategy{}, false
}

func newRecord(t *table.Table, i int, ts time.Time, qty float64) *domain.MovementRecord {
	cell := func(col string) string { return strings.TrimSpace(t.Value(i, col)) }
	r := &domain.MovementRecord{
		ProjectID:           cell(domain.ColProjectID),
		ParentLine:          cell(domain.ColParentLine),
		SemiFinishedID:      cell(domain.ColSemiFinished),
		Quantity:            qty,
		Timestamp:           ts,
		MovementCode:        cell(domain.ColMovementCode),
		MovementDescription: cell(domain.ColMovementDescription),
		Area:                cell(domain.ColArea),
		Direction:           domain.ParseDirection(cell(domain.ColDirection)),
	}
	DeriveCalendar(r)
	return r
}

// DeriveCalendar fills the calendar fields of r from its timestamp.
func DeriveCalendar(r *domain.MovementRecord) {
	ts := r.Timestamp
	r.Day = ts.Day()
	r.Hour = ts.Hour()
	r.Month = ts.Month()
	r.Year = ts.Year()
	r.Weekday = ts.Weekday()
	r.Date = domain.DateOf(ts)
	r.DayHour = fmt.Sprintf("%d_%d", r.Day, r.Hour)
}
