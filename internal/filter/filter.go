// Package filter restricts normalized datasets to a project subset and date range.
package filter

import (
	"errors"

	"stock-movement-lab/internal/domain"
)

// ErrNoDateColumn is returned when the dataset has no recognized timestamp column.
var ErrNoDateColumn = errors.New("dataset has no date column")

// Filter returns the records whose project is in projects and whose date lies
// in [start, end]. Record order is preserved and the input is not modified.
// An empty project set or start after end yields an empty dataset.
func Filter(ds *domain.Dataset, projects []string, start, end domain.Date) (*domain.Dataset, error) {
	if ds == nil || ds.TimestampColumn == "" {
		return nil, ErrNoDateColumn
	}

	out := ds.Derive(nil)
	if len(projects) == 0 || start.After(end) {
		return out, nil
	}

	selected := make(map[string]struct{}, len(projects))
	for _, p := range projects {
		selected[p] = struct{}{}
	}

	for _, r := range ds.Records {
		if _, ok := selected[r.ProjectID]; !ok {
			continue
		}
		if r.Date.Before(start) || r.Date.After(end) {
			continue
		}
		out.Records = append(out.Records, r)
	}
	return out, nil
}

// DateBounds returns the first and last record dates. ok is false for an empty dataset.
func DateBounds(ds *domain.Dataset) (first, last domain.Date, ok bool) {
	if ds.Len() == 0 {
		return domain.Date{}, domain.Date{}, false
	}
	first, last = ds.Records[0].Date, ds.Records[0].Date
	for _, r := range ds.Records[1:] {
		if r.Date.Before(first) {
			first = r.Date
		}
		if r.Date.After(last) {
			last = r.Date
		}
	}
	return first, last, true
}
