package domain

import "sort"

// Dataset is a normalized, timestamp-ordered set of movement records.
type Dataset struct {
	Records []*MovementRecord

	InputRows   int // rows in the source table
	KeptRows    int // rows that parsed
	DroppedRows int // rows discarded on timestamp or quantity parse failure

	AcceptedLayout  string // timestamp strategy that was accepted
	TimestampColumn string // source timestamp column, empty when unknown
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Derive returns a dataset holding records with d's provenance fields.
func (d *Dataset) Derive(records []*MovementRecord) *Dataset {
	return &Dataset{
		Records:         records,
		InputRows:       d.InputRows,
		KeptRows:        d.KeptRows,
		DroppedRows:     d.DroppedRows,
		AcceptedLayout:  d.AcceptedLayout,
		TimestampColumn: d.TimestampColumn,
	}
}

// Projects returns the distinct project IDs in ascending order.
func (d *Dataset) Projects() []string {
	if d == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, r := range d.Records {
		if _, ok := seen[r.ProjectID]; ok {
			continue
		}
		seen[r.ProjectID] = struct{}{}
		out = append(out, r.ProjectID)
	}
	sort.Strings(out)
	return out
}

// HasDirections reports whether any record carries a direction.
func (d *Dataset) HasDirections() bool {
	if d == nil {
		return false
	}
	for _, r := range d.Records {
		if r.Direction != DirectionUnknown {
			return true
		}
	}
	return false
}
