package storage

import (
	"sort"

	"stock-movement-lab/internal/domain"
)

// SortEntries orders entries by date ASC in place.
func SortEntries(entries []*domain.CriticalHistoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Date.Before(entries[j].Date)
	})
}

// MergeEntry returns series with e upserted by date, sorted by date.
// The input slice is not modified; entries are copied.
func MergeEntry(series []*domain.CriticalHistoryEntry, e *domain.CriticalHistoryEntry) []*domain.CriticalHistoryEntry {
	out := make([]*domain.CriticalHistoryEntry, 0, len(series)+1)
	replaced := false
	for _, existing := range series {
		if existing.Date == e.Date {
			c := *e
			out = append(out, &c)
			replaced = true
			continue
		}
		c := *existing
		out = append(out, &c)
	}
	if !replaced {
		c := *e
		out = append(out, &c)
	}
	SortEntries(out)
	return out
}

// FindEntry returns the entry for day, or nil.
func FindEntry(series []*domain.CriticalHistoryEntry, day domain.Date) *domain.CriticalHistoryEntry {
	for _, e := range series {
		if e.Date == day {
			return e
		}
	}
	return nil
}

// ValidateEntry checks the fields of e. Critical items cannot exceed the total.
func ValidateEntry(e *domain.CriticalHistoryEntry) error {
	if e == nil || e.Date.IsZero() || e.TotalItems < 0 || e.CriticalItems < 0 || e.CriticalItems > e.TotalItems {
		return ErrInvalidInput
	}
	return nil
}
