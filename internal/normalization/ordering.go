package normalization

import (
	"sort"

	"stock-movement-lab/internal/domain"
)

// SortRecords orders records by timestamp ASC. The sort is stable,
// so records sharing a timestamp keep their input order.
func SortRecords(records []*domain.MovementRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
}
