package normalization

import (
	"math"

	"stock-movement-lab/internal/domain"
)

// MergeDirections combines an entries dataset and an exits dataset.
// Entries are tagged Entrada with quantity unchanged; exits are tagged Saída
// with quantity forced to -abs(q). The result is re-sorted by timestamp.
// Either input may be nil.
func MergeDirections(entries, exits *domain.Dataset) *domain.Dataset {
	merged := &domain.Dataset{TimestampColumn: domain.ColTimestamp}

	add := func(ds *domain.Dataset, dir domain.Direction) {
		if ds == nil {
			return
		}
		merged.InputRows += ds.InputRows
		merged.KeptRows += ds.KeptRows
		merged.DroppedRows += ds.DroppedRows
		if merged.AcceptedLayout == "" {
			merged.AcceptedLayout = ds.AcceptedLayout
		} else if ds.AcceptedLayout != "" && ds.AcceptedLayout != merged.AcceptedLayout {
			merged.AcceptedLayout += "+" + ds.AcceptedLayout
		}
		for _, r := range ds.Records {
			c := *r
			c.Direction = dir
			if dir == domain.DirectionSaida {
				c.Quantity = -math.Abs(r.Quantity)
			}
			merged.Records = append(merged.Records, &c)
		}
	}

	add(entries, domain.DirectionEntrada)
	add(exits, domain.DirectionSaida)
	SortRecords(merged.Records)
	return merged
}
