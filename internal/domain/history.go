package domain

// CriticalHistoryEntry is one day of the critical-item time series.
// Date is the unique key: a new observation on an existing date overwrites it.
type CriticalHistoryEntry struct {
	Date          Date    // calendar day, unique key
	TotalItems    int     // coverage rows observed that day
	CriticalItems int     // rows classified critical
	Percentage    float64 // CriticalItems / TotalItems * 100, 0 when TotalItems == 0
	Revision      int64   // store revision, bumped on every write
}

// NewCriticalHistoryEntry builds an entry and computes its percentage.
func NewCriticalHistoryEntry(day Date, total, critical int) *CriticalHistoryEntry {
	return &CriticalHistoryEntry{
		Date:          day,
		TotalItems:    total,
		CriticalItems: critical,
		Percentage:    CriticalPercentage(total, critical),
	}
}

// CriticalPercentage returns critical/total*100, or 0 when total is 0.
func CriticalPercentage(total, critical int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(critical) / float64(total) * 100
}

// SameValues reports whether two entries carry the same observation, ignoring Revision.
func (e *CriticalHistoryEntry) SameValues(o *CriticalHistoryEntry) bool {
	return e.Date == o.Date &&
		e.TotalItems == o.TotalItems &&
		e.CriticalItems == o.CriticalItems &&
		e.Percentage == o.Percentage
}

// History file column names.
const (
	ColHistoryDate       = "Data"
	ColHistoryPercentage = "Percentual"
	ColHistoryTotal      = "Total_Items"
	ColHistoryCritical   = "Items_Criticos"
)

// HistoryColumns is the column order of the persisted history file.
var HistoryColumns = []string{
	ColHistoryDate,
	ColHistoryPercentage,
	ColHistoryTotal,
	ColHistoryCritical,
}
