package domain

import "time"

// HourlyBucket is one hour-floored, quantity-summed slot of a project series.
// Derived per analysis request and never persisted.
type HourlyBucket struct {
	ProjectID   string    // project line
	Direction   Direction // empty when directions are not tracked
	Hour        time.Time // hour-floor timestamp
	Quantity    float64   // summed signed quantity
	RecordCount int       // number of records in the bucket
}

// PeakKind distinguishes local maxima from local minima.
type PeakKind string

// Peak kinds.
const (
	PeakHigh PeakKind = "high"
	PeakLow  PeakKind = "low"
)

// Label returns the display label used in peak tables.
func (k PeakKind) Label() string {
	if k == PeakLow {
		return "Pico Baixo"
	}
	return "Pico Alto"
}

// PeakPoint is a detected extremum in a bucket sequence.
type PeakPoint struct {
	ProjectID string    // project line
	Direction Direction // empty when directions are not tracked
	Kind      PeakKind  // high | low
	Index     int       // index into the bucket sequence
	Timestamp time.Time // bucket hour
	Value     float64   // bucket value; absolute magnitude for outflow series
}
