package domain

import "time"

// MovementRecord is one normalized inventory movement row.
// Created by the normalizer from a single raw spreadsheet row and never mutated afterwards.
type MovementRecord struct {
	ProjectID           string    // "Linha ATO", grouping key
	ParentLine          string    // "Linha MAE"
	SemiFinishedID      string    // "Semiacabado"
	Quantity            float64   // signed: positive = inflow, negative = outflow
	Timestamp           time.Time // wall clock, second precision, UTC location
	MovementCode        string    // "Código Movimento"
	MovementDescription string    // "Movimento"
	Area                string    // "Área"
	Direction           Direction // Entrada | Saída | unknown (single-file mode)

	// Calendar fields derived from Timestamp.
	Day     int          // day of month, 1-31
	Hour    int          // hour of day, 0-23
	Month   time.Month   // month
	Year    int          // year
	Weekday time.Weekday // weekday
	Date    Date         // calendar date
	DayHour string       // "<day>_<hour>"
}

// Magnitude returns the absolute quantity.
func (m *MovementRecord) Magnitude() float64 {
	if m.Quantity < 0 {
		return -m.Quantity
	}
	return m.Quantity
}

// Movement spreadsheet column names.
const (
	ColParentLine          = "Linha MAE"
	ColProjectID           = "Linha ATO"
	ColSemiFinished        = "Semiacabado"
	ColQuantity            = "Quantidade"
	ColTimestamp           = "Data Movimento"
	ColMovementCode        = "Código Movimento"
	ColMovementDescription = "Movimento"
	ColArea                = "Área"
	ColDirection           = "Tipo_Movimento"
)

// MovementColumns lists the columns every movement file must carry, in file order.
var MovementColumns = []string{
	ColParentLine,
	ColProjectID,
	ColSemiFinished,
	ColQuantity,
	ColTimestamp,
	ColMovementCode,
	ColMovementDescription,
	ColArea,
}
