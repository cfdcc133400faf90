package domain

import "strings"

// Direction is the movement direction of a record.
type Direction string

// Direction constants. DirectionUnknown is used for single-file datasets
// where inflow and outflow are not tracked separately.
const (
	DirectionUnknown Direction = ""
	DirectionEntrada Direction = "Entrada"
	DirectionSaida   Direction = "Saída"
)

// Directions lists the tracked directions in display order.
var Directions = []Direction{DirectionEntrada, DirectionSaida}

// IsOutflow reports whether d is the outflow direction.
func (d Direction) IsOutflow() bool {
	return d == DirectionSaida
}

// ParseDirection maps free text ("entrada", "SAIDA", "Saída") to a Direction.
func ParseDirection(s string) Direction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "entrada":
		return DirectionEntrada
	case "saída", "saida":
		return DirectionSaida
	default:
		return DirectionUnknown
	}
}
