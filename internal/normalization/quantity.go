package normalization

import (
	"math"
	"strconv"
	"strings"
)

// ParseQuantity parses plain decimal notation, ignoring surrounding whitespace.
// NaN, infinities, hex floats and digit separators are rejected.
func ParseQuantity(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "xX_pP") {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
