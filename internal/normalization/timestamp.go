package normalization

import (
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Timestamp strategy names reported in Dataset.AcceptedLayout.
const (
	LayoutSeconds  = "dd/mm/yyyy HH:MM:SS"
	LayoutMinutes  = "dd/mm/yyyy HH:MM"
	LayoutFlexible = "flexible"
)

// flexibleLayouts is tried in order by the flexible strategy.
// Day-first layouts come before ISO ones so 03/04/2024 reads as 3 April.
var flexibleLayouts = []string{
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006",
	"02-01-2006 15:04:05",
	"02-01-2006 15:04",
	"02-01-2006",
	"02.01.2006 15:04:05",
	"02.01.2006",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.RFC3339Nano,
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
}

// Excel serial day numbers outside this range are not treated as dates.
const (
	minExcelSerial = 1.0
	maxExcelSerial = 2958465.0 // 9999-12-31
)

// The strict strategies accept day and month with or without a leading zero.
type timestampStrategy struct {
	name  string
	parse func(string) (time.Time, bool)
}

var timestampStrategies = []timestampStrategy{
	{name: LayoutSeconds, parse: layoutParser("2/1/2006 15:04:05")},
	{name: LayoutMinutes, parse: layoutParser("2/1/2006 15:04")},
	{name: LayoutFlexible, parse: parseFlexible},
}

func layoutParser(layout string) func(string) (time.Time, bool) {
	return func(s string) (time.Time, bool) {
		t, err := time.Parse(layout, strings.TrimSpace(s))
		if err != nil {
			return time.Time{}, false
		}
		return wallClock(t), true
	}
}

// parseFlexible accepts any of flexibleLayouts or an Excel serial date number.
func parseFlexible(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range flexibleLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return wallClock(t), true
		}
	}
	serial, err := strconv.ParseFloat(s, 64)
	if err != nil || serial < minExcelSerial || serial > maxExcelSerial {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	return wallClock(t), true
}

// wallClock keeps the clock reading of t, drops its zone and truncates to seconds.
func wallClock(t time.Time) time.Time {
	t = t.Round(time.Second)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// ParseTimestamp parses a single value with the same fallback order Normalize uses.
func ParseTimestamp(s string) (time.Time, bool) {
	for _, st := range timestampStrategies {
		if t, ok := st.parse(s); ok {
			return t, true
		}
	}
	return time.Time{}, false
}
