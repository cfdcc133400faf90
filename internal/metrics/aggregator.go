// Package metrics holds the pure statistical reducers over movement datasets.
package metrics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"stock-movement-lab/internal/domain"
)

// GroupStats is the sum, mean and count of quantities in one group.
type GroupStats struct {
	Sum   float64
	Mean  float64
	Count int
}

// HourlyRow aggregates a project's quantities by hour of day.
type HourlyRow struct {
	ProjectID string
	Hour      int
	GroupStats
}

// DayOfMonthRow aggregates a project's quantities by day of month.
type DayOfMonthRow struct {
	ProjectID string
	Day       int
	GroupStats
}

// WeekdayRow aggregates a project's quantities by weekday.
type WeekdayRow struct {
	ProjectID string
	Weekday   time.Weekday
	Label     string // Portuguese weekday name
	GroupStats
}

// DayHourRow aggregates a project's quantities by (day of month, hour).
type DayHourRow struct {
	ProjectID string
	Day       int
	Hour      int
	Label     string // "<day>h<HH>"
	GroupStats
}

// DirectionRow aggregates a project's quantities per direction and bucket.
// Bucket is the hour of day or day of month depending on the reducer.
type DirectionRow struct {
	ProjectID   string
	Direction   domain.Direction
	Bucket      int
	Total       float64 // absolute for Saída
	SignedTotal float64
	Mean        float64 // absolute for Saída
	Count       int
}

// ProjectSummary holds per-project statistics.
type ProjectSummary struct {
	ProjectID string
	Total     float64
	Mean      float64
	Std       float64 // sample standard deviation, 0 when Count < 2
	Min       float64
	Max       float64
	Count     int
	First     time.Time
	Last      time.Time
	SpanDays  int // floor((Last-First)/24h) + 1
}

// Overview holds dataset-level figures.
type Overview struct {
	Records       int
	Projects      int
	SpanDays      int
	TotalQuantity float64
	Inflow        float64
	Outflow       float64 // absolute
}

var weekdayLabels = map[time.Weekday]string{
	time.Monday:    "Segunda",
	time.Tuesday:   "Terça",
	time.Wednesday: "Quarta",
	time.Thursday:  "Quinta",
	time.Friday:    "Sexta",
	time.Saturday:  "Sábado",
	time.Sunday:    "Domingo",
}

// WeekdayLabel returns the Portuguese name of w.
func WeekdayLabel(w time.Weekday) string {
	return weekdayLabels[w]
}

// weekdayRank orders Monday first and Sunday last.
func weekdayRank(w time.Weekday) int {
	return (int(w) + 6) % 7
}

// DayHourLabel formats the day+hour label, e.g. "5h09".
func DayHourLabel(day, hour int) string {
	return fmt.Sprintf("%dh%02d", day, hour)
}

type groupKey struct {
	project   string
	direction domain.Direction
	a, b      int
}

type accumulator struct {
	key   groupKey
	stats GroupStats
}

// group reduces records into accumulators keyed by keyFn, in first-seen order.
func group(ds *domain.Dataset, keyFn func(r *domain.MovementRecord) groupKey) []*accumulator {
	if ds == nil {
		return nil
	}
	index := make(map[groupKey]*accumulator)
	var out []*accumulator
	for _, r := range ds.Records {
		k := keyFn(r)
		acc, ok := index[k]
		if !ok {
			acc = &accumulator{key: k}
			index[k] = acc
			out = append(out, acc)
		}
		acc.stats.Sum += r.Quantity
		acc.stats.Count++
	}
	for _, acc := range out {
		acc.stats.Mean = acc.stats.Sum / float64(acc.stats.Count)
	}
	return out
}

// Hourly groups by (project, hour of day).
func Hourly(ds *domain.Dataset) []HourlyRow {
	groups := group(ds, func(r *domain.MovementRecord) groupKey {
		return groupKey{project: r.ProjectID, a: r.Hour}
	})
	rows := make([]HourlyRow, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, HourlyRow{ProjectID: g.key.project, Hour: g.key.a, GroupStats: g.stats})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ProjectID != rows[j].ProjectID {
			return rows[i].ProjectID < rows[j].ProjectID
		}
		return rows[i].Hour < rows[j].Hour
	})
	return rows
}

// DayOfMonth groups by (project, day of month).
func DayOfMonth(ds *domain.Dataset) []DayOfMonthRow {
	groups := group(ds, func(r *domain.MovementRecord) groupKey {
		return groupKey{project: r.ProjectID, a: r.Day}
	})
	rows := make([]DayOfMonthRow, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, DayOfMonthRow{ProjectID: g.key.project, Day: g.key.a, GroupStats: g.stats})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ProjectID != rows[j].ProjectID {
			return rows[i].ProjectID < rows[j].ProjectID
		}
		return rows[i].Day < rows[j].Day
	})
	return rows
}

// Weekday groups by (project, weekday), Monday through Sunday.
func Weekday(ds *domain.Dataset) []WeekdayRow {
	groups := group(ds, func(r *domain.MovementRecord) groupKey {
		return groupKey{project: r.ProjectID, a: int(r.Weekday)}
	})
	rows := make([]WeekdayRow, 0, len(groups))
	for _, g := range groups {
		w := time.Weekday(g.key.a)
		rows = append(rows, WeekdayRow{ProjectID: g.key.project, Weekday: w, Label: WeekdayLabel(w), GroupStats: g.stats})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ProjectID != rows[j].ProjectID {
			return rows[i].ProjectID < rows[j].ProjectID
		}
		return weekdayRank(rows[i].Weekday) < weekdayRank(rows[j].Weekday)
	})
	return rows
}

// DayHour groups by (project, day of month, hour).
func DayHour(ds *domain.Dataset) []DayHourRow {
	groups := group(ds, func(r *domain.MovementRecord) groupKey {
		return groupKey{project: r.ProjectID, a: r.Day, b: r.Hour}
	})
	rows := make([]DayHourRow, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, DayHourRow{
			ProjectID:  g.key.project,
			Day:        g.key.a,
			Hour:       g.key.b,
			Label:      DayHourLabel(g.key.a, g.key.b),
			GroupStats: g.stats,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ProjectID != rows[j].ProjectID {
			return rows[i].ProjectID < rows[j].ProjectID
		}
		if rows[i].Day != rows[j].Day {
			return rows[i].Day < rows[j].Day
		}
		return rows[i].Hour < rows[j].Hour
	})
	return rows
}

// HourlyByDirection groups by (project, direction, hour of day).
func HourlyByDirection(ds *domain.Dataset) []DirectionRow {
	return byDirection(ds, func(r *domain.MovementRecord) int { return r.Hour })
}

// DayOfMonthByDirection groups by (project, direction, day of month).
func DayOfMonthByDirection(ds *domain.Dataset) []DirectionRow {
	return byDirection(ds, func(r *domain.MovementRecord) int { return r.Day })
}

func byDirection(ds *domain.Dataset, bucket func(r *domain.MovementRecord) int) []DirectionRow {
	groups := group(ds, func(r *domain.MovementRecord) groupKey {
		return groupKey{project: r.ProjectID, direction: r.Direction, a: bucket(r)}
	})
	rows := make([]DirectionRow, 0, len(groups))
	for _, g := range groups {
		total, mean := g.stats.Sum, g.stats.Mean
		if g.key.direction.IsOutflow() {
			total, mean = math.Abs(total), math.Abs(mean)
		}
		rows = append(rows, DirectionRow{
			ProjectID:   g.key.project,
			Direction:   g.key.direction,
			Bucket:      g.key.a,
			Total:       total,
			SignedTotal: g.stats.Sum,
			Mean:        mean,
			Count:       g.stats.Count,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ProjectID != rows[j].ProjectID {
			return rows[i].ProjectID < rows[j].ProjectID
		}
		if rows[i].Direction != rows[j].Direction {
			return directionRank(rows[i].Direction) < directionRank(rows[j].Direction)
		}
		return rows[i].Bucket < rows[j].Bucket
	})
	return rows
}

func directionRank(d domain.Direction) int {
	switch d {
	case domain.DirectionEntrada:
		return 0
	case domain.DirectionSaida:
		return 1
	default:
		return 2
	}
}

// ProjectSummaries computes per-project statistics, ordered by project ID.
func ProjectSummaries(ds *domain.Dataset) []ProjectSummary {
	if ds == nil {
		return nil
	}
	byProject := make(map[string][]*domain.MovementRecord)
	for _, r := range ds.Records {
		byProject[r.ProjectID] = append(byProject[r.ProjectID], r)
	}

	out := make([]ProjectSummary, 0, len(byProject))
	for project, records := range byProject {
		values := make([]float64, len(records))
		first, last := records[0].Timestamp, records[0].Timestamp
		for i, r := range records {
			values[i] = r.Quantity
			if r.Timestamp.Before(first) {
				first = r.Timestamp
			}
			if r.Timestamp.After(last) {
				last = r.Timestamp
			}
		}
		mean := Mean(values)
		lo, hi := minMax(values)
		total := 0.0
		for _, v := range values {
			total += v
		}
		out = append(out, ProjectSummary{
			ProjectID: project,
			Total:     total,
			Mean:      mean,
			Std:       computeStddev(values, mean),
			Min:       lo,
			Max:       hi,
			Count:     len(values),
			First:     first,
			Last:      last,
			SpanDays:  SpanDays(first, last),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProjectID < out[j].ProjectID })
	return out
}

// SpanDays returns floor((last-first)/24h) + 1.
func SpanDays(first, last time.Time) int {
	return int(last.Sub(first)/(24*time.Hour)) + 1
}

// ComputeOverview computes dataset-level figures. Inflow and outflow follow the
// record direction when present, otherwise the quantity sign.
func ComputeOverview(ds *domain.Dataset) Overview {
	var ov Overview
	if ds.Len() == 0 {
		return ov
	}
	projects := make(map[string]struct{})
	first, last := ds.Records[0].Timestamp, ds.Records[0].Timestamp
	for _, r := range ds.Records {
		projects[r.ProjectID] = struct{}{}
		ov.TotalQuantity += r.Quantity
		switch {
		case r.Direction == domain.DirectionEntrada:
			ov.Inflow += r.Quantity
		case r.Direction == domain.DirectionSaida:
			ov.Outflow += math.Abs(r.Quantity)
		case r.Quantity >= 0:
			ov.Inflow += r.Quantity
		default:
			ov.Outflow += -r.Quantity
		}
		if r.Timestamp.Before(first) {
			first = r.Timestamp
		}
		if r.Timestamp.After(last) {
			last = r.Timestamp
		}
	}
	ov.Records = ds.Len()
	ov.Projects = len(projects)
	ov.SpanDays = SpanDays(first, last)
	return ov
}
