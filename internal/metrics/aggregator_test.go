package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-movement-lab/internal/domain"
)

// Helper to create a record with calendar fields derived from ts.
func makeRecord(project string, ts time.Time, qty float64, dir domain.Direction) *domain.MovementRecord {
	return &domain.MovementRecord{
		ProjectID: project,
		Quantity:  qty,
		Timestamp: ts,
		Direction: dir,
		Day:       ts.Day(),
		Hour:      ts.Hour(),
		Month:     ts.Month(),
		Year:      ts.Year(),
		Weekday:   ts.Weekday(),
		Date:      domain.DateOf(ts),
	}
}

func at(day, hour int) time.Time {
	// January 2024: the 1st is a Monday
	return time.Date(2024, 1, day, hour, 0, 0, 0, time.UTC)
}

func dataset(records ...*domain.MovementRecord) *domain.Dataset {
	return &domain.Dataset{Records: records, TimestampColumn: domain.ColTimestamp}
}

func TestHourly(t *testing.T) {
	ds := dataset(
		makeRecord("B", at(1, 8), 4, ""),
		makeRecord("A", at(1, 9), 2, ""),
		makeRecord("A", at(2, 9), 4, ""),
		makeRecord("A", at(2, 7), 1, ""),
	)

	rows := Hourly(ds)
	require.Len(t, rows, 3)
	assert.Equal(t, HourlyRow{ProjectID: "A", Hour: 7, GroupStats: GroupStats{Sum: 1, Mean: 1, Count: 1}}, rows[0])
	assert.Equal(t, HourlyRow{ProjectID: "A", Hour: 9, GroupStats: GroupStats{Sum: 6, Mean: 3, Count: 2}}, rows[1])
	assert.Equal(t, "B", rows[2].ProjectID)
}

func TestDayOfMonth(t *testing.T) {
	ds := dataset(
		makeRecord("A", at(3, 8), 5, ""),
		makeRecord("A", at(3, 20), -1, ""),
		makeRecord("A", at(1, 8), 2, ""),
	)

	rows := DayOfMonth(ds)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Day)
	assert.Equal(t, 3, rows[1].Day)
	assert.Equal(t, 4.0, rows[1].Sum)
	assert.Equal(t, 2.0, rows[1].Mean)
}

func TestWeekday_MondayFirst(t *testing.T) {
	ds := dataset(
		makeRecord("A", at(7, 8), 1, ""), // Sunday
		makeRecord("A", at(3, 8), 1, ""), // Wednesday
		makeRecord("A", at(1, 8), 1, ""), // Monday
		makeRecord("A", at(6, 8), 1, ""), // Saturday
	)

	rows := Weekday(ds)
	var labels []string
	for _, r := range rows {
		labels = append(labels, r.Label)
	}
	assert.Equal(t, []string{"Segunda", "Quarta", "Sábado", "Domingo"}, labels)
}

func TestDayHour_Label(t *testing.T) {
	ds := dataset(
		makeRecord("A", at(5, 9), 1, ""),
		makeRecord("A", at(5, 14), 2, ""),
		makeRecord("A", at(5, 9), 3, ""),
	)

	rows := DayHour(ds)
	require.Len(t, rows, 2)
	assert.Equal(t, "5h09", rows[0].Label)
	assert.Equal(t, 4.0, rows[0].Sum)
	assert.Equal(t, "5h14", rows[1].Label)
}

func TestHourlyByDirection(t *testing.T) {
	ds := dataset(
		makeRecord("A", at(1, 8), -3, domain.DirectionSaida),
		makeRecord("A", at(2, 8), -2, domain.DirectionSaida),
		makeRecord("A", at(1, 8), 10, domain.DirectionEntrada),
	)

	rows := HourlyByDirection(ds)
	require.Len(t, rows, 2)
	assert.Equal(t, domain.DirectionEntrada, rows[0].Direction)
	assert.Equal(t, 10.0, rows[0].Total)
	assert.Equal(t, 10.0, rows[0].Mean)

	assert.Equal(t, domain.DirectionSaida, rows[1].Direction)
	assert.Equal(t, 5.0, rows[1].Total)
	assert.Equal(t, -5.0, rows[1].SignedTotal)
	assert.Equal(t, 2.5, rows[1].Mean)
	assert.Equal(t, 2, rows[1].Count)
}

func TestDayOfMonthByDirection(t *testing.T) {
	ds := dataset(
		makeRecord("A", at(2, 8), -3, domain.DirectionSaida),
		makeRecord("A", at(1, 9), -2, domain.DirectionSaida),
	)

	rows := DayOfMonthByDirection(ds)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Bucket)
	assert.Equal(t, 2.0, rows[0].Total)
	assert.Equal(t, 2.0, rows[0].Mean)
	assert.Equal(t, 2, rows[1].Bucket)
	assert.Equal(t, 3.0, rows[1].Mean)
	assert.Equal(t, -3.0, rows[1].SignedTotal)
}

func TestProjectSummaries(t *testing.T) {
	ds := dataset(
		makeRecord("A", at(1, 8), 2, ""),
		makeRecord("A", at(1, 9), 4, ""),
		makeRecord("A", at(3, 7), 6, ""),
		makeRecord("B", at(2, 8), 5, ""),
	)

	got := ProjectSummaries(ds)
	require.Len(t, got, 2)

	a := got[0]
	assert.Equal(t, "A", a.ProjectID)
	assert.Equal(t, 12.0, a.Total)
	assert.Equal(t, 4.0, a.Mean)
	assert.Equal(t, 2.0, a.Std)
	assert.Equal(t, 2.0, a.Min)
	assert.Equal(t, 6.0, a.Max)
	assert.Equal(t, 3, a.Count)
	assert.Equal(t, at(1, 8), a.First)
	assert.Equal(t, at(3, 7), a.Last)
	// 47h apart -> floor(1.96) + 1
	assert.Equal(t, 2, a.SpanDays)

	b := got[1]
	assert.Equal(t, 0.0, b.Std)
	assert.Equal(t, 1, b.SpanDays)
}

func TestComputeOverview(t *testing.T) {
	ds := dataset(
		makeRecord("A", at(1, 8), 10, domain.DirectionEntrada),
		makeRecord("A", at(2, 8), -4, domain.DirectionSaida),
		makeRecord("B", at(3, 9), 3, ""),
		makeRecord("B", at(3, 10), -1, ""),
	)

	ov := ComputeOverview(ds)
	assert.Equal(t, 4, ov.Records)
	assert.Equal(t, 2, ov.Projects)
	assert.Equal(t, 3, ov.SpanDays)
	assert.Equal(t, 8.0, ov.TotalQuantity)
	assert.Equal(t, 13.0, ov.Inflow)
	assert.Equal(t, 5.0, ov.Outflow)

	assert.Equal(t, Overview{}, ComputeOverview(dataset()))
}

func TestAggregators_EmptyDataset(t *testing.T) {
	assert.Empty(t, Hourly(nil))
	assert.Empty(t, Weekday(dataset()))
	assert.Empty(t, ProjectSummaries(dataset()))
}

func TestSpanDays(t *testing.T) {
	start := at(1, 0)
	assert.Equal(t, 1, SpanDays(start, start))
	assert.Equal(t, 1, SpanDays(start, start.Add(23*time.Hour)))
	assert.Equal(t, 2, SpanDays(start, start.Add(24*time.Hour)))
}
