package reporting

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"stock-movement-lab/internal/metrics"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func writeRows(out io.Writer, header []string, rows [][]string) error {
	w := csv.NewWriter(out)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}

// WritePeaksCSV writes the peak table as CSV.
func WritePeaksCSV(out io.Writer, peaks []PeakRow) error {
	rows := make([][]string, 0, len(peaks))
	for _, p := range peaks {
		rows = append(rows, []string{
			p.Timestamp.Format(time.RFC3339),
			p.ProjectID,
			p.Direction,
			p.Label,
			formatFloat(p.Value),
		})
	}
	return writeRows(out, []string{"timestamp", "project_id", "direction", "type", "value"}, rows)
}

// WriteProjectSummaryCSV writes per-project statistics as CSV.
func WriteProjectSummaryCSV(out io.Writer, summaries []metrics.ProjectSummary) error {
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			s.ProjectID,
			formatFloat(s.Total),
			formatFloat(s.Mean),
			formatFloat(s.Std),
			formatFloat(s.Min),
			formatFloat(s.Max),
			strconv.Itoa(s.Count),
			s.First.Format(time.RFC3339),
			s.Last.Format(time.RFC3339),
			strconv.Itoa(s.SpanDays),
		})
	}
	return writeRows(out, []string{
		"project_id", "total", "mean", "std", "min", "max", "count", "first", "last", "span_days",
	}, rows)
}

// WriteHourlyCSV writes the hourly aggregation as CSV.
func WriteHourlyCSV(out io.Writer, hourly []metrics.HourlyRow) error {
	rows := make([][]string, 0, len(hourly))
	for _, h := range hourly {
		rows = append(rows, []string{
			h.ProjectID,
			strconv.Itoa(h.Hour),
			formatFloat(h.Sum),
			formatFloat(h.Mean),
			strconv.Itoa(h.Count),
		})
	}
	return writeRows(out, []string{"project_id", "hour", "sum", "mean", "count"}, rows)
}
