package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"stock-movement-lab/internal/domain"
)

// EncodeHistoryCSV writes entries as the history file: a header row
// "Data,Percentual,Total_Items,Items_Criticos" followed by one row per entry.
// Revisions are not part of the file.
func EncodeHistoryCSV(w io.Writer, entries []*domain.CriticalHistoryEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(domain.HistoryColumns); err != nil {
		return fmt.Errorf("write history header: %w", err)
	}
	for _, e := range entries {
		row := []string{
			e.Date.String(),
			strconv.FormatFloat(e.Percentage, 'f', -1, 64),
			strconv.Itoa(e.TotalItems),
			strconv.Itoa(e.CriticalItems),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write history row %s: %w", e.Date, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// DecodeHistoryCSV reads a history file. Columns are located by header name,
// so column order does not matter. Duplicate dates keep the last row.
// The result is sorted by date.
func DecodeHistoryCSV(r io.Reader) ([]*domain.CriticalHistoryEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history header: %w", err)
	}

	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, col := range domain.HistoryColumns {
		if _, ok := pos[col]; !ok {
			return nil, fmt.Errorf("%w: history file missing column %s", ErrInvalidInput, col)
		}
	}

	var series []*domain.CriticalHistoryEntry
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read history line %d: %w", line, err)
		}
		field := func(col string) string {
			i := pos[col]
			if i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		e, err := parseHistoryRow(field)
		if err != nil {
			return nil, fmt.Errorf("history line %d: %w", line, err)
		}
		series = MergeEntry(series, e)
	}
	return series, nil
}

func parseHistoryRow(field func(string) string) (*domain.CriticalHistoryEntry, error) {
	day, err := parseHistoryDate(field(domain.ColHistoryDate))
	if err != nil {
		return nil, err
	}
	total, err := strconv.Atoi(field(domain.ColHistoryTotal))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, domain.ColHistoryTotal, err)
	}
	critical, err := strconv.Atoi(field(domain.ColHistoryCritical))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, domain.ColHistoryCritical, err)
	}
	pct, err := strconv.ParseFloat(field(domain.ColHistoryPercentage), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, domain.ColHistoryPercentage, err)
	}
	return &domain.CriticalHistoryEntry{
		Date:          day,
		TotalItems:    total,
		CriticalItems: critical,
		Percentage:    pct,
	}, nil
}

// parseHistoryDate accepts YYYY-MM-DD, optionally followed by a time part.
func parseHistoryDate(s string) (domain.Date, error) {
	if len(s) > len(domain.DateLayout) {
		s = s[:len(domain.DateLayout)]
	}
	d, err := domain.ParseDate(s)
	if err != nil {
		return domain.Date{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return d, nil
}
