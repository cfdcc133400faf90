// Package table holds raw spreadsheet data before normalization.
package table

import (
	"fmt"
	"strings"
)

// Table is a raw tabular dataset: a header and rows keyed by column name.
// Cell values are kept as text; typing happens in the normalizer.
type Table struct {
	Header []string
	Rows   []map[string]string
}

// New builds a table from a header and positional rows.
// Header names are trimmed. Rows shorter than the header are padded with empty cells,
// extra cells are ignored, and fully blank rows are skipped.
func New(header []string, rows [][]string) *Table {
	t := &Table{Header: make([]string, len(header))}
	for i, h := range header {
		t.Header[i] = strings.TrimSpace(h)
	}
	for _, raw := range rows {
		if isBlank(raw) {
			continue
		}
		row := make(map[string]string, len(t.Header))
		for i, col := range t.Header {
			if col == "" {
				continue
			}
			if i < len(raw) {
				row[col] = raw[i]
			} else {
				row[col] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasColumn reports whether the header contains name.
func (t *Table) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	for _, h := range t.Header {
		if h == name {
			return true
		}
	}
	return false
}

// Missing returns every required column absent from the header, in required order.
func (t *Table) Missing(required []string) []string {
	var missing []string
	for _, col := range required {
		if !t.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	return missing
}

// Value returns the cell at row i, column name. Empty if the column is absent.
func (t *Table) Value(i int, name string) string {
	return t.Rows[i][name]
}

// ValidationError reports required columns missing from a table.
type ValidationError struct {
	Missing     []string     // absent required columns, in required order
	Found       []string     // header of the rejected table
	Suggestions []Suggestion // fuzzy matches for the missing columns
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// Validate checks t against required and returns a *ValidationError with
// suggestions when any column is missing.
func Validate(t *Table, required []string) error {
	missing := t.Missing(required)
	if len(missing) == 0 {
		return nil
	}
	var header []string
	if t != nil {
		header = append(header, t.Header...)
	}
	return &ValidationError{
		Missing:     missing,
		Found:       header,
		Suggestions: SuggestColumns(header, missing),
	}
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
