package table

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ErrNoSheet is returned when the requested worksheet does not exist.
var ErrNoSheet = errors.New("worksheet not found")

// ReadExcel reads a worksheet from an .xlsx stream. An empty sheet name selects
// the first sheet. The first non-blank row is the header.
// Cells are read raw, so date cells arrive as Excel serial numbers.
func ReadExcel(r io.Reader, sheet string) (*Table, error) {
	f, err := excelize.OpenReader(r, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return readSheet(f, sheet)
}

// ReadExcelFile reads a worksheet from an .xlsx file on disk.
func ReadExcelFile(path, sheet string) (*Table, error) {
	f, err := excelize.OpenFile(path, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()
	return readSheet(f, sheet)
}

func readSheet(f *excelize.File, sheet string) (*Table, error) {
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrNoSheet
		}
		sheet = sheets[0]
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSheet, sheet)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}

	for i, row := range rows {
		if isBlank(row) {
			continue
		}
		return New(row, rows[i+1:]), nil
	}
	return &Table{}, nil
}
