// Package export writes analysis results to .xlsx workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"stock-movement-lab/internal/domain"
	"stock-movement-lab/internal/metrics"
	"stock-movement-lab/internal/pipeline"
)

// Sheet names.
const (
	SheetFiltered = "Dados Filtrados"
	SheetSummary  = "Resumo por Projeto"
	SheetPeaks    = "Picos Detectados"
)

// TimestampLayout is the text layout of timestamp cells.
const TimestampLayout = "02/01/2006 15:04:05"

// ContentType is the MIME type of the workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Derived columns appended to the filtered data sheet.
const (
	colHour    = "Hora"
	colDay     = "Dia"
	colWeekday = "Dia_Semana"
	colDate    = "Data"
)

// Build creates the workbook for a. The peaks sheet exists only when peaks were found.
// The caller closes the returned file.
func Build(a *pipeline.Analysis) (*excelize.File, error) {
	if a == nil || a.Filtered == nil {
		return nil, fmt.Errorf("build workbook: no analysis data")
	}
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetFiltered); err != nil {
		f.Close()
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}

	w := &sheetWriter{f: f, bold: bold}
	w.filtered(a.Filtered)
	w.summary(a)
	if len(a.PeakSummary) > 0 {
		w.peaks(a.PeakSummary)
	}
	if w.err != nil {
		f.Close()
		return nil, w.err
	}
	return f, nil
}

// Write builds the workbook and writes it to out.
func Write(out io.Writer, a *pipeline.Analysis) error {
	f, err := Build(a)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Save builds the workbook and saves it at path.
func Save(path string, a *pipeline.Analysis) error {
	f, err := Build(a)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

// sheetWriter keeps the first error so sheet code reads linearly.
type sheetWriter struct {
	f    *excelize.File
	bold int
	err  error
}

func (w *sheetWriter) row(sheet string, n int, values []interface{}) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetSheetRow(sheet, cell, &values)
}

func (w *sheetWriter) header(sheet string, cols []string) {
	values := make([]interface{}, len(cols))
	for i, c := range cols {
		values[i] = c
	}
	w.row(sheet, 1, values)
	if w.err != nil {
		return
	}
	last, err := excelize.CoordinatesToCellName(len(cols), 1)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetCellStyle(sheet, "A1", last, w.bold)
}

func (w *sheetWriter) newSheet(name string) {
	if w.err != nil {
		return
	}
	_, w.err = w.f.NewSheet(name)
}

func (w *sheetWriter) filtered(ds *domain.Dataset) {
	cols := append([]string{}, domain.MovementColumns...)
	directional := ds.HasDirections()
	if directional {
		cols = append(cols, domain.ColDirection)
	}
	cols = append(cols, colHour, colDay, colWeekday, colDate)
	w.header(SheetFiltered, cols)

	for i, r := range ds.Records {
		values := []interface{}{
			r.ParentLine,
			r.ProjectID,
			r.SemiFinishedID,
			r.Quantity,
			r.Timestamp.Format(TimestampLayout),
			r.MovementCode,
			r.MovementDescription,
			r.Area,
		}
		if directional {
			values = append(values, string(r.Direction))
		}
		values = append(values, r.Hour, r.Day, metrics.WeekdayLabel(r.Weekday), r.Date.String())
		w.row(SheetFiltered, i+2, values)
	}
}

func (w *sheetWriter) summary(a *pipeline.Analysis) {
	w.newSheet(SheetSummary)
	w.header(SheetSummary, []string{
		domain.ColProjectID, "Total", "Média", "Desvio Padrão", "Mínimo", "Máximo",
		"Registros", "Primeiro", "Último", "Dias",
	})
	for i, s := range a.ProjectSummaries {
		w.row(SheetSummary, i+2, []interface{}{
			s.ProjectID, s.Total, s.Mean, s.Std, s.Min, s.Max,
			s.Count, s.First.Format(TimestampLayout), s.Last.Format(TimestampLayout), s.SpanDays,
		})
	}
}

func (w *sheetWriter) peaks(points []domain.PeakPoint) {
	w.newSheet(SheetPeaks)
	w.header(SheetPeaks, []string{domain.ColProjectID, domain.ColDirection, "Tipo", "Data/Hora", "Índice", domain.ColQuantity})
	for i, p := range points {
		w.row(SheetPeaks, i+2, []interface{}{
			p.ProjectID, string(p.Direction), p.Kind.Label(), p.Timestamp.Format(TimestampLayout), p.Index, p.Value,
		})
	}
}
