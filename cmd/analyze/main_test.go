package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"stock-movement-lab/internal/config"
	"stock-movement-lab/internal/domain"
	"stock-movement-lab/internal/storage/file"
)

func writeWorkbook(t *testing.T, path string, header []string, rows [][]string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	all := append([][]string{header}, rows...)
	for i, row := range all {
		vals := make([]interface{}, len(row))
		for j, v := range row {
			vals[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &vals))
	}
	require.NoError(t, f.SaveAs(path))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("HISTORY_LOCAL_PATH", filepath.Join(t.TempDir(), "historico.csv"))
	cfg, err := config.LoadFile(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	return cfg
}

func TestRun_WritesOutputs(t *testing.T) {
	dir := t.TempDir()
	movements := filepath.Join(dir, "mov.xlsx")
	var rows [][]string
	for _, r := range [][]string{
		{"P", "10", "05/03/2024 08:00:00"},
		{"P", "12", "05/03/2024 09:00:00"},
		{"P", "2", "05/03/2024 10:00:00"},
	} {
		rows = append(rows, []string{"MAE-1", r[0], "SA-1", r[1], r[2], "101", "Consumo", "Montagem"})
	}
	writeWorkbook(t, movements, domain.MovementColumns, rows)

	coverageFile := filepath.Join(dir, "cov.xlsx")
	writeWorkbook(t, coverageFile, []string{"Material", "Nível de Cobertura"}, [][]string{
		{"M1", "Crítico"}, {"M2", "Normal"}, {"M3", "Alto"}, {"M4", "Normal"},
	})

	cfg := testConfig(t)
	logger, _ := test.NewNullLogger()
	out := filepath.Join(dir, "out")

	written, err := run(context.Background(), options{
		movements: movements,
		coverage:  coverageFile,
		outputDir: out,
		record:    true,
	}, cfg, logger)
	require.NoError(t, err)

	for _, name := range []string{fileWorkbook, fileReport, filePeaks, fileProjectSummary, fileHourly} {
		assert.Contains(t, written, filepath.Join(out, name))
		_, err := os.Stat(filepath.Join(out, name))
		assert.NoError(t, err, name)
	}

	report, err := os.ReadFile(filepath.Join(out, fileReport))
	require.NoError(t, err)
	assert.Contains(t, string(report), "Pico Alto")

	series, err := file.NewHistoryStore(cfg.History.LocalPath).All(context.Background())
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, 25.0, series[0].Percentage)
}

func TestRun_ExplicitEmptySelectionWritesReportOnly(t *testing.T) {
	dir := t.TempDir()
	movements := filepath.Join(dir, "mov.xlsx")
	writeWorkbook(t, movements, domain.MovementColumns, [][]string{
		{"MAE-1", "P", "SA-1", "1", "05/03/2024 08:00:00", "101", "Consumo", "Montagem"},
	})
	logger, _ := test.NewNullLogger()
	out := filepath.Join(dir, "out")

	written, err := run(context.Background(), options{
		movements:   movements,
		projectsSet: true,
		outputDir:   out,
	}, testConfig(t), logger)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(out, fileReport)}, written)
}

func TestRun_RejectsBadInputs(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := testConfig(t)

	_, err := run(context.Background(), options{outputDir: t.TempDir()}, cfg, logger)
	assert.Error(t, err)

	_, err = run(context.Background(), options{movements: "a.xlsx", entries: "b.xlsx", outputDir: t.TempDir()}, cfg, logger)
	assert.Error(t, err)

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.xlsx")
	writeWorkbook(t, bad, []string{"Linha ATO"}, [][]string{{"P"}})
	_, err = run(context.Background(), options{movements: bad, outputDir: filepath.Join(dir, "out")}, cfg, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
}
