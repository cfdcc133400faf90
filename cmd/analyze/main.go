// Package main analyzes movement workbooks from the command line and writes
// the workbook export, markdown report and CSV tables.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"stock-movement-lab/internal/app"
	"stock-movement-lab/internal/config"
	"stock-movement-lab/internal/domain"
	"stock-movement-lab/internal/export"
	"stock-movement-lab/internal/history"
	"stock-movement-lab/internal/logging"
	"stock-movement-lab/internal/observability"
	"stock-movement-lab/internal/pipeline"
	"stock-movement-lab/internal/reporting"
	"stock-movement-lab/internal/table"
)

// options are the command-line inputs.
type options struct {
	movements     string
	entries       string
	exits         string
	coverage      string
	sheet         string
	coverageSheet string
	projects      string
	projectsSet   bool
	start         string
	end           string
	trackDir      bool
	outputDir     string
	record        bool
}

// Output file names.
const (
	fileWorkbook       = "analysis.xlsx"
	fileReport         = "REPORT.md"
	filePeaks          = "peaks.csv"
	fileProjectSummary = "project_summary.csv"
	fileHourly         = "hourly.csv"
)

func main() {
	var opts options
	flag.StringVar(&opts.movements, "movements", "", "Movement workbook (single-file mode)")
	flag.StringVar(&opts.entries, "entries", "", "Entries workbook (directional mode)")
	flag.StringVar(&opts.exits, "exits", "", "Exits workbook (directional mode)")
	flag.StringVar(&opts.coverage, "coverage", "", "Coverage workbook (optional)")
	flag.StringVar(&opts.sheet, "sheet", "", "Worksheet of the movement workbooks (default: first sheet)")
	flag.StringVar(&opts.coverageSheet, "coverage-sheet", "", "Worksheet of the coverage workbook (default: first sheet)")
	flag.StringVar(&opts.projects, "projects", "", "Comma-separated projects (default: first five; pass an empty value to select none)")
	flag.StringVar(&opts.start, "start", "", "Start date YYYY-MM-DD (default: earliest record)")
	flag.StringVar(&opts.end, "end", "", "End date YYYY-MM-DD (default: latest record)")
	flag.BoolVar(&opts.trackDir, "track-direction", false, "Split series by movement direction")
	flag.StringVar(&opts.outputDir, "output-dir", "", "Output directory (default: output.dir from config)")
	flag.BoolVar(&opts.record, "record", true, "Record today's critical-item history from the coverage workbook")
	flag.Parse()
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "projects" {
			opts.projectsSet = true
		}
	})

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.NewWithOutput(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	if opts.outputDir == "" {
		opts.outputDir = cfg.Output.Dir
	}
	opts.trackDir = opts.trackDir || cfg.Analysis.TrackDirection

	written, err := run(context.Background(), opts, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Analysis complete:")
	for _, path := range written {
		fmt.Printf("  - %s\n", path)
	}
}

// run executes the analysis and returns the paths it wrote.
func run(ctx context.Context, opts options, cfg *config.Config, logger logrus.FieldLogger) ([]string, error) {
	if opts.movements == "" && opts.entries == "" && opts.exits == "" && opts.coverage == "" {
		return nil, errors.New("nothing to analyze: pass --movements, --entries/--exits or --coverage")
	}
	if opts.movements != "" && (opts.entries != "" || opts.exits != "") {
		return nil, errors.New("--movements cannot be combined with --entries/--exits")
	}

	req, err := buildRequest(opts)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(opts.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var (
		analysis *pipeline.Analysis
		cov      *pipeline.CoverageAnalysis
		series   []*domain.CriticalHistoryEntry
		written  []string
	)

	if req.Movements != nil || req.Directional() {
		analyzer := pipeline.NewAnalyzer(cfg.Analysis.PeakOptions()).
			WithMetrics(observability.DefaultMetrics).
			WithLogger(logger)
		analysis, err = analyzer.Run(ctx, req)
		if err != nil {
			return nil, err
		}
		logger.WithFields(logrus.Fields{
			"outcome":  analysis.Outcome,
			"selected": analysis.Selected,
			"peaks":    len(analysis.PeakSummary),
		}).Info("movement analysis finished")

		if analysis.Outcome == pipeline.OutcomeData {
			path := filepath.Join(opts.outputDir, fileWorkbook)
			if err := export.Save(path, analysis); err != nil {
				return nil, err
			}
			written = append(written, path)
		}
	}

	if opts.coverage != "" {
		cov, series, err = processCoverage(ctx, opts, cfg, logger)
		if err != nil {
			return nil, err
		}
	}

	report := reporting.NewGenerator().Generate(analysis, cov, series)
	files := map[string]func(io.Writer) error{
		fileReport: func(w io.Writer) error {
			_, err := io.WriteString(w, reporting.RenderMarkdown(report))
			return err
		},
	}
	if analysis != nil && analysis.Outcome == pipeline.OutcomeData {
		files[filePeaks] = func(w io.Writer) error { return reporting.WritePeaksCSV(w, report.Peaks) }
		files[fileProjectSummary] = func(w io.Writer) error {
			return reporting.WriteProjectSummaryCSV(w, analysis.ProjectSummaries)
		}
		files[fileHourly] = func(w io.Writer) error { return reporting.WriteHourlyCSV(w, analysis.Hourly) }
	}
	for _, name := range []string{fileReport, filePeaks, fileProjectSummary, fileHourly} {
		write, ok := files[name]
		if !ok {
			continue
		}
		path := filepath.Join(opts.outputDir, name)
		if err := writeFile(path, write); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
		written = append(written, path)
	}

	if analysis != nil && analysis.Outcome == pipeline.OutcomeValidationFailed {
		return written, fmt.Errorf("movement data rejected: %s", analysis.Message)
	}
	if cov != nil && cov.Outcome == pipeline.OutcomeValidationFailed {
		return written, fmt.Errorf("coverage data rejected: %s", cov.Message)
	}
	return written, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func buildRequest(opts options) (pipeline.Request, error) {
	var req pipeline.Request
	var err error
	for _, in := range []struct {
		path string
		dst  **table.Table
	}{
		{opts.movements, &req.Movements},
		{opts.entries, &req.Entries},
		{opts.exits, &req.Exits},
	} {
		if in.path == "" {
			continue
		}
		if *in.dst, err = table.ReadExcelFile(in.path, opts.sheet); err != nil {
			return req, err
		}
	}

	if opts.projectsSet {
		req.Projects = []string{}
		for _, p := range strings.Split(opts.projects, ",") {
			if p = strings.TrimSpace(p); p != "" {
				req.Projects = append(req.Projects, p)
			}
		}
	}
	if opts.start != "" {
		d, err := domain.ParseDate(opts.start)
		if err != nil {
			return req, fmt.Errorf("--start: %w", err)
		}
		req.Start = &d
	}
	if opts.end != "" {
		d, err := domain.ParseDate(opts.end)
		if err != nil {
			return req, fmt.Errorf("--end: %w", err)
		}
		req.End = &d
	}
	req.TrackDirection = opts.trackDir
	return req, nil
}

func processCoverage(ctx context.Context, opts options, cfg *config.Config, logger logrus.FieldLogger) (*pipeline.CoverageAnalysis, []*domain.CriticalHistoryEntry, error) {
	t, err := table.ReadExcelFile(opts.coverage, opts.coverageSheet)
	if err != nil {
		return nil, nil, err
	}

	var tracker *history.Tracker
	if opts.record {
		stack, err := app.OpenHistory(ctx, cfg, observability.DefaultMetrics, logger)
		if err != nil {
			return nil, nil, err
		}
		defer stack.Close()
		tracker = stack.Tracker
	}

	cov, err := pipeline.NewCoverageProcessor(cfg.Coverage.Classifier(), tracker).
		WithLogger(logger).
		Process(ctx, t, opts.record)
	if err != nil {
		return nil, nil, err
	}
	if cov.History != nil {
		return cov, cov.History.Series, nil
	}
	return cov, nil, nil
}
