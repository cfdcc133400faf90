// Package main prints the critical-item history series or mirrors the
// local cache to the durable store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"

	"stock-movement-lab/internal/app"
	"stock-movement-lab/internal/config"
	"stock-movement-lab/internal/domain"
	"stock-movement-lab/internal/history"
	"stock-movement-lab/internal/logging"
	"stock-movement-lab/internal/observability"
)

func main() {
	sync := flag.Bool("sync", false, "Push local entries missing or different in the durable store")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall timeout")
	flag.Parse()

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

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	stack, err := app.OpenHistory(ctx, cfg, observability.DefaultMetrics, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening history: %v\n", err)
		os.Exit(1)
	}
	defer stack.Close()

	if *sync {
		err = runSync(ctx, stack.Tracker, os.Stdout)
	} else {
		err = printSeries(ctx, stack.Tracker, os.Stdout, logger)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runSync(ctx context.Context, t *history.Tracker, out io.Writer) error {
	res, err := t.Sync(ctx)
	if errors.Is(err, history.ErrNoDurable) {
		return errors.New("no durable history backend configured (history.backend)")
	}
	if res != nil {
		fmt.Fprintf(out, "pushed=%d unchanged=%d failed=%d\n", res.Pushed, res.Unchanged, res.Failed)
	}
	return err
}

func printSeries(ctx context.Context, t *history.Tracker, out io.Writer, logger logrus.FieldLogger) error {
	series, source, err := t.Series(ctx)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{"source": source, "entries": len(series)}).Debug("history loaded")
	return writeSeries(out, series, source)
}

func writeSeries(out io.Writer, series []*domain.CriticalHistoryEntry, source string) error {
	fmt.Fprintf(out, "source: %s\n", source)
	if len(series) == 0 {
		_, err := fmt.Fprintln(out, "no entries")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
		domain.ColHistoryDate, domain.ColHistoryPercentage, domain.ColHistoryTotal, domain.ColHistoryCritical)
	for _, e := range series {
		fmt.Fprintf(tw, "%s\t%.2f\t%d\t%d\n", e.Date, e.Percentage, e.TotalItems, e.CriticalItems)
	}
	return tw.Flush()
}
