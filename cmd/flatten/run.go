package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"hitsflat/internal/config"
	"hitsflat/internal/driver"
	"hitsflat/internal/metrics"
	"hitsflat/internal/metrics/datadog"
	"hitsflat/internal/metrics/prompush"
	"hitsflat/internal/report"
	"hitsflat/internal/storage"

	// Register every sink backend; the configuration picks one.
	_ "hitsflat/internal/storage/all"
)

// run executes one flatten run for cfg and prints the console summary to
// stdout.
func run(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	flush := setupMetrics(cfg)
	defer flush()

	opts := driver.Options{
		Input:      cfg.Input,
		Output:     cfg.Output,
		Outliers:   cfg.Outliers,
		SkippedLog: cfg.Skipped,
		Threshold:  cfg.Threshold,
		BatchSize:  cfg.BatchSize,
		IndexBase:  cfg.IndexBase,
		HitsColumn: cfg.HitsColumn,
		DropWide:   cfg.DropWide,
		Job:        cfg.MetricsJob,
		LogEvery:   cfg.LogEvery,
	}

	if cfg.SinkKind != "" {
		repo, err := storage.New(ctx, storage.Config{Kind: cfg.SinkKind, DSN: cfg.SinkDSN, Table: cfg.SinkTable})
		if err != nil {
			return fmt.Errorf("open sink: %w", err)
		}
		defer repo.Close()
		if err := repo.EnsureTable(ctx); err != nil {
			return fmt.Errorf("prepare sink: %w", err)
		}
		opts.Sink = repo
		log.Printf("sink: kind=%s table=%s", cfg.SinkKind, cfg.SinkTable)
	}

	sum, err := driver.Run(ctx, opts)
	if err != nil {
		return err
	}

	paths, err := report.Write(cfg.ReportDir, sum)
	if err != nil {
		return fmt.Errorf("reports: %w", err)
	}
	for _, p := range paths {
		log.Printf("report: wrote %s", p)
	}

	st := sum.Stats
	fmt.Fprintf(stdout, "Rows processed: %d\n", st.Rows)
	fmt.Fprintf(stdout, "Written to %s: %d\n", sum.Output, st.Written)
	fmt.Fprintf(stdout, "Rows with more than %d hits: %d\n", sum.Threshold, len(st.Outliers))
	if len(st.Outliers) > 0 {
		fmt.Fprintf(stdout, "Rows with the most hits:\n")
		report.PrintTopOutliers(stdout, st.Outliers, report.TopN)
	}
	return nil
}

// setupMetrics installs the configured backend and returns its flush func.
// A backend that cannot be created leaves metrics disabled.
func setupMetrics(cfg *config.Config) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch name := strings.ToLower(cfg.MetricsBackend); name {
	case "", "none":
		return func() {}
	case "pushgateway", "prom", "prometheus":
		b, err = prompush.NewBackend(cfg.MetricsJob, cfg.PushgatewayURL)
		if err == nil {
			log.Printf("metrics: backend=pushgateway url=%s job=%s", cfg.PushgatewayURL, cfg.MetricsJob)
		}
	case "datadog", "dd":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       cfg.StatsdAddr,
			GlobalTags: []string{"job:" + cfg.MetricsJob},
		})
		if err == nil {
			log.Printf("metrics: backend=datadog addr=%s", cfg.StatsdAddr)
		}
	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", cfg.MetricsBackend)
		return func() {}
	}
	if err != nil {
		log.Printf("metrics: %v; using nop", err)
		return func() {}
	}
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}
}
