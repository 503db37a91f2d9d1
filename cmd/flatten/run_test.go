package main

import (
	"bytes"
	"context"
	"database/sql"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"hitsflat/internal/config"
	"hitsflat/internal/report"
)

const input = "id,hits,device\n" +
	"1,\"[{'hitNumber': '1', 'page': {'path': '/a'}}]\",\"{'browser': 'Chrome'}\"\n" +
	"2,[],\"{'browser': 'Firefox', 'mobile': True}\"\n"

func loadConfig(t *testing.T, args ...string) *config.Config {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cfg, err := config.LoadFromArgs(fs, func(string) string { return "" }, args)
	if err != nil {
		t.Fatalf("LoadFromArgs: %v", err)
	}
	if issues := config.Validate(cfg); config.HasErrors(issues) {
		t.Fatalf("invalid config: %v", issues)
	}
	return cfg
}

func TestRun_EndToEnd(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "visitas.csv")
	if err := os.WriteFile(in, []byte(input), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	db := filepath.Join(dir, "cells.db")
	cfg := loadConfig(t,
		"-input="+in,
		"-output="+filepath.Join(dir, "out.csv"),
		"-outliers="+filepath.Join(dir, "many.csv"),
		"-skipped="+filepath.Join(dir, "skipped", "flatten.csv"),
		"-report_dir="+filepath.Join(dir, "reports"),
		"-threshold=0",
		"-sink_kind=sqlite",
		"-sink_dsn="+db,
	)

	var stdout bytes.Buffer
	if err := run(context.Background(), cfg, &stdout); err != nil {
		t.Fatalf("run: %v", err)
	}

	for _, s := range []string{
		"Rows processed: 2\n",
		"Rows with more than 0 hits: 1\n",
		"Row 1 (line 2): 1 hits",
	} {
		if !strings.Contains(stdout.String(), s) {
			t.Errorf("stdout missing %q:\n%s", s, stdout.String())
		}
	}

	out, err := os.ReadFile(cfg.Output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if want := "id,hits_count,device_browser,device_mobile\n2,0,Firefox,True\n"; string(out) != want {
		t.Fatalf("output = %q, want %q", out, want)
	}
	if _, err := os.Stat(cfg.Outliers); err != nil {
		t.Fatalf("outliers file: %v", err)
	}
	for _, name := range []string{report.SummaryFile, report.TextFile, report.HTMLFile} {
		if _, err := os.Stat(filepath.Join(cfg.ReportDir, name)); err != nil {
			t.Errorf("report %s: %v", name, err)
		}
	}

	conn, err := sql.Open("sqlite", db)
	if err != nil {
		t.Fatalf("open sink db: %v", err)
	}
	defer conn.Close()
	var cells int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM "flattened_cells"`).Scan(&cells); err != nil {
		t.Fatalf("count cells: %v", err)
	}
	if cells != 9 {
		t.Fatalf("sink cells = %d, want 9", cells)
	}
}

func TestRun_MissingInput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := loadConfig(t,
		"-input="+filepath.Join(dir, "nope.csv"),
		"-output="+filepath.Join(dir, "out.csv"),
		"-report_dir="+dir,
	)
	if err := run(context.Background(), cfg, io.Discard); err == nil {
		t.Fatalf("expected error for missing input")
	}
}

func TestRun_UnknownSink(t *testing.T) {
	t.Parallel()

	cfg := loadConfig(t)
	cfg.SinkKind = "mongo"
	if err := run(context.Background(), cfg, io.Discard); err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("err = %v, want unsupported sink", err)
	}
}
