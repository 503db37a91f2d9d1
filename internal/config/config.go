// Package config holds the flatten run configuration. Every tunable is a
// command-line flag whose default is seeded from an environment variable, so
// `-help` lists all knobs and a .env file or the process environment can set
// them without flags.
//
// For tests, use LoadFromArgs with a private FlagSet and a map-backed getenv:
//
//	fs := flag.NewFlagSet("test", flag.ContinueOnError)
//	cfg, err := config.LoadFromArgs(fs, func(k string) string { return env[k] }, []string{"-threshold=10"})
package config

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"hitsflat/internal/driver"
)

// Config is the fully resolved configuration of one run.
type Config struct {
	// IO
	Input     string
	Output    string
	Outliers  string
	Skipped   string // skipped-row log
	ReportDir string

	// Flattening
	Threshold  int // rows with more hits than this go to Outliers
	BatchSize  int
	IndexBase  int // 0 or 1
	HitsColumn string
	LogEvery   int
	DropWide   bool // drop rows wider than the header instead of copying them

	// Metrics
	MetricsBackend string // none, pushgateway, datadog
	MetricsJob     string
	PushgatewayURL string
	StatsdAddr     string

	// Cell sink; disabled when SinkKind is empty.
	SinkKind  string
	SinkDSN   string
	SinkTable string
}

// LoadFromArgs defines flags on fs with defaults taken from getenv, then
// parses args. Explicit flags override the environment.
func LoadFromArgs(fs *flag.FlagSet, getenv func(string) string, args []string) (*Config, error) {
	cfg := &Config{}

	envOr := func(k, d string) string {
		if v := getenv(k); v != "" {
			return v
		}
		return d
	}
	intEnvOr := func(k string, d int) int {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				return i
			}
		}
		return d
	}
	boolEnvOr := func(k string, d bool) bool {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				return b
			}
		}
		return d
	}

	fs.StringVar(&cfg.Input, "input", envOr("FLATTEN_INPUT", "visitas.csv"), "Input CSV export")
	fs.StringVar(&cfg.Output, "output", envOr("FLATTEN_OUTPUT", "visitas_expandidas.csv"), "Flattened output CSV")
	fs.StringVar(&cfg.Outliers, "outliers", envOr("FLATTEN_OUTLIERS", "visitas_muchos_hits.csv"), "Output CSV for rows above the hits threshold")
	fs.StringVar(&cfg.Skipped, "skipped", envOr("FLATTEN_SKIPPED", "skipped/flatten.csv"), "Log of rows that could not be parsed")
	fs.StringVar(&cfg.ReportDir, "report_dir", envOr("FLATTEN_REPORT_DIR", "."), "Directory for run reports")

	fs.IntVar(&cfg.Threshold, "threshold", intEnvOr("FLATTEN_THRESHOLD", driver.DefaultThreshold), "Rows with more hits than this are routed to -outliers")
	fs.IntVar(&cfg.BatchSize, "batch_size", intEnvOr("FLATTEN_BATCH_SIZE", 1000), "Rows per output group")
	fs.IntVar(&cfg.IndexBase, "index_base", intEnvOr("FLATTEN_INDEX_BASE", 1), "First index used in synthesized column names (0 or 1)")
	fs.StringVar(&cfg.HitsColumn, "hits_column", envOr("FLATTEN_HITS_COLUMN", "hits"), "Name of the hits column")
	fs.IntVar(&cfg.LogEvery, "log_every", intEnvOr("FLATTEN_LOG_EVERY", 50000), "Reader progress log interval in rows (0 disables)")
	fs.BoolVar(&cfg.DropWide, "drop_wide", boolEnvOr("FLATTEN_DROP_WIDE", false), "Drop rows wider than the header instead of copying them to -output")

	fs.StringVar(&cfg.MetricsBackend, "metrics_backend", envOr("METRICS_BACKEND", "none"), "Metrics backend: none, pushgateway, datadog")
	fs.StringVar(&cfg.MetricsJob, "metrics_job", envOr("METRICS_JOB", "flatten"), "Job name used for metrics")
	fs.StringVar(&cfg.PushgatewayURL, "pushgateway_url", envOr("PUSHGATEWAY_URL", "http://localhost:9091"), "Prometheus Pushgateway URL")
	fs.StringVar(&cfg.StatsdAddr, "statsd_addr", envOr("DD_AGENT_ADDR", "127.0.0.1:8125"), "DogStatsD address")

	fs.StringVar(&cfg.SinkKind, "sink_kind", getenv("SINK_KIND"), "Cell sink backend: sqlite, postgres (empty disables)")
	fs.StringVar(&cfg.SinkDSN, "sink_dsn", getenv("SINK_DSN"), "Cell sink DSN")
	fs.StringVar(&cfg.SinkTable, "sink_table", envOr("SINK_TABLE", "flattened_cells"), "Cell sink table")

	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads an optional .env file into the process environment (existing
// variables win), then resolves flags from args.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	LoadDotEnv(".env")
	return LoadFromArgs(fs, os.Getenv, args)
}

// LoadDotEnv loads path into the process environment when it exists.
// Variables already set are not overwritten. It reports whether a file was
// loaded.
func LoadDotEnv(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	return godotenv.Load(path) == nil
}
