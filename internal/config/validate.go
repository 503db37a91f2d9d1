package config

import (
	"fmt"
	"strings"
)

// IssueSeverity is the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks the run.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is reported but does not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single validation finding. Path is the flag name.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Validate checks cfg without mutating it.
func Validate(cfg *Config) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(cfg.Input) == "" {
		add(SeverityError, "input", "input path must not be empty")
	}
	if strings.TrimSpace(cfg.Output) == "" {
		add(SeverityError, "output", "output path must not be empty")
	}
	if strings.TrimSpace(cfg.Outliers) == "" {
		add(SeverityError, "outliers", "outliers path must not be empty")
	}
	if cfg.Output != "" && cfg.Output == cfg.Outliers {
		add(SeverityError, "outliers", "outliers path must differ from output")
	}
	if cfg.Input != "" && (cfg.Input == cfg.Output || cfg.Input == cfg.Outliers) {
		add(SeverityError, "output", "output would overwrite the input file")
	}
	if cfg.BatchSize <= 0 {
		add(SeverityError, "batch_size", "batch_size must be > 0, got %d", cfg.BatchSize)
	}
	if cfg.Threshold < 0 {
		add(SeverityError, "threshold", "threshold must be >= 0, got %d", cfg.Threshold)
	}
	if cfg.IndexBase != 0 && cfg.IndexBase != 1 {
		add(SeverityError, "index_base", "index_base must be 0 or 1, got %d", cfg.IndexBase)
	}
	if strings.TrimSpace(cfg.HitsColumn) == "" {
		add(SeverityError, "hits_column", "hits_column must not be empty")
	}
	if cfg.LogEvery < 0 {
		add(SeverityWarning, "log_every", "negative log_every disables progress logs")
	}

	switch cfg.MetricsBackend {
	case "", "none":
	case "pushgateway", "prom", "prometheus":
		if strings.TrimSpace(cfg.PushgatewayURL) == "" {
			add(SeverityError, "pushgateway_url", "pushgateway backend requires a URL")
		}
	case "datadog", "dd":
		if strings.TrimSpace(cfg.StatsdAddr) == "" {
			add(SeverityError, "statsd_addr", "datadog backend requires an agent address")
		}
	default:
		add(SeverityWarning, "metrics_backend", "unknown metrics backend %q; metrics are disabled", cfg.MetricsBackend)
	}

	switch cfg.SinkKind {
	case "":
		if cfg.SinkDSN != "" {
			add(SeverityWarning, "sink_dsn", "sink_dsn is set but sink_kind is empty; no cells are stored")
		}
	case "sqlite", "postgres":
		if strings.TrimSpace(cfg.SinkDSN) == "" {
			add(SeverityError, "sink_dsn", "sink %s requires a DSN", cfg.SinkKind)
		}
		if strings.TrimSpace(cfg.SinkTable) == "" {
			add(SeverityError, "sink_table", "sink_table must not be empty")
		}
	default:
		add(SeverityError, "sink_kind", "unknown sink kind %q", cfg.SinkKind)
	}

	return issues
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}
