// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package. A flatten run is a batch job with no scrape endpoint, so
// collected metrics are pushed once at the end of the run.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"hitsflat/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stepCounter  *prometheus.CounterVec // flatten_step_total
	stepDuration *prometheus.SummaryVec // flatten_step_duration_seconds

	rowCounter    *prometheus.CounterVec // flatten_rows_total
	batchCounter  prometheus.Counter     // flatten_batches_total
	rowHits       prometheus.Histogram   // flatten_row_hits
	skippedColumn *prometheus.CounterVec // flatten_columns_skipped_total
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name.
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "flatten"
	}

	reg := prometheus.NewRegistry()

	stepCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Total number of run step executions, partitioned by step and status.",
		},
		[]string{"step", "status"},
	)
	stepDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Duration of run steps in seconds, partitioned by step and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"step", "status"},
	)
	rowCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Row-level counts per kind (processed, written, outliers, repaired, verbatim).",
		},
		[]string{"kind"},
	)
	batchCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Total number of row groups written.",
		},
	)
	rowHits := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    metrics.RowHits,
			Help:    "Distribution of the number of hits per flattened row.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
	skippedColumn := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.ColumnsSkipped,
			Help: "Structured columns dropped from a row, by column and reason.",
		},
		[]string{"column", "reason"},
	)

	for name, c := range map[string]prometheus.Collector{
		"step counter":    stepCounter,
		"step summary":    stepDuration,
		"row counter":     rowCounter,
		"batch counter":   batchCounter,
		"row hits":        rowHits,
		"skipped columns": skippedColumn,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}

	return &Backend{
		gatewayURL:    gatewayURL,
		jobName:       jobName,
		reg:           reg,
		stepCounter:   stepCounter,
		stepDuration:  stepDuration,
		rowCounter:    rowCounter,
		batchCounter:  batchCounter,
		rowHits:       rowHits,
		skippedColumn: skippedColumn,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.stepCounter == nil {
			return
		}
		b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)

	case metrics.RowsTotal:
		if b.rowCounter == nil {
			return
		}
		b.rowCounter.WithLabelValues(labels["kind"]).Add(delta)

	case metrics.BatchesTotal:
		if b.batchCounter == nil {
			return
		}
		b.batchCounter.Add(delta)

	case metrics.ColumnsSkipped:
		if b.skippedColumn == nil {
			return
		}
		b.skippedColumn.WithLabelValues(labels["column"], labels["reason"]).Add(delta)

	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	switch name {
	case metrics.StepDuration:
		if b.stepDuration == nil {
			return
		}
		b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
	case metrics.RowHits:
		if b.rowHits == nil {
			return
		}
		b.rowHits.Observe(value)
	}
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
