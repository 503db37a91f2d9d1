// Package metrics records operational metrics of a flatten run behind a
// small, backend-agnostic interface.
//
// The default backend is a no-op, so instrumentation is always safe to call.
// Concrete systems (Prometheus Pushgateway, DogStatsD) live in subpackages and
// are installed with SetBackend by the CLI.
package metrics

import "time"

// Metric names shared by every backend.
const (
	StepTotal      = "flatten_step_total"
	StepDuration   = "flatten_step_duration_seconds"
	RowsTotal      = "flatten_rows_total"
	BatchesTotal   = "flatten_batches_total"
	RowHits        = "flatten_row_hits"
	ColumnsSkipped = "flatten_columns_skipped_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a distribution metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep counts one execution of a run step and records its duration.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}
	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow increments a row-level counter. Kinds mirror the run summary:
// processed, written, outliers, repaired, verbatim.
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RowsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordBatches increments the row-group counter.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(BatchesTotal, float64(delta), Labels{
		"job": job,
	})
}

// RecordHits observes the hit count of one flattened row.
func RecordHits(job string, hits int) {
	backend.ObserveHistogram(RowHits, float64(hits), Labels{"job": job})
}

// RecordSkippedColumn counts a structured column dropped from a row.
func RecordSkippedColumn(job, column, reason string) {
	backend.IncCounter(ColumnsSkipped, 1, Labels{
		"job":    job,
		"column": column,
		"reason": reason,
	})
}
