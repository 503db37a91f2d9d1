// Package clean tidies a CSV export in batches: whitespace and Unicode
// normalization, date rewriting, lower-cased categories, and counts of
// numeric anomalies. Lines that cannot be split to the header width are
// copied through unchanged.
package clean

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"hitsflat/internal/fsio"
	csvparser "hitsflat/internal/parser/csv"
	"hitsflat/internal/skiplog"
)

// DefaultBatchSize is the number of rows cleaned together.
const DefaultBatchSize = 100000

const maxLineErrors = 100

// Options configure Run.
type Options struct {
	Input      string
	Output     string
	SkippedLog string // optional CSV of lines copied verbatim
	BatchSize  int
	Steps      Chain // DefaultChain when nil
}

// LineError is one input line that was not cleaned.
type LineError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// Report is what a cleaning run did.
type Report struct {
	Input     string    `json:"input"`
	Output    string    `json:"output"`
	Encoding  string    `json:"encoding"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished"`
	Lines     int       `json:"lines"`
	Rows      int       `json:"rows"`
	Batches   int       `json:"batches"`
	Verbatim  int       `json:"verbatim_lines"`
	Columns   []string  `json:"columns"`
	Changes   Changes   `json:"changes"`
	PeakHeap  float64   `json:"peak_heap_mb"`
	MeanHeap  float64   `json:"mean_heap_mb"`
	ErrorRows int       `json:"error_rows"`

	Errors      []LineError             `json:"errors,omitempty"`
	ColumnStats map[string]*ColumnStats `json:"column_stats"`

	heapSum float64
	heapN   int
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration { return r.Finished.Sub(r.Started) }

func (r *Report) lineError(line int, msg string) {
	r.ErrorRows++
	if len(r.Errors) < maxLineErrors {
		r.Errors = append(r.Errors, LineError{Line: line, Message: msg})
	}
}

func (r *Report) sampleHeap() float64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	mb := float64(ms.HeapAlloc) / (1 << 20)
	r.heapSum += mb
	r.heapN++
	if mb > r.PeakHeap {
		r.PeakHeap = mb
	}
	r.MeanHeap = r.heapSum / float64(r.heapN)
	return mb
}

// Run cleans opts.Input into opts.Output. Only problems with the files
// themselves are returned as errors; bad lines are reported in the Report.
func Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Steps == nil {
		opts.Steps = DefaultChain()
	}
	rep := &Report{Input: opts.Input, Output: opts.Output, Started: time.Now(), Changes: Changes{}}

	info, err := csvparser.DetectEncoding(ctx, opts.Input)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}
	rep.Encoding = string(info.Encoding)
	rep.Lines = info.Lines
	log.Printf("clean: input=%s encoding=%s lines=%d", opts.Input, info.Encoding, info.Lines)

	in, err := os.Open(opts.Input)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Input, err)
	}
	defer in.Close()
	fsio.AdviseSequential(in)
	r := csvparser.NewReader(in, info.Encoding)
	header, err := r.ReadHeader()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opts.Input, err)
	}
	rep.Columns = header

	var skips *skiplog.Log
	if opts.SkippedLog != "" {
		var closeSkips func()
		skips, closeSkips, err = skiplog.New(opts.SkippedLog)
		if err != nil {
			return nil, err
		}
		defer closeSkips()
	}

	out, err := newWriter(opts.Output)
	if err != nil {
		return nil, err
	}
	defer out.close()
	if err := out.row(header); err != nil {
		return nil, err
	}

	c := &cleaner{opts: opts, rep: rep, out: out, skips: skips, header: header}
	batch := &Batch{Header: header}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := r.Next()
		if err == io.EOF {
			break
		}
		var re *csvparser.RowError
		if errors.As(err, &re) {
			// Keep the output in input order.
			if err := c.flush(batch); err != nil {
				return nil, err
			}
			if err := c.verbatim(re.Line, re.Raw, re.Error()); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		batch.Rows = append(batch.Rows, pad(row.Cells, len(header)))
		if len(batch.Rows) >= opts.BatchSize {
			if err := c.flush(batch); err != nil {
				return nil, err
			}
		}
	}
	if err := c.flush(batch); err != nil {
		return nil, err
	}
	if err := out.close(); err != nil {
		return nil, err
	}
	if rep.ColumnStats == nil {
		rep.ColumnStats = map[string]*ColumnStats{}
	}
	rep.Finished = time.Now()
	log.Printf("clean: done rows=%d batches=%d verbatim=%d errors=%d in %s",
		rep.Rows, rep.Batches, rep.Verbatim, rep.ErrorRows, rep.Duration().Truncate(time.Millisecond))
	return rep, nil
}

type cleaner struct {
	opts   Options
	rep    *Report
	out    *writer
	skips  *skiplog.Log
	header []string
}

// flush cleans and writes the pending rows and empties the batch.
func (c *cleaner) flush(b *Batch) error {
	if len(b.Rows) == 0 {
		return nil
	}
	c.rep.Batches++
	n := c.rep.Batches
	original := make([][]string, len(b.Rows))
	for i, row := range b.Rows {
		original[i] = append([]string(nil), row...)
	}

	if err := c.apply(b); err != nil {
		log.Printf("clean: batch=%d failed, writing it unchanged: %v", n, err)
		c.rep.Changes.add(fmt.Sprintf("unchanged batch %d", n), 1)
		b.Rows = original
	} else if c.rep.ColumnStats == nil {
		c.rep.ColumnStats = ComputeColumnStats(b)
	}

	for _, row := range b.Rows {
		if err := c.out.row(row); err != nil {
			return err
		}
	}
	c.rep.Rows += len(b.Rows)
	heap := c.rep.sampleHeap()
	log.Printf("clean: batch=%d rows=%d total=%d heap=%.1fMB", n, len(b.Rows), c.rep.Rows, heap)
	b.Rows = b.Rows[:0]
	return nil
}

func (c *cleaner) apply(b *Batch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	c.opts.Steps.Apply(b, c.rep.Changes)
	return nil
}

func (c *cleaner) verbatim(line int, raw, msg string) error {
	if err := c.out.raw(raw); err != nil {
		return err
	}
	c.rep.Verbatim++
	c.rep.Changes.add("lines copied verbatim", 1)
	c.rep.lineError(line, msg)
	c.skips.Add(skiplog.ReasonVerbatim, line, msg, raw)
	log.Printf("clean: line=%d copied verbatim: %s", line, msg)
	return nil
}

func pad(cells []string, n int) []string {
	for len(cells) < n {
		cells = append(cells, "")
	}
	return cells
}

type writer struct {
	path string
	f    *os.File
	bw   *bufio.Writer
	cw   *csv.Writer
}

func newWriter(path string) (*writer, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	bw := bufio.NewWriterSize(f, 1<<20)
	return &writer{path: path, f: f, bw: bw, cw: csv.NewWriter(bw)}, nil
}

func (w *writer) row(cells []string) error {
	if err := w.cw.Write(cells); err != nil {
		return fmt.Errorf("%s: write row: %w", w.path, err)
	}
	return nil
}

func (w *writer) raw(line string) error {
	w.cw.Flush()
	if err := w.cw.Error(); err != nil {
		return fmt.Errorf("%s: flush: %w", w.path, err)
	}
	if _, err := w.bw.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("%s: write raw: %w", w.path, err)
	}
	return nil
}

// close flushes and closes the file; later calls are no-ops.
func (w *writer) close() error {
	if w.f == nil {
		return nil
	}
	w.cw.Flush()
	ferr := w.cw.Error()
	if ferr == nil {
		ferr = w.bw.Flush()
	}
	cerr := w.f.Close()
	w.f = nil
	return errors.Join(ferr, cerr)
}
