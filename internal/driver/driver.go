// Package driver runs a flatten job over a CSV export.
//
// A run makes two passes over the input. The schema pass flattens every row
// to learn the union of columns of the main and outlier outputs, so each
// output gets one header that covers all of its rows. The write pass reads
// row groups on one goroutine and flattens and writes them, in input order,
// on another; an optional third goroutine copies the written cells to a sink.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"hitsflat/internal/flatten"
	"hitsflat/internal/fsio"
	"hitsflat/internal/metrics"
	csvparser "hitsflat/internal/parser/csv"
	"hitsflat/internal/record"
	"hitsflat/internal/skiplog"
	"hitsflat/internal/storage"
)

// DefaultThreshold is the outlier threshold the flatten command starts from.
// Run keeps a zero Threshold as is, since 0 is a valid limit.
const DefaultThreshold = 250

// Defaults applied by Run to zero-valued options.
const (
	DefaultBatchSize = 1000
	DefaultSinkBatch = 5000
	DefaultJob       = "flatten"
)

// Output stream names, also used as the stream value sent to a sink.
const (
	StreamMain     = "main"
	StreamOutliers = "outliers"
)

// Sink receives written rows in long format, aligned to storage.CellColumns.
// storage.Repository satisfies it.
type Sink interface {
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)
}

// Options configures one run.
type Options struct {
	Input      string
	Output     string
	Outliers   string
	SkippedLog string // empty disables the skipped-row log

	Threshold  int // rows with more hits than this go to Outliers; negative means 0
	BatchSize  int
	IndexBase  int
	HitsColumn string
	DropWide   bool // log rows wider than the header instead of copying them verbatim

	Job      string
	RunID    string
	LogEvery int

	Sink      Sink
	SinkBatch int
}

func (o Options) withDefaults() Options {
	if o.Threshold < 0 {
		o.Threshold = 0
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.HitsColumn == "" {
		o.HitsColumn = flatten.DefaultHitsColumn
	}
	if o.Job == "" {
		o.Job = DefaultJob
	}
	if o.RunID == "" {
		o.RunID = uuid.NewString()
	}
	if o.SinkBatch <= 0 {
		o.SinkBatch = DefaultSinkBatch
	}
	return o
}

// Summary is the result of a run.
type Summary struct {
	RunID      string    `json:"run_id"`
	Started    time.Time `json:"started"`
	Finished   time.Time `json:"finished"`
	Input      string    `json:"input"`
	Output     string    `json:"output"`
	Outliers   string    `json:"outliers"`
	Encoding   string    `json:"encoding"`
	Lines      int       `json:"lines"`
	IndexBase  int       `json:"index_base"`
	Threshold  int       `json:"threshold"`
	HitsColumn string    `json:"hits_column"`
	Structured []string  `json:"structured_columns"`
	Stats      *Stats    `json:"stats"`
}

// Duration returns the wall time of the run.
func (s *Summary) Duration() time.Duration { return s.Finished.Sub(s.Started) }

// Run flattens opts.Input into opts.Output and opts.Outliers. It fails only
// on fatal conditions: a missing input, an unreadable header, or an I/O
// error on the outputs. Bad rows and undecodable cells are counted in Stats.
func Run(ctx context.Context, opts Options) (*Summary, error) {
	opts = opts.withDefaults()
	sum := &Summary{
		RunID:      opts.RunID,
		Started:    time.Now(),
		Input:      opts.Input,
		Output:     opts.Output,
		Outliers:   opts.Outliers,
		IndexBase:  opts.IndexBase,
		Threshold:  opts.Threshold,
		HitsColumn: opts.HitsColumn,
	}

	info, err := csvparser.DetectEncoding(ctx, opts.Input)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}
	sum.Encoding = string(info.Encoding)
	sum.Lines = info.Lines
	log.Printf("driver: run=%s input=%s encoding=%s lines=%d", opts.RunID, opts.Input, info.Encoding, info.Lines)

	start := time.Now()
	p, err := schemaPass(ctx, opts, info.Encoding)
	metrics.RecordStep(opts.Job, "schema_pass", err, time.Since(start))
	if err != nil {
		return nil, err
	}
	sum.Structured = p.structured
	log.Printf("driver: structured=%v main_columns=%d outlier_columns=%d elapsed=%s",
		p.structured, p.main.Len(), p.outliers.Len(), time.Since(start).Truncate(time.Millisecond))

	var skips *skiplog.Log
	if opts.SkippedLog != "" {
		l, closeFn, err := skiplog.New(opts.SkippedLog)
		if err != nil {
			return nil, fmt.Errorf("skipped log: %w", err)
		}
		defer closeFn()
		skips = l
	}

	start = time.Now()
	stats, read, err := writePass(ctx, opts, info, p, skips)
	metrics.RecordStep(opts.Job, "write_pass", err, time.Since(start))
	if err != nil {
		return nil, err
	}
	stats.Columns = p.main.Len()
	stats.OutlierColumns = p.outliers.Len()
	logSummary(stats, read)

	sum.Stats = stats
	sum.Finished = time.Now()
	return sum, nil
}

// plan is what the schema pass learns.
type plan struct {
	header     []string
	structured []string
	main       *record.Columns
	outliers   *record.Columns
}

func openInput(path string, enc csvparser.Encoding, logEvery int) (*os.File, *csvparser.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	fsio.AdviseSequential(f)
	r := csvparser.NewReader(f, enc)
	r.LogEvery = logEvery
	return f, r, nil
}

func isOutlier(rec *record.Record, opts Options) (int, bool, bool) {
	hits, ok := flatten.HitCount(rec, opts.HitsColumn)
	return hits, ok, ok && hits > opts.Threshold
}

// schemaPass sniffs the structured columns from the first data row and
// collects the ordered column union of each output.
func schemaPass(ctx context.Context, opts Options, enc csvparser.Encoding) (*plan, error) {
	f, r, err := openInput(opts.Input, enc, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header, err := r.ReadHeader()
	if err != nil {
		return nil, fmt.Errorf("read header %s: %w", opts.Input, err)
	}
	header, renamed := record.UniqueHeader(header)
	if len(renamed) > 0 {
		log.Printf("schema: repeated header names renamed: %q -> %q", renamed, header)
	}
	p := &plan{header: header, main: record.NewColumns(), outliers: record.NewColumns()}
	fl := flatten.New(opts.HitsColumn, opts.IndexBase)

	sniffed := false
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
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("schema pass: %w", err)
		}

		rec := record.FromRow(header, row.Cells)
		if !sniffed {
			p.structured = flatten.DetectStructured(rec)
			sniffed = true
		}
		out := fl.Flatten(rec, p.structured)
		if _, _, outlier := isOutlier(out, opts); outlier {
			p.outliers.AddRecord(out)
		} else {
			p.main.AddRecord(out)
		}
	}
	return p, nil
}

// item is one data line of a group: a parsed row or a row error.
type item struct {
	row csvparser.Row
	err *csvparser.RowError
}

// readGroups sends groups of up to size items on out, in input order.
func readGroups(ctx context.Context, r *csvparser.Reader, size int, out chan<- []item) error {
	batch := make([]item, 0, size)
	send := func() error {
		select {
		case out <- batch:
			batch = make([]item, 0, size)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for {
		row, err := r.Next()
		if err == io.EOF {
			break
		}
		var re *csvparser.RowError
		switch {
		case errors.As(err, &re):
			batch = append(batch, item{err: re})
		case err != nil:
			return err
		default:
			batch = append(batch, item{row: row})
		}
		if len(batch) >= size {
			if err := send(); err != nil {
				return err
			}
		}
	}
	if len(batch) > 0 {
		return send()
	}
	return nil
}

// writePass writes both outputs and returns the stats plus the number of
// data lines read.
func writePass(ctx context.Context, opts Options, info csvparser.FileInfo, p *plan, skips *skiplog.Log) (*Stats, int, error) {
	f, r, err := openInput(opts.Input, info.Encoding, opts.LogEvery)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	if _, err := r.ReadHeader(); err != nil {
		return nil, 0, fmt.Errorf("read header %s: %w", opts.Input, err)
	}

	mainOut := newStream(StreamMain, opts.Output, p.main.Names())
	if err := mainOut.open(); err != nil {
		return nil, 0, err
	}
	defer mainOut.close()
	outOut := newStream(StreamOutliers, opts.Outliers, p.outliers.Names())
	defer outOut.close()

	c := &consumer{
		opts:     opts,
		header:   p.header,
		fl:       flatten.New(opts.HitsColumn, opts.IndexBase),
		plan:     p,
		main:     mainOut,
		outliers: outOut,
		skips:    skips,
		stats:    newStats(),
		total:    info.Lines - 1,
		started:  time.Now(),
	}

	g, gctx := errgroup.WithContext(ctx)
	groups := make(chan []item, 1)

	if opts.Sink != nil {
		c.cells = make(chan []any, opts.SinkBatch)
		g.Go(func() error {
			n, err := storage.LoadBatches(gctx, storage.CellColumns, c.cells, opts.SinkBatch, opts.Sink.CopyFrom)
			c.stats.SinkRows = n
			if err != nil {
				return fmt.Errorf("sink: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(groups)
		if err := readGroups(gctx, r, opts.BatchSize, groups); err != nil {
			return fmt.Errorf("read %s: %w", opts.Input, err)
		}
		return nil
	})

	g.Go(func() error {
		if c.cells != nil {
			defer close(c.cells)
		}
		for items := range groups {
			if err := c.writeGroup(gctx, items); err != nil {
				return err
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	if err := errors.Join(mainOut.close(), outOut.close()); err != nil {
		return nil, 0, err
	}
	c.stats.finish()
	return c.stats, c.rowNum, nil
}

// consumer flattens and writes groups. It runs on a single goroutine.
type consumer struct {
	opts     Options
	header   []string
	fl       *flatten.Flattener
	plan     *plan
	main     *stream
	outliers *stream
	skips    *skiplog.Log
	stats    *Stats
	cells    chan []any

	rowNum  int
	total   int
	started time.Time
}

// groupCounts are per-group deltas reported to metrics.
type groupCounts struct {
	processed, written, outliers, repaired, verbatim int64
}

func (c *consumer) writeGroup(ctx context.Context, items []item) error {
	var gc groupCounts
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.rowNum++
		if it.err != nil {
			if err := c.wideRow(it.err, &gc); err != nil {
				return err
			}
			continue
		}
		if err := c.row(ctx, it.row, &gc); err != nil {
			return err
		}
	}
	if err := c.main.flush(); err != nil {
		return err
	}
	if err := c.outliers.flush(); err != nil {
		return err
	}

	c.stats.Batches++
	metrics.RecordBatches(c.opts.Job, 1)
	metrics.RecordRow(c.opts.Job, "processed", gc.processed)
	metrics.RecordRow(c.opts.Job, "written", gc.written)
	metrics.RecordRow(c.opts.Job, "outliers", gc.outliers)
	metrics.RecordRow(c.opts.Job, "repaired", gc.repaired)
	metrics.RecordRow(c.opts.Job, "verbatim", gc.verbatim)

	log.Printf("driver: group=%d rows=%d/%d outliers=%d max_hits=%d elapsed=%s",
		c.stats.Batches, c.rowNum, c.total, len(c.stats.Outliers), c.stats.MaxHits,
		time.Since(c.started).Truncate(time.Millisecond))
	return nil
}

func (c *consumer) row(ctx context.Context, row csvparser.Row, gc *groupCounts) error {
	c.stats.Rows++
	gc.processed++

	h := xxh3.HashString(row.Raw)
	if _, dup := c.stats.seen[h]; dup {
		c.stats.DuplicateRows++
	} else {
		c.stats.seen[h] = struct{}{}
	}

	if row.Repaired {
		c.stats.Repaired++
		gc.repaired++
		c.stats.addError(CatLineRepair, fmt.Sprintf("line %d: split with the loose parser", row.Line))
	}

	res := c.fl.FlattenDetailed(record.FromRow(c.header, row.Cells), c.plan.structured)
	for _, s := range res.Skipped {
		c.stats.SkippedColumns[s.Column]++
		c.stats.addError(CatParseFailure, fmt.Sprintf("line %d: column %s: %v", row.Line, s.Column, s.Err))
		c.skips.Add(skiplog.ReasonDecode, row.Line, s.Column+": "+s.Err.Error(), row.Raw)
		metrics.RecordSkippedColumn(c.opts.Job, s.Column, s.Reason)
	}

	hits, hasHits, outlier := isOutlier(res.Record, c.opts)
	if hasHits {
		c.stats.observeHits(hits)
		metrics.RecordHits(c.opts.Job, hits)
	}

	w := c.main
	if outlier {
		w = c.outliers
		gc.outliers++
		c.stats.Outliers = append(c.stats.Outliers, Outlier{Row: c.rowNum, Line: row.Line, Hits: hits})
		log.Printf("driver: outlier row=%d line=%d hits=%d", c.rowNum, row.Line, hits)
	}

	cells := res.Record.Strings(w.cols)
	if err := w.write(cells); err != nil {
		return err
	}
	c.stats.Written++
	gc.written++

	if c.cells == nil {
		return nil
	}
	for i, col := range w.cols {
		if cells[i] == "" {
			continue
		}
		select {
		case c.cells <- []any{c.opts.RunID, c.rowNum, w.name, col, cells[i]}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// wideRow handles a line that could not be split to the header width: it is
// logged, then copied verbatim to the main output unless DropWide is set.
func (c *consumer) wideRow(re *csvparser.RowError, gc *groupCounts) error {
	c.stats.addError(CatRowFailure, fmt.Sprintf("line %d: %d cells, header has %d: %v", re.Line, re.Cells, len(c.header), re.Err))
	detail := fmt.Sprintf("cells=%d header=%d", re.Cells, len(c.header))

	if c.opts.DropWide {
		c.stats.Dropped++
		c.skips.Add(skiplog.ReasonWidth, re.Line, detail, re.Raw)
		return nil
	}

	if err := c.main.writeRaw(re.Raw); err != nil {
		return fmt.Errorf("write verbatim line %d: %w", re.Line, err)
	}
	c.stats.Verbatim++
	gc.verbatim++
	c.stats.addError(CatVerbatimWrite, fmt.Sprintf("line %d: written verbatim", re.Line))
	c.skips.Add(skiplog.ReasonVerbatim, re.Line, detail, re.Raw)
	return nil
}
