package driver

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	csvparser "hitsflat/internal/parser/csv"
	"hitsflat/internal/skiplog"
)

type paths struct {
	in, out, outliers, skipped string
}

func setup(t *testing.T, content string) paths {
	t.Helper()
	dir := t.TempDir()
	p := paths{
		in:       filepath.Join(dir, "visits.csv"),
		out:      filepath.Join(dir, "out", "flat.csv"),
		outliers: filepath.Join(dir, "out", "outliers.csv"),
		skipped:  filepath.Join(dir, "skipped", "flatten.csv"),
	}
	if err := os.WriteFile(p.in, []byte(content), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return p
}

func (p paths) options() Options {
	return Options{
		Input:      p.in,
		Output:     p.out,
		Outliers:   p.outliers,
		SkippedLog: p.skipped,
		Threshold:  DefaultThreshold,
		IndexBase:  1,
		RunID:      "run-1",
	}
}

func readText(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}

func readSkipped(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
	return rows[1:]
}

const basicInput = "id,hits,device\n" +
	"1,\"[{'hitNumber': '1', 'page': {'path': '/a'}}]\",\"{'browser': 'Chrome'}\"\n" +
	"2,[],\"{'browser': 'Firefox', 'mobile': True}\"\n"

func TestRun_FlattensWithUnionHeader(t *testing.T) {
	t.Parallel()

	p := setup(t, basicInput)
	sum, err := Run(context.Background(), p.options())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := "id,hits_count,hits_1_hitNumber,hits_1_page_path,device_browser,device_mobile\n" +
		"1,1,1,/a,Chrome,\n" +
		"2,0,,,Firefox,True\n"
	if got := readText(t, p.out); got != want {
		t.Fatalf("output =\n%s\nwant\n%s", got, want)
	}
	if _, err := os.Stat(p.outliers); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("outlier file should not exist without outliers, stat err = %v", err)
	}

	if !reflect.DeepEqual(sum.Structured, []string{"hits", "device"}) {
		t.Fatalf("structured = %v", sum.Structured)
	}
	st := sum.Stats
	if st.Rows != 2 || st.Written != 2 || st.Batches != 1 || st.Columns != 6 || st.OutlierColumns != 0 {
		t.Fatalf("stats = %+v", st)
	}
	if st.MaxHits != 1 || !reflect.DeepEqual(st.HitHistogram, map[int]int{0: 1, 1: 1}) {
		t.Fatalf("hits: max=%d histogram=%v", st.MaxHits, st.HitHistogram)
	}
	if sum.Encoding != "utf-8" || sum.RunID != "run-1" || sum.Finished.Before(sum.Started) {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestRun_RoutesOutliers(t *testing.T) {
	t.Parallel()

	p := setup(t, "id,hits\n"+
		"1,\"[{'n': '1'}]\"\n"+
		"2,\"[{'n': '1'}, {'n': '2'}]\"\n"+
		"3,\"[{'n': '1'}]\"\n")
	opts := p.options()
	opts.Threshold = 1
	opts.BatchSize = 1

	sum, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got, want := readText(t, p.out), "id,hits_count,hits_1_n\n1,1,1\n3,1,1\n"; got != want {
		t.Fatalf("main =\n%s\nwant\n%s", got, want)
	}
	if got, want := readText(t, p.outliers), "id,hits_count,hits_1_n,hits_2_n\n2,2,1,2\n"; got != want {
		t.Fatalf("outliers =\n%s\nwant\n%s", got, want)
	}

	st := sum.Stats
	if want := []Outlier{{Row: 2, Line: 3, Hits: 2}}; !reflect.DeepEqual(st.Outliers, want) {
		t.Fatalf("outliers = %+v, want %+v", st.Outliers, want)
	}
	if st.Batches != 3 || st.MaxHits != 2 || st.Columns != 3 || st.OutlierColumns != 4 {
		t.Fatalf("stats = %+v", st)
	}
	if !reflect.DeepEqual(st.HitHistogram, map[int]int{1: 2, 2: 1}) || st.HitRows() != 3 {
		t.Fatalf("histogram = %v", st.HitHistogram)
	}
}

func TestRun_WideRowWrittenVerbatim(t *testing.T) {
	t.Parallel()

	p := setup(t, "id,hits\n"+
		"1,\"[{'n': '1'}]\"\n"+
		"9,[],extra\n"+
		"2,[]\n")
	sum, err := Run(context.Background(), p.options())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got, want := readText(t, p.out), "id,hits_count,hits_1_n\n1,1,1\n9,[],extra\n2,0,\n"; got != want {
		t.Fatalf("output =\n%s\nwant\n%s", got, want)
	}
	st := sum.Stats
	if st.Rows != 2 || st.Written != 2 || st.Verbatim != 1 || st.Dropped != 0 {
		t.Fatalf("stats = %+v", st)
	}
	if st.ErrorCount(CatRowFailure) != 1 || st.ErrorCount(CatVerbatimWrite) != 1 {
		t.Fatalf("errors = %+v", st.Errors)
	}
	skipped := readSkipped(t, p.skipped)
	if len(skipped) != 1 || skipped[0][0] != skiplog.ReasonVerbatim || skipped[0][1] != "3" || skipped[0][3] != "9,[],extra" {
		t.Fatalf("skipped = %q", skipped)
	}
}

func TestRun_DropWide(t *testing.T) {
	t.Parallel()

	p := setup(t, "id,hits\n1,[]\n9,[],extra\n")
	opts := p.options()
	opts.DropWide = true
	sum, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := readText(t, p.out), "id,hits_count\n1,0\n"; got != want {
		t.Fatalf("output =\n%s\nwant\n%s", got, want)
	}
	if sum.Stats.Dropped != 1 || sum.Stats.Verbatim != 0 {
		t.Fatalf("stats = %+v", sum.Stats)
	}
	skipped := readSkipped(t, p.skipped)
	if len(skipped) != 1 || skipped[0][0] != skiplog.ReasonWidth {
		t.Fatalf("skipped = %q", skipped)
	}
}

func TestRun_UndecodableColumnIsCounted(t *testing.T) {
	t.Parallel()

	p := setup(t, "id,device\n"+
		"1,\"{'a': 'x'}\"\n"+
		"2,\"{'a': 'y'\"\n")
	sum, err := Run(context.Background(), p.options())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := readText(t, p.out), "id,device_a\n1,x\n2,\n"; got != want {
		t.Fatalf("output =\n%s\nwant\n%s", got, want)
	}
	st := sum.Stats
	if st.ErrorCount(CatParseFailure) != 1 || st.SkippedColumns["device"] != 1 {
		t.Fatalf("stats = %+v", st)
	}
	if len(st.Errors[CatParseFailure].First) != 1 || !strings.Contains(st.Errors[CatParseFailure].First[0], "line 3: column device") {
		t.Fatalf("first errors = %q", st.Errors[CatParseFailure].First)
	}
}

func TestRun_RepairedAndDuplicateRows(t *testing.T) {
	t.Parallel()

	line := "1,\"{'t': 'a \"b\" c'}\"\n"
	p := setup(t, "id,device\n"+line+line)
	sum, err := Run(context.Background(), p.options())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	st := sum.Stats
	if st.Repaired != 2 || st.ErrorCount(CatLineRepair) != 2 || st.DuplicateRows != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestRun_Latin1InputIsWrittenAsUTF8(t *testing.T) {
	t.Parallel()

	p := setup(t, "id,ciudad\n1,Coru\xf1a\n")
	sum, err := Run(context.Background(), p.options())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Encoding != string(csvparser.Latin1) {
		t.Fatalf("encoding = %s", sum.Encoding)
	}
	if got, want := readText(t, p.out), "id,ciudad\n1,Coruña\n"; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestRun_RepeatedHeaderNamesKeepBothCells(t *testing.T) {
	t.Parallel()

	p := setup(t, "id,city,city\n1,Lima,Cusco\n")
	if _, err := Run(context.Background(), p.options()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := readText(t, p.out), "id,city,city.1\n1,Lima,Cusco\n"; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestRun_HeaderOnly(t *testing.T) {
	t.Parallel()

	p := setup(t, "id,hits\n")
	sum, err := Run(context.Background(), p.options())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := readText(t, p.out); got != "" {
		t.Fatalf("output = %q, want empty", got)
	}
	if sum.Stats.Rows != 0 || sum.Stats.Batches != 0 || sum.Structured != nil {
		t.Fatalf("summary = %+v stats = %+v", sum, sum.Stats)
	}
}

func TestRun_FatalErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing input", func(t *testing.T) {
		t.Parallel()
		p := setup(t, "")
		opts := p.options()
		opts.Input = filepath.Join(t.TempDir(), "nope.csv")
		if _, err := Run(context.Background(), opts); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("err = %v, want os.ErrNotExist", err)
		}
	})
	t.Run("empty input", func(t *testing.T) {
		t.Parallel()
		p := setup(t, "")
		if _, err := Run(context.Background(), p.options()); !errors.Is(err, csvparser.ErrNoHeader) {
			t.Fatalf("err = %v, want ErrNoHeader", err)
		}
	})
	t.Run("canceled", func(t *testing.T) {
		t.Parallel()
		p := setup(t, basicInput)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := Run(ctx, p.options()); !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	})
}

type fakeSink struct {
	mu   sync.Mutex
	rows [][]any
	err  error
}

func (f *fakeSink) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.rows = append(f.rows, rows...)
	return int64(len(rows)), nil
}

func TestRun_SinkReceivesCells(t *testing.T) {
	t.Parallel()

	p := setup(t, basicInput)
	sink := &fakeSink{}
	opts := p.options()
	opts.Sink = sink
	opts.SinkBatch = 4

	sum, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sink.rows) != 9 || sum.Stats.SinkRows != 9 {
		t.Fatalf("sink rows = %d (stats %d), want 9", len(sink.rows), sum.Stats.SinkRows)
	}
	if want := []any{"run-1", 1, StreamMain, "id", "1"}; !reflect.DeepEqual(sink.rows[0], want) {
		t.Fatalf("first cell = %v, want %v", sink.rows[0], want)
	}
	if want := []any{"run-1", 2, StreamMain, "device_mobile", "True"}; !reflect.DeepEqual(sink.rows[8], want) {
		t.Fatalf("last cell = %v, want %v", sink.rows[8], want)
	}
}

func TestRun_SinkErrorFailsRun(t *testing.T) {
	t.Parallel()

	p := setup(t, basicInput)
	want := errors.New("copy refused")
	opts := p.options()
	opts.Sink = &fakeSink{err: want}
	if _, err := Run(context.Background(), opts); !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
}

func TestOptionsDefaults(t *testing.T) {
	t.Parallel()

	o := Options{Threshold: -5}.withDefaults()
	if o.Threshold != 0 || o.BatchSize != DefaultBatchSize || o.HitsColumn != "hits" ||
		o.Job != DefaultJob || o.RunID == "" || o.SinkBatch != DefaultSinkBatch {
		t.Fatalf("defaults = %+v", o)
	}
	if o := (Options{}).withDefaults(); o.Threshold != 0 {
		t.Fatalf("zero threshold became %d", o.Threshold)
	}
}

func TestErrAgg_KeepsOnlyFirstMessages(t *testing.T) {
	t.Parallel()

	a := newErrAgg(2)
	for i := 1; i <= 1000; i++ {
		a.add(fmt.Sprintf("line %d: bad", i))
	}
	if a.count != 1000 {
		t.Fatalf("count = %d, want 1000", a.count)
	}
	if want := []string{"line 1: bad", "line 2: bad"}; !reflect.DeepEqual(a.first, want) {
		t.Fatalf("first = %q, want %q", a.first, want)
	}
}
