package report

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"hitsflat/internal/driver"
)

// File names written by Write.
const (
	SummaryFile = "flatten_summary.json"
	TextFile    = "flatten_report.txt"
	HTMLFile    = "hits_report.html"
)

// TopN is the number of outliers printed on the console.
const TopN = 10

// SortedOutliers returns a copy of outliers ordered by hits, highest first.
// Ties keep row order.
func SortedOutliers(outliers []driver.Outlier) []driver.Outlier {
	out := append([]driver.Outlier(nil), outliers...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Hits > out[j].Hits })
	return out
}

// runDoc is the JSON summary document.
type runDoc struct {
	*driver.Summary
	DurationSeconds float64   `json:"duration_seconds"`
	Hits            *HitStats `json:"hit_stats,omitempty"`
}

// Write renders the JSON, text and HTML reports of sum into dir and returns
// the paths written. The HTML report is skipped when no row had hits.
func Write(dir string, sum *driver.Summary) ([]string, error) {
	doc := runDoc{Summary: sum, DurationSeconds: sum.Duration().Seconds()}
	hs, hasHits := ComputeHitStats(sum.Stats.HitHistogram)
	if hasHits {
		doc.Hits = &hs
	}

	var written []string
	p := filepath.Join(dir, SummaryFile)
	if err := WriteJSON(p, doc); err != nil {
		return written, err
	}
	written = append(written, p)

	p = filepath.Join(dir, TextFile)
	if err := WriteFile(p, func(w io.Writer) error { return WriteFlattenText(w, sum) }); err != nil {
		return written, err
	}
	written = append(written, p)

	if hasHits {
		p = filepath.Join(dir, HTMLFile)
		if err := WriteFile(p, func(w io.Writer) error { return WriteHitsHTML(w, sum) }); err != nil {
			return written, err
		}
		written = append(written, p)
	}
	return written, nil
}

// WriteFlattenText writes the plain-text run report.
func WriteFlattenText(w io.Writer, sum *driver.Summary) error {
	st := sum.Stats
	t := NewText(w)
	t.Title("FLATTEN REPORT",
		"Run: "+sum.RunID,
		"Date: "+sum.Finished.Format("2006-01-02 15:04:05"))

	t.Section("SUMMARY")
	t.Linef("Input: %s (%s, %d lines)", sum.Input, sum.Encoding, sum.Lines)
	t.Linef("Output: %s", sum.Output)
	t.Linef("Outliers output: %s", sum.Outliers)
	t.Linef("Processing time: %.2f minutes (%.2f seconds)", sum.Duration().Minutes(), sum.Duration().Seconds())
	t.Linef("Rows processed: %d", st.Rows)
	t.Linef("Rows written verbatim: %d", st.Verbatim)
	t.Linef("Rows dropped: %d", st.Dropped)
	t.Linef("Duplicate rows: %d", st.DuplicateRows)
	t.Linef("Row groups: %d", st.Batches)
	t.Linef("Columns: %d (outliers: %d)", st.Columns, st.OutlierColumns)
	t.Linef("Structured columns: %v", sum.Structured)
	t.Linef("Index base: %d", sum.IndexBase)
	t.Linef("")

	t.Section("HITS")
	t.Linef("Maximum hits in a row: %d", st.MaxHits)
	if hs, ok := ComputeHitStats(st.HitHistogram); ok {
		t.Linef("Rows with hits: %d", hs.Rows)
		t.Linef("Min: %d  Q1: %.2f  Median: %.2f  Mean: %.2f  Q3: %.2f  Max: %d  Std: %.2f",
			hs.Min, hs.Q1, hs.Median, hs.Mean, hs.Q3, hs.Max, hs.Std)
	}
	t.Linef("Rows above %d hits: %d", sum.Threshold, len(st.Outliers))
	t.Linef("")

	if len(st.SkippedColumns) > 0 {
		t.Section("DROPPED STRUCTURED VALUES")
		cols := make([]string, 0, len(st.SkippedColumns))
		for c := range st.SkippedColumns {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		for _, c := range cols {
			t.Bullet("%s: %d", c, st.SkippedColumns[c])
		}
		t.Linef("")
	}

	cats := make([]string, 0, len(st.Errors))
	for c, e := range st.Errors {
		if e.Count > 0 {
			cats = append(cats, c)
		}
	}
	if len(cats) > 0 {
		sort.Strings(cats)
		t.Section("ERRORS")
		for _, c := range cats {
			e := st.Errors[c]
			t.Bullet("%s: %d", c, e.Count)
			for _, m := range e.First {
				t.Linef("    %s", m)
			}
		}
		t.Linef("")
	}

	if len(st.Outliers) > 0 {
		t.Section("ROWS WITH THE MOST HITS")
		PrintTopOutliers(w, st.Outliers, TopN)
	}
	return t.Err()
}

// PrintTopOutliers prints the n outliers with most hits, then how many more
// there are.
func PrintTopOutliers(w io.Writer, outliers []driver.Outlier, n int) {
	sorted := SortedOutliers(outliers)
	for i, o := range sorted {
		if i == n {
			fmt.Fprintf(w, "... and %d more rows\n", len(sorted)-n)
			break
		}
		fmt.Fprintf(w, "Row %d (line %d): %d hits\n", o.Row, o.Line, o.Hits)
	}
}

// elapsed formats a duration for the HTML page.
func elapsed(d time.Duration) string { return d.Truncate(time.Millisecond).String() }
