package clean

import (
	"io"
	"path/filepath"
	"sort"

	"hitsflat/internal/report"
)

// Report files written by WriteReports.
const (
	JSONFile = "cleaning_report.json"
	TextFile = "cleaning_report.txt"
)

const (
	maxTextColumns = 20
	maxTextErrors  = 10
	maxValueLen    = 50
)

// WriteReports writes the JSON and text reports into dir.
func WriteReports(dir string, rep *Report) ([]string, error) {
	jsonPath := filepath.Join(dir, JSONFile)
	if err := report.WriteJSON(jsonPath, rep); err != nil {
		return nil, err
	}
	textPath := filepath.Join(dir, TextFile)
	if err := report.WriteFile(textPath, func(w io.Writer) error { return WriteText(w, rep) }); err != nil {
		return nil, err
	}
	return []string{jsonPath, textPath}, nil
}

// WriteText renders rep as plain text.
func WriteText(w io.Writer, rep *Report) error {
	t := report.NewText(w)
	t.Title("DATA CLEANING REPORT", "Date: "+rep.Finished.Format("02/01/2006 15:04:05"))

	secs := rep.Duration().Seconds()
	t.Section("SUMMARY")
	t.Linef("Input file: %s", rep.Input)
	t.Linef("Output file: %s", rep.Output)
	t.Linef("Encoding: %s", rep.Encoding)
	t.Linef("Processing time: %.2f minutes (%.2f seconds)", secs/60, secs)
	t.Linef("Rows processed: %d", rep.Rows)
	t.Linef("Rows with errors: %d", rep.ErrorRows)
	t.Linef("Peak heap: %.2f MB", rep.PeakHeap)
	t.Linef("Mean heap: %.2f MB", rep.MeanHeap)
	t.Linef("")

	t.Section("CHANGES")
	labels := make([]string, 0, len(rep.Changes))
	for l := range rep.Changes {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for _, l := range labels {
		t.Bullet("%s: %d", l, rep.Changes[l])
	}
	t.Linef("")

	t.Section("COLUMNS")
	t.Linef("Columns: %d", len(rep.Columns))
	t.Linef("")

	t.Section("COLUMN STATISTICS")
	for i, name := range rep.Columns {
		if i == maxTextColumns {
			t.Linef("... and %d more columns.", len(rep.Columns)-maxTextColumns)
			break
		}
		s, ok := rep.ColumnStats[name]
		if !ok {
			continue
		}
		t.Linef("Column: %s", name)
		t.Linef("  Kind: %s", s.Kind)
		if s.Kind == KindNumeric {
			t.Linef("  Mean: %.2f", s.Mean)
			t.Linef("  Median: %.2f", s.Median)
			t.Linef("  Std deviation: %.2f", s.Std)
			t.Linef("  Min: %g", s.Min)
			t.Linef("  Max: %g", s.Max)
			t.Linef("  Nulls: %d", s.Nulls)
			t.Linef("  Zeros: %d", s.Zeros)
		} else {
			t.Linef("  Nulls: %d", s.Nulls)
			t.Linef("  Average length: %.2f", s.AvgLength)
			t.Linef("  Most frequent values:")
			for _, v := range s.Top {
				t.Linef("    - %s: %d", shorten(v.Value), v.Count)
			}
		}
		t.Linef("")
	}

	if rep.ErrorRows > 0 {
		t.Section("LINES WITH ERRORS")
		t.Linef("Total lines with errors: %d", rep.ErrorRows)
		t.Linef("")
		shown := min(len(rep.Errors), maxTextErrors)
		for _, e := range rep.Errors[:shown] {
			t.Linef("Line %d: %s", e.Line, e.Message)
		}
		if rep.ErrorRows > shown {
			t.Linef("... and %d more errors", rep.ErrorRows-shown)
		}
	}

	t.Linef("")
	t.Linef("END OF REPORT")
	return t.Err()
}

func shorten(s string) string {
	r := []rune(s)
	if len(r) > maxValueLen {
		return string(r[:maxValueLen-3]) + "..."
	}
	return s
}

