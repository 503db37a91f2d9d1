package skiplog

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open for read: %v", err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		t.Fatalf("readall: %v", err)
	}
	return rows
}

// TestNew_CreatesDirFileAndHeader verifies that New creates missing parent
// directories and writes the header row immediately.
func TestNew_CreatesDirFileAndHeader(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "skipped", "flatten.csv")
	l, closeFn, err := New(target)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	closeFn()
	closeFn()

	rows := readRows(t, target)
	want := [][]string{{"reason", "line_number", "detail", "raw_line"}}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows = %#v, want %#v", rows, want)
	}
	if l.Count(ReasonWidth) != 0 {
		t.Fatalf("fresh log has counts")
	}
}

// TestAdd_WritesRowsAndCounts checks quoting of raw lines with commas,
// quotes and newlines, plus per-reason counters.
func TestAdd_WritesRowsAndCounts(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "skipped.csv")
	l, closeFn, err := New(target)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closeFn()

	l.Add(ReasonWidth, 2, "cells=5", `1,"[{'a': 1}]",x,y,z`)
	l.Add(ReasonVerbatim, 2, "", "multi\nline")
	l.Add(ReasonWidth, 9, "cells=4", "a,b,c,d")
	closeFn()

	rows := readRows(t, target)
	want := [][]string{
		{"reason", "line_number", "detail", "raw_line"},
		{ReasonWidth, "2", "cells=5", `1,"[{'a': 1}]",x,y,z`},
		{ReasonVerbatim, "2", "", "multi\nline"},
		{ReasonWidth, "9", "cells=4", "a,b,c,d"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows mismatch\ngot : %#v\nwant: %#v", rows, want)
	}

	keys, counts := l.Reasons()
	if !reflect.DeepEqual(keys, []string{ReasonWidth, ReasonVerbatim}) {
		t.Fatalf("keys = %v", keys)
	}
	if counts[ReasonWidth] != 2 || counts[ReasonVerbatim] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestNilLogIsNoop(t *testing.T) {
	t.Parallel()

	var l *Log
	l.Add(ReasonWidth, 1, "", "")
	if l.Count(ReasonWidth) != 0 {
		t.Fatalf("nil log counted")
	}
}
