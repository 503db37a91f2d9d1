// Package skiplog records input lines that could not be processed normally,
// one CSV row per line, and counts them per reason.
package skiplog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
)

// Reasons used by the flatten driver.
const (
	ReasonWidth    = "row_wider_than_header"
	ReasonVerbatim = "written_verbatim"
	ReasonDecode   = "structured_column_dropped"
)

// Log appends skipped lines to a CSV file. It is safe for concurrent use.
type Log struct {
	mu      sync.Mutex
	reasons map[string]int
	f       *os.File
	w       *csv.Writer
}

// New creates path (and its directory) and writes the header row. The
// returned func flushes and closes the file; it is safe to call twice.
func New(path string) (*Log, func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create dir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"reason", "line_number", "detail", "raw_line"}); err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("write header %s: %w", path, err)
	}
	l := &Log{reasons: make(map[string]int), f: f, w: w}
	var once sync.Once
	return l, func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.w.Flush()
			_ = l.f.Close()
		})
	}, nil
}

// Add records one skipped line.
func (l *Log) Add(reason string, lineNum int, detail, raw string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reasons[reason]++
	_ = l.w.Write([]string{reason, strconv.Itoa(lineNum), detail, raw})
}

// Count returns how many lines were recorded under reason.
func (l *Log) Count(reason string) int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reasons[reason]
}

// Reasons returns a copy of the per-reason counts, sorted keys first.
func (l *Log) Reasons() ([]string, map[string]int) {
	if l == nil {
		return nil, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int, len(l.reasons))
	keys := make([]string, 0, len(l.reasons))
	for k, v := range l.reasons {
		out[k] = v
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, out
}
