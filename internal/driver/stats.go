package driver

import (
	"log"
	"sort"
	"sync"
)

// Error categories kept in Stats.Errors.
const (
	CatParseFailure  = "parse_failure"  // structured column could not be decoded
	CatRowFailure    = "row_failure"    // line could not be split to the header width
	CatLineRepair    = "line_repair"    // line needed the loose splitter
	CatVerbatimWrite = "verbatim_write" // raw line copied to the output
)

// errSamples is how many messages each category keeps.
const errSamples = 5

// Outlier is a row routed to the outlier output.
type Outlier struct {
	Row  int `json:"row"`  // 1-based data row
	Line int `json:"line"` // physical line where the row starts
	Hits int `json:"hits"`
}

// ErrorSummary is the aggregated view of one error category.
type ErrorSummary struct {
	Count int      `json:"count"`
	First []string `json:"first,omitempty"`
}

// Stats describes one run. It is owned by the write pass and is only read
// after Run returns.
type Stats struct {
	Rows           int                     `json:"rows"`     // data rows flattened
	Written        int                     `json:"written"`  // flattened rows written (both outputs)
	Verbatim       int                     `json:"verbatim"` // raw lines copied to the main output
	Dropped        int                     `json:"dropped"`  // wide rows only logged
	Repaired       int                     `json:"repaired"`
	DuplicateRows  int                     `json:"duplicate_rows"`
	Batches        int                     `json:"batches"`
	MaxHits        int                     `json:"max_hits"`
	HitHistogram   map[int]int             `json:"hit_histogram"`
	Outliers       []Outlier               `json:"outliers"`
	Columns        int                     `json:"columns"`
	OutlierColumns int                     `json:"outlier_columns"`
	SkippedColumns map[string]int          `json:"skipped_columns"`
	SinkRows       int64                   `json:"sink_rows"`
	Errors         map[string]ErrorSummary `json:"errors"`

	errs map[string]*errAgg
	seen map[uint64]struct{} // xxh3 of every raw row; 8 bytes plus map overhead per distinct row
}

func newStats() *Stats {
	s := &Stats{
		HitHistogram:   make(map[int]int),
		SkippedColumns: make(map[string]int),
		errs:           make(map[string]*errAgg),
		seen:           make(map[uint64]struct{}),
	}
	for _, c := range []string{CatParseFailure, CatRowFailure, CatLineRepair, CatVerbatimWrite} {
		s.errs[c] = newErrAgg(errSamples)
	}
	return s
}

func (s *Stats) addError(cat, msg string) {
	s.errs[cat].add(msg)
}

func (s *Stats) observeHits(n int) {
	s.HitHistogram[n]++
	if n > s.MaxHits {
		s.MaxHits = n
	}
}

// HitRows returns how many rows carried a hit count.
func (s *Stats) HitRows() int {
	n := 0
	for _, c := range s.HitHistogram {
		n += c
	}
	return n
}

// ErrorCount returns the number of errors recorded under cat.
func (s *Stats) ErrorCount(cat string) int {
	return s.Errors[cat].Count
}

// finish freezes the error aggregates into Errors.
func (s *Stats) finish() {
	s.Errors = make(map[string]ErrorSummary, len(s.errs))
	for cat, a := range s.errs {
		a.mu.Lock()
		s.Errors[cat] = ErrorSummary{Count: a.count, First: append([]string(nil), a.first...)}
		a.mu.Unlock()
	}
	s.seen = nil
}

// errAgg counts errors and keeps the first few messages.
type errAgg struct {
	mu    sync.Mutex
	limit int
	count int
	first []string
}

func newErrAgg(limit int) *errAgg {
	return &errAgg{limit: limit}
}

func (a *errAgg) add(msg string) {
	a.mu.Lock()
	if a.count < a.limit {
		a.first = append(a.first, msg)
	}
	a.count++
	a.mu.Unlock()
}

// logErrorSummaries prints each non-empty category with its first messages.
func logErrorSummaries(s *Stats) {
	cats := make([]string, 0, len(s.Errors))
	for c := range s.Errors {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for _, c := range cats {
		e := s.Errors[c]
		if e.Count == 0 {
			continue
		}
		log.Printf("%s: %d (showing first %d)", c, e.Count, len(e.First))
		for i, m := range e.First {
			log.Printf("  #%03d: %s", i+1, m)
		}
	}
}

// logSummary prints the run totals and checks row accounting:
//
//	rows == written
//	rows + verbatim + dropped == data rows read
func logSummary(s *Stats, read int) {
	log.Printf(
		"summary: read=%d rows=%d written=%d outliers=%d verbatim=%d dropped=%d repaired=%d duplicates=%d batches=%d max_hits=%d columns=%d outlier_columns=%d",
		read, s.Rows, s.Written, len(s.Outliers), s.Verbatim, s.Dropped, s.Repaired,
		s.DuplicateRows, s.Batches, s.MaxHits, s.Columns, s.OutlierColumns,
	)
	if s.Rows != s.Written || s.Rows+s.Verbatim+s.Dropped != read {
		log.Printf("WARNING: row accounting mismatch: read=%d rows=%d written=%d verbatim=%d dropped=%d",
			read, s.Rows, s.Written, s.Verbatim, s.Dropped)
	}
	logErrorSummaries(s)
}
