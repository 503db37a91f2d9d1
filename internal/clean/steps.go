package clean

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// CategoryLimit is the number of distinct values below which a text column
// is treated as categorical and lower-cased.
const CategoryLimit = 20

// numericShare is the share of non-empty cells that must parse as numbers
// for a column to count as numeric.
const numericShare = 0.95

// Batch is a run of data rows under one header. Rows are padded to the
// header width before any step runs.
type Batch struct {
	Header []string
	Rows   [][]string
}

// column returns the cells of column i.
func (b *Batch) column(i int) []string {
	out := make([]string, len(b.Rows))
	for r, row := range b.Rows {
		out[r] = row[i]
	}
	return out
}

// Changes counts what the steps did, keyed by a human readable label.
type Changes map[string]int

func (c Changes) add(label string, n int) {
	if n > 0 {
		c[label] += n
	}
}

// Step is one cleaning transform. Steps mutate the batch in place.
type Step interface {
	Apply(b *Batch, ch Changes)
}

// Chain is an ordered list of steps.
type Chain []Step

func (c Chain) Apply(b *Batch, ch Changes) {
	for _, s := range c {
		s.Apply(b, ch)
	}
}

// DefaultChain is the order the cleaner runs its steps in.
func DefaultChain() Chain {
	return Chain{TextStep{}, DateStep{}, NumericStep{}, CategoryStep{}}
}

// TextStep normalizes whitespace and Unicode form in every cell.
type TextStep struct{}

func (TextStep) Apply(b *Batch, ch Changes) {
	for i, name := range b.Header {
		n := 0
		for _, row := range b.Rows {
			if s := Text(row[i]); s != row[i] {
				row[i] = s
				n++
			}
		}
		ch.add(fmt.Sprintf("text cleanup in column '%s'", name), n)
	}
}

// DateStep rewrites dates in columns whose name mentions a date.
type DateStep struct{}

func (DateStep) Apply(b *Batch, ch Changes) {
	for i, name := range b.Header {
		if !IsDateColumn(name) {
			continue
		}
		n := 0
		for _, row := range b.Rows {
			if s, ok := Date(row[i]); ok && s != row[i] {
				row[i] = s
				n++
			}
		}
		ch.add(fmt.Sprintf("date format fixed in column '%s'", name), n)
	}
}

// NumericStep counts cells of numeric columns that do not parse, and values
// more than three interquartile ranges outside the quartiles. Nothing is
// rewritten.
type NumericStep struct{}

func (NumericStep) Apply(b *Batch, ch Changes) {
	for i, name := range b.Header {
		vals, bad, ok := numericColumn(b.column(i))
		if !ok {
			continue
		}
		ch.add(fmt.Sprintf("invalid numeric values in '%s'", name), bad)
		ch.add(fmt.Sprintf("outliers in column '%s'", name), countOutliers(vals, 3))
	}
}

// CategoryStep lower-cases text columns with few distinct values.
type CategoryStep struct{}

func (CategoryStep) Apply(b *Batch, ch Changes) {
	for i, name := range b.Header {
		if IsDateColumn(name) {
			continue
		}
		cells := b.column(i)
		if _, _, numeric := numericColumn(cells); numeric {
			continue
		}
		distinct := make(map[string]struct{})
		for _, c := range cells {
			if c == "" {
				continue
			}
			distinct[c] = struct{}{}
			if len(distinct) >= CategoryLimit {
				break
			}
		}
		if len(distinct) == 0 || len(distinct) >= CategoryLimit {
			continue
		}
		n := 0
		for _, row := range b.Rows {
			if s := strings.ToLower(row[i]); s != row[i] {
				row[i] = s
				n++
			}
		}
		ch.add(fmt.Sprintf("categories normalized in column '%s'", name), n)
	}
}

// numericColumn parses the non-empty cells. ok is false when too few of
// them are numbers for the column to count as numeric.
func numericColumn(cells []string) (vals []float64, bad int, ok bool) {
	filled := 0
	for _, c := range cells {
		if c == "" {
			continue
		}
		filled++
		f, err := strconv.ParseFloat(c, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			bad++
			continue
		}
		vals = append(vals, f)
	}
	if len(vals) == 0 || float64(len(vals)) < numericShare*float64(filled) {
		return nil, 0, false
	}
	return vals, bad, true
}

// countOutliers counts values below Q1-k*IQR or above Q3+k*IQR.
func countOutliers(vals []float64, k float64) int {
	if len(vals) < 4 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	q1, q3 := quantile(sorted, 0.25), quantile(sorted, 0.75)
	iqr := q3 - q1
	lo, hi := q1-k*iqr, q3+k*iqr
	n := 0
	for _, v := range sorted {
		if v < lo || v > hi {
			n++
		}
	}
	return n
}

// quantile interpolates linearly between closest ranks of sorted.
func quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	if lo+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
