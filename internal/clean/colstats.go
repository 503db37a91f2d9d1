package clean

import (
	"math"
	"sort"
	"unicode/utf8"
)

const topValues = 5

// Column kinds.
const (
	KindNumeric = "numeric"
	KindText    = "text"
)

// ValueCount is one frequent value of a text column.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ColumnStats describes one column of the first cleaned batch.
type ColumnStats struct {
	Kind  string `json:"kind"`
	Nulls int    `json:"nulls"`

	Mean   float64 `json:"mean,omitempty"`
	Median float64 `json:"median,omitempty"`
	Std    float64 `json:"std,omitempty"`
	Min    float64 `json:"min,omitempty"`
	Max    float64 `json:"max,omitempty"`
	Zeros  int     `json:"zeros,omitempty"`

	AvgLength float64      `json:"avg_length,omitempty"`
	Top       []ValueCount `json:"top_values,omitempty"`
}

// ComputeColumnStats describes every column of b. Empty cells count as
// nulls. Numeric columns report the sample standard deviation.
func ComputeColumnStats(b *Batch) map[string]*ColumnStats {
	out := make(map[string]*ColumnStats, len(b.Header))
	for i, name := range b.Header {
		cells := b.column(i)
		if vals, _, ok := numericColumn(cells); ok {
			out[name] = numericStats(cells, vals)
		} else {
			out[name] = textStats(cells)
		}
	}
	return out
}

func numericStats(cells []string, vals []float64) *ColumnStats {
	s := &ColumnStats{Kind: KindNumeric, Nulls: len(cells) - len(vals)}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	var sum float64
	for _, v := range sorted {
		sum += v
		if v == 0 {
			s.Zeros++
		}
	}
	s.Mean = sum / float64(len(sorted))
	s.Median = quantile(sorted, 0.5)
	s.Min, s.Max = sorted[0], sorted[len(sorted)-1]
	if len(sorted) > 1 {
		var sq float64
		for _, v := range sorted {
			d := v - s.Mean
			sq += d * d
		}
		s.Std = math.Sqrt(sq / float64(len(sorted)-1))
	}
	return s
}

func textStats(cells []string) *ColumnStats {
	s := &ColumnStats{Kind: KindText}
	counts := make(map[string]int)
	var runes int
	for _, c := range cells {
		if c == "" {
			s.Nulls++
			continue
		}
		counts[c]++
		runes += utf8.RuneCountInString(c)
	}
	if len(cells) > 0 {
		s.AvgLength = float64(runes) / float64(len(cells))
	}
	for v, n := range counts {
		s.Top = append(s.Top, ValueCount{Value: v, Count: n})
	}
	sort.Slice(s.Top, func(i, j int) bool {
		if s.Top[i].Count != s.Top[j].Count {
			return s.Top[i].Count > s.Top[j].Count
		}
		return s.Top[i].Value < s.Top[j].Value
	})
	if len(s.Top) > topValues {
		s.Top = s.Top[:topValues]
	}
	return s
}
