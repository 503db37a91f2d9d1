package report

import (
	"math"
	"sort"
)

// HitStats summarizes the hits-per-row distribution. Percentiles use linear
// interpolation between closest ranks; Std is the population deviation.
type HitStats struct {
	Rows   int     `json:"rows"`
	Min    int     `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Mean   float64 `json:"mean"`
	Q3     float64 `json:"q3"`
	Max    int     `json:"max"`
	Std    float64 `json:"std"`

	// Box plot whiskers reach the most extreme values within 1.5 IQR of the
	// quartiles; Fliers are the distinct values beyond them.
	WhiskerLow  int   `json:"whisker_low"`
	WhiskerHigh int   `json:"whisker_high"`
	Fliers      []int `json:"fliers,omitempty"`
}

// ComputeHitStats derives HitStats from a value -> row count histogram. It
// returns false when the histogram is empty.
func ComputeHitStats(hist map[int]int) (HitStats, bool) {
	values := make([]int, 0, len(hist))
	n := 0
	for v, c := range hist {
		if c <= 0 {
			continue
		}
		values = append(values, v)
		n += c
	}
	if n == 0 {
		return HitStats{}, false
	}
	sort.Ints(values)

	// nth returns the k-th smallest value, 0-based.
	nth := func(k int) int {
		for _, v := range values {
			k -= hist[v]
			if k < 0 {
				return v
			}
		}
		return values[len(values)-1]
	}
	percentile := func(p float64) float64 {
		pos := p * float64(n-1)
		lo := int(math.Floor(pos))
		frac := pos - float64(lo)
		a := float64(nth(lo))
		if frac == 0 || lo+1 >= n {
			return a
		}
		return a + frac*(float64(nth(lo+1))-a)
	}

	var sum float64
	for _, v := range values {
		sum += float64(v) * float64(hist[v])
	}
	mean := sum / float64(n)
	var sq float64
	for _, v := range values {
		d := float64(v) - mean
		sq += d * d * float64(hist[v])
	}

	s := HitStats{
		Rows:   n,
		Min:    values[0],
		Q1:     percentile(0.25),
		Median: percentile(0.5),
		Mean:   mean,
		Q3:     percentile(0.75),
		Max:    values[len(values)-1],
		Std:    math.Sqrt(sq / float64(n)),
	}

	iqr := s.Q3 - s.Q1
	lowFence, highFence := s.Q1-1.5*iqr, s.Q3+1.5*iqr
	s.WhiskerLow, s.WhiskerHigh = s.Max, s.Min
	for _, v := range values {
		fv := float64(v)
		if fv < lowFence || fv > highFence {
			s.Fliers = append(s.Fliers, v)
			continue
		}
		if v < s.WhiskerLow {
			s.WhiskerLow = v
		}
		if v > s.WhiskerHigh {
			s.WhiskerHigh = v
		}
	}
	return s, true
}
