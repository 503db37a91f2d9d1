package report

import (
	"math"
	"reflect"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestComputeHitStats(t *testing.T) {
	t.Parallel()

	s, ok := ComputeHitStats(map[int]int{1: 1, 2: 1, 3: 1, 4: 1})
	if !ok {
		t.Fatalf("ComputeHitStats returned !ok")
	}
	if s.Rows != 4 || s.Min != 1 || s.Max != 4 {
		t.Fatalf("stats = %+v", s)
	}
	for name, got := range map[string][2]float64{
		"q1":     {s.Q1, 1.75},
		"median": {s.Median, 2.5},
		"q3":     {s.Q3, 3.25},
		"mean":   {s.Mean, 2.5},
		"std":    {s.Std, math.Sqrt(1.25)},
	} {
		if !near(got[0], got[1]) {
			t.Errorf("%s = %v, want %v", name, got[0], got[1])
		}
	}
	if s.WhiskerLow != 1 || s.WhiskerHigh != 4 || len(s.Fliers) != 0 {
		t.Fatalf("whiskers = %d..%d fliers=%v", s.WhiskerLow, s.WhiskerHigh, s.Fliers)
	}
}

func TestComputeHitStats_Fliers(t *testing.T) {
	t.Parallel()

	s, ok := ComputeHitStats(map[int]int{1: 4, 100: 1, 7: 0})
	if !ok {
		t.Fatalf("!ok")
	}
	if s.Rows != 5 || s.Median != 1 || s.Q1 != 1 || s.Q3 != 1 || s.Max != 100 {
		t.Fatalf("stats = %+v", s)
	}
	if !near(s.Mean, 104.0/5) {
		t.Fatalf("mean = %v", s.Mean)
	}
	if s.WhiskerLow != 1 || s.WhiskerHigh != 1 || !reflect.DeepEqual(s.Fliers, []int{100}) {
		t.Fatalf("whiskers = %d..%d fliers=%v", s.WhiskerLow, s.WhiskerHigh, s.Fliers)
	}
}

func TestComputeHitStats_Empty(t *testing.T) {
	t.Parallel()

	if _, ok := ComputeHitStats(nil); ok {
		t.Fatalf("empty histogram reported ok")
	}
	if _, ok := ComputeHitStats(map[int]int{3: 0}); ok {
		t.Fatalf("zero-count histogram reported ok")
	}
}
