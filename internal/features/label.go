package features

import (
	"math"
	"sort"
)

// Quantile returns the q-th quantile of v using linear interpolation between
// closest ranks, pos = (n-1)*q. q is clamped to [0,1]; an empty series yields 0
// and a NaN q yields NaN.
func Quantile(v []float64, q float64) float64 {
	if len(v) == 0 {
		return 0
	}
	if math.IsNaN(q) {
		return math.NaN()
	}
	q = math.Max(0, math.Min(1, q))
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	pos := float64(len(s)-1) * q
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return s[lo]
	}
	frac := pos - float64(lo)
	return s[lo] + (s[hi]-s[lo])*frac
}

// RushLabels marks 1 where v exceeds thr.
func RushLabels(v []float64, thr float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		if x > thr {
			out[i] = 1
		}
	}
	return out
}

// Shift returns the labels moved back by shift positions, so row i holds
// labels[i+shift]. Rows with no future are cut rather than zero-filled.
func Shift(labels []float32, shift int) []float32 {
	if shift >= len(labels) {
		return []float32{}
	}
	out := make([]float32, len(labels)-shift)
	copy(out, labels[shift:])
	return out
}

// Rate is the fraction of labels equal to 1.
func Rate(labels []float32) float64 {
	if len(labels) == 0 {
		return 0
	}
	n := 0
	for _, y := range labels {
		if y == 1 {
			n++
		}
	}
	return float64(n) / float64(len(labels))
}
