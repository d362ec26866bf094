package features

import "math"

// Smoothing factors for the two EMA columns. Flow is smoothed less so rushes stay visible.
const (
	LevelAlpha = 0.1
	FlowAlpha  = 0.2
)

// EMA returns the exponential moving average of v: s[0]=v[0], s[i]=a*v[i]+(1-a)*s[i-1].
func EMA(v []float64, alpha float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		if i == 0 {
			out[i] = x
			continue
		}
		out[i] = alpha*x + (1-alpha)*out[i-1]
	}
	return out
}

// ForwardFill resolves missing readings to the last valid value, or 0 before the first one.
// NaN and Inf are treated as missing.
func ForwardFill(v []*float64) []float64 {
	out := make([]float64, len(v))
	last := 0.0
	for i, p := range v {
		if p != nil && !math.IsNaN(*p) && !math.IsInf(*p, 0) {
			last = *p
		}
		out[i] = last
	}
	return out
}
