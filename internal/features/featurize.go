package features

import (
	"math"
	"time"

	"tankai/internal/model"
)

// Frame holds the cleaned columns of a sample series.
type Frame struct {
	Hour       []int
	Weekday    []int // Monday=0 .. Sunday=6
	LevelCM    []float64
	LevelPct   []float64
	FlowOutLPM []float64
}

// Clean extracts time parts in UTC and forward-fills the numeric readings.
func Clean(samples []model.RawSample) Frame {
	n := len(samples)
	f := Frame{Hour: make([]int, n), Weekday: make([]int, n)}
	cm := make([]*float64, n)
	pct := make([]*float64, n)
	flow := make([]*float64, n)
	for i, s := range samples {
		t := s.Time()
		f.Hour[i] = t.Hour()
		f.Weekday[i] = (int(t.Weekday()) + 6) % 7
		cm[i], pct[i], flow[i] = s.LevelCM, s.LevelPct, s.FlowOutLPM
	}
	f.LevelCM = ForwardFill(cm)
	f.LevelPct = ForwardFill(pct)
	f.FlowOutLPM = ForwardFill(flow)
	return f
}

// Cyclical maps v on a circle of the given period.
func Cyclical(v int, period float64) (sin, cos float64) {
	angle := 2 * math.Pi * float64(v) / period
	return math.Sin(angle), math.Cos(angle)
}

// Build turns an ordered sample series into feature rows labeled with the rush
// state horizon rows ahead. The trailing max(1,horizon) rows have no future and are dropped.
func Build(samples []model.RawSample, horizon int, quantile float64, now time.Time) (model.TrainingSet, model.Metadata) {
	if len(samples) == 0 {
		return model.TrainingSet{X: []model.FeatureVector{}, Y: []float32{}},
			model.Metadata{FeatureNames: []string{}, HorizonMin: horizon, Pct: quantile}
	}
	f := Clean(samples)
	lvl := EMA(f.LevelPct, LevelAlpha)
	flow := EMA(f.FlowOutLPM, FlowAlpha)

	thr := Quantile(flow, quantile)
	rush := RushLabels(flow, thr)
	shift := max(1, horizon)
	y := Shift(rush, shift)

	x := make([]model.FeatureVector, len(y))
	for i := range x {
		hs, hc := Cyclical(f.Hour[i], 24)
		ds, dc := Cyclical(f.Weekday[i], 7)
		x[i] = model.FeatureVector{
			float32(hs), float32(hc),
			float32(ds), float32(dc),
			float32(lvl[i]), float32(flow[i]),
		}
	}

	meta := model.NewMetadata(horizon, quantile, now)
	meta.Threshold = model.Float(thr)
	meta.RushRate = model.Float(Rate(rush))
	meta.SamplesUsed = len(x)
	return model.TrainingSet{X: x, Y: y}, meta
}
