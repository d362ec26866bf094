package features

import (
	"encoding/json"
	"math"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"tankai/internal/model"
)

// threeDays builds n samples evenly spread over three days starting Monday 2025-01-06.
func threeDays(n int) []model.RawSample {
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	step := 72 * time.Hour / time.Duration(n)
	out := make([]model.RawSample, n)
	for i := range out {
		flow := 12 + 6*math.Sin(float64(i)/5) + 0.01*float64(i)
		out[i] = model.RawSample{
			TS:         start.Add(time.Duration(i) * step).UnixMilli(),
			LevelCM:    model.Float(80 - float64(i%40)),
			LevelPct:   model.Float(60 + 20*math.Cos(float64(i)/9)),
			PumpOn:     i%10 < 3,
			FlowOutLPM: model.Float(flow),
		}
	}
	return out
}

var now = time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)

func TestBuildScenarioThreeDays(t *testing.T) {
	samples := threeDays(200)
	ts, meta := Build(samples, 30, 0.8, now)
	if ts.Len() != 170 || len(ts.Y) != 170 {
		t.Fatalf("rows: got X=%d y=%d, want 170", ts.Len(), len(ts.Y))
	}
	if err := ts.Validate(); err != nil {
		t.Fatal(err)
	}
	if len(meta.FeatureNames) != model.FeatureWidth || meta.FeatureNames[4] != "lvl_ema" {
		t.Fatalf("feature names: %v", meta.FeatureNames)
	}
	if meta.HorizonMin != 30 || meta.Pct != 0.8 || meta.Version != "1.0" {
		t.Fatalf("meta params: %+v", meta)
	}
	if meta.Created != "2025-02-01T10:00:00Z" {
		t.Fatalf("created: %s", meta.Created)
	}
	if meta.RushRate == nil || math.Abs(*meta.RushRate-0.2) > 0.02 {
		t.Fatalf("pre-shift rush rate %v, want ~0.2", meta.RushRate)
	}
	if ts.Positives() == 0 || ts.Positives() > ts.Len()/2 {
		t.Fatalf("labels should be mostly 0 with some 1s, got %d/%d", ts.Positives(), ts.Len())
	}
}

func TestCyclicalOnUnitCircle(t *testing.T) {
	ts, _ := Build(threeDays(120), 5, 0.8, now)
	for i, x := range ts.X {
		h := float64(x[0])*float64(x[0]) + float64(x[1])*float64(x[1])
		d := float64(x[2])*float64(x[2]) + float64(x[3])*float64(x[3])
		if math.Abs(h-1) > 1e-5 || math.Abs(d-1) > 1e-5 {
			t.Fatalf("row %d off unit circle: hour=%v dow=%v", i, h, d)
		}
	}
}

func TestRowCountLaw(t *testing.T) {
	samples := threeDays(60)
	for _, h := range []int{1, 2, 10, 59, 60, 61, 500} {
		ts, _ := Build(samples, h, 0.8, now)
		want := max(0, len(samples)-h)
		if ts.Len() != want || len(ts.Y) != want {
			t.Fatalf("h=%d: got %d/%d rows, want %d", h, ts.Len(), len(ts.Y), want)
		}
	}
	// a non-positive horizon still looks one row ahead
	ts, _ := Build(samples, 0, 0.8, now)
	if ts.Len() != len(samples)-1 {
		t.Fatalf("h=0: got %d rows", ts.Len())
	}
}

func TestBuildEmpty(t *testing.T) {
	ts, meta := Build(nil, 30, 0.8, now)
	if ts.Len() != 0 || len(ts.Y) != 0 {
		t.Fatalf("expected empty set, got %d", ts.Len())
	}
	if meta.FeatureNames == nil || len(meta.FeatureNames) != 0 {
		t.Fatalf("expected empty feature names, got %v", meta.FeatureNames)
	}
}

func TestLabelsLookAhead(t *testing.T) {
	samples := threeDays(100)
	ts, meta := Build(samples, 7, 0.5, now)
	f := Clean(samples)
	rush := RushLabels(EMA(f.FlowOutLPM, FlowAlpha), *meta.Threshold)
	for i := range ts.Y {
		if ts.Y[i] != rush[i+7] {
			t.Fatalf("row %d label %v, want rush[%d]=%v", i, ts.Y[i], i+7, rush[i+7])
		}
	}
}

func TestCleanWeekdayAndHour(t *testing.T) {
	// 1970-01-05 13:00 UTC is a Monday
	ts := int64((4*24 + 13) * 3600 * 1000)
	f := Clean([]model.RawSample{{TS: ts}})
	if f.Weekday[0] != 0 || f.Hour[0] != 13 {
		t.Fatalf("got weekday=%d hour=%d", f.Weekday[0], f.Hour[0])
	}
	set, _ := Build([]model.RawSample{{TS: ts}, {TS: ts + 60000}}, 1, 0.8, now)
	if set.X[0][2] != 0 || set.X[0][3] != 1 {
		t.Fatalf("monday should encode as (0,1), got (%v,%v)", set.X[0][2], set.X[0][3])
	}
}

func TestSyntheticShape(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	ts := Synthetic(rng, SyntheticRows)
	if ts.Len() != 128 || len(ts.Y) != 128 {
		t.Fatalf("rows %d", ts.Len())
	}
	if err := ts.Validate(); err != nil {
		t.Fatal(err)
	}
	rate := float64(ts.Positives()) / 128
	if rate < 0.15 || rate > 0.45 {
		t.Fatalf("positive rate %.2f too far from 0.3", rate)
	}
}

func TestBuildZeroFlowKeepsThreshold(t *testing.T) {
	samples := threeDays(40)
	for i := range samples {
		samples[i].FlowOutLPM = model.Float(0)
	}
	ts, meta := Build(samples, 5, 0.8, now)
	if ts.Len() != 35 || ts.Positives() != 0 {
		t.Fatalf("rows=%d positives=%d, want 35 and 0", ts.Len(), ts.Positives())
	}
	if meta.Threshold == nil || *meta.Threshold != 0 || meta.RushRate == nil || *meta.RushRate != 0 {
		t.Fatalf("threshold=%v rush_rate=%v, want both present and 0", meta.Threshold, meta.RushRate)
	}
	b, err := json.Marshal(meta)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"threshold":0`) || !strings.Contains(string(b), `"rush_rate":0`) {
		t.Fatalf("zero statistics dropped from %s", b)
	}
}
