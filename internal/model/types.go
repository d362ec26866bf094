package model

import (
	"fmt"
	"time"
)

// FeatureWidth is the number of columns in every feature row.
const FeatureWidth = 6

// FeatureNames lists the feature columns in canonical order.
var FeatureNames = [FeatureWidth]string{"hour_sin", "hour_cos", "dow_sin", "dow_cos", "lvl_ema", "flow_ema"}

// MetadataVersion is written into every metadata record.
const MetadataVersion = "1.0"

// Notes attached to metadata when the run trained on synthetic rows.
const (
	NoteBaseline = "baseline"
	NoteFallback = "fallback"
)

// RawSample is one tank reading as stored by the device uploader.
// Nil numeric fields are missing readings.
type RawSample struct {
	TS         int64    `json:"ts"` // unix milliseconds
	LevelCM    *float64 `json:"level_cm"`
	LevelPct   *float64 `json:"level_pct"`
	PumpOn     bool     `json:"pump_on"`
	FlowOutLPM *float64 `json:"flow_out_lpm"`
}

// Time returns the sample timestamp in UTC.
func (s RawSample) Time() time.Time { return time.UnixMilli(s.TS).UTC() }

// Float is a helper for building samples with present values.
func Float(v float64) *float64 { return &v }

// FeatureVector is a single feature row.
type FeatureVector [FeatureWidth]float32

// TrainingSet holds rows and their binary labels, aligned by index.
type TrainingSet struct {
	X []FeatureVector
	Y []float32
}

func (t TrainingSet) Len() int { return len(t.X) }

// Validate checks row/label alignment and that labels are 0 or 1.
func (t TrainingSet) Validate() error {
	if len(t.X) != len(t.Y) {
		return fmt.Errorf("training set misaligned: %d rows, %d labels", len(t.X), len(t.Y))
	}
	for i, y := range t.Y {
		if y != 0 && y != 1 {
			return fmt.Errorf("label %d is %v, want 0 or 1", i, y)
		}
	}
	return nil
}

// Positives counts rows labeled 1.
func (t TrainingSet) Positives() int {
	n := 0
	for _, y := range t.Y {
		if y == 1 {
			n++
		}
	}
	return n
}

// Metadata is the provenance record written next to each model.
type Metadata struct {
	FeatureNames []string `json:"feature_names"`
	Version      string   `json:"version,omitempty"`
	HorizonMin   int      `json:"horizon_min"`
	Pct          float64  `json:"pct"`
	Created      string   `json:"created,omitempty"`
	Note         string   `json:"note,omitempty"`

	RunID       string `json:"run_id,omitempty"`
	ModelID     string `json:"model_id,omitempty"`
	Backend     string `json:"backend,omitempty"`
	Placeholder bool   `json:"placeholder,omitempty"`
	SamplesUsed int    `json:"samples_used"`

	// Label statistics of the real series; nil when the run trained on synthetic rows.
	Threshold *float64 `json:"threshold,omitempty"`
	RushRate  *float64 `json:"rush_rate,omitempty"`
}

// CreatedLayout is the timestamp format of Metadata.Created.
const CreatedLayout = "2006-01-02T15:04:05Z"

// NewMetadata returns metadata with canonical feature names stamped at now.
func NewMetadata(horizon int, pct float64, now time.Time) Metadata {
	return Metadata{
		FeatureNames: FeatureNames[:],
		Version:      MetadataVersion,
		HorizonMin:   horizon,
		Pct:          pct,
		Created:      now.UTC().Format(CreatedLayout),
	}
}

// Artifact is an exported model: the inference blob and the same bytes as C++ source.
type Artifact struct {
	ModelID     string
	Blob        []byte
	Source      []byte
	Placeholder bool
}

// ArtifactType names a persisted file kind in the registry.
type ArtifactType string

const (
	ArtifactTFLite ArtifactType = "tflite"
	ArtifactSource ArtifactType = "cc"
	ArtifactMeta   ArtifactType = "meta"
)

// ModelRecord is one registry row.
type ModelRecord struct {
	ProjectID string
	Type      ArtifactType
	Path      string
	CreatedAt time.Time
}

// Summary is printed as JSON at the end of a run.
type Summary struct {
	OK          bool    `json:"ok"`
	Project     string  `json:"project"`
	TFLite      string  `json:"tflite"`
	CC          string  `json:"cc"`
	Meta        string  `json:"meta"`
	SamplesUsed int     `json:"samples_used"`
	H           int     `json:"h"`
	Pct         float64 `json:"pct"`
}
