package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"tankai/internal/export"
	"tankai/internal/features"
	"tankai/internal/logging"
	"tankai/internal/metrics"
	"tankai/internal/model"
	"tankai/internal/nn"
	"tankai/internal/publish"
	"tankai/internal/registry"
)

// Below these sizes a run trains on synthetic rows instead.
const (
	MinSamples = 50
	MinRows    = 10
)

// StampLayout names the per-run output directory.
const StampLayout = "20060102_150405"

var (
	// ErrArtifactIO wraps failures creating the output directory or writing artifacts.
	ErrArtifactIO = errors.New("artifact io")
	ErrProject    = errors.New("invalid project id")
	ErrParams     = errors.New("invalid run parameters")
)

// SampleSource returns a project's samples ordered by timestamp.
type SampleSource interface {
	LoadSamples(ctx context.Context, project string) ([]model.RawSample, error)
}

// Publisher copies written artifacts somewhere else. Failures never fail the run.
type Publisher interface {
	Publish(ctx context.Context, project, stamp string, objs []publish.Object) ([]string, error)
}

// Params selects what one run trains.
type Params struct {
	Project  string
	Horizon  int
	Quantile float64
}

// Runner sequences one training run. Registry and Publisher are optional.
type Runner struct {
	Source    SampleSource
	Registry  registry.Recorder
	Publisher Publisher
	Backend   nn.Backend
	Options   nn.TrainOptions
	ModelDir  string

	Now  func() time.Time
	Rand *rand.Rand
}

// Result is everything a run produced.
type Result struct {
	Summary  model.Summary
	Meta     model.Metadata
	Set      model.TrainingSet
	Artifact model.Artifact
	Dir      string
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func (r *Runner) rng() *rand.Rand {
	if r.Rand == nil {
		seed := uint64(time.Now().UnixNano())
		r.Rand = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return r.Rand
}

func validProject(p string) bool {
	return p != "" && p != "." && p != ".." && filepath.Base(p) == p
}

// Validate rejects a project id that is not a single path element, a horizon
// below 1 and a quantile outside [0,1].
func (p Params) Validate() error {
	if !validProject(p.Project) {
		return fmt.Errorf("%w: %q", ErrProject, p.Project)
	}
	if p.Horizon < 1 {
		return fmt.Errorf("%w: horizon %d, want >= 1", ErrParams, p.Horizon)
	}
	if math.IsNaN(p.Quantile) || p.Quantile < 0 || p.Quantile > 1 {
		return fmt.Errorf("%w: quantile %v, want within [0,1]", ErrParams, p.Quantile)
	}
	return nil
}

// Prepare builds the training set, substituting synthetic rows when the series
// has fewer than MinSamples samples (note "baseline") or yields fewer than MinRows rows (note "fallback").
func Prepare(samples []model.RawSample, p Params, now time.Time, rng *rand.Rand) (model.TrainingSet, model.Metadata, error) {
	if err := p.Validate(); err != nil {
		return model.TrainingSet{}, model.Metadata{}, err
	}
	if len(samples) < MinSamples {
		meta := model.NewMetadata(p.Horizon, p.Quantile, now)
		meta.Note = model.NoteBaseline
		return features.Synthetic(rng, features.SyntheticRows), meta, nil
	}
	ts, meta := features.Build(samples, p.Horizon, p.Quantile, now)
	if ts.Len() < MinRows {
		meta = model.NewMetadata(p.Horizon, p.Quantile, now)
		meta.Note = model.NoteFallback
		return features.Synthetic(rng, features.SyntheticRows), meta, nil
	}
	return ts, meta, nil
}

// Run trains and exports one model and writes its three artifacts.
// Only output directory and file errors are returned; data, backend, registry
// and publish problems are logged and the run continues.
func (r *Runner) Run(ctx context.Context, p Params) (Result, error) {
	metrics.TrainRuns.Inc()
	if err := p.Validate(); err != nil {
		metrics.TrainFailures.Inc()
		return Result{}, err
	}
	now := r.now()
	logging.Info("train_start", map[string]any{"project": p.Project, "h": p.Horizon, "pct": p.Quantile, "backend": backendName(r.Backend)})

	var samples []model.RawSample
	if r.Source != nil {
		var err error
		samples, err = r.Source.LoadSamples(ctx, p.Project)
		if err != nil {
			logging.Warn("sample_load_failed", map[string]any{"project": p.Project, "error": err.Error()})
			samples = nil
		}
	}

	ts, meta, err := Prepare(samples, p, now, r.rng())
	if err != nil {
		metrics.TrainFailures.Inc()
		return Result{}, err
	}
	if meta.Note != "" {
		metrics.IncFallback(meta.Note)
		logging.Warn("synthetic_training_set", map[string]any{"project": p.Project, "note": meta.Note, "samples": len(samples)})
	}
	meta.RunID = uuid.NewString()
	meta.Backend = backendName(r.Backend)
	meta.SamplesUsed = ts.Len()

	start := time.Now()
	m, err := nn.NewTrainer(r.Backend, r.Options).Train(ctx, ts)
	if err != nil {
		logging.Warn("train_failed", map[string]any{"project": p.Project, "error": err.Error()})
		m = nil
	} else if m != nil {
		metrics.ObserveTrainDuration(start)
	}

	art := export.NewExporter(r.Backend).Export(m)
	if art.Placeholder {
		metrics.PlaceholderExports.Inc()
		logging.Warn("placeholder_export", map[string]any{"project": p.Project, "backend": meta.Backend})
	}
	meta.ModelID = art.ModelID
	meta.Placeholder = art.Placeholder

	stamp := now.Format(StampLayout)
	paths, err := r.write(p.Project, stamp, art, meta)
	if err != nil {
		metrics.TrainFailures.Inc()
		return Result{}, err
	}
	r.record(ctx, p.Project, paths.records(p.Project, now))
	r.publish(ctx, p.Project, stamp, paths, art)

	sum := model.Summary{
		OK:          true,
		Project:     p.Project,
		TFLite:      paths.tflite,
		CC:          paths.cc,
		Meta:        paths.meta,
		SamplesUsed: ts.Len(),
		H:           p.Horizon,
		Pct:         p.Quantile,
	}
	logging.Info("train_done", map[string]any{"project": p.Project, "model_id": art.ModelID, "placeholder": art.Placeholder, "rows": ts.Len(), "dir": paths.dir})
	return Result{Summary: sum, Meta: meta, Set: ts, Artifact: art, Dir: paths.dir}, nil
}

func backendName(b nn.Backend) string {
	if b == nil {
		return "none"
	}
	return b.Name()
}

type runPaths struct {
	dir, tflite, cc, meta string
	metaJSON              []byte
}

func (p runPaths) records(project string, at time.Time) []model.ModelRecord {
	return []model.ModelRecord{
		{ProjectID: project, Type: model.ArtifactTFLite, Path: p.tflite, CreatedAt: at},
		{ProjectID: project, Type: model.ArtifactSource, Path: p.cc, CreatedAt: at},
		{ProjectID: project, Type: model.ArtifactMeta, Path: p.meta, CreatedAt: at},
	}
}

func (r *Runner) write(project, stamp string, art model.Artifact, meta model.Metadata) (runPaths, error) {
	dir := filepath.Join(r.ModelDir, project, stamp)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return runPaths{}, fmt.Errorf("%w: create %s: %v", ErrArtifactIO, dir, err)
	}
	base := fmt.Sprintf("%s_rush_%s", project, stamp)
	p := runPaths{
		dir:    dir,
		tflite: filepath.Join(dir, base+".tflite"),
		cc:     filepath.Join(dir, base+".cc"),
		meta:   filepath.Join(dir, project+"_meta.json"),
	}
	mb, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return runPaths{}, fmt.Errorf("encode metadata: %w", err)
	}
	p.metaJSON = mb
	for _, f := range []struct {
		path string
		data []byte
		typ  model.ArtifactType
	}{
		{p.tflite, art.Blob, model.ArtifactTFLite},
		{p.cc, art.Source, model.ArtifactSource},
		{p.meta, mb, model.ArtifactMeta},
	} {
		if err := os.WriteFile(f.path, f.data, 0o644); err != nil {
			return runPaths{}, fmt.Errorf("%w: write %s: %v", ErrArtifactIO, f.path, err)
		}
		metrics.SetArtifactBytes(string(f.typ), len(f.data))
	}
	return p, nil
}

func (r *Runner) record(ctx context.Context, project string, recs []model.ModelRecord) {
	if r.Registry == nil {
		return
	}
	for _, rec := range recs {
		if err := r.Registry.Record(ctx, rec); err != nil {
			metrics.RegistryFailures.Inc()
			logging.Warn("registry_record_failed", map[string]any{"project": project, "type": string(rec.Type), "path": rec.Path, "error": err.Error()})
		}
	}
}

func (r *Runner) publish(ctx context.Context, project, stamp string, p runPaths, art model.Artifact) {
	if r.Publisher == nil {
		return
	}
	objs := []publish.Object{
		{Name: filepath.Base(p.tflite), Data: art.Blob},
		{Name: filepath.Base(p.cc), Data: art.Source, ContentType: "text/x-c++src; charset=utf-8"},
		{Name: filepath.Base(p.meta), Data: p.metaJSON, ContentType: "application/json"},
	}
	keys, err := r.Publisher.Publish(ctx, project, stamp, objs)
	if err != nil {
		metrics.PublishFailures.Inc()
		logging.Warn("publish_failed", map[string]any{"project": project, "uploaded": keys, "error": err.Error()})
		return
	}
	logging.Info("published", map[string]any{"project": project, "keys": keys})
}
