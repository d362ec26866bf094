package nn

import (
	"context"
	"errors"
	"fmt"

	"tankai/internal/config"
	"tankai/internal/model"
)

// Backend is the numeric capability used to fit and export models.
// It is resolved once per run and passed to the trainer and exporter.
type Backend interface {
	Name() string
	Available() bool
	Fit(ctx context.Context, ts model.TrainingSet, opts TrainOptions) (*Model, error)
}

// ErrUnavailable is returned when Fit is called on a backend that cannot train.
var ErrUnavailable = errors.New("training backend unavailable")

// NewBackend resolves the configured backend. Unknown names are an error.
func NewBackend(cfg config.TrainerConfig) (Backend, error) {
	switch cfg.Backend {
	case "", "native":
		return Native{}, nil
	case "exec":
		return NewExec(cfg.BinaryPath, cfg.TmpDir), nil
	case "none":
		return None{}, nil
	default:
		return nil, fmt.Errorf("unknown trainer backend %q", cfg.Backend)
	}
}

// None never trains; runs using it export the placeholder artifact.
type None struct{}

func (None) Name() string    { return "none" }
func (None) Available() bool { return false }
func (None) Fit(context.Context, model.TrainingSet, TrainOptions) (*Model, error) {
	return nil, ErrUnavailable
}

// Trainer fits models through a Backend.
type Trainer struct {
	backend Backend
	opts    TrainOptions
}

func NewTrainer(b Backend, opts TrainOptions) *Trainer {
	return &Trainer{backend: b, opts: opts}
}

// Train fits ts to completion. A nil model with a nil error means the backend is
// unavailable and the caller should export a placeholder.
func (t *Trainer) Train(ctx context.Context, ts model.TrainingSet) (*Model, error) {
	if t.backend == nil || !t.backend.Available() {
		return nil, nil
	}
	if ts.Len() == 0 {
		return nil, errors.New("empty training set")
	}
	if err := ts.Validate(); err != nil {
		return nil, err
	}
	return t.backend.Fit(ctx, ts, t.opts)
}
