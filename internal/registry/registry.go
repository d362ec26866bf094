package registry

import (
	"context"
	"errors"

	"tankai/internal/model"
)

// Recorder stores where a run's artifacts were written.
type Recorder interface {
	Record(ctx context.Context, rec model.ModelRecord) error
}

// Multi records into every recorder and joins their errors.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, rec model.ModelRecord) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Func adapts a function to Recorder.
type Func func(ctx context.Context, rec model.ModelRecord) error

func (f Func) Record(ctx context.Context, rec model.ModelRecord) error { return f(ctx, rec) }
