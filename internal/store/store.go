package store

import (
	"context"
	"fmt"

	"tankai/internal/config"
	"tankai/internal/model"
	"tankai/internal/store/pgstore"
	"tankai/internal/store/sqlitestore"
)

// Store is the sample source and model registry shared by both backends.
type Store interface {
	PutSamples(ctx context.Context, project string, samples []model.RawSample) error
	LoadSamples(ctx context.Context, project string) ([]model.RawSample, error)
	Record(ctx context.Context, rec model.ModelRecord) error
	ListModels(ctx context.Context, project string) ([]model.ModelRecord, error)
	Close() error
}

// Open connects to the configured driver.
func Open(cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return sqlitestore.Open(cfg.DBPath)
	case "postgres":
		return pgstore.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
