// Package pgstore reads samples from and records models into Postgres through gorm.
package pgstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tankai/internal/model"
)

// Sample maps the samples table.
type Sample struct {
	ID         uint     `gorm:"primaryKey"`
	ProjectID  string   `gorm:"column:project_id;index:idx_samples_project_ts,priority:1;not null"`
	TS         int64    `gorm:"column:ts;index:idx_samples_project_ts,priority:2;not null"`
	LevelCM    *float64 `gorm:"column:level_cm"`
	LevelPct   *float64 `gorm:"column:level_pct"`
	PumpOn     bool     `gorm:"column:pump_on;not null;default:false"`
	FlowOutLPM *float64 `gorm:"column:flow_out_lpm"`
}

func (Sample) TableName() string { return "samples" }

// Model maps the models registry table.
type Model struct {
	ID        uint      `gorm:"primaryKey"`
	ProjectID string    `gorm:"column:project_id;index;not null"`
	Type      string    `gorm:"column:type;not null"`
	Path      string    `gorm:"column:path;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (Model) TableName() string { return "models" }

// DB is a gorm-backed store.
type DB struct{ db *gorm.DB }

// Open connects with dsn and migrates both tables.
func Open(dsn string) (*DB, error) {
	g, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := g.AutoMigrate(&Sample{}, &Model{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &DB{db: g}, nil
}

func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRow(project string, s model.RawSample) Sample {
	return Sample{ProjectID: project, TS: s.TS, LevelCM: s.LevelCM, LevelPct: s.LevelPct, PumpOn: s.PumpOn, FlowOutLPM: s.FlowOutLPM}
}

func (r Sample) toSample() model.RawSample {
	return model.RawSample{TS: r.TS, LevelCM: r.LevelCM, LevelPct: r.LevelPct, PumpOn: r.PumpOn, FlowOutLPM: r.FlowOutLPM}
}

// PutSamples inserts samples in batches of 500.
func (d *DB) PutSamples(ctx context.Context, project string, samples []model.RawSample) error {
	if len(samples) == 0 {
		return nil
	}
	rows := make([]Sample, len(samples))
	for i, s := range samples {
		rows[i] = toRow(project, s)
	}
	return d.db.WithContext(ctx).CreateInBatches(&rows, 500).Error
}

func (d *DB) LoadSamples(ctx context.Context, project string) ([]model.RawSample, error) {
	var rows []Sample
	if err := d.db.WithContext(ctx).Where("project_id = ?", project).Order("ts ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.RawSample, len(rows))
	for i, r := range rows {
		out[i] = r.toSample()
	}
	return out, nil
}

func (d *DB) Record(ctx context.Context, rec model.ModelRecord) error {
	row := Model{ProjectID: rec.ProjectID, Type: string(rec.Type), Path: rec.Path, CreatedAt: rec.CreatedAt}
	return d.db.WithContext(ctx).Create(&row).Error
}

func (d *DB) ListModels(ctx context.Context, project string) ([]model.ModelRecord, error) {
	var rows []Model
	if err := d.db.WithContext(ctx).Where("project_id = ?", project).Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.ModelRecord, len(rows))
	for i, r := range rows {
		out[i] = model.ModelRecord{ProjectID: r.ProjectID, Type: model.ArtifactType(r.Type), Path: r.Path, CreatedAt: r.CreatedAt.UTC()}
	}
	return out, nil
}
