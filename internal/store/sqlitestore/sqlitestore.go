package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"tankai/internal/model"
)

// DB wraps the SQLite database holding raw samples and the model registry.
type DB struct{ sql *sql.DB }

func Open(path string) (*DB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		d.SetMaxOpenConns(1)
	}
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		_ = d.Close()
		return nil, err
	}
	db := &DB{sql: d}
	if err := db.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) migrate() error {
	_, err := d.sql.Exec(`
	CREATE TABLE IF NOT EXISTS samples (
	  id INTEGER PRIMARY KEY AUTOINCREMENT,
	  project_id TEXT NOT NULL,
	  ts INTEGER NOT NULL,
	  level_cm REAL,
	  level_pct REAL,
	  pump_on INTEGER NOT NULL DEFAULT 0,
	  flow_out_lpm REAL
	);
	CREATE INDEX IF NOT EXISTS idx_samples_project_ts ON samples(project_id, ts);
	CREATE TABLE IF NOT EXISTS models (
	  id INTEGER PRIMARY KEY AUTOINCREMENT,
	  project_id TEXT NOT NULL,
	  type TEXT NOT NULL,
	  path TEXT NOT NULL,
	  created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_models_project ON models(project_id, created_at);
	`)
	return err
}

// PutSamples inserts samples for a project in one transaction.
func (d *DB) PutSamples(ctx context.Context, project string, samples []model.RawSample) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO samples(project_id, ts, level_cm, level_pct, pump_on, flow_out_lpm) VALUES(?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, s := range samples {
		if _, err := stmt.ExecContext(ctx, project, s.TS, s.LevelCM, s.LevelPct, s.PumpOn, s.FlowOutLPM); err != nil {
			return fmt.Errorf("insert sample ts=%d: %w", s.TS, err)
		}
	}
	return tx.Commit()
}

// LoadSamples returns a project's samples ordered by timestamp.
func (d *DB) LoadSamples(ctx context.Context, project string) ([]model.RawSample, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT ts, level_cm, level_pct, pump_on, flow_out_lpm FROM samples WHERE project_id=? ORDER BY ts ASC, id ASC`, project)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.RawSample
	for rows.Next() {
		var s model.RawSample
		var cm, pct, flow sql.NullFloat64
		if err := rows.Scan(&s.TS, &cm, &pct, &s.PumpOn, &flow); err != nil {
			return nil, err
		}
		s.LevelCM, s.LevelPct, s.FlowOutLPM = nullable(cm), nullable(pct), nullable(flow)
		out = append(out, s)
	}
	return out, rows.Err()
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

// Record stores one registry row.
func (d *DB) Record(ctx context.Context, rec model.ModelRecord) error {
	_, err := d.sql.ExecContext(ctx, `INSERT INTO models(project_id, type, path, created_at) VALUES(?,?,?,?)`, rec.ProjectID, string(rec.Type), rec.Path, rec.CreatedAt.UnixMilli())
	return err
}

// ListModels returns a project's registry rows, newest first.
func (d *DB) ListModels(ctx context.Context, project string) ([]model.ModelRecord, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT project_id, type, path, created_at FROM models WHERE project_id=? ORDER BY created_at DESC, id DESC`, project)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ModelRecord
	for rows.Next() {
		var r model.ModelRecord
		var typ string
		var created int64
		if err := rows.Scan(&r.ProjectID, &typ, &r.Path, &created); err != nil {
			return nil, err
		}
		r.Type = model.ArtifactType(typ)
		r.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
