package config

import (
	"path/filepath"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tankai.yaml")
	cfg := Default()
	cfg.Trainer.Backend = "none"
	cfg.Output.ModelDir = "/srv/models"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Trainer.Backend != "none" || got.Output.ModelDir != "/srv/models" {
		t.Fatalf("round trip lost fields: %+v", got)
	}
	if got.Trainer.TmpDir != got.Output.TmpDir {
		t.Fatalf("trainer tmp dir not resolved: %q", got.Trainer.TmpDir)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TANK_MODEL_DIR", "/tmp/models")
	t.Setenv("TANK_DB_HOST", "db.internal")
	t.Setenv("TANK_DB_PORT", "6543")
	t.Setenv("TANK_BACKEND", "exec")
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Output.ModelDir != "/tmp/models" || cfg.Storage.Host != "db.internal" || cfg.Storage.Port != 6543 {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.Trainer.Backend != "exec" {
		t.Fatalf("backend: %s", cfg.Trainer.Backend)
	}
}

func TestDSN(t *testing.T) {
	s := StorageConfig{Host: "h", Port: 1, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	want := "host=h port=1 user=u password=p dbname=n sslmode=disable"
	if s.DSN() != want {
		t.Fatalf("got %q", s.DSN())
	}
}

func TestSaveEmptyPath(t *testing.T) {
	if err := Save("", Default()); err == nil {
		t.Fatal("expected error")
	}
}
