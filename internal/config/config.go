package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the trainer's configuration model.
// It covers the sample store, output layout, training backend and the optional sinks.
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	Output   OutputConfig   `yaml:"output"`
	Trainer  TrainerConfig  `yaml:"trainer"`
	Registry RegistryConfig `yaml:"registry"`
	Publish  PublishConfig  `yaml:"publish"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// StorageConfig selects where samples are read from and model rows are recorded.
type StorageConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	DBPath string `yaml:"dbPath"`

	// Postgres connection, read from TANK_DB_* when empty
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslMode"`
}

// DSN renders the Postgres connection string.
func (s StorageConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		s.Host, s.Port, s.User, s.Password, s.Name, s.SSLMode)
}

type OutputConfig struct {
	ModelDir string `yaml:"modelDir"`
	TmpDir   string `yaml:"tmpDir"`
}

type TrainerConfig struct {
	// "native", "exec" or "none"
	Backend    string `yaml:"backend"`
	BinaryPath string `yaml:"binaryPath"` // exec backend only
	TmpDir     string `yaml:"-"`

	Epochs    int     `yaml:"epochs"`
	BatchSize int     `yaml:"batchSize"`
	LR        float64 `yaml:"lr"`
	Seed      uint64  `yaml:"seed"`
}

type RegistryConfig struct {
	// Optional latest-model pointer in Redis
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
}

type PublishConfig struct {
	// Optional S3-compatible upload of the artifacts; disabled when Endpoint is empty
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Secure    bool   `yaml:"secure"`
}

type MetricsConfig struct {
	Addr     string `yaml:"addr"`
	Textfile string `yaml:"textfile"`
}

// Default returns a configuration that trains natively against a local SQLite file.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Driver: "sqlite", DBPath: "./tankai.db",
			Host: "127.0.0.1", Port: 5432, User: "root", Name: "tankai", SSLMode: "disable",
		},
		Output:  OutputConfig{ModelDir: ".", TmpDir: "."},
		Trainer: TrainerConfig{Backend: "native", Epochs: 10, BatchSize: 32, LR: 0.001, Seed: 1},
		Publish: PublishConfig{Bucket: "tankai-models"},
	}
}

// LoadDotEnv loads ./.env into the process environment if present.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// ResolveEnv applies TANK_* environment overrides. Set variables win over file values.
func (c *Config) ResolveEnv() {
	setString(&c.Storage.Driver, "TANK_DB_DRIVER")
	setString(&c.Storage.DBPath, "TANK_DB_PATH")
	setString(&c.Storage.Host, "TANK_DB_HOST")
	setInt(&c.Storage.Port, "TANK_DB_PORT")
	setString(&c.Storage.User, "TANK_DB_USER")
	setString(&c.Storage.Password, "TANK_DB_PASS")
	setString(&c.Storage.Name, "TANK_DB_NAME")
	setString(&c.Output.ModelDir, "TANK_MODEL_DIR")
	setString(&c.Output.TmpDir, "TANK_TMP_DIR")
	setString(&c.Trainer.Backend, "TANK_BACKEND")
	setString(&c.Trainer.BinaryPath, "TANK_TRAINER_BIN")
	setString(&c.Registry.RedisAddr, "TANK_REDIS_ADDR")
	setString(&c.Registry.RedisPassword, "TANK_REDIS_PASSWORD")
	setString(&c.Publish.Endpoint, "TANK_S3_ENDPOINT")
	setString(&c.Publish.Bucket, "TANK_S3_BUCKET")
	setString(&c.Publish.AccessKey, "TANK_S3_ACCESS_KEY")
	setString(&c.Publish.SecretKey, "TANK_S3_SECRET_KEY")
	setString(&c.Metrics.Addr, "METRICS_ADDR")
	setString(&c.Metrics.Textfile, "TANK_METRICS_TEXTFILE")
	c.Trainer.TmpDir = c.Output.TmpDir
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Load reads YAML config from path on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.ResolveEnv()
	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields the defaults with env applied.
func LoadOrDefault(path string) (Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = Default()
		cfg.ResolveEnv()
		return cfg, nil
	}
	return cfg, err
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
