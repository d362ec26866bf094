package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"tankai/internal/cmdlog"
	"tankai/internal/config"
	"tankai/internal/ingest"
	"tankai/internal/logging"
	"tankai/internal/metrics"
	"tankai/internal/nn"
	"tankai/internal/pipeline"
	"tankai/internal/publish"
	"tankai/internal/registry"
	"tankai/internal/store"
	"tankai/internal/theme"
)

const defaultConfig = "./tankai.yaml"

func main() {
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	config.LoadDotEnv()
	var err error
	switch cmd {
	case "init":
		err = cmdlog.Run("init", func() error { return cmdInit(os.Args[2:]) })
	case "ingest":
		err = cmdlog.Run("ingest", func() error { return cmdIngest(os.Args[2:]) })
	case "train":
		err = cmdlog.Run("train", func() error { return cmdTrain(os.Args[2:]) })
	case "models":
		err = cmdlog.Run("models", func() error { return cmdModels(os.Args[2:]) })
	default:
		printHelp()
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func printHelp() {
	theme.PrintBanner(os.Stderr)
	fmt.Fprintln(os.Stderr, "Usage: tankai <command> [options]")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  init     Write a default config to ./tankai.yaml")
	fmt.Fprintln(os.Stderr, "  ingest   Import a CSV of tank samples for a project")
	fmt.Fprintln(os.Stderr, "  train    Train and export a rush model for a project")
	fmt.Fprintln(os.Stderr, "  models   List recorded model artifacts for a project")
}

func loadConfig(path string) (config.Config, error) {
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func cmdInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("path", defaultConfig, "path to write config")
	_ = fs.Parse(args)
	if err := config.Save(*path, config.Default()); err != nil {
		return err
	}
	abs, _ := filepath.Abs(*path)
	theme.PrintBanner(os.Stderr)
	fmt.Println("Config written to:", abs)
	return nil
}

func cmdIngest(args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfig, "config path")
	project := fs.String("project", "", "project id")
	file := fs.String("file", "", "CSV file (ts,level_cm,level_pct,pump_on,flow_out_lpm); - for stdin")
	_ = fs.Parse(args)
	if *project == "" || *file == "" {
		return errors.New("--project and --file are required")
	}
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	db, err := store.Open(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	in := os.Stdin
	if *file != "-" {
		f, err := os.Open(*file)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	n, err := ingest.ImportCSV(context.Background(), db, *project, in)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d samples into %s\n", n, *project)
	return nil
}

func cmdTrain(args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfig, "config path")
	project := fs.String("project", "", "project id")
	horizon := fs.Int("h", 30, "label horizon in rows")
	pct := fs.Float64("pct", 0.8, "flow quantile for the rush threshold")
	seed := fs.Uint64("seed", 0, "seed for synthetic data and training (0 = random)")
	_ = fs.Parse(args)
	if *project == "" {
		return errors.New("--project is required")
	}
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	metrics.StartServer(cfg.Metrics.Addr)
	defer func() {
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logging.Warn("metrics_textfile_failed", map[string]any{"path": cfg.Metrics.Textfile, "error": err.Error()})
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := nn.NewBackend(cfg.Trainer)
	if err != nil {
		return err
	}
	opts := nn.OptionsFrom(cfg.Trainer)
	if *seed != 0 {
		opts.Seed = *seed
	}

	runner := &pipeline.Runner{
		Backend:  backend,
		Options:  opts,
		ModelDir: cfg.Output.ModelDir,
		Now:      time.Now,
		Rand:     newRand(*seed),
	}

	// A store that cannot be opened is treated as no data: the run still
	// produces a baseline model, it just cannot be recorded there.
	var sinks registry.Multi
	db, err := store.Open(cfg.Storage)
	if err != nil {
		logging.Warn("store_unavailable", map[string]any{"driver": cfg.Storage.Driver, "error": err.Error()})
	} else {
		defer db.Close()
		runner.Source = db
		sinks = append(sinks, db)
	}
	if cfg.Registry.RedisAddr != "" {
		latest := registry.NewRedisLatest(cfg.Registry.RedisAddr, cfg.Registry.RedisPassword, cfg.Registry.RedisDB)
		defer latest.Close()
		if err := latest.Ping(ctx); err != nil {
			logging.Warn("redis_unavailable", map[string]any{"addr": cfg.Registry.RedisAddr, "error": err.Error()})
		}
		sinks = append(sinks, latest)
	}
	if len(sinks) > 0 {
		runner.Registry = sinks
	}
	if cfg.Publish.Endpoint != "" {
		pub, err := publish.NewS3Publisher(cfg.Publish)
		if err != nil {
			logging.Warn("publisher_unavailable", map[string]any{"endpoint": cfg.Publish.Endpoint, "error": err.Error()})
		} else {
			runner.Publisher = pub
		}
	}

	res, err := runner.Run(ctx, pipeline.Params{Project: *project, Horizon: *horizon, Quantile: *pct})
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(res.Summary)
}

func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func cmdModels(args []string) error {
	fs := flag.NewFlagSet("models", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfig, "config path")
	project := fs.String("project", "", "project id")
	_ = fs.Parse(args)
	if *project == "" {
		return errors.New("--project is required")
	}
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	db, err := store.Open(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()
	recs, err := db.ListModels(context.Background(), *project)
	if err != nil {
		return err
	}
	for _, r := range recs {
		fmt.Printf("%s  %-6s %s\n", r.CreatedAt.Format(time.RFC3339), r.Type, r.Path)
	}
	return nil
}
