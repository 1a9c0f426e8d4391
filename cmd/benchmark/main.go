package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nvr-ai/go-tinyyolo/benchmark"
	"github.com/nvr-ai/go-tinyyolo/config"
	"github.com/nvr-ai/go-tinyyolo/inference"
	"github.com/nvr-ai/go-tinyyolo/pkg/logger"
	"github.com/nvr-ai/go-tinyyolo/util"
	"go.uber.org/zap"
)

func main() {
	var (
		configPath = flag.String("config", "", "configuration file")
		dir        = flag.String("images", "", "snapshot directory, overrides snapshots.dir")
		outputDir  = flag.String("output", "./benchmark_results", "output directory for results")
		iterations = flag.Int("iterations", 100, "measured iterations per scenario")
		warmups    = flag.Int("warmup", 10, "warmup runs per scenario")
		timeout    = flag.Duration("timeout", 30*time.Minute, "benchmark timeout")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *dir != "" {
		cfg.Snapshots.Dir = *dir
	}

	log := logger.New(cfg.Log.Debug)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if err := run(ctx, cfg, *outputDir, *iterations, *warmups, log); err != nil {
		log.Fatal("benchmark failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.AppConfig, outputDir string, iterations, warmups int, log *zap.Logger) error {
	if _, err := util.CopyAsset(cfg.Model.AssetSource, cfg.Model.Path); err != nil {
		return err
	}

	files, err := util.LoadSnapshotFiles(cfg.Snapshots.Dir)
	if err != nil {
		return err
	}

	engine, err := inference.NewEngineBuilder().
		WithLogger(log).
		WithProvider(cfg.Model.Provider).
		WithModel(cfg.ModelArgs()).
		WithDetector().
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	suite := benchmark.NewSuite(engine, outputDir, log)
	for _, f := range files {
		suite.AddSnapshots(f.Data)
	}
	suite.AddScenario(benchmark.NewScenarioBuilder("tinyyolov2_original").
		WithIterations(iterations).
		WithWarmupRuns(warmups).
		Build())
	for _, s := range benchmark.FormatScenarios(iterations, warmups) {
		suite.AddScenario(s)
	}
	for _, s := range benchmark.ResolutionScenarios(iterations, warmups) {
		suite.AddScenario(s)
	}

	return suite.RunAllScenarios(ctx)
}
