package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nvr-ai/go-tinyyolo/config"
	"github.com/nvr-ai/go-tinyyolo/inference"
	"github.com/nvr-ai/go-tinyyolo/pkg/logger"
	"github.com/nvr-ai/go-tinyyolo/util"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "configuration file")
	dir := flag.String("dir", "", "snapshot directory, overrides snapshots.dir")
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

	if err := run(cfg, log); err != nil {
		log.Fatal("detect failed", zap.Error(err))
	}
}

func run(cfg *config.AppConfig, log *zap.Logger) error {
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, f := range files {
		detection, err := engine.Detect(ctx, f.Data)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("snapshot skipped", zap.String("snapshot", f.Label), zap.Error(err))
			continue
		}

		log.Info("objects detected",
			zap.String("snapshot", f.Label),
			zap.Int("count", len(detection.Results)),
			zap.Duration("duration", detection.Duration),
		)
		for _, r := range detection.Results {
			log.Info("detection",
				zap.String("snapshot", f.Label),
				zap.String("label", r.Label),
				zap.Float32("confidence", r.Score),
				zap.Stringer("box", r.Box),
			)
		}
	}
	return nil
}
