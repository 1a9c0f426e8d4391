package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nvr-ai/go-tinyyolo/config"
	"github.com/nvr-ai/go-tinyyolo/controller"
	"github.com/nvr-ai/go-tinyyolo/images"
	"github.com/nvr-ai/go-tinyyolo/inference"
	"github.com/nvr-ai/go-tinyyolo/inference/detectors"
	"github.com/nvr-ai/go-tinyyolo/pkg/logger"
	"github.com/nvr-ai/go-tinyyolo/profiler"
	"github.com/nvr-ai/go-tinyyolo/util"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

const escKey = 27

// camera holds the most recent frame read by the capture loop.
type camera struct {
	mu    sync.Mutex
	frame gocv.Mat
}

func (c *camera) store(img gocv.Mat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	img.CopyTo(&c.frame)
}

// Snapshot converts the latest frame to an image.
func (c *camera) Snapshot(context.Context) (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frame.Empty() {
		return nil, errors.New("no frame captured yet")
	}
	return c.frame.ToImage()
}

// overlay keeps the latest detection for drawing.
type overlay struct {
	mu        sync.Mutex
	detection *detectors.Detection
	profiler  *profiler.Profiler
}

func (o *overlay) Publish(frame controller.Frame) {
	o.profiler.RecordOperation("detect", frame.Detection.Duration)
	o.profiler.RecordMetric("detections", float64(len(frame.Detection.Results)))

	o.mu.Lock()
	defer o.mu.Unlock()
	o.detection = frame.Detection
}

func (o *overlay) latest() *detectors.Detection {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.detection
}

// draw renders the boxes over img, scaled from model input to the frame size.
func draw(img *gocv.Mat, detection *detectors.Detection) {
	if detection == nil {
		return
	}
	frame := images.Size{Width: float32(img.Cols()), Height: float32(img.Rows())}
	for _, r := range detection.Results {
		box := images.ScaleToDisplay(r.Box, detection.Source, detection.Input, frame)
		rect := image.Rect(int(box.X), int(box.Y), int(box.X+box.Width), int(box.Y+box.Height))
		c := r.Color.RGBA()

		gocv.Rectangle(img, rect, c, 2)
		label := fmt.Sprintf("%s (%.0f%%)", r.Label, r.Score*100)
		gocv.PutText(img, label, image.Pt(rect.Min.X, max(rect.Min.Y-5, 12)), gocv.FontHersheyPlain, 1.2, c, 2)
	}
}

func main() {
	configPath := flag.String("config", "", "configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Debug)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("webcam failed", zap.Error(err))
	}
}

func run(cfg *config.AppConfig, log *zap.Logger) error {
	copied, err := util.CopyAsset(cfg.Model.AssetSource, cfg.Model.Path)
	if err != nil {
		return err
	}
	if copied {
		log.Info("copied bundled model", zap.String("path", cfg.Model.Path))
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

	webcam, err := gocv.OpenVideoCapture(cfg.Camera.Device)
	if err != nil {
		return err
	}
	defer webcam.Close()

	cam := &camera{frame: gocv.NewMat()}
	defer cam.frame.Close()
	prof := profiler.New(profiler.Options{}, log)
	prof.Start()
	defer prof.Stop()
	boxes := &overlay{profiler: prof}

	ctrl, err := controller.New(controller.Config{Interval: cfg.Camera.Interval}, cam, engine, boxes, log)
	if err != nil {
		return err
	}
	if err := ctrl.Start(); err != nil {
		return err
	}
	defer ctrl.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var window *gocv.Window
	if cfg.Camera.Window {
		window = gocv.NewWindow("MS Bit detector")
		defer window.Close()
	}

	img := gocv.NewMat()
	defer img.Close()

	log.Info("start reading camera device", zap.Int("device", cfg.Camera.Device))
	var frames int
	started := time.Now()
	defer func() {
		log.Info("capture stopped",
			zap.Int("frames", frames),
			zap.Float64("fps", float64(frames)/time.Since(started).Seconds()))
	}()
	for ctx.Err() == nil {
		if ok := webcam.Read(&img); !ok {
			return errors.Errorf("cannot read device %d", cfg.Camera.Device)
		}
		if img.Empty() {
			continue
		}
		cam.store(img)
		frames++

		if window == nil {
			continue
		}
		draw(&img, boxes.latest())
		window.IMShow(img)
		if window.WaitKey(1) == escKey {
			return nil
		}
	}
	return nil
}
