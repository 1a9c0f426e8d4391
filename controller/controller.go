// Package controller - schedules periodic snapshot detection.
package controller

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/nvr-ai/go-tinyyolo/inference/detectors"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultInterval is the period between two snapshots.
const DefaultInterval = time.Second

// Snapshotter captures the current frame.
type Snapshotter interface {
	Snapshot(ctx context.Context) (image.Image, error)
}

// Detector runs detection on a frame, refusing with detectors.ErrBusy while a
// previous frame is still being processed.
type Detector interface {
	TryDetectImage(ctx context.Context, img image.Image) (*detectors.Detection, error)
}

// Sink receives every processed frame.
type Sink interface {
	Publish(frame Frame)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(frame Frame)

// Publish calls f(frame).
func (f SinkFunc) Publish(frame Frame) {
	f(frame)
}

// Frame is a single snapshot and what was detected in it.
type Frame struct {
	ID        int64
	Image     image.Image
	Timestamp time.Time
	Detection *detectors.Detection
}

// Config controls the schedule.
type Config struct {
	// Interval between snapshots. Ticks that arrive while a run is in progress are dropped.
	Interval time.Duration `json:"interval" yaml:"interval" koanf:"interval"`
	// Timeout bounds a single run; 0 means the interval.
	Timeout time.Duration `json:"timeout" yaml:"timeout" koanf:"timeout"`
}

// Controller snapshots and detects once per interval. At most one run is in
// progress at any time.
type Controller struct {
	config    Config
	snapshots Snapshotter
	detector  Detector
	sink      Sink
	logger    *zap.Logger
	scheduler gocron.Scheduler

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	frames atomic.Int64
}

// New creates a controller. Start begins the schedule.
//
// Arguments:
//   - config: The schedule; a zero interval selects DefaultInterval.
//   - snapshots: The frame source.
//   - detector: The detector.
//   - sink: Receives processed frames.
//   - logger: The logger; nil disables logging.
//
// Returns:
//   - *Controller: The controller.
//   - error: If a collaborator is missing or the scheduler cannot be created.
func New(config Config, snapshots Snapshotter, detector Detector, sink Sink, logger *zap.Logger) (*Controller, error) {
	if snapshots == nil || detector == nil || sink == nil {
		return nil, errors.New("snapshotter, detector and sink are required")
	}
	if config.Interval < 0 || config.Timeout < 0 {
		return nil, errors.Errorf("interval and timeout must not be negative, got %s and %s",
			config.Interval, config.Timeout)
	}
	if config.Interval == 0 {
		config.Interval = DefaultInterval
	}
	if config.Timeout == 0 {
		config.Timeout = config.Interval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		config:    config,
		snapshots: snapshots,
		detector:  detector,
		sink:      sink,
		logger:    logger.Named("controller"),
		scheduler: scheduler,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start schedules the snapshot job and starts the scheduler. The first run
// happens immediately.
func (c *Controller) Start() error {
	_, err := c.scheduler.NewJob(
		gocron.DurationJob(c.config.Interval),
		gocron.NewTask(c.tick),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return errors.Wrap(err, "failed to schedule snapshot job")
	}

	c.logger.Info("starting", zap.Duration("interval", c.config.Interval))
	c.scheduler.Start()
	return nil
}

// Shutdown cancels the run in progress and stops the scheduler.
func (c *Controller) Shutdown() error {
	var err error
	c.once.Do(func() {
		c.logger.Info("Shutting down gracefully")
		c.cancel()
		err = c.scheduler.Shutdown()
	})
	return err
}

func (c *Controller) tick() {
	ctx, cancel := context.WithTimeout(c.ctx, c.config.Timeout)
	defer cancel()

	if err := c.RunOnce(ctx); err != nil {
		if errors.Is(err, detectors.ErrBusy) || errors.Is(err, context.Canceled) {
			c.logger.Debug("frame skipped", zap.Error(err))
			return
		}
		c.logger.Warn("frame failed", zap.Error(err))
	}
}

// RunOnce snapshots one frame, runs detection and publishes the result.
//
// Arguments:
//   - ctx: Cancels the run between stages.
//
// Returns:
//   - error: The snapshot or detection error; nothing is published in that case.
func (c *Controller) RunOnce(ctx context.Context) error {
	img, err := c.snapshots.Snapshot(ctx)
	if err != nil {
		return errors.Wrap(err, "snapshot")
	}

	detection, err := c.detector.TryDetectImage(ctx, img)
	if err != nil {
		return err
	}

	frame := Frame{
		ID:        c.frames.Add(1),
		Image:     img,
		Timestamp: time.Now(),
		Detection: detection,
	}
	c.logger.Debug("frame processed",
		zap.Int64("frame", frame.ID),
		zap.Int("results", len(detection.Results)),
	)
	c.sink.Publish(frame)
	return nil
}
