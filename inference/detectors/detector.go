// Package detectors - runs a model end to end: preprocess, score, decode, suppress.
package detectors

import (
	"context"
	"image"
	"sync/atomic"
	"time"

	"github.com/nvr-ai/go-tinyyolo/images"
	"github.com/nvr-ai/go-tinyyolo/models/model"
	"github.com/nvr-ai/go-tinyyolo/models/model/preprocess"
	"github.com/nvr-ai/go-tinyyolo/models/postprocess"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrBusy is returned by TryDetect while another detection is in flight.
var ErrBusy = errors.New("detector busy")

// Scorer runs the model on a flattened input tensor and returns the flattened
// output tensor. providers.Session implements it.
type Scorer interface {
	Run(input []float32) ([]float32, error)
}

// Detection is the outcome of one frame.
type Detection struct {
	// Results are the kept boxes in model-input pixels, highest score first.
	Results []postprocess.Result
	// Source is the size of the frame before preprocessing.
	Source images.Size
	// Input is the model input size the boxes are expressed in.
	Input images.Size
	// Duration is the wall time of the whole pipeline.
	Duration time.Duration
}

// Detector wires a model to its preprocessor and scorer. It is safe for
// concurrent use; TryDetect additionally guarantees at most one detection in
// flight.
type Detector struct {
	model        model.Model
	preprocessor *preprocess.Preprocessor
	scorer       Scorer
	logger       *zap.Logger
	busy         atomic.Bool
}

// NewDetector creates a detector.
//
// Arguments:
//   - m: The model; its input shape selects the preprocessing size.
//   - scorer: The inference backend.
//   - logger: The logger; nil disables logging.
//
// Returns:
//   - *Detector: The detector.
//   - error: If the model input shape is not (1, 3, height, width).
func NewDetector(m model.Model, scorer Scorer, logger *zap.Logger) (*Detector, error) {
	if m == nil || scorer == nil {
		return nil, errors.New("model and scorer are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := m.Options()
	shape := opts.InputShape
	if len(shape) != 4 || shape[0] != 1 || shape[1] != 3 {
		return nil, errors.Errorf("unsupported input shape %v", shape)
	}

	config := preprocess.GetTinyYOLOv2Config()
	config.Name = string(opts.Name)
	config.InputWidth = int(shape[3])
	config.InputHeight = int(shape[2])

	preprocessor, err := preprocess.NewPreprocessor(config, logger)
	if err != nil {
		return nil, err
	}

	return &Detector{
		model:        m,
		preprocessor: preprocessor,
		scorer:       scorer,
		logger:       logger.With(zap.String("model", string(opts.Name))),
	}, nil
}

// InputSize returns the model input size.
func (d *Detector) InputSize() images.Size {
	shape := d.model.Options().InputShape
	return images.Size{Width: float32(shape[3]), Height: float32(shape[2])}
}

// Detect runs the full pipeline on encoded image bytes.
//
// Arguments:
//   - ctx: Checked between stages.
//   - data: A JPEG, PNG or WebP image.
//
// Returns:
//   - *Detection: The kept boxes and frame metadata.
//   - error: A preprocessing, inference or decoding error, or the context error.
func (d *Detector) Detect(ctx context.Context, data []byte) (*Detection, error) {
	return d.run(ctx, func() (*preprocess.PreprocessingResult, error) {
		return d.preprocessor.Preprocess(data)
	})
}

// DetectImage runs the full pipeline on a decoded frame.
func (d *Detector) DetectImage(ctx context.Context, img image.Image) (*Detection, error) {
	return d.run(ctx, func() (*preprocess.PreprocessingResult, error) {
		return d.preprocessor.PreprocessImage(img)
	})
}

// TryDetect is Detect, except that it returns ErrBusy immediately when another
// TryDetect or TryDetectImage call is still running.
func (d *Detector) TryDetect(ctx context.Context, data []byte) (*Detection, error) {
	if !d.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer d.busy.Store(false)
	return d.Detect(ctx, data)
}

// TryDetectImage is DetectImage with the same in-flight guard as TryDetect.
func (d *Detector) TryDetectImage(ctx context.Context, img image.Image) (*Detection, error) {
	if !d.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer d.busy.Store(false)
	return d.DetectImage(ctx, img)
}

func (d *Detector) run(
	ctx context.Context,
	prepare func() (*preprocess.PreprocessingResult, error),
) (*Detection, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	input, err := prepare()
	if err != nil {
		return nil, errors.Wrap(err, "preprocess")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	output, err := d.scorer.Run(input.Data())
	if err != nil {
		return nil, errors.Wrap(err, "inference")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results, err := d.model.PostProcess(output)
	if err != nil {
		return nil, errors.Wrap(err, "postprocess")
	}

	detection := &Detection{
		Results:  results,
		Source:   input.OriginalSize(),
		Input:    d.InputSize(),
		Duration: time.Since(start),
	}

	d.logger.Debug("detection complete",
		zap.Int("results", len(results)),
		zap.Duration("duration", detection.Duration),
	)
	return detection, nil
}
