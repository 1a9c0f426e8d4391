// Package inference - assembles providers, sessions, models and detectors into an engine.
package inference

import (
	"context"
	"image"

	"github.com/nvr-ai/go-tinyyolo/inference/detectors"
	"github.com/nvr-ai/go-tinyyolo/inference/providers"
	"github.com/nvr-ai/go-tinyyolo/models"
	"github.com/nvr-ai/go-tinyyolo/models/model"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Engine defines the interface for ML inference engines.
type Engine interface {
	// Detect runs detection on encoded image bytes.
	Detect(ctx context.Context, data []byte) (*detectors.Detection, error)
	// DetectImage runs detection on a decoded frame.
	DetectImage(ctx context.Context, img image.Image) (*detectors.Detection, error)
	// TryDetectImage is DetectImage that returns detectors.ErrBusy while a frame is in flight.
	TryDetectImage(ctx context.Context, img image.Image) (*detectors.Detection, error)
	// Close releases the native session.
	Close() error
}

// EngineBuilder builds an engine with a fluent API. The first error stops the chain
// and is returned by Build.
type EngineBuilder struct {
	provider providers.ExecutionProvider
	config   providers.Config
	model    model.Model
	session  *providers.Session
	detector *detectors.Detector
	logger   *zap.Logger
	err      error
}

// NewEngineBuilder creates a new engine builder.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func NewEngineBuilder() *EngineBuilder {
	return &EngineBuilder{logger: zap.NewNop()}
}

// WithLogger sets the logger passed down to the detector.
func (b *EngineBuilder) WithLogger(logger *zap.Logger) *EngineBuilder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithProvider sets the execution provider for the engine.
//
// Arguments:
//   - config: The provider configuration.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithProvider(config providers.Config) *EngineBuilder {
	if b.HasError() {
		return b
	}
	if err := config.Validate(); err != nil {
		b.err = err
		return b
	}

	provider, err := providers.NewProvider(config)
	if err != nil {
		b.err = err
		return b
	}
	b.provider = provider
	b.config = config
	return b
}

// WithModel creates the model and opens its session on the configured provider.
//
// Arguments:
//   - args: The model arguments.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithModel(args model.NewModelArgs) *EngineBuilder {
	if b.HasError() {
		return b
	}
	if b.provider == nil {
		b.err = errors.New("provider not configured")
		return b
	}

	m, err := models.NewModel(args)
	if err != nil {
		b.err = err
		return b
	}
	b.model = m

	opts := m.Options()
	session, err := providers.NewSession(b.provider, providers.NewSessionArgs{
		ModelPath:         opts.Path,
		LibraryPath:       b.config.LibraryPath,
		InputName:         opts.Inputs[0],
		OutputName:        opts.Outputs[0],
		InputShape:        opts.InputShape,
		OutputShape:       opts.OutputShape,
		IntraOpNumThreads: b.config.IntraOpNumThreads,
		InterOpNumThreads: b.config.InterOpNumThreads,
	})
	if err != nil {
		b.err = err
		return b
	}
	b.session = session

	return b
}

// WithDetector creates the detector on top of the model and session.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithDetector() *EngineBuilder {
	if b.HasError() {
		return b
	}
	if b.model == nil || b.session == nil {
		b.err = errors.New("model not configured")
		return b
	}

	detector, err := detectors.NewDetector(b.model, b.session, b.logger)
	if err != nil {
		b.err = err
		return b
	}
	b.detector = detector
	return b
}

// HasError checks if the engine builder has errors.
//
// Returns:
//   - bool: True if there are errors, false otherwise.
func (b *EngineBuilder) HasError() bool {
	return b.err != nil
}

// Build builds the engine. On error any session opened along the way is closed.
//
// Returns:
//   - Engine: The engine.
//   - error: The first error of the chain, if any.
func (b *EngineBuilder) Build() (Engine, error) {
	if b.err == nil {
		switch {
		case b.provider == nil:
			b.err = errors.New("provider not configured")
		case b.model == nil:
			b.err = errors.New("model not configured")
		case b.detector == nil:
			b.err = errors.New("detector not configured")
		}
	}
	if b.err != nil {
		if b.session != nil {
			_ = b.session.Close()
			b.session = nil
		}
		return nil, b.err
	}

	return &engine{
		session:  b.session,
		detector: b.detector,
	}, nil
}

// engine implements the Engine interface.
type engine struct {
	session  *providers.Session
	detector *detectors.Detector
}

func (e *engine) Detect(ctx context.Context, data []byte) (*detectors.Detection, error) {
	return e.detector.Detect(ctx, data)
}

func (e *engine) DetectImage(ctx context.Context, img image.Image) (*detectors.Detection, error) {
	return e.detector.DetectImage(ctx, img)
}

func (e *engine) TryDetectImage(ctx context.Context, img image.Image) (*detectors.Detection, error) {
	return e.detector.TryDetectImage(ctx, img)
}

func (e *engine) Close() error {
	return e.session.Close()
}
