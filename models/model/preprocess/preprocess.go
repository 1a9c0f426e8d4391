// Package preprocess - turns snapshot images into model input tensors.
package preprocess

import (
	"image"

	"github.com/nvr-ai/go-tinyyolo/images"
	"github.com/nvr-ai/go-tinyyolo/images/codec"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorgonia.org/tensor"
)

// ModelConfig defines preprocessing configuration for a specific model.
type ModelConfig struct {
	// Name of the model for logging purposes.
	Name string
	// InputWidth is the expected width of the model input.
	InputWidth int
	// InputHeight is the expected height of the model input.
	InputHeight int
}

// inputChannels is fixed: every supported model takes three color planes.
const inputChannels = 3

// GetTinyYOLOv2Config returns the configuration for Tiny-YOLOv2 models: a plain
// stretch to 416x416 with raw 0-255 RGB planes.
//
// Returns:
//   - *ModelConfig: The configuration.
func GetTinyYOLOv2Config() *ModelConfig {
	return &ModelConfig{
		Name:        "tinyyolov2",
		InputWidth:  416,
		InputHeight: 416,
	}
}

// PreprocessingResult contains the preprocessed image data and metadata.
type PreprocessingResult struct {
	// Tensor is the (1, 3, height, width) float32 input tensor.
	Tensor *tensor.Dense
	// OriginalWidth is the image width before preprocessing.
	OriginalWidth int
	// OriginalHeight is the image height before preprocessing.
	OriginalHeight int
}

// Data returns the flat backing slice of the tensor, channel-major.
func (r *PreprocessingResult) Data() []float32 {
	return r.Tensor.Data().([]float32)
}

// OriginalSize returns the size of the source image.
func (r *PreprocessingResult) OriginalSize() images.Size {
	return images.Size{Width: float32(r.OriginalWidth), Height: float32(r.OriginalHeight)}
}

// Preprocessor handles image preprocessing for ONNX models. It is safe for
// concurrent use.
type Preprocessor struct {
	config *ModelConfig
	logger *zap.Logger
}

// NewPreprocessor creates a new preprocessor with the given configuration.
//
// Arguments:
//   - config: The model-specific preprocessing configuration.
//   - logger: Debug logger; nil disables logging.
//
// Returns:
//   - *Preprocessor: A configured Preprocessor instance.
//   - error: If the configured input size is not positive.
//
// Example:
//
// ```go
//
//	preprocessor, err := NewPreprocessor(GetTinyYOLOv2Config(), logger)
//	if err != nil {
//	    return err
//	}
//	result, err := preprocessor.Preprocess(jpegBytes)
//
// ```
func NewPreprocessor(config *ModelConfig, logger *zap.Logger) (*Preprocessor, error) {
	if config == nil {
		return nil, errors.New("config is nil")
	}
	if config.InputWidth <= 0 || config.InputHeight <= 0 {
		return nil, errors.Errorf("invalid input dimensions: %dx%d", config.InputWidth, config.InputHeight)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Preprocessor{config: config, logger: logger}, nil
}

// Preprocess decodes encoded image bytes (JPEG, PNG or WebP) and converts them
// into the model input tensor.
//
// Arguments:
//   - data: The encoded image.
//
// Returns:
//   - *PreprocessingResult: The tensor and the original image size.
//   - error: If the bytes cannot be decoded.
func (p *Preprocessor) Preprocess(data []byte) (*PreprocessingResult, error) {
	img, format, err := codec.DecodeImage(data)
	if err != nil {
		return nil, errors.Wrap(err, "image decoding failed")
	}
	p.logger.Debug("decoded image",
		zap.String("model", p.config.Name),
		zap.String("format", string(format)),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()),
	)
	return p.PreprocessImage(img)
}

// PreprocessImage resizes an already decoded image and converts it into the model
// input tensor.
//
// Arguments:
//   - img: The source image.
//
// Returns:
//   - *PreprocessingResult: The tensor and the original image size.
//   - error: If the image is empty.
func (p *Preprocessor) PreprocessImage(img image.Image) (*PreprocessingResult, error) {
	if img == nil {
		return nil, errors.New("image is nil")
	}
	originalWidth := img.Bounds().Dx()
	originalHeight := img.Bounds().Dy()
	if originalWidth <= 0 || originalHeight <= 0 {
		return nil, errors.Errorf("invalid image dimensions: %dx%d", originalWidth, originalHeight)
	}

	resized, err := codec.ResizeImage(img, p.config.InputWidth, p.config.InputHeight)
	if err != nil {
		return nil, errors.Wrap(err, "image resizing failed")
	}

	data := imageToTensor(resized)

	t := tensor.New(
		tensor.WithShape(1, inputChannels, p.config.InputHeight, p.config.InputWidth),
		tensor.WithBacking(data),
	)

	p.logger.Debug("preprocessed image",
		zap.String("model", p.config.Name),
		zap.Ints("shape", t.Shape()),
	)

	return &PreprocessingResult{
		Tensor:         t,
		OriginalWidth:  originalWidth,
		OriginalHeight: originalHeight,
	}, nil
}

// imageToTensor extracts the pixels as raw 0-255 values into three
// channel-major planes: R, G, then B.
func imageToTensor(img image.Image) []float32 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	plane := width * height

	data := make([]float32, plane*inputChannels)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()

			i := y*width + x
			data[i] = float32(r >> 8)
			data[plane+i] = float32(g >> 8)
			data[2*plane+i] = float32(b >> 8)
		}
	}

	return data
}
