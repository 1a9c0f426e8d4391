package benchmark

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"image/png"

	"github.com/chai2010/webp"
	"github.com/nvr-ai/go-tinyyolo/images/codec"
	"github.com/pkg/errors"
)

// ScenarioBuilder helps build scenarios with a fluent API.
type ScenarioBuilder struct {
	scenario Scenario
}

// NewScenarioBuilder creates a builder with 100 iterations and 10 warmup runs.
func NewScenarioBuilder(name string) *ScenarioBuilder {
	return &ScenarioBuilder{
		scenario: Scenario{
			Name:       name,
			Iterations: 100,
			WarmupRuns: 10,
		},
	}
}

// WithImageFormat sets the format snapshots are re-encoded to.
func (sb *ScenarioBuilder) WithImageFormat(format codec.ImageFormat) *ScenarioBuilder {
	sb.scenario.ImageFormat = format
	return sb
}

// WithResolution sets the size snapshots are thumbnailed to.
func (sb *ScenarioBuilder) WithResolution(width, height int) *ScenarioBuilder {
	sb.scenario.Resolution = Resolution{
		Width:  width,
		Height: height,
		Name:   fmt.Sprintf("%dx%d", width, height),
	}
	return sb
}

// WithIterations sets the number of measured iterations.
func (sb *ScenarioBuilder) WithIterations(iterations int) *ScenarioBuilder {
	sb.scenario.Iterations = iterations
	return sb
}

// WithWarmupRuns sets the number of unmeasured warmup runs.
func (sb *ScenarioBuilder) WithWarmupRuns(warmups int) *ScenarioBuilder {
	sb.scenario.WarmupRuns = warmups
	return sb
}

// Build returns the configured scenario.
func (sb *ScenarioBuilder) Build() Scenario {
	return sb.scenario
}

// Formats are the snapshot encodings the preprocessor accepts.
var Formats = []codec.ImageFormat{codec.FormatJPEG, codec.FormatPNG, codec.FormatWebP}

// FormatScenarios returns one scenario per supported encoding.
func FormatScenarios(iterations, warmups int) []Scenario {
	scenarios := make([]Scenario, 0, len(Formats))
	for _, format := range Formats {
		scenarios = append(scenarios, NewScenarioBuilder(fmt.Sprintf("tinyyolov2_%s", format)).
			WithImageFormat(format).
			WithIterations(iterations).
			WithWarmupRuns(warmups).
			Build())
	}
	return scenarios
}

// CommonResolutions are camera snapshot sizes worth comparing. Each is shrunk to
// 416x416 by the preprocessor, so they differ only in decode and resize cost.
var CommonResolutions = []Resolution{
	{Width: 416, Height: 416, Name: "416x416"},
	{Width: 640, Height: 480, Name: "640x480"},
	{Width: 1280, Height: 720, Name: "1280x720"},
	{Width: 1920, Height: 1080, Name: "1920x1080"},
}

// ResolutionScenarios returns one JPEG scenario per common resolution.
func ResolutionScenarios(iterations, warmups int) []Scenario {
	scenarios := make([]Scenario, 0, len(CommonResolutions))
	for _, r := range CommonResolutions {
		scenarios = append(scenarios, NewScenarioBuilder(fmt.Sprintf("tinyyolov2_jpeg_%s", r.Name)).
			WithResolution(r.Width, r.Height).
			WithImageFormat(codec.FormatJPEG).
			WithIterations(iterations).
			WithWarmupRuns(warmups).
			Build())
	}
	return scenarios
}

// prepare applies the scenario's resolution and format to one snapshot.
func prepare(data []byte, scenario Scenario) ([]byte, error) {
	if r := scenario.Resolution; r.Width > 0 && r.Height > 0 {
		format := scenario.ImageFormat
		if format == "" {
			format = codec.DetectFormat(data)
		}
		return Thumbnail(data, r.Width, r.Height, format)
	}
	if scenario.ImageFormat != "" {
		return Transcode(data, scenario.ImageFormat)
	}
	return data, nil
}

// Transcode decodes an encoded image and re-encodes it in format.
//
// Arguments:
//   - data: A JPEG, PNG or WebP image.
//   - format: The target encoding.
//
// Returns:
//   - []byte: The re-encoded image.
//   - error: If data cannot be decoded or format is not supported.
func Transcode(data []byte, format codec.ImageFormat) ([]byte, error) {
	img, _, err := codec.DecodeImage(data)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	switch format {
	case codec.FormatJPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	case codec.FormatPNG:
		err = png.Encode(&buf, img)
	case codec.FormatWebP:
		err = webp.Encode(&buf, img, &webp.Options{Quality: 90})
	default:
		return nil, errors.Errorf("unsupported image format: %s", format)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s", format)
	}
	return buf.Bytes(), nil
}
