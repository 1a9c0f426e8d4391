// Package tinyyolov2 - Tiny-YOLOv2 model.
//
// The model takes a 1x3x416x416 image tensor named "data" and produces a single
// 1x125x13x13 output named "model_outputs0": for each of the 13x13 grid cells, five
// anchor boxes of (x, y, w, h, objectness, class logits...).
package tinyyolov2

import (
	"github.com/nvr-ai/go-tinyyolo/models/model"
	"github.com/nvr-ai/go-tinyyolo/models/postprocess"
	"github.com/pkg/errors"
)

const (
	// RowCount is the number of grid rows.
	RowCount = 13
	// ColCount is the number of grid columns.
	ColCount = 13
	// CellWidth is the width of a grid cell in input pixels (416/13).
	CellWidth = 32
	// CellHeight is the height of a grid cell in input pixels (416/13).
	CellHeight = 32
	// BoxesPerCell is the number of anchors predicted per cell.
	BoxesPerCell = 5
	// BoxInfoFeatureCount is the number of box features per anchor: x, y, w, h, objectness.
	BoxInfoFeatureCount = 5
	// ClassCount is the number of classes the model predicts.
	ClassCount = 1
	// ChannelCount is the number of output channels per cell.
	ChannelCount = BoxesPerCell * (BoxInfoFeatureCount + ClassCount)

	// InputWidth is the model input width in pixels.
	InputWidth = 416
	// InputHeight is the model input height in pixels.
	InputHeight = 416
	// InputChannels is the number of input color channels.
	InputChannels = 3
	// InputName is the name of the model input tensor.
	InputName = "data"
	// OutputName is the name of the model output tensor.
	OutputName = "model_outputs0"

	// DefaultScoreThreshold is the minimum objectness and score a candidate needs.
	DefaultScoreThreshold float32 = 0.3
)

// Anchors are the (width, height) priors of each anchor, in cell units.
var Anchors = []float32{
	0.573, 0.677,
	1.87, 2.06,
	3.34, 5.47,
	7.88, 3.53,
	9.77, 9.17,
}

// Labels are the class names, indexed by class.
var Labels = []string{
	"MS Bit",
}

// Palette holds the display color of each class, indexed by class.
var Palette = []postprocess.Color{
	{R: 240, G: 230, B: 140}, // khaki
	{R: 255, G: 0, B: 255},   // fuchsia
	{R: 192, G: 192, B: 192}, // silver
	{R: 65, G: 105, B: 225},  // royal blue
	{R: 0, G: 128, B: 0},     // green
	{R: 255, G: 140, B: 0},   // dark orange
	{R: 128, G: 0, B: 128},   // purple
	{R: 255, G: 215, B: 0},   // gold
	{R: 255, G: 0, B: 0},     // red
	{R: 127, G: 255, B: 212}, // aquamarine
	{R: 0, G: 255, B: 0},     // lime
	{R: 240, G: 248, B: 255}, // alice blue
	{R: 160, G: 82, B: 45},   // sienna
	{R: 218, G: 112, B: 214}, // orchid
	{R: 210, G: 180, B: 140}, // tan
	{R: 255, G: 182, B: 193}, // light pink
	{R: 255, G: 255, B: 0},   // yellow
	{R: 255, G: 105, B: 180}, // hot pink
	{R: 107, G: 142, B: 35},  // olive drab
	{R: 244, G: 164, B: 96},  // sandy brown
	{R: 0, G: 206, B: 209},   // dark turquoise
}

// Tables bundles the per-model lookup tables used by the decoder.
type Tables struct {
	Anchors []float32
	Labels  []string
	Palette []postprocess.Color
}

// DefaultTables returns the tables of the bundled model.
func DefaultTables() Tables {
	return Tables{
		Anchors: Anchors,
		Labels:  Labels,
		Palette: Palette,
	}
}

// Validate checks the tables against the fixed output layout. ChannelCount is
// derived from the box layout, so only the tables can disagree with it.
//
// Returns:
//   - error: ErrInvalidArgument describing the first inconsistency, or nil.
func (t Tables) Validate() error {
	if len(t.Anchors) != 2*BoxesPerCell {
		return errors.Wrapf(postprocess.ErrInvalidArgument,
			"expected %d anchor values, got %d", 2*BoxesPerCell, len(t.Anchors))
	}
	for i, a := range t.Anchors {
		if !(a > 0) {
			return errors.Wrapf(postprocess.ErrInvalidArgument, "anchor %d must be positive, got %v", i, a)
		}
	}
	if len(t.Labels) != ClassCount {
		return errors.Wrapf(postprocess.ErrInvalidArgument,
			"expected %d labels, got %d", ClassCount, len(t.Labels))
	}
	if len(t.Palette) < ClassCount {
		return errors.Wrapf(postprocess.ErrInvalidArgument,
			"palette needs at least %d colors, got %d", ClassCount, len(t.Palette))
	}
	return nil
}

// TinyYOLOv2 is the instance of the Tiny-YOLOv2 model.
type TinyYOLOv2 struct {
	options model.Options
	decoder *Decoder
}

// NewModel creates a new model.
//
// Arguments:
//   - args: The arguments for creating a new model. Nil thresholds and NMS settings
//     select DefaultScoreThreshold and postprocess.DefaultNMSConfig.
//
// Returns:
//   - *TinyYOLOv2: The model.
//   - error: ErrInvalidArgument if a threshold or the NMS settings are out of range.
func NewModel(args model.NewModelArgs) (*TinyYOLOv2, error) {
	scoreThreshold := DefaultScoreThreshold
	if args.ScoreThreshold != nil {
		scoreThreshold = *args.ScoreThreshold
	}
	if !postprocess.InUnitInterval(scoreThreshold) {
		return nil, errors.Wrapf(postprocess.ErrInvalidArgument,
			"score threshold must be in [0, 1], got %v", scoreThreshold)
	}

	nms := postprocess.DefaultNMSConfig()
	if args.NMS != nil {
		nms = *args.NMS
	}
	if err := nms.Validate(); err != nil {
		return nil, err
	}

	decoder, err := NewDecoder(DefaultTables())
	if err != nil {
		return nil, err
	}
	decoder.Strict = args.Strict

	return &TinyYOLOv2{
		options: model.Options{
			Name:           model.ModelNameTinyYOLOv2,
			Family:         model.ModelFamilyYOLO,
			Path:           args.Path,
			Inputs:         []string{InputName},
			Outputs:        []string{OutputName},
			InputShape:     []int64{1, InputChannels, InputHeight, InputWidth},
			OutputShape:    []int64{1, ChannelCount, RowCount, ColCount},
			ScoreThreshold: scoreThreshold,
			NMS:            nms,
			Strict:         args.Strict,
		},
		decoder: decoder,
	}, nil
}

// Options returns the options for the Tiny-YOLOv2 model.
func (m *TinyYOLOv2) Options() model.Options {
	return m.options
}

// PostProcess decodes one output row and applies Non-Maximum Suppression with the
// model's configured thresholds.
//
// Arguments:
//   - output: The flattened 125x13x13 model output.
//
// Returns:
//   - The kept detections, highest score first.
//   - error: ErrInvalidTensorSize, or ErrNumericFailure in strict mode.
func (m *TinyYOLOv2) PostProcess(output []float32) ([]postprocess.Result, error) {
	candidates, err := m.decoder.Decode(output, m.options.ScoreThreshold)
	if err != nil {
		return nil, err
	}
	return postprocess.ApplyGreedyNMS(candidates, m.options.NMS), nil
}
