// Package tinyyolov2 - postprocess Tiny-YOLOv2 model outputs.
package tinyyolov2

import (
	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-tinyyolo/images"
	"github.com/nvr-ai/go-tinyyolo/models/postprocess"
	"github.com/pkg/errors"
)

// Decoder turns a raw output row into candidate detections. It holds no per-call
// state and is safe for concurrent use.
type Decoder struct {
	tables Tables
	// Strict makes Decode fail with ErrNumericFailure on the first NaN or infinite
	// value in the output. Otherwise affected candidates are skipped.
	Strict bool
}

var defaultDecoder = &Decoder{tables: DefaultTables()}

// NewDecoder creates a decoder for the given lookup tables.
//
// Returns:
//   - *Decoder: The decoder.
//   - error: ErrInvalidArgument if the tables do not match the output layout.
func NewDecoder(tables Tables) (*Decoder, error) {
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	return &Decoder{tables: tables}, nil
}

// ParseOutputs decodes a Tiny-YOLOv2 output row with the bundled tables. Non-finite
// values are skipped rather than reported.
//
// Arguments:
//   - output: The flattened 125x13x13 model output, channel-major.
//   - threshold: Minimum objectness and score, in [0, 1]. DefaultScoreThreshold is 0.3.
//
// Returns:
//   - The candidates that cleared the threshold, in no particular order.
//   - error: ErrInvalidTensorSize or ErrInvalidArgument.
//
// Example:
//
// ```go
//
//	candidates, err := tinyyolov2.ParseOutputs(output, tinyyolov2.DefaultScoreThreshold)
//	if err != nil {
//	    return err
//	}
//	boxes, err := postprocess.FilterBoundingBoxes(candidates, 5, 0.5)
//
// ```
func ParseOutputs(output []float32, threshold float32) ([]postprocess.Result, error) {
	return defaultDecoder.Decode(output, threshold)
}

// Decode reconstructs a candidate for every (cell, anchor) pair and keeps those
// whose objectness and score both reach threshold.
//
// For the anchor a of cell (x, y), with t* the raw features:
//
//	cx = (x + σ(tx)) * CellWidth     bw = e^tw * CellWidth  * anchor[2a]
//	cy = (y + σ(ty)) * CellHeight    bh = e^th * CellHeight * anchor[2a+1]
//	score = σ(to) * max(softmax(class logits))
//
// and the emitted box is the top-left corner form (cx - bw/2, cy - bh/2, bw, bh).
//
// Arguments:
//   - output: The flattened 125x13x13 model output, channel-major.
//   - threshold: Minimum objectness and score, in [0, 1].
//
// Returns:
//   - The surviving candidates.
//   - error: ErrInvalidTensorSize, ErrInvalidArgument, or ErrNumericFailure in strict mode.
func (d *Decoder) Decode(output []float32, threshold float32) ([]postprocess.Result, error) {
	if len(output) != OutputSize {
		return nil, errors.Wrapf(postprocess.ErrInvalidTensorSize,
			"expected %d values (%v), got %d", OutputSize, OutputShape, len(output))
	}
	if !postprocess.InUnitInterval(threshold) {
		return nil, errors.Wrapf(postprocess.ErrInvalidArgument,
			"score threshold must be in [0, 1], got %v", threshold)
	}
	if d.Strict {
		if i, ok := firstNonFinite(output); ok {
			return nil, errors.Wrapf(postprocess.ErrNumericFailure,
				"non-finite value %v at index %d", output[i], i)
		}
	}

	var results []postprocess.Result
	logits := make([]float32, ClassCount)

	// The first grid axis is the outer loop; the order is not observable after NMS.
	for x := 0; x < ColCount; x++ {
		for y := 0; y < RowCount; y++ {
			for box := 0; box < BoxesPerCell; box++ {
				if r, ok := d.decodeCell(output, x, y, box, threshold, logits); ok {
					results = append(results, r)
				}
			}
		}
	}

	return results, nil
}

// decodeCell decodes one anchor of one cell. logits is scratch space of ClassCount.
func (d *Decoder) decodeCell(
	output []float32,
	x, y, box int,
	threshold float32,
	logits []float32,
) (postprocess.Result, bool) {
	channel := box * (BoxInfoFeatureCount + ClassCount)

	objectness := Sigmoid(output[Offset(x, y, channel+4)])
	if !passes(objectness, threshold) {
		return postprocess.Result{}, false
	}

	for c := range logits {
		logits[c] = output[Offset(x, y, channel+BoxInfoFeatureCount+c)]
	}
	class, probability := ArgMax(Softmax(logits))
	score := probability * objectness
	if !passes(score, threshold) {
		return postprocess.Result{}, false
	}

	cx := (float32(x) + Sigmoid(output[Offset(x, y, channel)])) * CellWidth
	cy := (float32(y) + Sigmoid(output[Offset(x, y, channel+1)])) * CellHeight
	bw := math32.Exp(output[Offset(x, y, channel+2)]) * CellWidth * d.tables.Anchors[box*2]
	bh := math32.Exp(output[Offset(x, y, channel+3)]) * CellHeight * d.tables.Anchors[box*2+1]
	if !finite(cx, cy, bw, bh) || bw <= 0 || bh <= 0 {
		return postprocess.Result{}, false
	}

	return postprocess.Result{
		Box: images.Dimensions{
			X:      cx - bw/2,
			Y:      cy - bh/2,
			Width:  bw,
			Height: bh,
		},
		Score: score,
		Class: class,
		Label: d.tables.Labels[class],
		Color: d.tables.Palette[class],
	}, true
}

// passes is the threshold gate. A value equal to the threshold passes; NaN never does.
func passes(v, threshold float32) bool {
	return v >= threshold
}

func finite(values ...float32) bool {
	for _, v := range values {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func firstNonFinite(values []float32) (int, bool) {
	for i, v := range values {
		if !finite(v) {
			return i, true
		}
	}
	return 0, false
}
