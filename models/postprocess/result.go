// Package postprocess - Postprocessing utilities for models.
package postprocess

import (
	"fmt"
	"image/color"

	"github.com/nvr-ai/go-tinyyolo/images"
)

// Color is a display hint attached to a detection. It is a plain RGB triple so the
// decoder stays independent of any graphics library.
type Color struct {
	R, G, B uint8
}

// RGBA converts the color to an opaque color.RGBA for renderers.
func (c Color) RGBA() color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xFF}
}

// Result represents a single detection result.
type Result struct {
	// The bounding box of the result, top-left corner plus size, in model-input pixels.
	Box images.Dimensions
	// The confidence score of the result: objectness times the top class probability.
	Score float32
	// The predicted class index of the result.
	Class int
	// The human-readable class label.
	Label string
	// The display color assigned to the class.
	Color Color
}

func (r Result) String() string {
	return fmt.Sprintf("%s (confidence %.6f): %s", r.Label, r.Score, r.Box)
}
