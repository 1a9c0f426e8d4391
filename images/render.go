package images

// Size is a width/height pair in pixels.
type Size struct {
	Width  float32 `json:"width"  yaml:"width"  koanf:"width"`
	Height float32 `json:"height" yaml:"height" koanf:"height"`
}

// Clamp keeps a box's origin non-negative and trims its size so that it does not
// run past the bounds of the source image.
//
// Arguments:
//   - d: The box in model-input pixel space.
//   - bounds: The source image dimensions.
//
// Returns:
//   - Dimensions: The clamped box.
func Clamp(d Dimensions, bounds Size) Dimensions {
	x := max(d.X, 0)
	y := max(d.Y, 0)
	return Dimensions{
		X:      x,
		Y:      y,
		Width:  min(bounds.Width-x, d.Width),
		Height: min(bounds.Height-y, d.Height),
	}
}

// ScaleToDisplay maps a decoded box onto a display surface.
//
// The box is first clamped against the source image, then each axis is scaled by
// display/input, where input is the model input size the box was decoded in.
//
// Arguments:
//   - d: The box in model-input pixel space.
//   - source: The source image dimensions used for clamping.
//   - input: The model input dimensions (416x416 for Tiny-YOLOv2).
//   - display: The display surface dimensions.
//
// Returns:
//   - Dimensions: The box in display coordinates.
//
// Example:
//
// ```go
//
//	box := ScaleToDisplay(result.Box, Size{640, 480}, Size{416, 416}, Size{1280, 960})
//
// ```
func ScaleToDisplay(d Dimensions, source, input, display Size) Dimensions {
	c := Clamp(d, source)
	sx := display.Width / input.Width
	sy := display.Height / input.Height
	return Dimensions{
		X:      c.X * sx,
		Y:      c.Y * sy,
		Width:  c.Width * sx,
		Height: c.Height * sy,
	}
}
