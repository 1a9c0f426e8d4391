// Package images - Image geometry and processing utilities
package images

import "fmt"

// Rect is a lightweight axis-aligned bounding box in corner form.
type Rect struct {
	// X1,Y1 is the top-left corner, X2,Y2 the bottom-right corner.
	X1, Y1, X2, Y2 float32
}

// Width returns the horizontal extent of the rectangle.
func (r Rect) Width() float32 {
	return r.X2 - r.X1
}

// Height returns the vertical extent of the rectangle.
func (r Rect) Height() float32 {
	return r.Y2 - r.Y1
}

// Area returns Width * Height. It is negative or zero for degenerate rectangles.
func (r Rect) Area() float32 {
	return r.Width() * r.Height()
}

// Dimensions describes a box by its top-left corner and its size, in model-input
// pixel space.
type Dimensions struct {
	X      float32 `json:"x"      yaml:"x"`
	Y      float32 `json:"y"      yaml:"y"`
	Width  float32 `json:"width"  yaml:"width"`
	Height float32 `json:"height" yaml:"height"`
}

// Rect derives the corner-form rectangle used for overlap computations.
//
// Returns:
//   - Rect: left=X, top=Y, right=X+Width, bottom=Y+Height.
func (d Dimensions) Rect() Rect {
	return Rect{
		X1: d.X,
		Y1: d.Y,
		X2: d.X + d.Width,
		Y2: d.Y + d.Height,
	}
}

func (d Dimensions) String() string {
	return fmt.Sprintf("(%.2f, %.2f) %.2fx%.2f", d.X, d.Y, d.Width, d.Height)
}

// CalculateIoU measures the overlap of two rectangles as the area of their
// intersection divided by the area of their union.
//
// A value of 1.0 means the rectangles are identical, 0.0 means they do not
// overlap at all. If either rectangle has a non-positive area the result is 0.
//
// The intersection corners are the maximum of the two top-left corners and the
// minimum of the two bottom-right corners; a negative extent on either axis is
// clamped to zero. The union follows inclusion-exclusion:
//
//	Area(Union) = Area(A) + Area(B) - Area(Intersection)
//
// Arguments:
//   - r: The first rectangle.
//   - o: The other rectangle to compare against.
//
// Returns:
//   - float32: A value between 0.0 and 1.0 representing the IoU score.
//
// Example Usage:
// ```go
//
//	rect1 := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	rect2 := Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}
//
//	iouScore := CalculateIoU(rect1, rect2) // 25 / 175 = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float32 {
	areaR := r.Area()
	if areaR <= 0 {
		return 0
	}
	areaO := o.Area()
	if areaO <= 0 {
		return 0
	}

	ix1 := max(r.X1, o.X1)
	iy1 := max(r.Y1, o.Y1)
	ix2 := min(r.X2, o.X2)
	iy2 := min(r.Y2, o.Y2)

	interArea := max(ix2-ix1, 0) * max(iy2-iy1, 0)

	return interArea / (areaR + areaO - interArea)
}
