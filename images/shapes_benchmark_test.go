package images

import (
	"math/rand"
	"testing"
)

// BenchmarkIoU_NonOverlapping tests rectangles that don't overlap.
func BenchmarkIoU_NonOverlapping(b *testing.B) {
	rect1 := Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}
	rect2 := Rect{X1: 200, Y1: 200, X2: 300, Y2: 300}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = CalculateIoU(rect1, rect2)
	}
}

// BenchmarkIoU_PartialOverlap tests the common case of neighbouring anchors.
func BenchmarkIoU_PartialOverlap(b *testing.B) {
	rect1 := Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}
	rect2 := Rect{X1: 50, Y1: 50, X2: 150, Y2: 150}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = CalculateIoU(rect1, rect2)
	}
}

// BenchmarkIoU_RandomPairs benchmarks random boxes inside a 416x416 input.
func BenchmarkIoU_RandomPairs(b *testing.B) {
	r := rand.New(rand.NewSource(7))
	rects := make([]Rect, 1024)
	for i := range rects {
		d := Dimensions{
			X:      r.Float32() * 416,
			Y:      r.Float32() * 416,
			Width:  r.Float32()*200 + 1,
			Height: r.Float32()*200 + 1,
		}
		rects[i] = d.Rect()
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = CalculateIoU(rects[i%len(rects)], rects[(i+1)%len(rects)])
	}
}
