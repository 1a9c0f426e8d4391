// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"math"
	"sort"

	"github.com/nvr-ai/go-tinyyolo/images"
	"github.com/pkg/errors"
)

const (
	// DefaultLimit is the maximum number of boxes kept per frame.
	DefaultLimit = 5
	// DefaultIoUThreshold is the overlap above which a lower-scored box is suppressed.
	DefaultIoUThreshold = 0.5
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// Maximum number of results to keep. Must be at least 1.
	Limit int `json:"limit" yaml:"limit" koanf:"limit"`
	// Overlap threshold for suppression, in [0, 1]. Suppression is strictly greater-than.
	IoUThreshold float32 `json:"iouThreshold" yaml:"iouThreshold" koanf:"iouthreshold"`
}

// DefaultNMSConfig returns the limit and IoU threshold used for live detection.
func DefaultNMSConfig() NMSConfig {
	return NMSConfig{
		Limit:        DefaultLimit,
		IoUThreshold: DefaultIoUThreshold,
	}
}

// Validate checks that the limit is positive and the IoU threshold lies in [0, 1].
//
// Returns:
//   - error: ErrInvalidArgument wrapped with the offending value, or nil.
func (c NMSConfig) Validate() error {
	if c.Limit < 1 {
		return errors.Wrapf(ErrInvalidArgument, "limit must be at least 1, got %d", c.Limit)
	}
	if !InUnitInterval(c.IoUThreshold) {
		return errors.Wrapf(ErrInvalidArgument, "iou threshold must be in [0, 1], got %v", c.IoUThreshold)
	}
	return nil
}

// InUnitInterval reports whether v lies in [0, 1]. NaN is never in range.
func InUnitInterval(v float32) bool {
	return !math.IsNaN(float64(v)) && v >= 0 && v <= 1
}

// SortByScore returns a copy of detections ordered by descending score. Equal
// scores keep their original relative order.
func SortByScore(detections []Result) []Result {
	sorted := make([]Result, len(detections))
	copy(sorted, detections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	return sorted
}

// ApplyGreedyNMS performs standard greedy Non-Maximum Suppression.
//
// Detections are sorted by descending score (stable), then, in that order, every
// still-active detection is kept and suppresses each later active detection whose
// IoU with it is strictly greater than the threshold. Processing stops once
// config.Limit detections have been kept or nothing active remains.
//
// The input slice is not modified. The config is assumed valid; see Validate.
//
// Arguments:
//   - detections: Candidate detections in any order.
//   - config: The limit and IoU threshold.
//
// Returns:
//   - Filtered slice of detections, highest score first. Nil when there is no input.
func ApplyGreedyNMS(detections []Result, config NMSConfig) []Result {
	n := len(detections)
	if n == 0 {
		return nil
	}

	sorted := SortByScore(detections)
	filtered := make([]Result, 0, min(n, max(config.Limit, 1)))
	used := make([]bool, n)
	active := n

	for i := 0; i < n && active > 0; i++ {
		if used[i] {
			continue
		}

		anchor := sorted[i]
		filtered = append(filtered, anchor)
		used[i] = true
		active--

		if len(filtered) >= config.Limit {
			break
		}

		anchorRect := anchor.Box.Rect()
		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}

			// Suppress if IoU exceeds threshold
			if images.CalculateIoU(anchorRect, sorted[j].Box.Rect()) > config.IoUThreshold {
				used[j] = true
				active--
			}
		}
	}

	return filtered
}

// FilterBoundingBoxes validates its arguments and applies greedy NMS.
//
// Arguments:
//   - detections: Candidate detections, typically the output of a model decoder.
//   - limit: The maximum number of detections to return (at least 1).
//   - iouThreshold: The IoU above which overlapping detections are suppressed, in [0, 1].
//
// Returns:
//   - The surviving detections, highest score first. Empty (nil) input yields nil.
//   - ErrInvalidArgument if limit or iouThreshold is out of range.
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
func FilterBoundingBoxes(detections []Result, limit int, iouThreshold float32) ([]Result, error) {
	config := NMSConfig{Limit: limit, IoUThreshold: iouThreshold}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return ApplyGreedyNMS(detections, config), nil
}
