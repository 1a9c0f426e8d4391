package postprocess

import "github.com/pkg/errors"

var (
	// ErrInvalidTensorSize is returned when a model output does not have the
	// expected number of elements.
	ErrInvalidTensorSize = errors.New("invalid tensor size")
	// ErrInvalidArgument is returned for out-of-range limits and thresholds, and for
	// inconsistent model constants.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNumericFailure is returned in strict mode when the model output contains
	// NaN or infinite values.
	ErrNumericFailure = errors.New("numeric failure")
)
