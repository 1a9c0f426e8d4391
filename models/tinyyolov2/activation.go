package tinyyolov2

import "github.com/chewxy/math32"

// Sigmoid is the logistic function, evaluated as e^v / (1 + e^v).
func Sigmoid(v float32) float32 {
	k := math32.Exp(v)
	if math32.IsInf(k, 1) {
		return 1
	}
	return k / (1 + k)
}

// Softmax normalises logits into a probability distribution. The maximum is
// subtracted before exponentiation so large logits do not overflow.
//
// Arguments:
//   - values: The logits. Not modified.
//
// Returns:
//   - []float32: A new slice of the same length summing to 1. A single logit yields [1].
func Softmax(values []float32) []float32 {
	out := make([]float32, len(values))
	if len(values) == 0 {
		return out
	}

	maxVal := values[0]
	for _, v := range values[1:] {
		if v > maxVal {
			maxVal = v
		}
	}

	var sum float32
	for i, v := range values {
		out[i] = math32.Exp(v - maxVal)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// ArgMax returns the index and value of the largest element. Ties resolve to the
// lowest index. An empty slice yields (-1, 0).
func ArgMax(values []float32) (int, float32) {
	if len(values) == 0 {
		return -1, 0
	}
	idx, best := 0, values[0]
	for i, v := range values[1:] {
		if v > best {
			idx, best = i+1, v
		}
	}
	return idx, best
}
