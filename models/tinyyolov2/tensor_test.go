package tinyyolov2

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutputLayout(t *testing.T) {
	assert.Equal(t, 125, ChannelCount)
	assert.Equal(t, 21125, OutputSize)
	assert.Equal(t, []int{ChannelCount, RowCount, ColCount}, []int(OutputShape))
}

func TestOffset(t *testing.T) {
	tests := []struct {
		x, y, channel int
		expected      int
	}{
		{0, 0, 0, 0},
		{1, 0, 0, 1},
		{0, 1, 0, 13},
		{0, 0, 1, 169},
		{6, 6, 4, 4*169 + 6*13 + 6},
		{12, 12, 124, OutputSize - 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Offset(tt.x, tt.y, tt.channel),
			"Offset(%d, %d, %d)", tt.x, tt.y, tt.channel)
	}
}

func TestOffsetCoversOutputOnce(t *testing.T) {
	seen := make([]bool, OutputSize)
	for c := 0; c < ChannelCount; c++ {
		for y := 0; y < RowCount; y++ {
			for x := 0; x < ColCount; x++ {
				i := Offset(x, y, c)
				assert.False(t, seen[i], "offset %d visited twice", i)
				seen[i] = true
			}
		}
	}
	for i, ok := range seen {
		assert.True(t, ok, "offset %d never visited", i)
	}
}
