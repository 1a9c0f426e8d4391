package tinyyolov2

import "gorgonia.org/tensor"

// OutputShape is the layout of a single model output row: channels, rows, columns.
// The runtime flattens it channel-major.
var OutputShape = tensor.Shape{ChannelCount, RowCount, ColCount}

var outputStrides = OutputShape.CalcStrides()

// OutputSize is the number of elements in one model output row.
var OutputSize = OutputShape.TotalSize()

// Offset maps a grid cell (x, y) and a channel to its index in the flattened output.
func Offset(x, y, channel int) int {
	return channel*outputStrides[0] + y*outputStrides[1] + x*outputStrides[2]
}
