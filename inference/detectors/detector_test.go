package detectors

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/nvr-ai/go-tinyyolo/models/model"
	"github.com/nvr-ai/go-tinyyolo/models/postprocess"
	"github.com/nvr-ai/go-tinyyolo/models/tinyyolov2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeScorer returns a fixed output and records the input it saw.
type fakeScorer struct {
	mu      sync.Mutex
	output  []float32
	err     error
	input   []float32
	calls   int
	started chan struct{}
	release chan struct{}
}

func (f *fakeScorer) Run(input []float32) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.input = input
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return f.output, f.err
}

// peakOutput returns an output row with a single confident box at cell (6, 6).
func peakOutput() []float32 {
	out := make([]float32, tinyyolov2.OutputSize)
	for i := range out {
		out[i] = -10
	}
	for i, v := range []float32{0, 0, 0, 0, 10, 10} {
		out[tinyyolov2.Offset(6, 6, i)] = v
	}
	return out
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	img.SetRGBA(0, 0, color.RGBA{R: 7, G: 8, B: 9, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestDetector(t *testing.T, scorer Scorer) *Detector {
	t.Helper()
	m, err := tinyyolov2.NewModel(model.NewModelArgs{Name: model.ModelNameTinyYOLOv2})
	require.NoError(t, err)
	d, err := NewDetector(m, scorer, nil)
	require.NoError(t, err)
	return d
}

func TestDetect(t *testing.T) {
	scorer := &fakeScorer{output: peakOutput()}
	d := newTestDetector(t, scorer)

	detection, err := d.Detect(context.Background(), pngBytes(t, 416, 416))
	require.NoError(t, err)
	require.Len(t, detection.Results, 1)

	r := detection.Results[0]
	assert.Equal(t, "MS Bit", r.Label)
	assert.InDelta(t, 198.832, r.Box.X, 1e-3)
	assert.Equal(t, float32(416), detection.Source.Width)
	assert.Equal(t, float32(416), detection.Input.Width)

	require.Len(t, scorer.input, 3*416*416)
	assert.Equal(t, float32(7), scorer.input[0])
	assert.Equal(t, float32(8), scorer.input[416*416])
	assert.Equal(t, float32(9), scorer.input[2*416*416])
}

func TestDetectImage(t *testing.T) {
	d := newTestDetector(t, &fakeScorer{output: peakOutput()})

	detection, err := d.DetectImage(context.Background(), image.NewRGBA(image.Rect(0, 0, 640, 480)))
	require.NoError(t, err)
	assert.Len(t, detection.Results, 1)
	assert.Equal(t, float32(640), detection.Source.Width)
	assert.Equal(t, float32(480), detection.Source.Height)
}

func TestDetect_Errors(t *testing.T) {
	t.Run("bad image", func(t *testing.T) {
		scorer := &fakeScorer{output: peakOutput()}
		d := newTestDetector(t, scorer)
		_, err := d.Detect(context.Background(), []byte("nope"))
		require.Error(t, err)
		assert.Equal(t, 0, scorer.calls)
	})

	t.Run("scorer failure", func(t *testing.T) {
		boom := errors.New("boom")
		d := newTestDetector(t, &fakeScorer{err: boom})
		_, err := d.Detect(context.Background(), pngBytes(t, 32, 32))
		assert.ErrorIs(t, err, boom)
	})

	t.Run("wrong output size", func(t *testing.T) {
		d := newTestDetector(t, &fakeScorer{output: make([]float32, 10)})
		_, err := d.Detect(context.Background(), pngBytes(t, 32, 32))
		assert.ErrorIs(t, err, postprocess.ErrInvalidTensorSize)
	})

	t.Run("cancelled", func(t *testing.T) {
		scorer := &fakeScorer{output: peakOutput()}
		d := newTestDetector(t, scorer)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := d.Detect(ctx, pngBytes(t, 32, 32))
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, scorer.calls)
	})
}

func TestTryDetect_Busy(t *testing.T) {
	scorer := &fakeScorer{
		output:  peakOutput(),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	d := newTestDetector(t, scorer)
	data := pngBytes(t, 64, 64)

	done := make(chan error)
	go func() {
		_, err := d.TryDetect(context.Background(), data)
		done <- err
	}()
	<-scorer.started

	_, err := d.TryDetect(context.Background(), data)
	assert.ErrorIs(t, err, ErrBusy)
	_, err = d.TryDetectImage(context.Background(), image.NewRGBA(image.Rect(0, 0, 8, 8)))
	assert.ErrorIs(t, err, ErrBusy)

	close(scorer.release)
	require.NoError(t, <-done)

	scorer.started = nil
	detection, err := d.TryDetect(context.Background(), data)
	require.NoError(t, err)
	assert.Len(t, detection.Results, 1)
	assert.Equal(t, 2, scorer.calls)
}

// fakeModel reports an arbitrary input shape.
type fakeModel struct {
	options model.Options
}

func (m fakeModel) Options() model.Options { return m.options }

func (m fakeModel) PostProcess([]float32) ([]postprocess.Result, error) { return nil, nil }

func TestNewDetector_Validation(t *testing.T) {
	_, err := NewDetector(nil, &fakeScorer{}, nil)
	assert.Error(t, err)

	m := fakeModel{options: model.Options{InputShape: []int64{1, 1, 28, 28}}}
	_, err = NewDetector(m, &fakeScorer{}, nil)
	assert.Error(t, err)

	m = fakeModel{options: model.Options{Name: "custom", InputShape: []int64{1, 3, 64, 32}}}
	d, err := NewDetector(m, &fakeScorer{}, nil)
	require.NoError(t, err)
	assert.Equal(t, float32(32), d.InputSize().Width)
	assert.Equal(t, float32(64), d.InputSize().Height)
}

func TestNewDetector_PreprocessesToModelInputShape(t *testing.T) {
	scorer := &fakeScorer{}
	m := fakeModel{options: model.Options{Name: "custom", InputShape: []int64{1, 3, 64, 32}}}
	d, err := NewDetector(m, scorer, nil)
	require.NoError(t, err)

	detection, err := d.Detect(context.Background(), pngBytes(t, 100, 50))
	require.NoError(t, err)
	assert.Len(t, scorer.input, 3*64*32)
	assert.Equal(t, float32(100), detection.Source.Width)
	assert.Equal(t, float32(50), detection.Source.Height)
}
