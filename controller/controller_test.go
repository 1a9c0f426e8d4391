package controller

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nvr-ai/go-tinyyolo/inference/detectors"
	"github.com/nvr-ai/go-tinyyolo/models/postprocess"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockSnapshotter returns a fixed frame after an optional delay and tracks how
// many snapshots overlap.
type MockSnapshotter struct {
	delay       time.Duration
	err         error
	calls       atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (m *MockSnapshotter) Snapshot(ctx context.Context) (image.Image, error) {
	m.calls.Add(1)
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		old := m.maxInFlight.Load()
		if n <= old || m.maxInFlight.CompareAndSwap(old, n) {
			break
		}
	}

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
}

// MockDetector returns a fixed detection.
type MockDetector struct {
	err   error
	calls atomic.Int32
}

func (m *MockDetector) TryDetectImage(context.Context, image.Image) (*detectors.Detection, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return &detectors.Detection{Results: []postprocess.Result{{Label: "MS Bit", Score: 0.9}}}, nil
}

// recorder collects published frames.
type recorder struct {
	mu     sync.Mutex
	frames []Frame
}

func (r *recorder) Publish(frame Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{}, nil, &MockDetector{}, &recorder{}, nil)
	assert.Error(t, err)

	_, err = New(Config{Interval: -time.Second}, &MockSnapshotter{}, &MockDetector{}, &recorder{}, nil)
	assert.Error(t, err)

	c, err := New(Config{}, &MockSnapshotter{}, &MockDetector{}, &recorder{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultInterval, c.config.Interval)
	assert.Equal(t, DefaultInterval, c.config.Timeout)
	require.NoError(t, c.Shutdown())
}

func TestRunOnce(t *testing.T) {
	sink := &recorder{}
	c, err := New(Config{}, &MockSnapshotter{}, &MockDetector{}, sink, nil)
	require.NoError(t, err)
	defer c.Shutdown()

	require.NoError(t, c.RunOnce(context.Background()))
	require.NoError(t, c.RunOnce(context.Background()))

	require.Equal(t, 2, sink.count())
	assert.Equal(t, int64(1), sink.frames[0].ID)
	assert.Equal(t, int64(2), sink.frames[1].ID)
	assert.Len(t, sink.frames[0].Detection.Results, 1)
	assert.NotNil(t, sink.frames[0].Image)
}

func TestRunOnce_Errors(t *testing.T) {
	boom := errors.New("camera unplugged")

	t.Run("snapshot", func(t *testing.T) {
		sink := &recorder{}
		detector := &MockDetector{}
		c, err := New(Config{}, &MockSnapshotter{err: boom}, detector, sink, nil)
		require.NoError(t, err)
		defer c.Shutdown()

		err = c.RunOnce(context.Background())
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, int32(0), detector.calls.Load())
		assert.Equal(t, 0, sink.count())
	})

	t.Run("busy", func(t *testing.T) {
		sink := &recorder{}
		c, err := New(Config{}, &MockSnapshotter{}, &MockDetector{err: detectors.ErrBusy}, sink, nil)
		require.NoError(t, err)
		defer c.Shutdown()

		assert.ErrorIs(t, c.RunOnce(context.Background()), detectors.ErrBusy)
		assert.Equal(t, 0, sink.count())
	})
}

func TestController_NoOverlap(t *testing.T) {
	snapshots := &MockSnapshotter{delay: 120 * time.Millisecond}
	sink := &recorder{}

	c, err := New(Config{Interval: 20 * time.Millisecond, Timeout: time.Second},
		snapshots, &MockDetector{}, SinkFunc(sink.Publish), nil)
	require.NoError(t, err)
	require.NoError(t, c.Start())

	require.Eventually(t, func() bool { return sink.count() >= 3 }, 3*time.Second, 10*time.Millisecond)
	require.NoError(t, c.Shutdown())

	assert.Equal(t, int32(1), snapshots.maxInFlight.Load(), "runs must never overlap")
	// Slow runs drop ticks instead of queueing them.
	assert.LessOrEqual(t, int(snapshots.calls.Load()), sink.count()+1)
}

func TestController_ShutdownIdempotent(t *testing.T) {
	c, err := New(Config{Interval: time.Hour}, &MockSnapshotter{}, &MockDetector{}, &recorder{}, nil)
	require.NoError(t, err)
	require.NoError(t, c.Start())
	require.NoError(t, c.Shutdown())
	require.NoError(t, c.Shutdown())
}
