package benchmark

import (
	"bytes"
	"context"
	"encoding/csv"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nvr-ai/go-tinyyolo/images/codec"
	"github.com/nvr-ai/go-tinyyolo/inference/detectors"
	"github.com/nvr-ai/go-tinyyolo/models/postprocess"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockDetector struct {
	calls   atomic.Int64
	failAt  int64
	results int
	formats []codec.ImageFormat
}

func (m *mockDetector) Detect(_ context.Context, data []byte) (*detectors.Detection, error) {
	n := m.calls.Add(1)
	m.formats = append(m.formats, codec.DetectFormat(data))
	if m.failAt > 0 && n%m.failAt == 0 {
		return nil, errors.New("inference failed")
	}
	return &detectors.Detection{Results: make([]postprocess.Result, m.results)}, nil
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 10), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestScenarioBuilder(t *testing.T) {
	scenario := NewScenarioBuilder("webp").
		WithImageFormat(codec.FormatWebP).
		WithIterations(7).
		WithWarmupRuns(2).
		Build()

	assert.Equal(t, Scenario{Name: "webp", ImageFormat: codec.FormatWebP, Iterations: 7, WarmupRuns: 2}, scenario)

	sized := NewScenarioBuilder("sized").WithResolution(640, 480).Build()
	assert.Equal(t, Resolution{Width: 640, Height: 480, Name: "640x480"}, sized.Resolution)
	assert.Equal(t, 100, NewScenarioBuilder("defaults").Build().Iterations)
}

func TestFormatScenarios(t *testing.T) {
	scenarios := FormatScenarios(5, 1)
	require.Len(t, scenarios, len(Formats))
	for i, s := range scenarios {
		assert.Equal(t, Formats[i], s.ImageFormat)
		assert.Equal(t, 5, s.Iterations)
		assert.Equal(t, 1, s.WarmupRuns)
	}
}

func TestResolutionScenarios(t *testing.T) {
	scenarios := ResolutionScenarios(5, 1)
	require.Len(t, scenarios, len(CommonResolutions))
	for i, s := range scenarios {
		assert.Equal(t, CommonResolutions[i], s.Resolution)
		assert.Equal(t, codec.FormatJPEG, s.ImageFormat)
	}
}

func TestPrepareKeepsOriginalBytes(t *testing.T) {
	src := testPNG(t)
	out, err := prepare(src, Scenario{Name: "original", Iterations: 1})
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestPrepareThumbnails(t *testing.T) {
	out, err := prepare(testPNG(t), NewScenarioBuilder("small").WithResolution(16, 16).Build())
	require.NoError(t, err)
	assert.Equal(t, codec.FormatPNG, codec.DetectFormat(out), "format is kept when none is set")

	img, _, err := codec.DecodeImage(out)
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
	assert.Equal(t, 12, img.Bounds().Dy())
}

func TestTranscode(t *testing.T) {
	src := testPNG(t)

	for _, format := range Formats {
		t.Run(string(format), func(t *testing.T) {
			out, err := Transcode(src, format)
			require.NoError(t, err)
			assert.Equal(t, format, codec.DetectFormat(out))
		})
	}

	t.Run("unsupported", func(t *testing.T) {
		_, err := Transcode(src, codec.FormatUnknown)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := Transcode([]byte("not an image"), codec.FormatPNG)
		assert.Error(t, err)
	})
}

func TestRunScenario(t *testing.T) {
	tests := []struct {
		name          string
		failAt        int64
		iterations    int
		wantDetection int
		wantErrorRate float64
	}{
		{name: "all succeed", iterations: 10, wantDetection: 20},
		{name: "every other fails", failAt: 2, iterations: 10, wantDetection: 10, wantErrorRate: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detector := &mockDetector{failAt: tt.failAt, results: 2}
			suite := NewSuite(detector, t.TempDir(), nil)
			suite.AddSnapshots(testPNG(t))

			scenario := NewScenarioBuilder(tt.name).WithIterations(tt.iterations).WithWarmupRuns(0).Build()
			metrics, err := suite.RunScenario(context.Background(), scenario)
			require.NoError(t, err)

			assert.Equal(t, tt.wantDetection, metrics.DetectionCount)
			assert.InDelta(t, tt.wantErrorRate, metrics.ErrorRate, 1e-9)
			assert.EqualValues(t, tt.iterations, detector.calls.Load())
			assert.LessOrEqual(t, metrics.P50Latency, metrics.P95Latency)
		})
	}
}

func TestRunScenarioTranscodesBeforeWarmup(t *testing.T) {
	detector := &mockDetector{}
	suite := NewSuite(detector, t.TempDir(), nil)
	suite.AddSnapshots(testPNG(t))

	scenario := NewScenarioBuilder("jpeg").WithImageFormat(codec.FormatJPEG).WithIterations(2).WithWarmupRuns(1).Build()
	_, err := suite.RunScenario(context.Background(), scenario)
	require.NoError(t, err)

	assert.EqualValues(t, 3, detector.calls.Load())
	for _, f := range detector.formats {
		assert.Equal(t, codec.FormatJPEG, f)
	}
}

func TestRunScenarioErrors(t *testing.T) {
	suite := NewSuite(&mockDetector{}, t.TempDir(), nil)

	_, err := suite.RunScenario(context.Background(), Scenario{Name: "empty", Iterations: 1})
	assert.Error(t, err, "no snapshots")

	suite.AddSnapshots(testPNG(t))
	_, err = suite.RunScenario(context.Background(), Scenario{Name: "zero"})
	assert.Error(t, err, "zero iterations")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = suite.RunScenario(ctx, Scenario{Name: "cancelled", Iterations: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSummarize(t *testing.T) {
	latencies := make([]time.Duration, 0, 20)
	for i := 20; i >= 1; i-- {
		latencies = append(latencies, time.Duration(i)*time.Millisecond)
	}

	mean, p50, p95 := summarize(latencies)
	assert.Equal(t, 10500*time.Microsecond, mean)
	assert.Equal(t, 10*time.Millisecond, p50)
	assert.Equal(t, 19*time.Millisecond, p95)
	assert.Equal(t, 20*time.Millisecond, latencies[0], "input is not reordered")

	mean, p50, p95 = summarize(nil)
	assert.Zero(t, mean)
	assert.Zero(t, p50)
	assert.Zero(t, p95)
}

func TestRunAllScenariosSavesResults(t *testing.T) {
	dir := t.TempDir()
	suite := NewSuite(&mockDetector{results: 1}, dir, nil)
	suite.AddSnapshots(testPNG(t))
	for _, s := range FormatScenarios(3, 0) {
		suite.AddScenario(s)
	}
	suite.AddScenario(Scenario{Name: "broken", Iterations: 0})

	require.NoError(t, suite.RunAllScenarios(context.Background()))
	assert.Len(t, suite.Results(), len(Formats))

	jsonFiles, err := filepath.Glob(filepath.Join(dir, "benchmark_results_*.json"))
	require.NoError(t, err)
	require.Len(t, jsonFiles, 1)

	csvFiles, err := filepath.Glob(filepath.Join(dir, "benchmark_summary_*.csv"))
	require.NoError(t, err)
	require.Len(t, csvFiles, 1)

	summary, err := os.ReadFile(csvFiles[0])
	require.NoError(t, err)
	assert.Contains(t, string(summary), "tinyyolov2_webp,webp,")
}

func TestSaveSummaryCSVQuotesFields(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "summary.csv")
	results := []PerformanceMetrics{{
		Scenario:        Scenario{Name: "night, lot a", ImageFormat: codec.FormatJPEG},
		FramesPerSecond: 12.5,
		DetectionCount:  3,
	}}
	require.NoError(t, saveSummaryCSV(filename, results))

	file, err := os.Open(filename)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Len(t, records[1], len(records[0]))
	assert.Equal(t, "night, lot a", records[1][0])
	assert.Equal(t, "jpeg", records[1][1])
	assert.Equal(t, "12.50", records[1][2])
	assert.Equal(t, "3", records[1][7])
	assert.Equal(t, "original", records[1][9])
}
