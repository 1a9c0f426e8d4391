// Package benchmark - Measures detector throughput over a set of snapshots.
package benchmark

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/nvr-ai/go-tinyyolo/images/codec"
	"github.com/nvr-ai/go-tinyyolo/inference/detectors"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Detector runs the full pipeline on encoded image bytes. inference.Engine
// implements it.
type Detector interface {
	Detect(ctx context.Context, data []byte) (*detectors.Detection, error)
}

// Resolution is the size snapshots are shrunk to fit before a run.
type Resolution struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Name   string `json:"name"`
}

// Scenario defines a specific run configuration.
type Scenario struct {
	Name string `json:"name"`
	// Resolution snapshots are thumbnailed to. A zero value keeps the original size.
	Resolution Resolution `json:"resolution"`
	// ImageFormat the snapshots are re-encoded to before the run. Empty keeps the
	// original bytes.
	ImageFormat codec.ImageFormat `json:"image_format"`
	Iterations  int               `json:"iterations"`
	WarmupRuns  int               `json:"warmup_runs"`
}

// PerformanceMetrics captures the outcome of one scenario.
type PerformanceMetrics struct {
	Scenario        Scenario      `json:"scenario"`
	Timestamp       time.Time     `json:"timestamp"`
	TotalDuration   time.Duration `json:"total_duration"`
	MeanLatency     time.Duration `json:"mean_latency"`
	P50Latency      time.Duration `json:"p50_latency"`
	P95Latency      time.Duration `json:"p95_latency"`
	FramesPerSecond float64       `json:"frames_per_second"`
	MemoryStats     MemoryMetrics `json:"memory_stats"`
	DetectionCount  int           `json:"detection_count"`
	ErrorRate       float64       `json:"error_rate"`
}

// MemoryMetrics captures memory usage statistics.
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
}

// Suite runs scenarios against one detector.
type Suite struct {
	detector  Detector
	outputDir string
	logger    *zap.Logger

	mu        sync.RWMutex
	snapshots [][]byte
	scenarios []Scenario
	results   []PerformanceMetrics
}

// NewSuite creates a suite.
//
// Arguments:
//   - detector: The detector under test.
//   - outputDir: Where SaveResults writes its reports.
//   - logger: The logger; nil disables logging.
//
// Returns:
//   - *Suite: The suite.
func NewSuite(detector Detector, outputDir string, logger *zap.Logger) *Suite {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Suite{
		detector:  detector,
		outputDir: outputDir,
		logger:    logger.Named("benchmark"),
	}
}

// AddSnapshots appends encoded images used by every scenario.
func (s *Suite) AddSnapshots(snapshots ...[]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snapshots...)
}

// AddScenario adds a scenario to the suite.
func (s *Suite) AddScenario(scenario Scenario) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenarios = append(s.scenarios, scenario)
}

// RunScenario executes a single scenario.
//
// Arguments:
//   - ctx: Stops the run between iterations.
//   - scenario: The scenario to run.
//
// Returns:
//   - *PerformanceMetrics: The measurements.
//   - error: If there is nothing to run or a snapshot cannot be re-encoded.
func (s *Suite) RunScenario(ctx context.Context, scenario Scenario) (*PerformanceMetrics, error) {
	if scenario.Iterations <= 0 {
		return nil, errors.Errorf("scenario %q needs at least one iteration", scenario.Name)
	}

	s.mu.RLock()
	snapshots := make([][]byte, len(s.snapshots))
	copy(snapshots, s.snapshots)
	s.mu.RUnlock()
	if len(snapshots) == 0 {
		return nil, errors.New("no snapshots loaded")
	}

	for i, data := range snapshots {
		prepared, err := prepare(data, scenario)
		if err != nil {
			return nil, errors.Wrapf(err, "snapshot %d", i)
		}
		snapshots[i] = prepared
	}

	for i := 0; i < scenario.WarmupRuns; i++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		_, _ = s.detector.Detect(ctx, snapshots[i%len(snapshots)])
	}

	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	metrics := &PerformanceMetrics{
		Scenario:  scenario,
		Timestamp: time.Now(),
	}
	latencies := make([]time.Duration, 0, scenario.Iterations)
	failures := 0

	start := time.Now()
	for i := 0; i < scenario.Iterations; i++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		began := time.Now()
		detection, err := s.detector.Detect(ctx, snapshots[i%len(snapshots)])
		if err != nil {
			failures++
			continue
		}
		latencies = append(latencies, time.Since(began))
		metrics.DetectionCount += len(detection.Results)
	}
	metrics.TotalDuration = time.Since(start)

	var endMem runtime.MemStats
	runtime.ReadMemStats(&endMem)

	if metrics.TotalDuration > 0 {
		metrics.FramesPerSecond = float64(len(latencies)) / metrics.TotalDuration.Seconds()
	}
	metrics.ErrorRate = float64(failures) / float64(scenario.Iterations)
	metrics.MeanLatency, metrics.P50Latency, metrics.P95Latency = summarize(latencies)
	metrics.MemoryStats = MemoryMetrics{
		AllocBytes:      endMem.Alloc,
		TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
		NumGC:           endMem.NumGC - startMem.NumGC,
		HeapAllocBytes:  endMem.HeapAlloc,
	}

	return metrics, nil
}

// summarize returns the mean, median and 95th percentile of latencies. The
// percentiles use the nearest-rank method.
func summarize(latencies []time.Duration) (mean, p50, p95 time.Duration) {
	if len(latencies) == 0 {
		return 0, 0, 0
	}
	data := make(stats.Float64Data, len(latencies))
	for i, l := range latencies {
		data[i] = float64(l)
	}

	m, _ := stats.Mean(data)
	median, _ := stats.PercentileNearestRank(data, 50)
	tail, _ := stats.PercentileNearestRank(data, 95)
	return toDuration(m), toDuration(median), toDuration(tail)
}

func toDuration(ns float64) time.Duration {
	return time.Duration(math.Round(ns))
}

// RunAllScenarios executes every scenario and saves the results. A failing
// scenario is logged and skipped.
func (s *Suite) RunAllScenarios(ctx context.Context) error {
	s.mu.RLock()
	scenarios := make([]Scenario, len(s.scenarios))
	copy(scenarios, s.scenarios)
	s.mu.RUnlock()

	for _, scenario := range scenarios {
		metrics, err := s.RunScenario(ctx, scenario)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("scenario failed", zap.String("scenario", scenario.Name), zap.Error(err))
			continue
		}

		s.mu.Lock()
		s.results = append(s.results, *metrics)
		s.mu.Unlock()

		s.logger.Info("scenario completed",
			zap.String("scenario", scenario.Name),
			zap.Float64("fps", metrics.FramesPerSecond),
			zap.Duration("p95", metrics.P95Latency),
		)
	}

	return s.SaveResults()
}

// SaveResults writes the results as JSON and a CSV summary to the output directory.
func (s *Suite) SaveResults() error {
	results := s.Results()

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	resultsFile := filepath.Join(s.outputDir, fmt.Sprintf("benchmark_results_%s.json", timestamp))

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal results")
	}
	if err := os.WriteFile(resultsFile, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write results file")
	}

	summaryFile := filepath.Join(s.outputDir, fmt.Sprintf("benchmark_summary_%s.csv", timestamp))
	if err := saveSummaryCSV(summaryFile, results); err != nil {
		return errors.Wrap(err, "failed to save summary CSV")
	}

	s.logger.Info("results saved", zap.String("results", resultsFile), zap.String("summary", summaryFile))
	return nil
}

func saveSummaryCSV(filename string, results []PerformanceMetrics) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	header := []string{"Scenario", "Format", "FPS", "Mean_ms", "P50_ms", "P95_ms", "Alloc_MB", "Detections", "Error_Rate", "Resolution"}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range results {
		format := string(r.Scenario.ImageFormat)
		if format == "" {
			format = "original"
		}
		resolution := r.Scenario.Resolution.Name
		if resolution == "" {
			resolution = "original"
		}
		record := []string{
			r.Scenario.Name,
			format,
			fmt.Sprintf("%.2f", r.FramesPerSecond),
			fmt.Sprintf("%.2f", milliseconds(r.MeanLatency)),
			fmt.Sprintf("%.2f", milliseconds(r.P50Latency)),
			fmt.Sprintf("%.2f", milliseconds(r.P95Latency)),
			fmt.Sprintf("%.2f", float64(r.MemoryStats.AllocBytes)/(1024*1024)),
			fmt.Sprintf("%d", r.DetectionCount),
			fmt.Sprintf("%.4f", r.ErrorRate),
			resolution,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func milliseconds(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

// Results returns all results collected so far.
func (s *Suite) Results() []PerformanceMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]PerformanceMetrics, len(s.results))
	copy(results, s.results)
	return results
}
