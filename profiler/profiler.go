// Package profiler - Rolling runtime and operation statistics for long-running
// detection loops.
package profiler

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Options configures the profiler.
type Options struct {
	// ReportInterval specifies how often to log a status report (default: 10s).
	ReportInterval time.Duration
	// MaxSamples specifies how many recent samples each tracker keeps (default: 600).
	MaxSamples int
}

// Profiler tracks operation timings and custom metrics over a rolling window and
// logs a periodic report. It is safe for concurrent use.
type Profiler struct {
	reportInterval time.Duration
	maxSamples     int
	logger         *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	start   time.Time
	running bool

	metrics    map[string]*MetricTracker
	operations map[string]*TimeTracker
}

// MetricTracker keeps the recent values of a custom metric.
type MetricTracker struct {
	values []float64
	sum    float64
	min    float64
	max    float64
	count  int64
}

// TimeTracker keeps the recent durations of an operation.
type TimeTracker struct {
	durations []time.Duration
	total     time.Duration
	min       time.Duration
	max       time.Duration
	count     int64
}

// OperationStats summarizes a TimeTracker.
type OperationStats struct {
	Name  string
	Count int64
	Avg   time.Duration
	Min   time.Duration
	Max   time.Duration
}

// MetricStats summarizes a MetricTracker.
type MetricStats struct {
	Name  string
	Count int64
	Avg   float64
	Min   float64
	Max   float64
}

// New creates a profiler. Start begins periodic reporting.
//
// Arguments:
//   - opts: Zero fields select the defaults.
//   - logger: Receives the reports; nil disables them.
//
// Returns:
//   - *Profiler: The profiler.
func New(opts Options, logger *zap.Logger) *Profiler {
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = 10 * time.Second
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 600
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Profiler{
		reportInterval: opts.ReportInterval,
		maxSamples:     opts.MaxSamples,
		logger:         logger.Named("profiler"),
		ctx:            ctx,
		cancel:         cancel,
		start:          time.Now(),
		metrics:        make(map[string]*MetricTracker),
		operations:     make(map[string]*TimeTracker),
	}
}

// Start begins the reporting loop. Calling it again is a no-op.
func (p *Profiler) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true

	p.wg.Add(1)
	go p.reportLoop()
}

// Stop ends the reporting loop and logs a final report.
func (p *Profiler) Stop() {
	p.mu.Lock()
	running := p.running
	p.running = false
	p.mu.Unlock()
	if !running {
		return
	}

	p.cancel()
	p.wg.Wait()
	p.Report()
}

// StartOperation begins timing an operation.
//
// Returns:
//   - A function to call when the operation completes.
func (p *Profiler) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		p.RecordOperation(name, time.Since(start))
	}
}

// RecordOperation records the duration of a completed operation.
func (p *Profiler) RecordOperation(name string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok := p.operations[name]
	if !ok {
		t = &TimeTracker{min: d, max: d}
		p.operations[name] = t
	}

	t.durations = append(t.durations, d)
	t.total += d
	if len(t.durations) > p.maxSamples {
		t.total -= t.durations[0]
		t.durations = t.durations[1:]
	}
	t.count++
	t.min = min(t.min, d)
	t.max = max(t.max, d)
}

// RecordMetric records a custom metric value.
func (p *Profiler) RecordMetric(name string, value float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.metrics[name]
	if !ok {
		m = &MetricTracker{min: value, max: value}
		p.metrics[name] = m
	}

	m.values = append(m.values, value)
	m.sum += value
	if len(m.values) > p.maxSamples {
		m.sum -= m.values[0]
		m.values = m.values[1:]
	}
	m.count++
	m.min = min(m.min, value)
	m.max = max(m.max, value)
}

// Operations returns the operation summaries ordered by name. Averages cover the
// rolling window; Min, Max and Count cover the whole lifetime.
func (p *Profiler) Operations() []OperationStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := make([]OperationStats, 0, len(p.operations))
	for name, t := range p.operations {
		s := OperationStats{Name: name, Count: t.count, Min: t.min, Max: t.max}
		if n := len(t.durations); n > 0 {
			s.Avg = t.total / time.Duration(n)
		}
		stats = append(stats, s)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

// Metrics returns the metric summaries ordered by name.
func (p *Profiler) Metrics() []MetricStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := make([]MetricStats, 0, len(p.metrics))
	for name, m := range p.metrics {
		s := MetricStats{Name: name, Count: m.count, Min: m.min, Max: m.max}
		if n := len(m.values); n > 0 {
			s.Avg = m.sum / float64(n)
		}
		stats = append(stats, s)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

func (p *Profiler) reportLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.reportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.Report()
		}
	}
}

// Report logs the runtime, operation and metric statistics.
func (p *Profiler) Report() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	p.logger.Info("runtime",
		zap.Duration("uptime", time.Since(p.start).Truncate(time.Millisecond)),
		zap.Int("goroutines", runtime.NumGoroutine()),
		zap.Int64("cgo_calls", runtime.NumCgoCall()),
		zap.Uint64("heap_alloc", mem.HeapAlloc),
		zap.Uint32("gc_cycles", mem.NumGC),
	)

	for _, s := range p.Operations() {
		p.logger.Info("operation",
			zap.String("name", s.Name),
			zap.Int64("count", s.Count),
			zap.Duration("avg", s.Avg.Truncate(time.Microsecond)),
			zap.Duration("min", s.Min.Truncate(time.Microsecond)),
			zap.Duration("max", s.Max.Truncate(time.Microsecond)),
		)
	}
	for _, s := range p.Metrics() {
		p.logger.Info("metric",
			zap.String("name", s.Name),
			zap.Int64("count", s.Count),
			zap.Float64("avg", s.Avg),
			zap.Float64("min", s.Min),
			zap.Float64("max", s.Max),
		)
	}
}
