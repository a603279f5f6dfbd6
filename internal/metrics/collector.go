// Package metrics provides metrics collection, aggregation and live export
// for the load generator.
package metrics

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pulseload/pulseload/internal/task"
)

// Default configuration values.
const (
	defaultMaxSamples      = 100000
	defaultRingCapacity    = 128
	recentSampleMinGap     = time.Second
	defaultRecentWindowSec = 10
)

// DefaultPercentiles is the percentile set reported when none is configured.
var DefaultPercentiles = []float64{0.5, 0.75, 0.9, 0.95, 0.99, 0.999}

// CollectorConfig holds configuration for the metrics collector.
type CollectorConfig struct {
	// Percentiles is the quantile set reported in snapshots.
	// Default: DefaultPercentiles. All values must be strictly in (0, 1).
	Percentiles []float64 `yaml:"percentiles,omitempty" json:"percentiles,omitempty"`

	// MaxSamples is the maximum number of latency samples retained per
	// outcome class for percentile calculation. Default: 100000.
	// When capacity is exceeded the most recent half is kept, so the
	// reported distribution tracks current rather than historical
	// performance.
	MaxSamples int `yaml:"maxSamples,omitempty" json:"maxSamples,omitempty"`
}

// Validate validates the collector configuration.
func (c *CollectorConfig) Validate() error {
	for _, p := range c.Percentiles {
		if p <= 0 || p >= 1 {
			return fmt.Errorf("metrics: percentile must be in (0, 1), got: %f", p)
		}
	}
	if c.MaxSamples < 0 {
		return fmt.Errorf("metrics: maxSamples cannot be negative: %d", c.MaxSamples)
	}
	return nil
}

// Collector accumulates per-invocation records into counters and latency
// sample windows, and produces immutable snapshots on demand.
//
// Record is O(1): counters are plain atomics and sample appends hold a
// short per-window lock. Percentiles are computed at snapshot time by
// sorting a copy of the retained samples, so they are exact over the
// retained window.
//
// Thread Safety: Safe for concurrent use.
type Collector struct {
	// Counters.
	totalExecutions atomic.Uint64
	successCount    atomic.Uint64
	failureCount    atomic.Uint64
	skippedCount    atomic.Uint64

	// Latency sample windows.
	successLat *sampleWindow
	failureLat *sampleWindow
	queueWait  *sampleWindow

	// Queue depth gauge source, installed by the engine.
	queueDepthFn atomic.Pointer[func() int64]

	// Recent-rate ring for the sliding failure-rate window.
	ringMu          sync.Mutex
	ring            []ratePoint
	lastSampleNanos atomic.Int64

	// Timing (protected by mu).
	mu        sync.RWMutex
	startTime time.Time
	endTime   time.Time

	percentiles []float64
	closed      atomic.Bool
}

// ratePoint is one cumulative sample in the recent-rate ring.
type ratePoint struct {
	elapsedMs int64
	total     uint64
	failures  uint64
}

// NewCollector creates a collector with the given configuration.
func NewCollector(config CollectorConfig) *Collector {
	if config.MaxSamples <= 0 {
		config.MaxSamples = defaultMaxSamples
	}
	percentiles := config.Percentiles
	if len(percentiles) == 0 {
		percentiles = DefaultPercentiles
	}
	return &Collector{
		successLat:  newSampleWindow(config.MaxSamples),
		failureLat:  newSampleWindow(config.MaxSamples),
		queueWait:   newSampleWindow(config.MaxSamples),
		ring:        make([]ratePoint, 0, defaultRingCapacity),
		percentiles: slices.Clone(percentiles),
	}
}

// Start marks the beginning of the run.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startTime = time.Now()
}

// Stop marks the end of the run. Snapshots taken afterwards report the
// frozen elapsed time.
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endTime = time.Now()
}

// SetQueueDepthFunc installs the gauge source for the instantaneous queue
// depth reported in snapshots.
func (c *Collector) SetQueueDepthFunc(fn func() int64) {
	if fn == nil {
		return
	}
	c.queueDepthFn.Store(&fn)
}

// Record accumulates one execution record.
func (c *Collector) Record(rec task.ExecutionRecord) {
	if c.closed.Load() {
		return
	}

	c.totalExecutions.Add(1)
	switch rec.Outcome.Status {
	case task.StatusSuccess:
		c.successCount.Add(1)
		c.successLat.add(rec.LatencyNanos())
	case task.StatusFailure:
		c.failureCount.Add(1)
		c.failureLat.add(rec.LatencyNanos())
	case task.StatusSkipped:
		c.skippedCount.Add(1)
	}
	c.queueWait.add(rec.QueueWaitNanos())

	c.maybeSampleRates()
}

// Snapshot returns an immutable aggregated view of the collector.
func (c *Collector) Snapshot() AggregatedSnapshot {
	elapsedMs := c.ElapsedMs()

	snap := AggregatedSnapshot{
		TotalExecutions:      c.totalExecutions.Load(),
		SuccessCount:         c.successCount.Load(),
		FailureCount:         c.failureCount.Load(),
		SkippedCount:         c.skippedCount.Load(),
		SuccessLatency:       c.successLat.percentiles(c.percentiles),
		FailureLatency:       c.failureLat.percentiles(c.percentiles),
		QueueWaitPercentiles: c.queueWait.percentiles(c.percentiles),
		ElapsedMillis:        elapsedMs,
	}

	if fn := c.queueDepthFn.Load(); fn != nil {
		snap.QueueDepth = (*fn)()
	}

	if elapsedMs > 0 {
		snap.SuccessTPS = float64(snap.SuccessCount) * 1000 / float64(elapsedMs)
		snap.FailureTPS = float64(snap.FailureCount) * 1000 / float64(elapsedMs)
		snap.ResponseTPS = float64(snap.SuccessCount+snap.FailureCount) * 1000 / float64(elapsedMs)
	}

	return snap
}

// Close releases the sample windows. Further records are dropped.
// Close is idempotent.
func (c *Collector) Close() {
	if c.closed.Swap(true) {
		return
	}
	c.successLat.reset()
	c.failureLat.reset()
	c.queueWait.reset()
}

// FailureRate returns failures as a fraction of all success+failure
// outcomes over the whole run.
func (c *Collector) FailureRate() float64 {
	failures := c.failureCount.Load()
	responses := c.successCount.Load() + failures
	if responses == 0 {
		return 0
	}
	return float64(failures) / float64(responses)
}

// TotalExecutions returns the number of records accumulated so far.
func (c *Collector) TotalExecutions() uint64 {
	return c.totalExecutions.Load()
}

// ElapsedMs returns the run duration so far in milliseconds, frozen once
// Stop has been called. Returns 0 before Start.
func (c *Collector) ElapsedMs() int64 {
	c.mu.RLock()
	start, end := c.startTime, c.endTime
	c.mu.RUnlock()

	if start.IsZero() {
		return 0
	}
	if end.IsZero() {
		return time.Since(start).Milliseconds()
	}
	return end.Sub(start).Milliseconds()
}

// RecentFailureRate returns the failure rate over the trailing window. It
// interpolates linearly between the ≤1 Hz cumulative samples retained in
// the ring; with fewer than two samples it falls back to the whole-run
// rate.
func (c *Collector) RecentFailureRate(window time.Duration) float64 {
	if window <= 0 {
		window = defaultRecentWindowSec * time.Second
	}

	nowMs := c.ElapsedMs()
	cutoffMs := nowMs - window.Milliseconds()

	c.ringMu.Lock()
	points := slices.Clone(c.ring)
	c.ringMu.Unlock()

	if len(points) < 2 {
		return c.FailureRate()
	}

	baseTotal, baseFailures := interpolateAt(points, cutoffMs)
	nowTotal := c.totalExecutions.Load()
	nowFailures := c.failureCount.Load()

	if nowTotal <= baseTotal {
		return 0
	}
	deltaTotal := nowTotal - baseTotal
	var deltaFailures uint64
	if nowFailures > baseFailures {
		deltaFailures = nowFailures - baseFailures
	}
	return float64(deltaFailures) / float64(deltaTotal)
}

// maybeSampleRates appends a cumulative point to the recent-rate ring at
// most once per second.
func (c *Collector) maybeSampleRates() {
	now := time.Now().UnixNano()
	last := c.lastSampleNanos.Load()
	if now-last < recentSampleMinGap.Nanoseconds() {
		return
	}
	if !c.lastSampleNanos.CompareAndSwap(last, now) {
		return
	}

	point := ratePoint{
		elapsedMs: c.ElapsedMs(),
		total:     c.totalExecutions.Load(),
		failures:  c.failureCount.Load(),
	}

	c.ringMu.Lock()
	if len(c.ring) == defaultRingCapacity {
		copy(c.ring, c.ring[1:])
		c.ring = c.ring[:defaultRingCapacity-1]
	}
	c.ring = append(c.ring, point)
	c.ringMu.Unlock()
}

// interpolateAt estimates the cumulative totals at the given elapsed time
// by linear interpolation between the surrounding ring points.
func interpolateAt(points []ratePoint, atMs int64) (total, failures uint64) {
	first := points[0]
	if atMs <= first.elapsedMs {
		return first.total, first.failures
	}
	last := points[len(points)-1]
	if atMs >= last.elapsedMs {
		return last.total, last.failures
	}

	for i := 1; i < len(points); i++ {
		if points[i].elapsedMs < atMs {
			continue
		}
		lo, hi := points[i-1], points[i]
		span := hi.elapsedMs - lo.elapsedMs
		if span <= 0 {
			return hi.total, hi.failures
		}
		frac := float64(atMs-lo.elapsedMs) / float64(span)
		total = lo.total + uint64(frac*float64(hi.total-lo.total))
		failures = lo.failures + uint64(frac*float64(hi.failures-lo.failures))
		return total, failures
	}
	return last.total, last.failures
}

// sampleWindow retains up to max latency samples. On overflow the most
// recent half is kept.
type sampleWindow struct {
	mu      sync.Mutex
	samples []int64
	max     int
}

func newSampleWindow(max int) *sampleWindow {
	return &sampleWindow{samples: make([]int64, 0, max), max: max}
}

func (w *sampleWindow) add(nanos int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.samples) >= w.max {
		half := w.max / 2
		copy(w.samples, w.samples[len(w.samples)-half:])
		w.samples = w.samples[:half]
	}
	w.samples = append(w.samples, nanos)
}

func (w *sampleWindow) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples = nil
}

// percentiles returns the requested quantiles over the retained samples.
// Returns an empty map when no samples were recorded.
func (w *sampleWindow) percentiles(ps []float64) map[float64]time.Duration {
	w.mu.Lock()
	sorted := make([]int64, len(w.samples))
	copy(sorted, w.samples)
	w.mu.Unlock()

	result := make(map[float64]time.Duration, len(ps))
	if len(sorted) == 0 {
		return result
	}
	slices.Sort(sorted)

	for _, p := range ps {
		idx := int(float64(len(sorted)) * p)
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		result[p] = time.Duration(sorted[idx])
	}
	return result
}
