package metrics

import "time"

// AggregatedSnapshot is an immutable point-in-time view of the collector.
type AggregatedSnapshot struct {
	// Counters.
	TotalExecutions uint64
	SuccessCount    uint64
	FailureCount    uint64
	SkippedCount    uint64

	// Derived rates, computed as count * 1000 / elapsedMillis.
	SuccessTPS  float64
	FailureTPS  float64
	ResponseTPS float64

	// Latency percentiles for successful and failed invocations, keyed by
	// quantile (e.g. 0.95). Empty when no samples were recorded.
	SuccessLatency map[float64]time.Duration
	FailureLatency map[float64]time.Duration

	// QueueWaitPercentiles measures submit-to-start wait.
	QueueWaitPercentiles map[float64]time.Duration

	// QueueDepth is the instantaneous released-minus-completed gauge.
	QueueDepth int64

	// ElapsedMillis is the run duration covered by this snapshot.
	ElapsedMillis int64
}

// FailureRate returns failures as a fraction of success+failure outcomes.
// Skipped invocations are excluded. Returns 0 when nothing completed.
func (s AggregatedSnapshot) FailureRate() float64 {
	responses := s.SuccessCount + s.FailureCount
	if responses == 0 {
		return 0
	}
	return float64(s.FailureCount) / float64(responses)
}
