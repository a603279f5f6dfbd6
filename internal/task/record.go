package task

// ExecutionRecord is the immutable per-invocation record handed from the
// execution engine to the metrics collector. Timestamps are monotonic
// nanoseconds relative to the start of the run.
type ExecutionRecord struct {
	// Iteration is the zero-based invocation index in release order.
	Iteration uint64

	// SubmitTimeNanos is when the release loop handed the invocation to a
	// worker.
	SubmitTimeNanos int64

	// StartTimeNanos is when a worker began executing the invocation.
	StartTimeNanos int64

	// EndTimeNanos is when execution finished.
	EndTimeNanos int64

	// Outcome is the classified result of the invocation.
	Outcome Result
}

// LatencyNanos returns the execution time (start to end).
func (r ExecutionRecord) LatencyNanos() int64 {
	return r.EndTimeNanos - r.StartTimeNanos
}

// QueueWaitNanos returns the time spent between submission and start.
func (r ExecutionRecord) QueueWaitNanos() int64 {
	return r.StartTimeNanos - r.SubmitTimeNanos
}
