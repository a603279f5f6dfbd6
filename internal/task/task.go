// Package task defines the contract between the execution engine and the
// user-supplied workload, together with the per-invocation result and
// record types the metrics pipeline consumes.
package task

import "context"

// Task is the unit of work driven by the execution engine.
//
// Init and Teardown are called exactly once, from the release goroutine.
// Execute may be called from many goroutines concurrently; the task is
// responsible for its own internal synchronisation.
type Task interface {
	// Init is called once before the invocation loop starts. An error
	// aborts the run before any invocation is released.
	Init() error

	// Execute performs one invocation. The context is cancelled when the
	// engine is stopping; tasks that block on I/O should honour it.
	Execute(ctx context.Context, iteration uint64) Result

	// Teardown is called once after the invocation loop ends. An error is
	// logged but does not fail the run.
	Teardown() error

	// Name identifies the task in reports and metrics.
	Name() string
}

// Status classifies the outcome of a single invocation.
type Status int

const (
	// StatusSuccess indicates the invocation completed successfully.
	StatusSuccess Status = iota
	// StatusFailure indicates the invocation failed.
	StatusFailure
	// StatusSkipped indicates the invocation was deliberately not
	// performed. Skipped counts toward neither success nor failure.
	StatusSkipped
)

// String returns the lower-case status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome of one invocation. Exactly one of Data, Err
// or Reason is meaningful, selected by Status.
type Result struct {
	Status Status
	// Data is an optional task-defined payload for successful invocations.
	Data any
	// Err carries the failure cause for failed invocations.
	Err error
	// Reason describes why the invocation was skipped.
	Reason string
}

// Success returns a successful result carrying optional task data.
func Success(data any) Result {
	return Result{Status: StatusSuccess, Data: data}
}

// Failure returns a failed result carrying the cause.
func Failure(err error) Result {
	return Result{Status: StatusFailure, Err: err}
}

// Skipped returns a skipped result with a reason.
func Skipped(reason string) Result {
	return Result{Status: StatusSkipped, Reason: reason}
}
