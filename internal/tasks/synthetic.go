// Package tasks ships the built-in workloads: a synthetic task for
// self-tests and demos, and a thin HTTP adapter.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pulseload/pulseload/internal/task"
)

// SyntheticConfig parameterises the synthetic workload.
type SyntheticConfig struct {
	// BaseLatency is the simulated execution time per invocation.
	BaseLatency time.Duration `yaml:"baseLatency,omitempty" json:"baseLatency,omitempty"`

	// FailureRatio is the fraction of invocations that fail, in [0, 1].
	// Failures are spread deterministically (every floor(1/ratio)-th
	// invocation) so short runs behave predictably.
	FailureRatio float64 `yaml:"failureRatio,omitempty" json:"failureRatio,omitempty"`

	// SkipRatio is the fraction of invocations reported as skipped.
	SkipRatio float64 `yaml:"skipRatio,omitempty" json:"skipRatio,omitempty"`

	// FailAboveRate, when positive, makes the task fail FailureRatio of
	// invocations only while the observed arrival rate exceeds this TPS;
	// below it the task always succeeds. This models a service with a
	// capacity knee and gives the adaptive controller something to find.
	FailAboveRate float64 `yaml:"failAboveRate,omitempty" json:"failAboveRate,omitempty"`

	// InitError, when set, is returned from Init. Test hook.
	InitError error `yaml:"-" json:"-"`
}

// SyntheticTask simulates a workload without external dependencies.
//
// Thread Safety: Safe for concurrent Execute calls.
type SyntheticTask struct {
	config SyntheticConfig

	invocations atomic.Uint64
	failCounter atomic.Uint64
	skipCounter atomic.Uint64

	// Arrival-rate estimation for FailAboveRate.
	windowStart atomic.Int64
	windowCount atomic.Uint64

	initialized atomic.Bool
	tornDown    atomic.Bool
}

// ErrSyntheticFailure is the failure cause the synthetic task reports.
var ErrSyntheticFailure = errors.New("tasks: synthetic failure")

// NewSyntheticTask creates a synthetic task.
func NewSyntheticTask(config SyntheticConfig) (*SyntheticTask, error) {
	if config.FailureRatio < 0 || config.FailureRatio > 1 {
		return nil, fmt.Errorf("tasks: failureRatio must be in [0, 1], got: %f", config.FailureRatio)
	}
	if config.SkipRatio < 0 || config.SkipRatio > 1 {
		return nil, fmt.Errorf("tasks: skipRatio must be in [0, 1], got: %f", config.SkipRatio)
	}
	return &SyntheticTask{config: config}, nil
}

// Name identifies the task.
func (t *SyntheticTask) Name() string { return "synthetic" }

// Init implements the task contract.
func (t *SyntheticTask) Init() error {
	if t.config.InitError != nil {
		return t.config.InitError
	}
	t.initialized.Store(true)
	return nil
}

// Execute simulates one invocation.
func (t *SyntheticTask) Execute(ctx context.Context, iteration uint64) task.Result {
	t.invocations.Add(1)

	if t.config.BaseLatency > 0 {
		select {
		case <-ctx.Done():
			return task.Failure(ctx.Err())
		case <-time.After(t.config.BaseLatency):
		}
	}

	if t.config.SkipRatio > 0 {
		interval := uint64(1 / t.config.SkipRatio)
		if interval > 0 && t.skipCounter.Add(1)%interval == 0 {
			return task.Skipped("synthetic skip")
		}
	}

	if t.config.FailureRatio > 0 && t.overCapacity() {
		interval := uint64(1 / t.config.FailureRatio)
		if interval > 0 && t.failCounter.Add(1)%interval == 0 {
			return task.Failure(fmt.Errorf("%w: iteration %d", ErrSyntheticFailure, iteration))
		}
	}

	return task.Success(nil)
}

// Teardown implements the task contract.
func (t *SyntheticTask) Teardown() error {
	t.tornDown.Store(true)
	return nil
}

// Invocations returns the number of Execute calls so far.
func (t *SyntheticTask) Invocations() uint64 {
	return t.invocations.Load()
}

// overCapacity reports whether failures apply: always when no knee is
// configured, otherwise only while the observed arrival rate over the
// last second exceeds FailAboveRate.
func (t *SyntheticTask) overCapacity() bool {
	if t.config.FailAboveRate <= 0 {
		return true
	}

	now := time.Now().UnixNano()
	start := t.windowStart.Load()
	if start == 0 || now-start >= int64(time.Second) {
		if t.windowStart.CompareAndSwap(start, now) {
			t.windowCount.Store(0)
		}
		return false
	}

	count := t.windowCount.Add(1)
	elapsedSec := float64(now-start) / float64(time.Second)
	if elapsedSec <= 0 {
		return false
	}
	return float64(count)/elapsedSec > t.config.FailAboveRate
}

// Compile-time interface check
var _ task.Task = (*SyntheticTask)(nil)
