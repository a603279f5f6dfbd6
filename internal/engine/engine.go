// Package engine owns the invocation loop: it drives a task at the rate
// dictated by a load pattern, instruments every invocation, and
// orchestrates graceful shutdown.
package engine

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pulseload/pulseload/internal/metrics"
	"github.com/pulseload/pulseload/internal/pacer"
	"github.com/pulseload/pulseload/internal/pattern"
	"github.com/pulseload/pulseload/internal/shutdown"
	"github.com/pulseload/pulseload/internal/task"
)

// State is the engine lifecycle state.
type State int32

const (
	// StateStopped means no run is in progress.
	StateStopped State = iota
	// StateRunning means the release loop is active.
	StateRunning
	// StateStopping means the release loop has exited and in-flight
	// invocations are draining.
	StateStopping
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Config holds engine construction parameters.
type Config struct {
	// Pool configures the worker strategy.
	Pool PoolConfig `yaml:"pool,omitempty" json:"pool,omitempty"`

	// Shutdown configures the drain/force/callback timeouts.
	Shutdown shutdown.Config `yaml:"shutdown,omitempty" json:"shutdown,omitempty"`

	// HandleSignals installs SIGINT/SIGTERM handling for the run.
	HandleSignals bool `yaml:"handleSignals,omitempty" json:"handleSignals,omitempty"`
}

// Engine is the top of the control hierarchy: it owns the worker pool,
// drives the invocation loop from a single release goroutine, records per-
// invocation metrics, and installs shutdown handling.
//
// Thread Safety: Safe for concurrent use of State, Stop, QueueDepth and
// Close; Run must not be called concurrently with itself.
type Engine struct {
	tsk         task.Task
	loadPattern pattern.LoadPattern
	pace        pacer.Pacer
	collector   *metrics.Collector
	coordinator *shutdown.Coordinator
	pool        Pool
	logger      *zap.Logger

	state      atomic.Int32
	iterations atomic.Uint64
	released   atomic.Uint64
	completed  atomic.Uint64

	startNanos atomic.Int64

	stopOnce sync.Once
	stopCh   chan struct{}
	closed   atomic.Bool

	// observers receive every execution record, recorded or not. Used by
	// live exporters.
	observerMu sync.RWMutex
	observers  []func(task.ExecutionRecord)
}

// New creates an engine. The pacer defaults to the counting pacer and the
// collector to a default-configured one when nil.
func New(cfg Config, tsk task.Task, loadPattern pattern.LoadPattern, pace pacer.Pacer, collector *metrics.Collector, logger *zap.Logger) (*Engine, error) {
	if tsk == nil {
		return nil, fmt.Errorf("engine: task is required")
	}
	if loadPattern == nil {
		return nil, fmt.Errorf("engine: load pattern is required")
	}
	if pace == nil {
		pace = pacer.NewCountingPacer()
	}
	if collector == nil {
		collector = metrics.NewCollector(metrics.CollectorConfig{})
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pool, err := NewPool(cfg.Pool, tsk)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		tsk:         tsk,
		loadPattern: loadPattern,
		pace:        pace,
		collector:   collector,
		coordinator: shutdown.NewCoordinator(cfg.Shutdown, logger),
		pool:        pool,
		logger:      logger,
		stopCh:      make(chan struct{}),
	}

	if cfg.HandleSignals {
		e.coordinator.InstallSignalHandler(func(os.Signal) { e.Stop() })
	}

	return e, nil
}

// State returns the engine lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// QueueDepth returns the released-minus-completed gauge.
func (e *Engine) QueueDepth() int64 {
	return int64(e.released.Load()) - int64(e.completed.Load())
}

// Collector returns the metrics collector the engine records into.
func (e *Engine) Collector() *metrics.Collector {
	return e.collector
}

// Coordinator returns the shutdown coordinator, for callback registration.
func (e *Engine) Coordinator() *shutdown.Coordinator {
	return e.coordinator
}

// ElapsedMs returns the run time so far in milliseconds, 0 before Run.
func (e *Engine) ElapsedMs() int64 {
	start := e.startNanos.Load()
	if start == 0 {
		return 0
	}
	return (time.Now().UnixNano() - start) / int64(time.Millisecond)
}

// OnRecord registers an observer that receives every execution record,
// including those suppressed from aggregation by warmup/cooldown windows.
func (e *Engine) OnRecord(fn func(task.ExecutionRecord)) {
	if fn == nil {
		return
	}
	e.observerMu.Lock()
	defer e.observerMu.Unlock()
	e.observers = append(e.observers, fn)
}

// Stop requests the release loop to exit at its next loop head. In-flight
// invocations receive no cancellation beyond the run context.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}

// Run drives the invocation loop to completion or cancellation and
// returns the aggregated snapshot. A task Init failure surfaces as
// *TaskInitError and the engine never enters the running state. A drain
// failure surfaces as an error alongside the snapshot built from the data
// collected so far.
func (e *Engine) Run(ctx context.Context) (*metrics.AggregatedSnapshot, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	if !e.state.CompareAndSwap(int32(StateStopped), int32(StateRunning)) {
		return nil, ErrAlreadyRunning
	}
	select {
	case <-e.stopCh:
		// A previous run consumed the stop signal; the engine is done.
		e.state.Store(int32(StateStopped))
		return nil, ErrClosed
	default:
	}

	if err := e.tsk.Init(); err != nil {
		e.state.Store(int32(StateStopped))
		return nil, &TaskInitError{Err: err}
	}

	e.collector.SetQueueDepthFunc(e.QueueDepth)
	e.collector.Start()
	e.startNanos.Store(time.Now().UnixNano())

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	e.logger.Info("run started",
		zap.String("task", e.tsk.Name()),
		zap.String("pattern", e.loadPattern.Name()),
		zap.Int("poolSize", e.pool.Size()))

	e.releaseLoop(runCtx)

	e.state.Store(int32(StateStopping))
	e.pool.Close()

	shutdownErr := e.coordinator.Shutdown(
		func(ctx context.Context) error { return e.pool.Wait(ctx) },
		func(ctx context.Context) error {
			// Force: cancel the run context so context-honouring tasks
			// unblock, then wait out the force window.
			cancelRun()
			return e.pool.Wait(ctx)
		},
	)

	e.collector.Stop()

	if err := e.tsk.Teardown(); err != nil {
		e.logger.Warn("task teardown failed", zap.Error(err))
	}

	snap := e.collector.Snapshot()
	e.state.Store(int32(StateStopped))
	// The shutdown coordinator runs once; mark the engine spent so a later
	// Run fails instead of skipping the drain sequence.
	e.Stop()

	e.logger.Info("run finished",
		zap.Uint64("totalExecutions", snap.TotalExecutions),
		zap.Uint64("failures", snap.FailureCount),
		zap.Int64("elapsedMs", snap.ElapsedMillis))

	return &snap, shutdownErr
}

// Close releases the worker pool and any registered signal handlers.
// Idempotent; safe even when Run was never called or Init failed.
func (e *Engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	e.Stop()
	e.pool.Close()
	e.coordinator.ReleaseSignalHandler()
	e.collector.Close()
	return nil
}

// releaseLoop is the single release goroutine's body: read the pattern,
// wait for the pacer, hand the iteration to a worker.
func (e *Engine) releaseLoop(ctx context.Context) {
	total := e.loadPattern.TotalDuration()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		elapsedMs := e.ElapsedMs()
		if total > 0 && elapsedMs >= total.Milliseconds() {
			return
		}

		targetTPS := e.loadPattern.TargetTPS(elapsedMs)
		if err := e.pace.WaitForNext(ctx, targetTPS); err != nil {
			if err == pacer.ErrZeroRate {
				continue
			}
			return
		}

		iteration := e.iterations.Add(1) - 1
		shouldRecord := e.loadPattern.ShouldRecordMetrics(e.ElapsedMs())
		submitNanos := time.Now().UnixNano() - e.startNanos.Load()

		e.released.Add(1)
		err := e.pool.Submit(func() {
			e.invoke(ctx, iteration, submitNanos, shouldRecord)
		})
		if err != nil {
			e.completed.Add(1)
			return
		}
	}
}

// invoke runs one iteration on a worker and emits its execution record.
func (e *Engine) invoke(ctx context.Context, iteration uint64, submitNanos int64, shouldRecord bool) {
	base := e.startNanos.Load()
	startNanos := time.Now().UnixNano() - base

	outcome := e.safeExecute(ctx, iteration)

	endNanos := time.Now().UnixNano() - base
	e.completed.Add(1)

	rec := task.ExecutionRecord{
		Iteration:       iteration,
		SubmitTimeNanos: submitNanos,
		StartTimeNanos:  startNanos,
		EndTimeNanos:    endNanos,
		Outcome:         outcome,
	}

	if shouldRecord {
		e.collector.Record(rec)
	}

	e.observerMu.RLock()
	observers := e.observers
	e.observerMu.RUnlock()
	for _, fn := range observers {
		fn(rec)
	}
}

// safeExecute invokes the task, converting a panic into a failure so the
// loop continues.
func (e *Engine) safeExecute(ctx context.Context, iteration uint64) (res task.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = task.Failure(fmt.Errorf("task panicked: %v", r))
		}
	}()
	return e.tsk.Execute(ctx, iteration)
}
