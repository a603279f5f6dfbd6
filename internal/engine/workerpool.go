package engine

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrPoolClosed is returned by Submit after the pool's intake has closed.
var ErrPoolClosed = errors.New("engine: worker pool closed")

// Strategy selects how invocations are mapped onto goroutines.
type Strategy string

const (
	// StrategyCooperative runs one goroutine per invocation, optionally
	// bounded by a concurrency cap. This is the default.
	StrategyCooperative Strategy = "cooperative"
	// StrategyPooled runs a fixed pool of workers fed by a bounded queue.
	StrategyPooled Strategy = "pooled"
)

// StrategyHinter is an optional marker a task can implement to pick its
// preferred execution strategy. A configuration override always wins.
type StrategyHinter interface {
	ExecutionStrategy() Strategy
}

// Pool abstracts the worker strategy. The rest of the engine only submits
// work and waits; the choice of strategy is a pure factory concern.
type Pool interface {
	// Submit hands one invocation to a worker. When the pool has bounded
	// capacity and it is exhausted, Submit blocks the caller. Returns
	// ErrPoolClosed after Close.
	Submit(run func()) error

	// Close stops intake. Already-submitted work keeps running.
	// Idempotent.
	Close()

	// Wait blocks until all submitted work has finished or the context is
	// done, returning the context error in the latter case.
	Wait(ctx context.Context) error

	// Size returns the fixed worker count, or 0 for per-invocation
	// goroutines.
	Size() int
}

// PoolConfig parameterises the worker pool factory.
type PoolConfig struct {
	// Strategy overrides the task's strategy hint when non-empty.
	Strategy Strategy `yaml:"strategy,omitempty" json:"strategy,omitempty"`

	// MaxConcurrency bounds concurrent invocations for the cooperative
	// strategy. Zero means unbounded.
	MaxConcurrency int `yaml:"maxConcurrency,omitempty" json:"maxConcurrency,omitempty"`

	// PoolSize is the worker count for the pooled strategy.
	// Default: runtime.NumCPU().
	PoolSize int `yaml:"poolSize,omitempty" json:"poolSize,omitempty"`

	// QueueSize is the task queue bound for the pooled strategy.
	// Default: PoolSize * 2.
	QueueSize int `yaml:"queueSize,omitempty" json:"queueSize,omitempty"`
}

// NewPool builds a pool for the task. The configuration override wins,
// then the task's strategy hint, then the cooperative default.
func NewPool(config PoolConfig, hinter any) (Pool, error) {
	strategy := config.Strategy
	if strategy == "" {
		if h, ok := hinter.(StrategyHinter); ok {
			strategy = h.ExecutionStrategy()
		}
	}

	switch strategy {
	case StrategyCooperative, "":
		return newCooperativePool(config.MaxConcurrency), nil
	case StrategyPooled:
		size := config.PoolSize
		if size <= 0 {
			size = runtime.NumCPU()
		}
		queue := config.QueueSize
		if queue <= 0 {
			queue = size * 2
		}
		return newPooledPool(size, queue), nil
	default:
		return nil, errors.New("engine: unknown worker strategy: " + string(strategy))
	}
}

// cooperativePool spawns one goroutine per invocation. An optional
// semaphore bounds concurrency; acquiring it blocks the submitter, which
// is the executor-side backpressure the release loop relies on.
type cooperativePool struct {
	sem    chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool
}

func newCooperativePool(maxConcurrency int) *cooperativePool {
	p := &cooperativePool{}
	if maxConcurrency > 0 {
		p.sem = make(chan struct{}, maxConcurrency)
	}
	return p
}

func (p *cooperativePool) Submit(run func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	if p.sem != nil {
		p.sem <- struct{}{}
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if p.sem != nil {
			defer func() { <-p.sem }()
		}
		run()
	}()
	return nil
}

func (p *cooperativePool) Close() {
	p.closed.Store(true)
}

func (p *cooperativePool) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *cooperativePool) Size() int { return 0 }

// pooledPool runs a fixed set of workers fed by a bounded queue. Submit
// blocks when the queue is full.
type pooledPool struct {
	queue     chan func()
	size      int
	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    atomic.Bool
}

func newPooledPool(size, queueSize int) *pooledPool {
	p := &pooledPool{
		queue: make(chan func(), queueSize),
		size:  size,
	}
	for range size {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *pooledPool) worker() {
	defer p.wg.Done()
	for run := range p.queue {
		run()
	}
}

func (p *pooledPool) Submit(run func()) (err error) {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	// A concurrent Close can close the queue under a blocked send.
	defer func() {
		if recover() != nil {
			err = ErrPoolClosed
		}
	}()
	p.queue <- run
	return nil
}

func (p *pooledPool) Close() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.queue)
	})
}

func (p *pooledPool) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pooledPool) Size() int { return p.size }

// Compile-time interface checks
var (
	_ Pool = (*cooperativePool)(nil)
	_ Pool = (*pooledPool)(nil)
)
