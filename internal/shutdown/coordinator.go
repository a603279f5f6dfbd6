// Package shutdown coordinates drain-then-force termination of a run,
// including process signal handling and ordered shutdown callbacks.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Default timeouts.
const (
	DefaultDrainTimeout    = 5 * time.Second
	DefaultForceTimeout    = 10 * time.Second
	DefaultCallbackTimeout = 5 * time.Second
)

// ErrShutdownTimeout is returned when the worker pool could not be drained
// within the drain timeout nor terminated within the force timeout. The
// pool is leaked rather than blocking forever; metrics collected so far
// remain usable.
var ErrShutdownTimeout = errors.New("shutdown: drain and force timeouts exceeded")

// Config holds the coordinator timeouts.
type Config struct {
	// DrainTimeout bounds the graceful drain of in-flight work.
	// Default: 5s.
	DrainTimeout time.Duration `yaml:"drainTimeout,omitempty" json:"drainTimeout,omitempty"`

	// ForceTimeout bounds forced termination after a failed drain.
	// Default: 10s.
	ForceTimeout time.Duration `yaml:"forceTimeout,omitempty" json:"forceTimeout,omitempty"`

	// CallbackTimeout bounds each registered callback individually.
	// Default: 5s.
	CallbackTimeout time.Duration `yaml:"callbackTimeout,omitempty" json:"callbackTimeout,omitempty"`
}

// withDefaults returns a copy with zero fields replaced by defaults.
func (c Config) withDefaults() Config {
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = DefaultDrainTimeout
	}
	if c.ForceTimeout <= 0 {
		c.ForceTimeout = DefaultForceTimeout
	}
	if c.CallbackTimeout <= 0 {
		c.CallbackTimeout = DefaultCallbackTimeout
	}
	return c
}

// Callback is invoked once during shutdown. The context is cancelled when
// the callback's individual timeout expires.
type Callback func(ctx context.Context) error

type namedCallback struct {
	name string
	fn   Callback
}

// Coordinator sequences the shutdown of a run: drain the worker pool
// within the drain timeout, force-terminate within the force timeout,
// then run registered callbacks once, in registration order. Callback
// errors are collected and reported but never stop the sequence.
//
// Thread Safety: Safe for concurrent use.
type Coordinator struct {
	config Config
	logger *zap.Logger

	mu        sync.Mutex
	callbacks []namedCallback

	ran    atomic.Bool
	done   chan struct{}
	result error

	signalOnce sync.Once
	sigCh      chan os.Signal
	sigStop    atomic.Bool
}

// NewCoordinator creates a coordinator with the given timeouts.
func NewCoordinator(config Config, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		config: config.withDefaults(),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// RegisterCallback adds a callback to run during shutdown. Callbacks run
// in registration order. Registration after shutdown has begun is ignored.
func (c *Coordinator) RegisterCallback(name string, fn Callback) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ran.Load() {
		return
	}
	c.callbacks = append(c.callbacks, namedCallback{name: name, fn: fn})
}

// InstallSignalHandler forwards SIGINT and SIGTERM to onSignal, once.
func (c *Coordinator) InstallSignalHandler(onSignal func(os.Signal)) {
	c.signalOnce.Do(func() {
		c.sigCh = make(chan os.Signal, 1)
		signal.Notify(c.sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig, ok := <-c.sigCh
			if !ok || c.sigStop.Load() {
				return
			}
			c.logger.Info("received signal, stopping", zap.String("signal", sig.String()))
			onSignal(sig)
		}()
	})
}

// ReleaseSignalHandler detaches the process signal handler. Idempotent.
func (c *Coordinator) ReleaseSignalHandler() {
	if c.sigCh != nil && !c.sigStop.Swap(true) {
		signal.Stop(c.sigCh)
		close(c.sigCh)
	}
}

// Shutdown drains in-flight work and runs the registered callbacks.
//
// drain is given a context bounded by the drain timeout; if it does not
// return in time, force is given a context bounded by the force timeout.
// If both are exceeded the returned error wraps ErrShutdownTimeout and
// the pool is leaked. Shutdown runs at most once; later calls return the
// first result.
func (c *Coordinator) Shutdown(drain, force func(ctx context.Context) error) error {
	if c.ran.Swap(true) {
		<-c.done
		return c.result
	}
	defer close(c.done)

	var errs []error

	if !c.runBounded("drain", drain, c.config.DrainTimeout) {
		c.logger.Warn("drain timeout exceeded, forcing termination",
			zap.Duration("drainTimeout", c.config.DrainTimeout))
		if !c.runBounded("force", force, c.config.ForceTimeout) {
			c.logger.Error("force timeout exceeded, leaking worker pool",
				zap.Duration("forceTimeout", c.config.ForceTimeout))
			errs = append(errs, ErrShutdownTimeout)
		}
	}

	for _, cb := range c.snapshotCallbacks() {
		if err := c.runCallback(cb); err != nil {
			errs = append(errs, fmt.Errorf("shutdown callback %q: %w", cb.name, err))
		}
	}

	c.result = errors.Join(errs...)
	return c.result
}

// Await blocks until Shutdown has completed and returns its result.
func (c *Coordinator) Await() error {
	<-c.done
	return c.result
}

// snapshotCallbacks copies the callback list under the lock.
func (c *Coordinator) snapshotCallbacks() []namedCallback {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]namedCallback, len(c.callbacks))
	copy(out, c.callbacks)
	return out
}

// runBounded runs fn with a timeout-bounded context in its own goroutine.
// Returns false when the timeout expired before fn returned.
func (c *Coordinator) runBounded(name string, fn func(ctx context.Context) error, timeout time.Duration) bool {
	if fn == nil {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		result <- fn(ctx)
	}()

	select {
	case err := <-result:
		if err != nil {
			c.logger.Warn("shutdown step failed", zap.String("step", name), zap.Error(err))
			return false
		}
		return true
	case <-ctx.Done():
		return false
	}
}

// runCallback runs one callback bounded by the callback timeout,
// recovering panics so a misbehaving callback cannot stop the sequence.
func (c *Coordinator) runCallback(cb namedCallback) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.CallbackTimeout)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("panic: %v", r)
			}
		}()
		result <- cb.fn(ctx)
	}()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		c.logger.Warn("shutdown callback timed out, cancelling",
			zap.String("callback", cb.name),
			zap.Duration("timeout", c.config.CallbackTimeout))
		return fmt.Errorf("timed out after %v", c.config.CallbackTimeout)
	}
}
