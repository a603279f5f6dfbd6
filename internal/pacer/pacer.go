// Package pacer converts a time-varying target TPS into precisely timed
// per-invocation release signals.
package pacer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// ErrZeroRate is returned after the pacer has idled for one tick because
// the target rate was zero or negative. The caller should re-read the
// pattern and retry rather than release an invocation.
var ErrZeroRate = errors.New("pacer: target rate is zero")

// Default pacing parameters.
const (
	// maxSleep caps a single corrective sleep.
	maxSleep = time.Second
	// spinThreshold is the sleep length below which the pacer spins with a
	// CPU yield instead of parking; parking cost dominates at sub-ms
	// scales.
	spinThreshold = time.Millisecond
	// elapsedCacheTTL amortises the monotonic clock read across adjacent
	// calls.
	elapsedCacheTTL = 10 * time.Millisecond
	// idleTick is how long the pacer sleeps when the target rate is zero
	// or negative before rechecking.
	idleTick = 100 * time.Millisecond
)

// Type selects the pacing algorithm.
type Type string

const (
	// TypeCounting paces on released-versus-expected invocation counts
	// (recommended; the long-run rate tracks the target exactly).
	TypeCounting Type = "counting"
	// TypeTokenBucket paces with a token bucket, tolerating short bursts.
	TypeTokenBucket Type = "token_bucket"
)

// Pacer blocks the release point until the next invocation is due at the
// given momentary target TPS. The target is read afresh on every call; the
// pacer performs no interpolation or smoothing — the pattern owns
// smoothness.
//
// Thread Safety: Safe for concurrent use, though release ordering is only
// total when a single goroutine drives WaitForNext.
type Pacer interface {
	// WaitForNext blocks until the next invocation may be released.
	// Returns the context error when the context is cancelled, and
	// ErrZeroRate after idling one tick when targetTPS is zero or negative.
	WaitForNext(ctx context.Context, targetTPS float64) error

	// Released returns the number of releases granted so far.
	Released() uint64
}

// Config selects and parameterises a pacer.
type Config struct {
	// Type selects the algorithm. Default: counting.
	Type Type `yaml:"type,omitempty" json:"type,omitempty"`

	// Burst is the token-bucket burst size. Default: 1.
	Burst int `yaml:"burst,omitempty" json:"burst,omitempty"`
}

// New creates a pacer from the configuration.
func New(config Config) (Pacer, error) {
	switch config.Type {
	case TypeCounting, "":
		return NewCountingPacer(), nil
	case TypeTokenBucket:
		return NewTokenBucketPacer(config.Burst), nil
	default:
		return nil, fmt.Errorf("pacer: unknown type: %s", config.Type)
	}
}

// CountingPacer releases invocations so that the observed count tracks
// floor(targetTPS * elapsed / 1000). When the observed count runs ahead of
// the expected count it sleeps for the surplus; sub-millisecond surpluses
// are burned with a yielding spin. The elapsed clock is monotonic and its
// read is cached for a short TTL.
//
// Thread Safety: Safe for concurrent use.
type CountingPacer struct {
	startOnce sync.Once
	start     time.Time

	released atomic.Uint64

	// Cached elapsed reading: value in milliseconds and the monotonic
	// nanosecond stamp it was taken at, packed into one atomic value.
	cachedElapsed atomic.Pointer[elapsedStamp]
}

type elapsedStamp struct {
	elapsedMs  int64
	stampNanos int64
}

// NewCountingPacer creates a counting pacer. The clock starts on the first
// WaitForNext call.
func NewCountingPacer() *CountingPacer {
	return &CountingPacer{}
}

// WaitForNext blocks until the next release is due at targetTPS.
func (p *CountingPacer) WaitForNext(ctx context.Context, targetTPS float64) error {
	p.startOnce.Do(func() { p.start = time.Now() })

	if targetTPS <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(idleTick):
		}
		return ErrZeroRate
	}

	elapsedMs := p.elapsedMs()
	expected := uint64(targetTPS * float64(elapsedMs) / 1000)
	observed := p.released.Add(1)

	if observed <= expected {
		return nil
	}

	surplus := observed - expected
	wait := time.Duration(float64(surplus) * float64(time.Second) / targetTPS)
	if wait > maxSleep {
		wait = maxSleep
	}

	if wait < spinThreshold {
		deadline := time.Now().Add(wait)
		for time.Now().Before(deadline) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			runtime.Gosched()
		}
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// Released returns the number of releases granted so far.
func (p *CountingPacer) Released() uint64 {
	return p.released.Load()
}

// elapsedMs returns milliseconds since start, re-reading the clock at most
// once per cache TTL.
func (p *CountingPacer) elapsedMs() int64 {
	nowNanos := time.Since(p.start).Nanoseconds()
	if cached := p.cachedElapsed.Load(); cached != nil && nowNanos-cached.stampNanos < elapsedCacheTTL.Nanoseconds() {
		return cached.elapsedMs
	}
	elapsedMs := nowNanos / int64(time.Millisecond)
	p.cachedElapsed.Store(&elapsedStamp{elapsedMs: elapsedMs, stampNanos: nowNanos})
	return elapsedMs
}

// TokenBucketPacer paces with golang.org/x/time/rate, reconfiguring the
// limit whenever the target changes. Short bursts up to the configured
// burst size are tolerated, which suits workloads where strict spacing
// matters less than the long-run average.
//
// Thread Safety: Safe for concurrent use.
type TokenBucketPacer struct {
	limiter *rate.Limiter

	mu      sync.Mutex
	lastTPS float64

	released atomic.Uint64
}

// NewTokenBucketPacer creates a token-bucket pacer. Burst values below 1
// are clamped to 1.
func NewTokenBucketPacer(burst int) *TokenBucketPacer {
	if burst < 1 {
		burst = 1
	}
	return &TokenBucketPacer{
		limiter: rate.NewLimiter(rate.Limit(0), burst),
	}
}

// WaitForNext blocks until the token bucket grants a slot at targetTPS.
func (p *TokenBucketPacer) WaitForNext(ctx context.Context, targetTPS float64) error {
	if targetTPS <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(idleTick):
		}
		return ErrZeroRate
	}

	p.mu.Lock()
	if targetTPS != p.lastTPS {
		p.limiter.SetLimit(rate.Limit(targetTPS))
		p.lastTPS = targetTPS
	}
	p.mu.Unlock()

	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	p.released.Add(1)
	return nil
}

// Released returns the number of releases granted so far.
func (p *TokenBucketPacer) Released() uint64 {
	return p.released.Load()
}

// Compile-time interface checks
var (
	_ Pacer = (*CountingPacer)(nil)
	_ Pacer = (*TokenBucketPacer)(nil)
)
