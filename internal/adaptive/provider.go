package adaptive

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultSnapshotTTL bounds how often the cached provider consults the
// underlying collector.
const DefaultSnapshotTTL = 100 * time.Millisecond

// DefaultRecentWindow is the trailing window for the recent failure rate.
const DefaultRecentWindow = 10 * time.Second

// MetricsSource is the narrow collector facade the cached provider reads.
// The metrics collector satisfies it structurally; this package never
// imports the collector.
type MetricsSource interface {
	FailureRate() float64
	RecentFailureRate(window time.Duration) float64
	TotalExecutions() uint64
	ElapsedMs() int64
}

// stampedSnapshot pairs a snapshot with its capture time. Publishing the
// pair through a single atomic pointer avoids the torn reads of
// double-checked locking over separate fields.
type stampedSnapshot struct {
	snap       MetricsSnapshot
	stampNanos int64
}

// CachedSnapshotProvider serves decision snapshots at most TTL old. Under
// concurrent readers only one refresh happens per TTL window; losers of
// the refresh race observe the winner's value. The refresh mutex is held
// only across the source calls, never across reader fast paths.
//
// Thread Safety: Safe for concurrent use.
type CachedSnapshotProvider struct {
	source       MetricsSource
	backpressure BackpressureProvider
	ttl          time.Duration
	window       time.Duration

	current   atomic.Pointer[stampedSnapshot]
	refreshMu sync.Mutex
}

// NewCachedSnapshotProvider wraps the source and backpressure provider
// with a TTL cache. Zero ttl and window select the defaults; backpressure
// may be nil, in which case the level is always 0.
func NewCachedSnapshotProvider(source MetricsSource, backpressure BackpressureProvider, ttl, window time.Duration) *CachedSnapshotProvider {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	if window <= 0 {
		window = DefaultRecentWindow
	}
	return &CachedSnapshotProvider{
		source:       source,
		backpressure: backpressure,
		ttl:          ttl,
		window:       window,
	}
}

// Snapshot returns a decision snapshot at most TTL old.
func (p *CachedSnapshotProvider) Snapshot() MetricsSnapshot {
	now := time.Now().UnixNano()
	if cur := p.current.Load(); cur != nil && now-cur.stampNanos < p.ttl.Nanoseconds() {
		return cur.snap
	}

	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	// Re-check under the mutex: a concurrent reader may have refreshed
	// while this one waited.
	now = time.Now().UnixNano()
	if cur := p.current.Load(); cur != nil && now-cur.stampNanos < p.ttl.Nanoseconds() {
		return cur.snap
	}

	snap := p.capture()
	p.current.Store(&stampedSnapshot{snap: snap, stampNanos: time.Now().UnixNano()})
	return snap
}

// capture reads the source and backpressure provider once.
func (p *CachedSnapshotProvider) capture() MetricsSnapshot {
	snap := MetricsSnapshot{
		FailureRate:       p.source.FailureRate(),
		RecentFailureRate: p.source.RecentFailureRate(p.window),
		TotalExecutions:   p.source.TotalExecutions(),
		ElapsedMs:         p.source.ElapsedMs(),
	}
	if p.backpressure != nil {
		snap.BackpressureLevel = p.backpressure.Level()
	}
	return snap
}

// Compile-time interface check
var _ SnapshotProvider = (*CachedSnapshotProvider)(nil)
