package adaptive

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingSource counts how often the collector facade is consulted.
type countingSource struct {
	calls       atomic.Int64
	failureRate float64
	recentRate  float64
	total       uint64
	elapsedMs   int64
}

func (s *countingSource) FailureRate() float64 {
	s.calls.Add(1)
	return s.failureRate
}
func (s *countingSource) RecentFailureRate(time.Duration) float64 { return s.recentRate }
func (s *countingSource) TotalExecutions() uint64                 { return s.total }
func (s *countingSource) ElapsedMs() int64                        { return s.elapsedMs }

// fixedBackpressure reports a constant level.
type fixedBackpressure struct{ level float64 }

func (f fixedBackpressure) Level() float64      { return f.level }
func (f fixedBackpressure) Description() string { return "fixed" }

func TestCachedSnapshotProviderServesFreshValue(t *testing.T) {
	source := &countingSource{failureRate: 0.25, total: 400, elapsedMs: 9000}
	provider := NewCachedSnapshotProvider(source, fixedBackpressure{level: 0.6}, 50*time.Millisecond, 10*time.Second)

	snap := provider.Snapshot()
	assert.Equal(t, 0.25, snap.FailureRate)
	assert.Equal(t, uint64(400), snap.TotalExecutions)
	assert.Equal(t, int64(9000), snap.ElapsedMs)
	assert.Equal(t, 0.6, snap.BackpressureLevel)
}

func TestCachedSnapshotProviderCachesWithinTTL(t *testing.T) {
	source := &countingSource{}
	provider := NewCachedSnapshotProvider(source, nil, 200*time.Millisecond, 0)

	for i := 0; i < 50; i++ {
		provider.Snapshot()
	}
	assert.Equal(t, int64(1), source.calls.Load(), "only one refresh within the TTL window")
}

func TestCachedSnapshotProviderRefreshesAfterTTL(t *testing.T) {
	source := &countingSource{}
	provider := NewCachedSnapshotProvider(source, nil, 20*time.Millisecond, 0)

	provider.Snapshot()
	time.Sleep(30 * time.Millisecond)
	provider.Snapshot()
	assert.Equal(t, int64(2), source.calls.Load())
}

func TestCachedSnapshotProviderSingleRefreshUnderContention(t *testing.T) {
	source := &countingSource{}
	provider := NewCachedSnapshotProvider(source, nil, time.Second, 0)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				provider.Snapshot()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), source.calls.Load(), "losers of the refresh race observe the winner's value")
}

func TestCachedSnapshotProviderNilBackpressure(t *testing.T) {
	provider := NewCachedSnapshotProvider(&countingSource{}, nil, 0, 0)
	assert.Equal(t, 0.0, provider.Snapshot().BackpressureLevel)
}

func TestQueueDepthProvider(t *testing.T) {
	var depth atomic.Int64
	provider := NewQueueDepthProvider(depth.Load, 100)

	assert.Equal(t, 0.0, provider.Level())

	depth.Store(50)
	assert.Equal(t, 0.5, provider.Level())

	depth.Store(100)
	assert.Equal(t, 1.0, provider.Level())

	// Saturates at 1 above the configured depth.
	depth.Store(500)
	assert.Equal(t, 1.0, provider.Level())

	assert.Equal(t, "queue-depth", provider.Description())
}

func TestCompositeProviderTakesMax(t *testing.T) {
	composite := NewCompositeProvider(
		fixedBackpressure{level: 0.2},
		nil,
		fixedBackpressure{level: 0.7},
		fixedBackpressure{level: 0.4},
	)

	assert.Equal(t, 0.7, composite.Level())
	assert.Contains(t, composite.Description(), "fixed")
}

func TestCompositeProviderEmpty(t *testing.T) {
	composite := NewCompositeProvider()
	assert.Equal(t, 0.0, composite.Level())
	assert.Equal(t, "composite(empty)", composite.Description())
}

func TestThresholdPolicy(t *testing.T) {
	policy := NewThresholdPolicy()

	tests := []struct {
		name       string
		snap       MetricsSnapshot
		rampDown   bool
		rampUp     bool
		canRecover bool
	}{
		{
			name:       "healthy",
			snap:       MetricsSnapshot{},
			rampDown:   false,
			rampUp:     true,
			canRecover: true,
		},
		{
			name:     "failure rate at threshold",
			snap:     MetricsSnapshot{FailureRate: 0.01},
			rampDown: true,
		},
		{
			name:     "backpressure at ramp-down threshold",
			snap:     MetricsSnapshot{BackpressureLevel: 0.7},
			rampDown: true,
		},
		{
			name:       "moderate backpressure",
			snap:       MetricsSnapshot{BackpressureLevel: 0.5},
			rampDown:   false,
			rampUp:     false,
			canRecover: false,
		},
		{
			name:       "backpressure at ramp-up threshold",
			snap:       MetricsSnapshot{BackpressureLevel: 0.3},
			rampUp:     true,
			canRecover: true,
		},
		{
			name:       "recent window clean despite bad run total",
			snap:       MetricsSnapshot{FailureRate: 0.9, RecentFailureRate: 0.001},
			rampDown:   true,
			rampUp:     false,
			canRecover: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.rampDown, policy.ShouldRampDown(tt.snap), "ShouldRampDown")
			assert.Equal(t, tt.rampUp, policy.ShouldRampUp(tt.snap), "ShouldRampUp")
			assert.Equal(t, tt.canRecover, policy.CanRecoverFromMinimum(tt.snap), "CanRecoverFromMinimum")
		})
	}
}

func TestThresholdPolicyValidate(t *testing.T) {
	bad := ThresholdPolicy{ErrorThreshold: 0.01, RampDownThreshold: 0.2, RampUpThreshold: 0.5}
	require.Error(t, bad.Validate())

	good := NewThresholdPolicy()
	require.NoError(t, good.Validate())
}
