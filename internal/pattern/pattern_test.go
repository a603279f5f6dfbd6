package pattern

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPattern(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
		patternName string
	}{
		{
			name:        "valid static config",
			config:      Config{Type: "static", TPS: 100, Duration: 2 * time.Second},
			patternName: "static",
		},
		{
			name: "valid step config",
			config: Config{
				Type: "step",
				Step: &StepConfig{
					Steps: []StepLevel{
						{TPS: 100, Duration: time.Second},
						{TPS: 200, Duration: time.Second},
					},
				},
			},
			patternName: "step",
		},
		{
			name:        "valid rampup config",
			config:      Config{Type: "rampup", MaxTPS: 500, RampDuration: 10 * time.Second},
			patternName: "rampup",
		},
		{
			name: "valid rampup_sustain config",
			config: Config{
				Type: "rampup_sustain", MaxTPS: 500,
				RampDuration: 10 * time.Second, SustainDuration: 20 * time.Second,
			},
			patternName: "rampup_sustain",
		},
		{
			name:        "valid sine config",
			config:      Config{Type: "sine", TPS: 100, Amplitude: 50, Period: time.Minute, Duration: 5 * time.Minute},
			patternName: "sine",
		},
		{
			name: "valid spike config",
			config: Config{
				Type: "spike", TPS: 100,
				Spike: &SpikeConfig{SpikeTPS: 500, SpikeDuration: 5 * time.Second, SpikeInterval: 30 * time.Second},
			},
			patternName: "spike",
		},
		{
			name:        "missing type",
			config:      Config{TPS: 100},
			expectError: true,
			errorMsg:    "pattern type is required",
		},
		{
			name:        "unknown type",
			config:      Config{Type: "sawtooth", TPS: 100},
			expectError: true,
			errorMsg:    "unknown pattern type",
		},
		{
			name:        "static without tps",
			config:      Config{Type: "static"},
			expectError: true,
			errorMsg:    "positive tps",
		},
		{
			name:        "step without steps",
			config:      Config{Type: "step", Step: &StepConfig{}},
			expectError: true,
			errorMsg:    "at least one step",
		},
		{
			name: "spike duration not below interval",
			config: Config{
				Type: "spike", TPS: 100,
				Spike: &SpikeConfig{SpikeTPS: 500, SpikeDuration: 30 * time.Second, SpikeInterval: 30 * time.Second},
			},
			expectError: true,
			errorMsg:    "must be less than spike interval",
		},
		{
			name: "warmup exceeding duration",
			config: Config{
				Type: "static", TPS: 100, Duration: 2 * time.Second,
				Warmup: time.Second, Cooldown: time.Second,
			},
			expectError: true,
			errorMsg:    "must be less than total duration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.config)
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.patternName, p.Name())
		})
	}
}

func TestStaticPattern(t *testing.T) {
	p, err := NewStatic(100, 2*time.Second)
	require.NoError(t, err)

	assert.Equal(t, 100.0, p.TargetTPS(0))
	assert.Equal(t, 100.0, p.TargetTPS(1500))
	assert.Equal(t, 2*time.Second, p.TotalDuration())
	assert.False(t, p.SupportsWarmupCooldown())
	assert.True(t, p.ShouldRecordMetrics(500))
}

func TestStepPattern(t *testing.T) {
	p, err := NewStep(StepConfig{
		Steps: []StepLevel{
			{TPS: 100, Duration: time.Second},
			{TPS: 200, Duration: time.Second},
		},
	})
	require.NoError(t, err)

	// First second holds 100 TPS, second second holds 200.
	assert.Equal(t, 100.0, p.TargetTPS(0))
	assert.Equal(t, 100.0, p.TargetTPS(999))
	assert.Equal(t, 200.0, p.TargetTPS(1000))
	assert.Equal(t, 200.0, p.TargetTPS(1999))
	assert.Equal(t, 2*time.Second, p.TotalDuration())

	// Past the end the last level is held.
	assert.Equal(t, 200.0, p.TargetTPS(5000))
}

func TestStepPatternRamp(t *testing.T) {
	p, err := NewStep(StepConfig{
		Steps: []StepLevel{
			{TPS: 100, Duration: time.Second},
			{TPS: 200, Duration: 2 * time.Second, RampDuration: time.Second},
		},
	})
	require.NoError(t, err)

	// Mid-ramp interpolates between the previous and current level.
	assert.InDelta(t, 150.0, p.TargetTPS(1500), 1.0)
	assert.Equal(t, 200.0, p.TargetTPS(2500))
}

func TestRampUpPattern(t *testing.T) {
	p, err := NewRampUp(1000, 10*time.Second)
	require.NoError(t, err)

	assert.Equal(t, 0.0, p.TargetTPS(0))
	assert.InDelta(t, 500.0, p.TargetTPS(5000), 0.5)
	assert.Equal(t, 1000.0, p.TargetTPS(10000))
	assert.Equal(t, 1000.0, p.TargetTPS(20000))
	assert.Equal(t, 10*time.Second, p.TotalDuration())
}

func TestRampUpThenSustainPattern(t *testing.T) {
	p, err := NewRampUpThenSustain(400, 4*time.Second, 6*time.Second)
	require.NoError(t, err)

	assert.InDelta(t, 200.0, p.TargetTPS(2000), 0.5)
	assert.Equal(t, 400.0, p.TargetTPS(4000))
	assert.Equal(t, 400.0, p.TargetTPS(9000))
	assert.Equal(t, 10*time.Second, p.TotalDuration())
}

func TestSineWavePattern(t *testing.T) {
	p, err := NewSineWave(100, 50, time.Minute, 5*time.Minute)
	require.NoError(t, err)

	// At phase 0 and at the full period the wave is at the baseline.
	assert.InDelta(t, 100.0, p.TargetTPS(0), 0.01)
	assert.InDelta(t, 100.0, p.TargetTPS(60000), 0.5)
	// Quarter period is the peak, three quarters the trough.
	assert.InDelta(t, 150.0, p.TargetTPS(15000), 0.5)
	assert.InDelta(t, 50.0, p.TargetTPS(45000), 0.5)
}

func TestSineWaveRelativeAmplitude(t *testing.T) {
	p, err := NewSineWave(200, 0.5, time.Minute, 0)
	require.NoError(t, err)

	// 0.5 is treated as 50% of the baseline.
	assert.InDelta(t, 300.0, p.TargetTPS(15000), 0.5)
	assert.InDelta(t, 100.0, p.TargetTPS(45000), 0.5)
}

func TestSineWaveNeverNegative(t *testing.T) {
	p, err := NewSineWave(10, 100, time.Minute, 0)
	require.NoError(t, err)

	for ms := int64(0); ms < 60000; ms += 500 {
		assert.GreaterOrEqual(t, p.TargetTPS(ms), 0.0, "elapsed %dms", ms)
	}
}

func TestSpikePattern(t *testing.T) {
	p, err := NewSpike(100, SpikeConfig{
		SpikeTPS:      500,
		SpikeDuration: 5 * time.Second,
		SpikeInterval: 30 * time.Second,
	}, 2*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 500.0, p.TargetTPS(0))
	assert.Equal(t, 500.0, p.TargetTPS(4999))
	assert.Equal(t, 100.0, p.TargetTPS(5000))
	assert.Equal(t, 100.0, p.TargetTPS(29999))
	assert.Equal(t, 500.0, p.TargetTPS(30000))
}

func TestWarmupCooldown(t *testing.T) {
	inner, err := NewStatic(500, 10*time.Second)
	require.NoError(t, err)

	p, err := NewWarmupCooldown(inner, 2*time.Second, 2*time.Second)
	require.NoError(t, err)

	assert.True(t, p.SupportsWarmupCooldown())
	assert.Equal(t, 500.0, p.TargetTPS(0), "load is generated during warmup")

	// Recording is off in [0, 2s) and [8s, 10s].
	assert.False(t, p.ShouldRecordMetrics(0))
	assert.False(t, p.ShouldRecordMetrics(1999))
	assert.True(t, p.ShouldRecordMetrics(2000))
	assert.True(t, p.ShouldRecordMetrics(7999))
	assert.False(t, p.ShouldRecordMetrics(8000))
	assert.False(t, p.ShouldRecordMetrics(9999))
}

func TestWarmupCooldownRequiresBoundedInner(t *testing.T) {
	inner, err := NewStatic(100, 0)
	require.NoError(t, err)

	_, err = NewWarmupCooldown(inner, time.Second, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bounded pattern duration")
}

// Pure patterns must be deterministic: the same elapsed time always yields
// the same target.
func TestPatternsDeterministic(t *testing.T) {
	configs := []Config{
		{Type: "static", TPS: 100, Duration: time.Minute},
		{Type: "rampup", MaxTPS: 500, RampDuration: time.Minute},
		{Type: "sine", TPS: 100, Amplitude: 30, Period: time.Minute},
		{Type: "spike", TPS: 50, Spike: &SpikeConfig{SpikeTPS: 200, SpikeDuration: time.Second, SpikeInterval: 10 * time.Second}},
		{Type: "step", Step: &StepConfig{Steps: []StepLevel{{TPS: 10, Duration: time.Second}, {TPS: 20, Duration: time.Second}}}},
	}

	for _, cfg := range configs {
		t.Run(cfg.Type, func(t *testing.T) {
			p, err := New(cfg)
			require.NoError(t, err)
			for ms := int64(0); ms < 120000; ms += 777 {
				assert.Equal(t, p.TargetTPS(ms), p.TargetTPS(ms))
			}
		})
	}
}
