package pattern

import (
	"fmt"
	"math"
	"time"
)

// SineWave oscillates TPS smoothly around a baseline.
//
// The formula is: TPS = base + amplitude * sin(2π * elapsed / period)
//
// Thread Safety: Safe for concurrent use (read-only after creation).
type SineWave struct {
	basePattern
	base      float64
	amplitude float64
	period    time.Duration
	duration  time.Duration
}

// NewSineWave creates a sinusoidal pattern. The amplitude can be specified
// as an absolute TPS delta (values > 1) or a fraction of the baseline
// (values in (0, 1]).
func NewSineWave(base, amplitude float64, period, duration time.Duration) (*SineWave, error) {
	if base < 0 {
		return nil, fmt.Errorf("sine pattern baseline cannot be negative: %f", base)
	}
	if period <= 0 {
		return nil, fmt.Errorf("sine pattern requires positive period, got: %v", period)
	}
	if amplitude < 0 {
		return nil, fmt.Errorf("sine amplitude cannot be negative: %f", amplitude)
	}
	if amplitude <= 1 && amplitude > 0 {
		amplitude = base * amplitude
	}
	return &SineWave{base: base, amplitude: amplitude, period: period, duration: duration}, nil
}

// TargetTPS returns the TPS at the given point of the sine cycle, floored
// at zero.
func (s *SineWave) TargetTPS(elapsedMs int64) float64 {
	phase := 2 * math.Pi * float64(elapsedMs) / float64(s.period.Milliseconds())
	tps := s.base + s.amplitude*math.Sin(phase)
	if tps < 0 {
		return 0
	}
	return tps
}

// TotalDuration returns the configured duration.
func (s *SineWave) TotalDuration() time.Duration { return s.duration }

// Name returns the pattern type name.
func (s *SineWave) Name() string { return "sine" }

// Phase returns a description of the position within the current cycle.
func (s *SineWave) Phase(elapsedMs int64) string {
	periodMs := s.period.Milliseconds()
	cycle := elapsedMs/periodMs + 1
	pos := float64(elapsedMs%periodMs) / float64(periodMs)

	var name string
	switch {
	case pos < 0.25:
		name = "rising to peak"
	case pos < 0.5:
		name = "falling from peak"
	case pos < 0.75:
		name = "falling to trough"
	default:
		name = "rising from trough"
	}
	return fmt.Sprintf("cycle %d: %s (%.1f%% through cycle)", cycle, name, pos*100)
}
