package pattern

import (
	"fmt"
	"time"
)

// Static is a constant-rate load pattern.
//
// Thread Safety: Safe for concurrent use (read-only after creation).
type Static struct {
	basePattern
	tps      float64
	duration time.Duration
}

// NewStatic creates a constant-rate pattern. A zero duration means the
// pattern runs until stopped externally.
func NewStatic(tps float64, duration time.Duration) (*Static, error) {
	if tps <= 0 {
		return nil, fmt.Errorf("static pattern requires positive tps, got: %f", tps)
	}
	if duration < 0 {
		return nil, fmt.Errorf("duration cannot be negative: %v", duration)
	}
	return &Static{tps: tps, duration: duration}, nil
}

// TargetTPS returns the constant TPS regardless of elapsed time.
func (s *Static) TargetTPS(int64) float64 { return s.tps }

// TotalDuration returns the configured duration.
func (s *Static) TotalDuration() time.Duration { return s.duration }

// Name returns the pattern type name.
func (s *Static) Name() string { return "static" }

// Phase returns a description of the current phase.
func (s *Static) Phase(elapsedMs int64) string {
	return fmt.Sprintf("holding at %.0f TPS (%.1fs elapsed)", s.tps, float64(elapsedMs)/1000)
}
