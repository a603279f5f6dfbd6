package pattern

import (
	"fmt"
	"time"
)

// RampUp increases TPS linearly from zero to maxTPS over the ramp duration.
//
// Thread Safety: Safe for concurrent use (read-only after creation).
type RampUp struct {
	basePattern
	maxTPS float64
	ramp   time.Duration
}

// NewRampUp creates a linear ramp from 0 to maxTPS over duration.
func NewRampUp(maxTPS float64, duration time.Duration) (*RampUp, error) {
	if maxTPS <= 0 {
		return nil, fmt.Errorf("rampup pattern requires positive maxTPS, got: %f", maxTPS)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("rampup pattern requires positive duration, got: %v", duration)
	}
	return &RampUp{maxTPS: maxTPS, ramp: duration}, nil
}

// TargetTPS returns the linearly interpolated TPS, capped at maxTPS.
func (r *RampUp) TargetTPS(elapsedMs int64) float64 {
	rampMs := r.ramp.Milliseconds()
	if elapsedMs >= rampMs {
		return r.maxTPS
	}
	if elapsedMs <= 0 {
		return 0
	}
	return r.maxTPS * float64(elapsedMs) / float64(rampMs)
}

// TotalDuration returns the ramp duration.
func (r *RampUp) TotalDuration() time.Duration { return r.ramp }

// Name returns the pattern type name.
func (r *RampUp) Name() string { return "rampup" }

// Phase returns a description of the current ramp progress.
func (r *RampUp) Phase(elapsedMs int64) string {
	rampMs := r.ramp.Milliseconds()
	if elapsedMs >= rampMs {
		return fmt.Sprintf("at peak %.0f TPS", r.maxTPS)
	}
	return fmt.Sprintf("ramping to %.0f TPS (%.1f%%)", r.maxTPS, float64(elapsedMs)/float64(rampMs)*100)
}

// RampUpThenSustain ramps linearly from zero to maxTPS, then holds maxTPS
// for the sustain duration.
//
// Thread Safety: Safe for concurrent use (read-only after creation).
type RampUpThenSustain struct {
	basePattern
	maxTPS  float64
	ramp    time.Duration
	sustain time.Duration
}

// NewRampUpThenSustain creates a ramp-then-hold pattern.
func NewRampUpThenSustain(maxTPS float64, ramp, sustain time.Duration) (*RampUpThenSustain, error) {
	if maxTPS <= 0 {
		return nil, fmt.Errorf("rampup_sustain pattern requires positive maxTPS, got: %f", maxTPS)
	}
	if ramp <= 0 {
		return nil, fmt.Errorf("rampup_sustain pattern requires positive rampDuration, got: %v", ramp)
	}
	if sustain <= 0 {
		return nil, fmt.Errorf("rampup_sustain pattern requires positive sustainDuration, got: %v", sustain)
	}
	return &RampUpThenSustain{maxTPS: maxTPS, ramp: ramp, sustain: sustain}, nil
}

// TargetTPS returns the ramped TPS during the ramp window and maxTPS after.
func (r *RampUpThenSustain) TargetTPS(elapsedMs int64) float64 {
	rampMs := r.ramp.Milliseconds()
	if elapsedMs >= rampMs {
		return r.maxTPS
	}
	if elapsedMs <= 0 {
		return 0
	}
	return r.maxTPS * float64(elapsedMs) / float64(rampMs)
}

// TotalDuration returns ramp plus sustain duration.
func (r *RampUpThenSustain) TotalDuration() time.Duration { return r.ramp + r.sustain }

// Name returns the pattern type name.
func (r *RampUpThenSustain) Name() string { return "rampup_sustain" }

// Phase returns a description of the current phase.
func (r *RampUpThenSustain) Phase(elapsedMs int64) string {
	rampMs := r.ramp.Milliseconds()
	if elapsedMs < rampMs {
		return fmt.Sprintf("ramping to %.0f TPS (%.1f%%)", r.maxTPS, float64(elapsedMs)/float64(rampMs)*100)
	}
	return fmt.Sprintf("sustaining %.0f TPS", r.maxTPS)
}
