package pattern

import (
	"fmt"
	"time"
)

// Step is a staircase load pattern. TPS changes in discrete levels,
// optionally with a linear ramp from the previous level.
//
// Thread Safety: Safe for concurrent use (read-only after creation).
type Step struct {
	basePattern
	steps           []StepLevel
	totalDuration   time.Duration
	cumulativeEndMs []int64
	previousTPS     []float64
}

// NewStep creates a staircase pattern from the ordered step sequence.
func NewStep(config StepConfig) (*Step, error) {
	if len(config.Steps) == 0 {
		return nil, fmt.Errorf("step pattern requires at least one step")
	}

	var total time.Duration
	cumulative := make([]int64, len(config.Steps))
	previous := make([]float64, len(config.Steps))

	for i, step := range config.Steps {
		if step.TPS < 0 {
			return nil, fmt.Errorf("step %d: TPS cannot be negative: %f", i, step.TPS)
		}
		if step.Duration <= 0 {
			return nil, fmt.Errorf("step %d: duration must be positive: %v", i, step.Duration)
		}
		if step.RampDuration < 0 || step.RampDuration > step.Duration {
			return nil, fmt.Errorf("step %d: ramp duration (%v) must be within [0, %v]",
				i, step.RampDuration, step.Duration)
		}
		total += step.Duration
		cumulative[i] = total.Milliseconds()
		if i > 0 {
			previous[i] = config.Steps[i-1].TPS
		}
	}

	return &Step{
		steps:           config.Steps,
		totalDuration:   total,
		cumulativeEndMs: cumulative,
		previousTPS:     previous,
	}, nil
}

// TargetTPS returns the TPS for the step containing the elapsed time. Past
// the final step the last level is held.
func (s *Step) TargetTPS(elapsedMs int64) float64 {
	idx, posMs := s.stepAt(elapsedMs)
	step := s.steps[idx]

	rampMs := step.RampDuration.Milliseconds()
	if rampMs > 0 && posMs < rampMs {
		prev := s.previousTPS[idx]
		progress := float64(posMs) / float64(rampMs)
		return prev + (step.TPS-prev)*progress
	}
	return step.TPS
}

// TotalDuration returns the sum of all step durations.
func (s *Step) TotalDuration() time.Duration { return s.totalDuration }

// Name returns the pattern type name.
func (s *Step) Name() string { return "step" }

// Phase returns a description of the current step.
func (s *Step) Phase(elapsedMs int64) string {
	idx, posMs := s.stepAt(elapsedMs)
	step := s.steps[idx]
	progress := float64(posMs) / float64(step.Duration.Milliseconds()) * 100
	return fmt.Sprintf("step %d/%d: %.0f TPS (%.1f%% through step)",
		idx+1, len(s.steps), step.TPS, progress)
}

// stepAt returns the step index and the position in milliseconds within it.
func (s *Step) stepAt(elapsedMs int64) (int, int64) {
	var startMs int64
	for i, endMs := range s.cumulativeEndMs {
		if elapsedMs < endMs {
			return i, elapsedMs - startMs
		}
		startMs = endMs
	}
	last := len(s.steps) - 1
	return last, s.steps[last].Duration.Milliseconds()
}
