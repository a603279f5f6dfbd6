// Package pattern provides load patterns that control how the target
// transactions-per-second rate varies over the lifetime of a run.
package pattern

import (
	"fmt"
	"time"
)

// LoadPattern defines the interface for load patterns.
// Implementations map elapsed run time to a target TPS.
//
// Implementations must be deterministic and cheap: TargetTPS is invoked on
// every release-loop iteration. The adaptive pattern is the sole exception
// and documents its feedback behaviour separately.
//
// Thread Safety: Implementations must be safe for concurrent use.
type LoadPattern interface {
	// TargetTPS returns the target TPS for the given elapsed time in
	// milliseconds since the start of the run.
	TargetTPS(elapsedMs int64) float64

	// TotalDuration returns the total intended duration of the pattern.
	// Zero means the pattern runs until stopped externally.
	TotalDuration() time.Duration

	// SupportsWarmupCooldown reports whether the pattern suppresses metric
	// recording during head and tail windows.
	SupportsWarmupCooldown() bool

	// ShouldRecordMetrics reports whether invocations released at the given
	// elapsed time should be recorded by the metrics collector.
	ShouldRecordMetrics(elapsedMs int64) bool

	// Name returns the pattern type name (e.g. "static", "step", "sine").
	Name() string

	// Phase returns a human-readable description of the current phase for
	// the given elapsed time. Useful for progress output and logging.
	Phase(elapsedMs int64) string
}

// basePattern supplies the default predicate implementations shared by the
// pure time-driven patterns.
type basePattern struct{}

func (basePattern) SupportsWarmupCooldown() bool   { return false }
func (basePattern) ShouldRecordMetrics(int64) bool { return true }

// Config is a generic configuration container for load patterns.
// Each pattern type interprets these fields according to its shape.
type Config struct {
	// Type identifies the pattern type: "static", "step", "rampup",
	// "rampup_sustain", "sine", "spike".
	Type string `yaml:"type" json:"type"`

	// TPS is the baseline TPS. For static this is the constant rate, for
	// sine the centre of oscillation, for spike the off-burst rate.
	TPS float64 `yaml:"tps,omitempty" json:"tps,omitempty"`

	// Duration is the total pattern duration. Zero means run until stopped.
	Duration time.Duration `yaml:"duration,omitempty" json:"duration,omitempty"`

	// MaxTPS is the peak TPS for ramp patterns.
	MaxTPS float64 `yaml:"maxTPS,omitempty" json:"maxTPS,omitempty"`

	// RampDuration is the time a ramp pattern takes to reach MaxTPS.
	RampDuration time.Duration `yaml:"rampDuration,omitempty" json:"rampDuration,omitempty"`

	// SustainDuration is how long rampup_sustain holds MaxTPS after ramping.
	SustainDuration time.Duration `yaml:"sustainDuration,omitempty" json:"sustainDuration,omitempty"`

	// Amplitude is the oscillation amplitude for the sine pattern.
	// Values in (0, 1] are treated as a fraction of TPS, larger values as
	// an absolute TPS delta.
	Amplitude float64 `yaml:"amplitude,omitempty" json:"amplitude,omitempty"`

	// Period is the duration of one sine cycle.
	Period time.Duration `yaml:"period,omitempty" json:"period,omitempty"`

	// Spike contains spike-specific configuration.
	Spike *SpikeConfig `yaml:"spike,omitempty" json:"spike,omitempty"`

	// Step contains step-specific configuration.
	Step *StepConfig `yaml:"step,omitempty" json:"step,omitempty"`

	// Warmup and Cooldown wrap the configured pattern in a WarmupCooldown
	// decorator that zeroes metric recording during head and tail windows.
	Warmup   time.Duration `yaml:"warmup,omitempty" json:"warmup,omitempty"`
	Cooldown time.Duration `yaml:"cooldown,omitempty" json:"cooldown,omitempty"`
}

// SpikeConfig holds configuration for spike burst patterns.
type SpikeConfig struct {
	// SpikeTPS is the TPS during burst periods.
	SpikeTPS float64 `yaml:"spikeTPS" json:"spikeTPS"`

	// SpikeDuration is how long each burst lasts.
	SpikeDuration time.Duration `yaml:"spikeDuration" json:"spikeDuration"`

	// SpikeInterval is the time between burst starts.
	SpikeInterval time.Duration `yaml:"spikeInterval" json:"spikeInterval"`
}

// StepConfig holds configuration for step/staircase patterns.
type StepConfig struct {
	// Steps defines the TPS levels and their durations, in order.
	Steps []StepLevel `yaml:"steps" json:"steps"`
}

// StepLevel defines a single step in a staircase pattern.
type StepLevel struct {
	// TPS is the target TPS for this step.
	TPS float64 `yaml:"tps" json:"tps"`

	// Duration is how long this step lasts.
	Duration time.Duration `yaml:"duration" json:"duration"`

	// RampDuration is optional time to ramp from the previous step's TPS.
	// If zero, the transition is immediate.
	RampDuration time.Duration `yaml:"rampDuration,omitempty" json:"rampDuration,omitempty"`
}

// Validate validates the pattern configuration.
func (c *Config) Validate() error {
	if c.Type == "" {
		return fmt.Errorf("pattern type is required")
	}

	if c.TPS < 0 {
		return fmt.Errorf("tps cannot be negative: %f", c.TPS)
	}
	if c.Duration < 0 {
		return fmt.Errorf("duration cannot be negative: %v", c.Duration)
	}
	if c.Warmup < 0 || c.Cooldown < 0 {
		return fmt.Errorf("warmup and cooldown cannot be negative")
	}

	switch c.Type {
	case "static":
		if c.TPS <= 0 {
			return fmt.Errorf("static pattern requires positive tps, got: %f", c.TPS)
		}

	case "rampup", "rampup_sustain":
		if c.MaxTPS <= 0 {
			return fmt.Errorf("%s pattern requires positive maxTPS, got: %f", c.Type, c.MaxTPS)
		}
		if c.RampDuration <= 0 {
			return fmt.Errorf("%s pattern requires positive rampDuration, got: %v", c.Type, c.RampDuration)
		}
		if c.Type == "rampup_sustain" && c.SustainDuration <= 0 {
			return fmt.Errorf("rampup_sustain pattern requires positive sustainDuration, got: %v", c.SustainDuration)
		}

	case "sine":
		if c.Period <= 0 {
			return fmt.Errorf("sine pattern requires positive period, got: %v", c.Period)
		}
		if c.Amplitude < 0 {
			return fmt.Errorf("sine amplitude cannot be negative: %f", c.Amplitude)
		}

	case "spike":
		if c.Spike == nil {
			return fmt.Errorf("spike pattern requires spike configuration")
		}
		if c.Spike.SpikeTPS < 0 {
			return fmt.Errorf("spike TPS cannot be negative: %f", c.Spike.SpikeTPS)
		}
		if c.Spike.SpikeDuration <= 0 {
			return fmt.Errorf("spike duration must be positive: %v", c.Spike.SpikeDuration)
		}
		if c.Spike.SpikeInterval <= 0 {
			return fmt.Errorf("spike interval must be positive: %v", c.Spike.SpikeInterval)
		}
		if c.Spike.SpikeDuration >= c.Spike.SpikeInterval {
			return fmt.Errorf("spike duration (%v) must be less than spike interval (%v)",
				c.Spike.SpikeDuration, c.Spike.SpikeInterval)
		}

	case "step":
		if c.Step == nil || len(c.Step.Steps) == 0 {
			return fmt.Errorf("step pattern requires at least one step")
		}
		for i, step := range c.Step.Steps {
			if step.TPS < 0 {
				return fmt.Errorf("step %d: TPS cannot be negative: %f", i, step.TPS)
			}
			if step.Duration <= 0 {
				return fmt.Errorf("step %d: duration must be positive: %v", i, step.Duration)
			}
			if step.RampDuration < 0 {
				return fmt.Errorf("step %d: ramp duration cannot be negative: %v", i, step.RampDuration)
			}
			if step.RampDuration > step.Duration {
				return fmt.Errorf("step %d: ramp duration (%v) cannot exceed step duration (%v)",
					i, step.RampDuration, step.Duration)
			}
		}

	default:
		return fmt.Errorf("unknown pattern type: %s", c.Type)
	}

	if c.Warmup > 0 || c.Cooldown > 0 {
		total := c.totalDuration()
		if total <= 0 {
			return fmt.Errorf("warmup/cooldown requires a bounded pattern duration")
		}
		if c.Warmup+c.Cooldown >= total {
			return fmt.Errorf("warmup (%v) plus cooldown (%v) must be less than total duration (%v)",
				c.Warmup, c.Cooldown, total)
		}
	}

	return nil
}

// totalDuration computes the pattern's total duration from configuration.
func (c *Config) totalDuration() time.Duration {
	switch c.Type {
	case "step":
		var total time.Duration
		if c.Step != nil {
			for _, s := range c.Step.Steps {
				total += s.Duration
			}
		}
		return total
	case "rampup":
		return c.RampDuration
	case "rampup_sustain":
		return c.RampDuration + c.SustainDuration
	default:
		return c.Duration
	}
}

// New creates a load pattern from the configuration.
// Returns an error if the configuration is invalid.
func New(config Config) (LoadPattern, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pattern config: %w", err)
	}

	var (
		p   LoadPattern
		err error
	)
	switch config.Type {
	case "static":
		p, err = NewStatic(config.TPS, config.Duration)
	case "step":
		p, err = NewStep(*config.Step)
	case "rampup":
		p, err = NewRampUp(config.MaxTPS, config.RampDuration)
	case "rampup_sustain":
		p, err = NewRampUpThenSustain(config.MaxTPS, config.RampDuration, config.SustainDuration)
	case "sine":
		p, err = NewSineWave(config.TPS, config.Amplitude, config.Period, config.Duration)
	case "spike":
		p, err = NewSpike(config.TPS, *config.Spike, config.Duration)
	default:
		return nil, fmt.Errorf("unknown pattern type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	if config.Warmup > 0 || config.Cooldown > 0 {
		return NewWarmupCooldown(p, config.Warmup, config.Cooldown)
	}
	return p, nil
}
