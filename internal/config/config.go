// Package config provides the root configuration structure tying together
// all load generator components.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pulseload/pulseload/internal/adaptive"
	"github.com/pulseload/pulseload/internal/engine"
	"github.com/pulseload/pulseload/internal/metrics"
	"github.com/pulseload/pulseload/internal/pacer"
	"github.com/pulseload/pulseload/internal/pattern"
	"github.com/pulseload/pulseload/internal/report"
	"github.com/pulseload/pulseload/internal/tasks"
)

// Errors returned by the config package.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("config: invalid configuration")
	// ErrConfigNotFound is returned when the config file is not found.
	ErrConfigNotFound = errors.New("config: configuration file not found")
)

// TaskConfig selects and parameterises the workload.
type TaskConfig struct {
	// Type selects the task: "synthetic" or "http".
	Type string `yaml:"type" json:"type"`

	// Synthetic parameterises the synthetic task.
	Synthetic tasks.SyntheticConfig `yaml:"synthetic,omitempty" json:"synthetic,omitempty"`

	// HTTP parameterises the HTTP task.
	HTTP tasks.HTTPConfig `yaml:"http,omitempty" json:"http,omitempty"`
}

// BackpressureConfig parameterises the queue-depth backpressure signal.
type BackpressureConfig struct {
	// MaxQueueDepth is the depth at which the signal saturates at 1.0.
	// Default: 1000.
	MaxQueueDepth int64 `yaml:"maxQueueDepth,omitempty" json:"maxQueueDepth,omitempty"`
}

// ExporterConfig selects one report output.
type ExporterConfig struct {
	// Type selects the exporter: "console", "json", "csv", "html", "otel".
	Type string `yaml:"type" json:"type"`

	// Path is the output file for file-based exporters.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
}

// Config is the root configuration for a load generation run.
type Config struct {
	// Name is a descriptive name for this configuration.
	Name string `yaml:"name" json:"name"`

	// Description provides additional context.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// RunID identifies the run; generated when empty.
	RunID string `yaml:"runID,omitempty" json:"runID,omitempty"`

	// Task selects the workload.
	Task TaskConfig `yaml:"task" json:"task"`

	// Pattern configures the load pattern. Type "adaptive" selects the
	// feedback controller configured by Adaptive below.
	Pattern pattern.Config `yaml:"pattern" json:"pattern"`

	// Adaptive configures the adaptive controller when Pattern.Type is
	// "adaptive".
	Adaptive *adaptive.Config `yaml:"adaptive,omitempty" json:"adaptive,omitempty"`

	// Policy configures the adaptive decision thresholds.
	Policy adaptive.ThresholdPolicy `yaml:"policy,omitempty" json:"policy,omitempty"`

	// Pacer configures the release pacing algorithm.
	Pacer pacer.Config `yaml:"pacer,omitempty" json:"pacer,omitempty"`

	// Engine configures the worker pool and shutdown timeouts.
	Engine engine.Config `yaml:"engine,omitempty" json:"engine,omitempty"`

	// Metrics configures the collector.
	Metrics metrics.CollectorConfig `yaml:"metrics,omitempty" json:"metrics,omitempty"`

	// Backpressure configures the queue-depth signal.
	Backpressure BackpressureConfig `yaml:"backpressure,omitempty" json:"backpressure,omitempty"`

	// Prometheus enables the live scrape endpoint when non-nil.
	Prometheus *metrics.PrometheusExporterConfig `yaml:"prometheus,omitempty" json:"prometheus,omitempty"`

	// Exporters lists the final report outputs. Default: console.
	Exporters []ExporterConfig `yaml:"exporters,omitempty" json:"exporters,omitempty"`

	// Assertions defines SLO thresholds evaluated after the run.
	Assertions report.Assertions `yaml:"assertions,omitempty" json:"assertions,omitempty"`

	// SnapshotTTL bounds the adaptive controller's metrics reads.
	// Default: 100ms.
	SnapshotTTL time.Duration `yaml:"snapshotTTL,omitempty" json:"snapshotTTL,omitempty"`

	// RecentWindow is the trailing window for the recent failure rate.
	// Default: 10s.
	RecentWindow time.Duration `yaml:"recentWindow,omitempty" json:"recentWindow,omitempty"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate validates the whole configuration.
func (c *Config) Validate() error {
	switch c.Task.Type {
	case "synthetic", "http":
	case "":
		return fmt.Errorf("%w: task type is required", ErrInvalidConfig)
	default:
		return fmt.Errorf("%w: unknown task type: %s", ErrInvalidConfig, c.Task.Type)
	}

	if c.Pattern.Type == "" {
		return fmt.Errorf("%w: pattern type is required", ErrInvalidConfig)
	}
	if c.Pattern.Type == "adaptive" {
		if c.Adaptive == nil {
			return fmt.Errorf("%w: adaptive pattern requires an adaptive section", ErrInvalidConfig)
		}
		if err := c.Adaptive.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if err := c.Policy.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	} else {
		if err := c.Pattern.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Backpressure.MaxQueueDepth < 0 {
		return fmt.Errorf("%w: maxQueueDepth cannot be negative", ErrInvalidConfig)
	}

	for i, e := range c.Exporters {
		switch e.Type {
		case "console", "otel":
		case "json", "csv", "html":
			if e.Path == "" {
				return fmt.Errorf("%w: exporter %d (%s) requires a path", ErrInvalidConfig, i, e.Type)
			}
		default:
			return fmt.Errorf("%w: unknown exporter type: %s", ErrInvalidConfig, e.Type)
		}
	}

	return nil
}

// MaxQueueDepth returns the configured backpressure saturation depth.
func (c *Config) MaxQueueDepth() int64 {
	if c.Backpressure.MaxQueueDepth > 0 {
		return c.Backpressure.MaxQueueDepth
	}
	return 1000
}
