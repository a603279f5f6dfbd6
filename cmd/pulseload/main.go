// Package main provides the CLI entry point for the load generator.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pulseload/pulseload/internal/config"
	"github.com/pulseload/pulseload/internal/metrics"
	"github.com/pulseload/pulseload/internal/runner"
)

// Version information (populated at build time)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// exporterFlags collects repeated -exporter values.
type exporterFlags []string

func (e *exporterFlags) String() string { return strings.Join(*e, ",") }

func (e *exporterFlags) Set(value string) error {
	*e = append(*e, value)
	return nil
}

// CLI flags
var (
	configPath   string
	taskType     string
	patternType  string
	runID        string
	duration     time.Duration
	tps          float64
	drainTimeout time.Duration
	forceTimeout time.Duration
	prometheusOn string
	exporters    exporterFlags
	verbose      bool
	validateOnly bool
	showVersion  bool
)

func init() {
	flag.StringVar(&configPath, "config", "", "Path to the YAML configuration file")
	flag.StringVar(&configPath, "c", "", "Path to the YAML configuration file (shorthand)")

	flag.StringVar(&taskType, "task", "", "Override task type (synthetic, http)")
	flag.StringVar(&patternType, "pattern", "", "Override pattern type (static, step, rampup, rampup_sustain, sine, spike, adaptive)")
	flag.StringVar(&runID, "run-id", "", "Run identifier (generated UUID when empty)")

	flag.DurationVar(&duration, "duration", 0, "Override pattern duration (e.g. 30s, 5m)")
	flag.DurationVar(&duration, "d", 0, "Override pattern duration (shorthand)")
	flag.Float64Var(&tps, "tps", 0, "Override baseline TPS")

	flag.DurationVar(&drainTimeout, "shutdown-drain-timeout", 0, "Override worker drain timeout")
	flag.DurationVar(&forceTimeout, "shutdown-force-timeout", 0, "Override forced termination timeout")

	flag.Var(&exporters, "exporter", "Report exporter, repeatable: console, json=PATH, csv=PATH, html=PATH, otel")
	flag.StringVar(&prometheusOn, "prometheus", "", "Prometheus scrape address (e.g. :9090)")

	flag.BoolVar(&verbose, "verbose", false, "Enable verbose output")
	flag.BoolVar(&verbose, "v", false, "Enable verbose output (shorthand)")
	flag.BoolVar(&validateOnly, "validate", false, "Validate configuration and exit")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = printUsage
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `pulseload - Programmable Adaptive Load Generator

USAGE:
    pulseload -config <path> [options]

DESCRIPTION:
    Drives a task at a controlled TPS rate, collects latency and error
    statistics, and can re-tune the rate adaptively from observed feedback.

EXIT CODES:
    0  run completed, all assertions passed
    2  one or more assertions failed
    3  task init failure or invalid configuration
    4  forced shutdown (drain and force timeouts exceeded)

OPTIONS:
`)
	flag.PrintDefaults()
}

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	if showVersion {
		fmt.Printf("pulseload %s (commit %s, built %s)\n", version, gitCommit, buildTime)
		return runner.ExitOK
	}

	if configPath == "" {
		fmt.Fprintln(os.Stderr, "error: -config is required")
		flag.Usage()
		return runner.ExitTaskInitFailure
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return runner.ExitTaskInitFailure
	}
	applyOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return runner.ExitTaskInitFailure
	}

	if validateOnly {
		fmt.Println("configuration is valid")
		return runner.ExitOK
	}

	logger, err := buildLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return runner.ExitTaskInitFailure
	}
	defer func() { _ = logger.Sync() }()

	r, err := runner.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return runner.ExitTaskInitFailure
	}

	code, err := r.Run(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	return code
}

// applyOverrides merges CLI flags into the loaded configuration.
func applyOverrides(cfg *config.Config) {
	if taskType != "" {
		cfg.Task.Type = taskType
	}
	if patternType != "" {
		cfg.Pattern.Type = patternType
	}
	if runID != "" {
		cfg.RunID = runID
	}
	if duration > 0 {
		cfg.Pattern.Duration = duration
		if cfg.Adaptive != nil {
			cfg.Adaptive.Duration = duration
		}
	}
	if tps > 0 {
		cfg.Pattern.TPS = tps
	}
	if drainTimeout > 0 {
		cfg.Engine.Shutdown.DrainTimeout = drainTimeout
	}
	if forceTimeout > 0 {
		cfg.Engine.Shutdown.ForceTimeout = forceTimeout
	}
	if prometheusOn != "" {
		if cfg.Prometheus == nil {
			cfg.Prometheus = &metrics.PrometheusExporterConfig{}
		}
		cfg.Prometheus.Addr = prometheusOn
	}
	if len(exporters) > 0 {
		cfg.Exporters = cfg.Exporters[:0]
		for _, spec := range exporters {
			kind, path, _ := strings.Cut(spec, "=")
			cfg.Exporters = append(cfg.Exporters, config.ExporterConfig{Type: kind, Path: path})
		}
	}
	cfg.Engine.HandleSignals = true
}

// buildLogger creates the process logger.
func buildLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	logCfg := zap.NewProductionConfig()
	logCfg.DisableStacktrace = true
	return logCfg.Build()
}
