// Package runner assembles the engine, pattern, metrics and exporters from
// a configuration and drives a complete run.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pulseload/pulseload/internal/adaptive"
	"github.com/pulseload/pulseload/internal/config"
	"github.com/pulseload/pulseload/internal/engine"
	"github.com/pulseload/pulseload/internal/metrics"
	"github.com/pulseload/pulseload/internal/pacer"
	"github.com/pulseload/pulseload/internal/pattern"
	"github.com/pulseload/pulseload/internal/report"
	"github.com/pulseload/pulseload/internal/shutdown"
	"github.com/pulseload/pulseload/internal/task"
	"github.com/pulseload/pulseload/internal/tasks"
)

// Exit codes of a completed run.
const (
	// ExitOK means the run completed and all assertions passed.
	ExitOK = report.ExitCodeSuccess
	// ExitAssertionFailure means one or more assertions failed.
	ExitAssertionFailure = report.ExitCodeAssertionFailure
	// ExitTaskInitFailure means the task's Init failed; the engine never
	// entered the running state.
	ExitTaskInitFailure = 3
	// ExitForcedShutdown means the drain and force timeouts were both
	// exceeded.
	ExitForcedShutdown = 4
)

// Runner wires a configuration into a runnable load generation pipeline.
type Runner struct {
	cfg    *config.Config
	logger *zap.Logger
	runID  string
}

// New creates a runner for the validated configuration.
func New(cfg *config.Config, logger *zap.Logger) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("runner: config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	return &Runner{cfg: cfg, logger: logger, runID: runID}, nil
}

// RunID returns the effective run identifier.
func (r *Runner) RunID() string { return r.runID }

// Run executes the configured load test and returns the process exit code.
func (r *Runner) Run(ctx context.Context) (int, error) {
	tsk, err := r.buildTask()
	if err != nil {
		return ExitTaskInitFailure, err
	}

	loadPattern, controller, err := r.buildPattern()
	if err != nil {
		return ExitTaskInitFailure, err
	}

	pace, err := pacer.New(r.cfg.Pacer)
	if err != nil {
		return ExitTaskInitFailure, err
	}

	collector := metrics.NewCollector(r.cfg.Metrics)

	eng, err := engine.New(r.cfg.Engine, tsk, loadPattern, pace, collector, r.logger)
	if err != nil {
		return ExitTaskInitFailure, err
	}
	defer eng.Close()

	// Close the adaptive feedback loop through the cached facade: the
	// collector knows nothing about the controller, the controller reads
	// through the narrow provider wired here.
	if controller != nil {
		backpressure := adaptive.NewCompositeProvider(
			adaptive.NewQueueDepthProvider(eng.QueueDepth, r.cfg.MaxQueueDepth()),
		)
		provider := adaptive.NewCachedSnapshotProvider(collector, backpressure, r.cfg.SnapshotTTL, r.cfg.RecentWindow)
		controller.Bind(provider)
		controller.Subscribe(r.loggingListener())
	}

	promExporter, err := r.startPrometheus(eng, controller)
	if err != nil {
		return ExitTaskInitFailure, err
	}

	runCtx := report.RunContext{
		RunID:       r.runID,
		TaskName:    tsk.Name(),
		PatternName: loadPattern.Name(),
		StartedAt:   time.Now(),
	}

	snap, runErr := eng.Run(ctx)

	if promExporter != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = promExporter.Stop(stopCtx)
		cancel()
	}

	if runErr != nil {
		var initErr *engine.TaskInitError
		if errors.As(runErr, &initErr) {
			return ExitTaskInitFailure, runErr
		}
	}

	if snap != nil {
		if err := r.export(*snap, runCtx); err != nil {
			r.logger.Warn("export failed", zap.Error(err))
		}
	}

	if runErr != nil && errors.Is(runErr, shutdown.ErrShutdownTimeout) {
		return ExitForcedShutdown, runErr
	}

	if snap != nil && !r.cfg.Assertions.Empty() {
		results := r.cfg.Assertions.Evaluate(*snap)
		fmt.Fprintln(os.Stdout, results.Summary())
		for _, failed := range results.FailedResults() {
			fmt.Fprintf(os.Stdout, "  FAILED %s: expected %s, got %s\n",
				failed.Name, failed.Expected, failed.Actual)
		}
		if !results.AllPassed {
			return ExitAssertionFailure, nil
		}
	}

	return ExitOK, runErr
}

// buildTask instantiates the configured workload.
func (r *Runner) buildTask() (task.Task, error) {
	switch r.cfg.Task.Type {
	case "synthetic":
		return tasks.NewSyntheticTask(r.cfg.Task.Synthetic)
	case "http":
		return tasks.NewHTTPTask(r.cfg.Task.HTTP)
	default:
		return nil, fmt.Errorf("runner: unknown task type: %s", r.cfg.Task.Type)
	}
}

// buildPattern instantiates the configured load pattern. For the adaptive
// type the controller is returned as well so the caller can wire its
// feedback provider.
func (r *Runner) buildPattern() (pattern.LoadPattern, *adaptive.Controller, error) {
	if r.cfg.Pattern.Type == "adaptive" {
		controller, err := adaptive.NewController(*r.cfg.Adaptive, r.cfg.Policy.WithDefaults(), r.logger)
		if err != nil {
			return nil, nil, err
		}
		return controller, controller, nil
	}

	p, err := pattern.New(r.cfg.Pattern)
	if err != nil {
		return nil, nil, err
	}
	return p, nil, nil
}

// startPrometheus starts the live scrape endpoint when configured.
func (r *Runner) startPrometheus(eng *engine.Engine, controller *adaptive.Controller) (*metrics.PrometheusExporter, error) {
	if r.cfg.Prometheus == nil {
		return nil, nil
	}

	promCfg := *r.cfg.Prometheus
	promCfg.RunID = r.runID
	exporter := metrics.NewPrometheusExporter(promCfg)

	eng.OnRecord(exporter.Observe)
	exporter.BindEngineGauges(
		func() float64 { return float64(eng.State()) },
		func() float64 { return float64(eng.ElapsedMs()) / 1000 },
		eng.QueueDepth,
	)
	if controller != nil {
		exporter.BindAdaptiveGauges(
			func() float64 { return float64(controller.State().Phase) },
			func() float64 { return controller.State().CurrentTPS },
			func() float64 { return float64(controller.State().TransitionCount) },
		)
	}

	if err := exporter.Start(); err != nil {
		return nil, err
	}
	r.logger.Info("prometheus endpoint started", zap.String("addr", exporter.Addr()))
	return exporter, nil
}

// export renders the final snapshot through the configured exporters.
func (r *Runner) export(snap metrics.AggregatedSnapshot, runCtx report.RunContext) error {
	exporters := make([]report.MetricsExporter, 0, len(r.cfg.Exporters)+1)

	configs := r.cfg.Exporters
	if len(configs) == 0 {
		configs = []config.ExporterConfig{{Type: "console"}}
	}

	for _, ec := range configs {
		var (
			exporter report.MetricsExporter
			err      error
		)
		switch ec.Type {
		case "console":
			exporter = report.NewConsoleExporter(nil)
		case "json":
			exporter, err = report.NewJSONExporter(ec.Path)
		case "csv":
			exporter, err = report.NewCSVExporter(ec.Path)
		case "html":
			exporter, err = report.NewHTMLExporter(ec.Path)
		case "otel":
			exporter = report.NewOTelExporter()
		}
		if err != nil {
			r.logger.Warn("skipping exporter", zap.String("type", ec.Type), zap.Error(err))
			continue
		}
		exporters = append(exporters, exporter)
	}

	title := r.cfg.Name
	if title == "" {
		title = "Load Test Results"
	}
	return report.NewComposite(r.logger, exporters...).Export(title, snap, runCtx)
}

// loggingListener logs adaptive controller events.
func (r *Runner) loggingListener() adaptive.Listener {
	return adaptive.ListenerFuncs{
		PhaseTransition: func(from, to adaptive.Phase, tps float64, reason string) {
			r.logger.Info("adaptive phase transition",
				zap.Stringer("from", from), zap.Stringer("to", to),
				zap.Float64("tps", tps), zap.String("reason", reason))
		},
		TPSChange: func(previous, current float64, phase adaptive.Phase) {
			r.logger.Debug("adaptive tps change",
				zap.Float64("previous", previous), zap.Float64("current", current),
				zap.Stringer("phase", phase))
		},
		StabilityDetected: func(tps float64) {
			r.logger.Info("adaptive stability detected", zap.Float64("tps", tps))
		},
		Recovery: func(lastKnownGood, recovery float64) {
			r.logger.Info("adaptive recovery",
				zap.Float64("lastKnownGoodTPS", lastKnownGood),
				zap.Float64("recoveryTPS", recovery))
		},
	}
}
