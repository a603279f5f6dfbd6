// Package report renders final run snapshots to the configured outputs:
// console, JSON, CSV, HTML and OpenTelemetry. It also evaluates SLO
// assertions against the snapshot.
package report

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pulseload/pulseload/internal/metrics"
)

// RunContext carries run identity into exporter outputs.
type RunContext struct {
	// RunID uniquely identifies the run; every exported artifact and
	// metric is tagged with it.
	RunID string `json:"runId"`

	// TaskName identifies the workload.
	TaskName string `json:"taskName"`

	// PatternName identifies the load pattern.
	PatternName string `json:"patternName"`

	// StartedAt is the wall-clock start of the run.
	StartedAt time.Time `json:"startedAt"`
}

// MetricsExporter renders one final snapshot. Exporters must not mutate
// the snapshot. One call per completed run.
type MetricsExporter interface {
	// Export renders the snapshot under the given title.
	Export(title string, snapshot metrics.AggregatedSnapshot, runCtx RunContext) error

	// Name identifies the exporter in logs.
	Name() string
}

// Composite fans an export out to several exporters. A failing exporter
// is logged and the rest are still called; the joined error is returned.
//
// Thread Safety: Safe for concurrent use (read-only after creation).
type Composite struct {
	exporters []MetricsExporter
	logger    *zap.Logger
}

// NewComposite combines the given exporters. Nil entries are ignored.
func NewComposite(logger *zap.Logger, exporters ...MetricsExporter) *Composite {
	if logger == nil {
		logger = zap.NewNop()
	}
	kept := make([]MetricsExporter, 0, len(exporters))
	for _, e := range exporters {
		if e != nil {
			kept = append(kept, e)
		}
	}
	return &Composite{exporters: kept, logger: logger}
}

// Export calls every exporter, collecting failures.
func (c *Composite) Export(title string, snapshot metrics.AggregatedSnapshot, runCtx RunContext) error {
	var errs []error
	for _, e := range c.exporters {
		if err := c.exportOne(e, title, snapshot, runCtx); err != nil {
			c.logger.Warn("exporter failed", zap.String("exporter", e.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Name identifies the composite in logs.
func (c *Composite) Name() string { return "composite" }

// exportOne shields the sequence from a panicking exporter.
func (c *Composite) exportOne(e MetricsExporter, title string, snapshot metrics.AggregatedSnapshot, runCtx RunContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return e.Export(title, snapshot, runCtx)
}

// Compile-time interface check
var _ MetricsExporter = (*Composite)(nil)
