package report

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/pulseload/pulseload/internal/metrics"
)

// OTelExporter bridges the final snapshot into an OpenTelemetry
// MeterProvider. Readers (OTLP push, manual collection in tests) are
// supplied by the caller; with none configured the provider is a no-op,
// which keeps the exporter zero-config by default.
//
// Thread Safety: Safe for concurrent use.
type OTelExporter struct {
	provider *sdkmetric.MeterProvider
	meter    metric.Meter
}

// NewOTelExporter creates an exporter over the given readers.
func NewOTelExporter(readers ...sdkmetric.Reader) *OTelExporter {
	opts := make([]sdkmetric.Option, 0, len(readers))
	for _, r := range readers {
		if r != nil {
			opts = append(opts, sdkmetric.WithReader(r))
		}
	}
	provider := sdkmetric.NewMeterProvider(opts...)
	return &OTelExporter{
		provider: provider,
		meter:    provider.Meter("pulseload"),
	}
}

// Name identifies the exporter.
func (e *OTelExporter) Name() string { return "otel" }

// Export records the snapshot's counters, rates and percentiles and
// flushes the provider.
func (e *OTelExporter) Export(title string, snap metrics.AggregatedSnapshot, runCtx RunContext) error {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("run_id", runCtx.RunID),
		attribute.String("task", runCtx.TaskName),
		attribute.String("pattern", runCtx.PatternName),
	)

	executions, err := e.meter.Int64Counter("pulseload.executions",
		metric.WithDescription("Total invocations by outcome status."))
	if err != nil {
		return fmt.Errorf("report: otel instrument: %w", err)
	}
	for status, count := range map[string]uint64{
		"success": snap.SuccessCount,
		"failure": snap.FailureCount,
		"skipped": snap.SkippedCount,
	} {
		executions.Add(ctx, int64(count), attrs,
			metric.WithAttributes(attribute.String("status", status)))
	}

	responseTPS, err := e.meter.Float64Gauge("pulseload.response_tps",
		metric.WithDescription("Observed response TPS over the run."))
	if err != nil {
		return fmt.Errorf("report: otel instrument: %w", err)
	}
	responseTPS.Record(ctx, snap.ResponseTPS, attrs)

	failureRate, err := e.meter.Float64Gauge("pulseload.failure_rate",
		metric.WithDescription("Failure fraction over the run."))
	if err != nil {
		return fmt.Errorf("report: otel instrument: %w", err)
	}
	failureRate.Record(ctx, snap.FailureRate(), attrs)

	if err := e.recordPercentiles(ctx, "pulseload.success_latency_ms", snap.SuccessLatency, attrs); err != nil {
		return err
	}
	if err := e.recordPercentiles(ctx, "pulseload.failure_latency_ms", snap.FailureLatency, attrs); err != nil {
		return err
	}
	if err := e.recordPercentiles(ctx, "pulseload.queue_wait_ms", snap.QueueWaitPercentiles, attrs); err != nil {
		return err
	}

	if err := e.provider.ForceFlush(ctx); err != nil {
		return fmt.Errorf("report: otel flush: %w", err)
	}
	return nil
}

// recordPercentiles records one percentile class as a gauge per quantile.
func (e *OTelExporter) recordPercentiles(ctx context.Context, name string, ps map[float64]time.Duration, attrs metric.MeasurementOption) error {
	if len(ps) == 0 {
		return nil
	}
	gauge, err := e.meter.Float64Gauge(name)
	if err != nil {
		return fmt.Errorf("report: otel instrument: %w", err)
	}
	for q, d := range ps {
		gauge.Record(ctx, float64(d.Nanoseconds())/float64(time.Millisecond), attrs,
			metric.WithAttributes(attribute.Float64("quantile", q)))
	}
	return nil
}

// Shutdown flushes and releases the provider.
func (e *OTelExporter) Shutdown(ctx context.Context) error {
	return e.provider.Shutdown(ctx)
}

// Compile-time interface check
var _ MetricsExporter = (*OTelExporter)(nil)
