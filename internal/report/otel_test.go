package report

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// collectMetrics gathers everything the exporter recorded.
func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestOTelExporter(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	e := NewOTelExporter(reader)
	defer func() { _ = e.Shutdown(context.Background()) }()

	require.NoError(t, e.Export("OTel Run", sampleSnapshot(), sampleRunContext()))

	recorded := collectMetrics(t, reader)
	assert.Contains(t, recorded, "pulseload.executions")
	assert.Contains(t, recorded, "pulseload.response_tps")
	assert.Contains(t, recorded, "pulseload.failure_rate")
	assert.Contains(t, recorded, "pulseload.success_latency_ms")
	assert.Contains(t, recorded, "pulseload.queue_wait_ms")

	executions, ok := recorded["pulseload.executions"].Data.(metricdata.Sum[int64])
	require.True(t, ok)

	var total int64
	for _, dp := range executions.DataPoints {
		total += dp.Value
		runID, _ := dp.Attributes.Value("run_id")
		assert.Equal(t, "run-abc", runID.AsString())
	}
	assert.Equal(t, int64(1000), total)
}

func TestOTelExporterEmptyPercentiles(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	e := NewOTelExporter(reader)
	defer func() { _ = e.Shutdown(context.Background()) }()

	snap := sampleSnapshot()
	snap.FailureLatency = nil
	require.NoError(t, e.Export("OTel Run", snap, sampleRunContext()))

	recorded := collectMetrics(t, reader)
	assert.NotContains(t, recorded, "pulseload.failure_latency_ms")
}
