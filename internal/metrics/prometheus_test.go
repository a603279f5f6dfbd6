package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseload/pulseload/internal/task"
)

// findFamily returns the metric family with the given name, or nil.
func findFamily(families []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

// labelValue returns the value of the named label on a metric.
func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func TestPrometheusExporterObserve(t *testing.T) {
	e := NewPrometheusExporter(PrometheusExporterConfig{RunID: "run-123"})

	e.Observe(record(0, task.Success(nil), 5*time.Millisecond, time.Millisecond))
	e.Observe(record(1, task.Success(nil), 5*time.Millisecond, time.Millisecond))
	e.Observe(record(2, task.Failure(errors.New("boom")), 20*time.Millisecond, time.Millisecond))
	e.Observe(record(3, task.Skipped("off"), 0, 0))

	families, err := e.Registry().Gather()
	require.NoError(t, err)

	executions := findFamily(families, MetricExecutionsTotal)
	require.NotNil(t, executions)

	byStatus := map[string]float64{}
	for _, m := range executions.GetMetric() {
		assert.Equal(t, "run-123", labelValue(m, "run_id"), "metrics are tagged with the run id")
		byStatus[labelValue(m, "status")] = m.GetCounter().GetValue()
	}
	assert.Equal(t, 2.0, byStatus["success"])
	assert.Equal(t, 1.0, byStatus["failure"])
	assert.Equal(t, 1.0, byStatus["skipped"])

	successHist := findFamily(families, MetricSuccessLatencySeconds)
	require.NotNil(t, successHist)
	assert.Equal(t, uint64(2), successHist.GetMetric()[0].GetHistogram().GetSampleCount())

	queueWait := findFamily(families, MetricQueueWaitSeconds)
	require.NotNil(t, queueWait)
	assert.Equal(t, uint64(4), queueWait.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestPrometheusExporterGauges(t *testing.T) {
	e := NewPrometheusExporter(PrometheusExporterConfig{RunID: "run-456"})

	e.BindEngineGauges(
		func() float64 { return 1 },
		func() float64 { return 12.5 },
		func() int64 { return 7 },
	)
	e.BindAdaptiveGauges(
		func() float64 { return 2 },
		func() float64 { return 350 },
		func() float64 { return 4 },
	)

	families, err := e.Registry().Gather()
	require.NoError(t, err)

	state := findFamily(families, MetricEngineState)
	require.NotNil(t, state)
	assert.Equal(t, 1.0, state.GetMetric()[0].GetGauge().GetValue())

	depth := findFamily(families, MetricQueueDepth)
	require.NotNil(t, depth)
	assert.Equal(t, 7.0, depth.GetMetric()[0].GetGauge().GetValue())

	phase := findFamily(families, MetricAdaptivePhase)
	require.NotNil(t, phase)
	assert.Equal(t, 2.0, phase.GetMetric()[0].GetGauge().GetValue())

	tps := findFamily(families, MetricAdaptiveCurrentTPS)
	require.NotNil(t, tps)
	assert.Equal(t, 350.0, tps.GetMetric()[0].GetGauge().GetValue())

	transitions := findFamily(families, MetricAdaptiveTransitions)
	require.NotNil(t, transitions)
	assert.Equal(t, 4.0, transitions.GetMetric()[0].GetCounter().GetValue())
}

func TestPrometheusExporterServe(t *testing.T) {
	e := NewPrometheusExporter(PrometheusExporterConfig{Addr: "127.0.0.1:0", RunID: "run-789"})

	require.NoError(t, e.Start())
	assert.NotEmpty(t, e.Addr())
	assert.Error(t, e.Start(), "double start is rejected")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, e.Stop(ctx))
	require.NoError(t, e.Stop(ctx), "stop is idempotent")
}
