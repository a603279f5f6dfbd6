package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pulseload/pulseload/internal/adaptive"
	"github.com/pulseload/pulseload/internal/config"
	"github.com/pulseload/pulseload/internal/metrics"
	"github.com/pulseload/pulseload/internal/pattern"
	"github.com/pulseload/pulseload/internal/report"
	"github.com/pulseload/pulseload/internal/tasks"
)

func baseConfig() *config.Config {
	return &config.Config{
		Name: "runner test",
		Task: config.TaskConfig{Type: "synthetic"},
		Pattern: pattern.Config{
			Type:     "static",
			TPS:      100,
			Duration: 400 * time.Millisecond,
		},
	}
}

func TestRunnerGeneratesRunID(t *testing.T) {
	r, err := New(baseConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.NotEmpty(t, r.RunID())

	cfg := baseConfig()
	cfg.RunID = "explicit-id"
	r, err = New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "explicit-id", r.RunID())
}

func TestRunnerStaticRun(t *testing.T) {
	jsonPath := filepath.Join(t.TempDir(), "report.json")

	cfg := baseConfig()
	cfg.Exporters = []config.ExporterConfig{{Type: "json", Path: jsonPath}}

	r, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	code, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ExitOK, code)

	_, err = os.Stat(jsonPath)
	assert.NoError(t, err, "json report written")
}

func TestRunnerAssertionFailure(t *testing.T) {
	absurd := uint64(1 << 40)
	cfg := baseConfig()
	cfg.Assertions = report.Assertions{MinTotalExecutions: &absurd}

	r, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	code, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ExitAssertionFailure, code)
}

func TestRunnerTaskInitFailure(t *testing.T) {
	cfg := baseConfig()
	cfg.Task.Synthetic = tasks.SyntheticConfig{InitError: os.ErrPermission}

	r, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	code, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, ExitTaskInitFailure, code)
}

func TestRunnerUnknownTask(t *testing.T) {
	cfg := baseConfig()
	cfg.Task.Type = "quantum"

	r, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	code, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, ExitTaskInitFailure, code)
}

func TestRunnerAdaptiveRun(t *testing.T) {
	cfg := baseConfig()
	cfg.Pattern = pattern.Config{Type: "adaptive"}
	cfg.Adaptive = &adaptive.Config{
		InitialTPS:    50,
		MinTPS:        10,
		MaxTPS:        200,
		RampIncrement: 50,
		RampDecrement: 50,
		RampInterval:  100 * time.Millisecond,
		Duration:      600 * time.Millisecond,
	}

	r, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	code, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ExitOK, code)
}

func TestRunnerWithPrometheus(t *testing.T) {
	cfg := baseConfig()
	cfg.Prometheus = &metrics.PrometheusExporterConfig{Addr: "127.0.0.1:0"}

	r, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	code, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ExitOK, code)
}
