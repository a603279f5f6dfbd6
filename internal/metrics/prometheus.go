package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pulseload/pulseload/internal/task"
)

// Prometheus metric names.
const (
	MetricExecutionsTotal       = "pulseload_executions_total"
	MetricSuccessLatencySeconds = "pulseload_success_latency_seconds"
	MetricFailureLatencySeconds = "pulseload_failure_latency_seconds"
	MetricQueueWaitSeconds      = "pulseload_queue_wait_seconds"
	MetricQueueDepth            = "pulseload_queue_depth"
	MetricEngineState           = "pulseload_engine_state"
	MetricEngineUptimeSeconds   = "pulseload_engine_uptime_seconds"
	MetricAdaptivePhase         = "pulseload_adaptive_phase"
	MetricAdaptiveCurrentTPS    = "pulseload_adaptive_current_tps"
	MetricAdaptiveTransitions   = "pulseload_adaptive_phase_transitions_total"
)

// PrometheusExporterConfig holds configuration for the live Prometheus
// endpoint.
type PrometheusExporterConfig struct {
	// Addr is the listen address, e.g. ":9090". Default: ":9090".
	Addr string `yaml:"addr,omitempty" json:"addr,omitempty"`

	// Path is the scrape path. Default: "/metrics".
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// RunID tags every metric of this run.
	RunID string `yaml:"runID,omitempty" json:"runID,omitempty"`

	// HistogramBuckets are the latency histogram buckets in seconds.
	// Default: prometheus.DefBuckets.
	HistogramBuckets []float64 `yaml:"histogramBuckets,omitempty" json:"histogramBuckets,omitempty"`
}

// PrometheusExporter exposes live run metrics on an HTTP scrape endpoint.
// Per-invocation observations arrive through Observe; engine and adaptive
// gauges are bound as closures so scrapes always see current values.
//
// Thread Safety: Safe for concurrent use.
type PrometheusExporter struct {
	mu     sync.Mutex
	config PrometheusExporterConfig

	registry *prometheus.Registry

	executionsTotal *prometheus.CounterVec
	successLatency  prometheus.Histogram
	failureLatency  prometheus.Histogram
	queueWait       prometheus.Histogram

	server *http.Server
	ln     net.Listener
}

// NewPrometheusExporter creates an exporter with its own registry so the
// run's metrics never collide with process defaults.
func NewPrometheusExporter(config PrometheusExporterConfig) *PrometheusExporter {
	if config.Addr == "" {
		config.Addr = ":9090"
	}
	if config.Path == "" {
		config.Path = "/metrics"
	}
	if len(config.HistogramBuckets) == 0 {
		config.HistogramBuckets = prometheus.DefBuckets
	}

	e := &PrometheusExporter{
		config:   config,
		registry: prometheus.NewRegistry(),
	}
	e.initMetrics()
	return e
}

// initMetrics registers the per-invocation instruments.
func (e *PrometheusExporter) initMetrics() {
	constLabels := prometheus.Labels{"run_id": e.config.RunID}

	e.executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        MetricExecutionsTotal,
			Help:        "Total invocations by outcome status.",
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)

	e.successLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        MetricSuccessLatencySeconds,
		Help:        "Execution latency of successful invocations in seconds.",
		Buckets:     e.config.HistogramBuckets,
		ConstLabels: constLabels,
	})

	e.failureLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        MetricFailureLatencySeconds,
		Help:        "Execution latency of failed invocations in seconds.",
		Buckets:     e.config.HistogramBuckets,
		ConstLabels: constLabels,
	})

	e.queueWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        MetricQueueWaitSeconds,
		Help:        "Submit-to-start wait in seconds.",
		Buckets:     e.config.HistogramBuckets,
		ConstLabels: constLabels,
	})

	e.registry.MustRegister(e.executionsTotal, e.successLatency, e.failureLatency, e.queueWait)
}

// Observe records one execution record.
func (e *PrometheusExporter) Observe(rec task.ExecutionRecord) {
	e.executionsTotal.WithLabelValues(rec.Outcome.Status.String()).Inc()

	latencySec := float64(rec.LatencyNanos()) / float64(time.Second)
	switch rec.Outcome.Status {
	case task.StatusSuccess:
		e.successLatency.Observe(latencySec)
	case task.StatusFailure:
		e.failureLatency.Observe(latencySec)
	}

	e.queueWait.Observe(float64(rec.QueueWaitNanos()) / float64(time.Second))
}

// BindEngineGauges registers the engine-side gauges: lifecycle state
// (0=stopped, 1=running, 2=stopping), uptime and queue depth.
func (e *PrometheusExporter) BindEngineGauges(stateFn func() float64, uptimeSecondsFn func() float64, queueDepthFn func() int64) {
	constLabels := prometheus.Labels{"run_id": e.config.RunID}

	e.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        MetricEngineState,
			Help:        "Engine lifecycle state (0=stopped, 1=running, 2=stopping).",
			ConstLabels: constLabels,
		}, stateFn),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        MetricEngineUptimeSeconds,
			Help:        "Engine uptime in seconds.",
			ConstLabels: constLabels,
		}, uptimeSecondsFn),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        MetricQueueDepth,
			Help:        "Released-minus-completed invocation gauge.",
			ConstLabels: constLabels,
		}, func() float64 { return float64(queueDepthFn()) }),
	)
}

// BindAdaptiveGauges registers the adaptive controller gauges: current
// phase (0=ramp_up, 1=ramp_down, 2=sustain), current TPS and the phase
// transition counter.
func (e *PrometheusExporter) BindAdaptiveGauges(phaseFn, tpsFn, transitionsFn func() float64) {
	constLabels := prometheus.Labels{"run_id": e.config.RunID}

	e.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        MetricAdaptivePhase,
			Help:        "Adaptive controller phase (0=ramp_up, 1=ramp_down, 2=sustain).",
			ConstLabels: constLabels,
		}, phaseFn),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        MetricAdaptiveCurrentTPS,
			Help:        "Adaptive controller current target TPS.",
			ConstLabels: constLabels,
		}, tpsFn),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        MetricAdaptiveTransitions,
			Help:        "Adaptive controller phase transitions.",
			ConstLabels: constLabels,
		}, transitionsFn),
	)
}

// Registry exposes the underlying registry, mainly for tests.
func (e *PrometheusExporter) Registry() *prometheus.Registry {
	return e.registry
}

// Start begins serving the scrape endpoint.
func (e *PrometheusExporter) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.server != nil {
		return errors.New("metrics: prometheus exporter already started")
	}

	ln, err := net.Listen("tcp", e.config.Addr)
	if err != nil {
		return fmt.Errorf("metrics: listen %s: %w", e.config.Addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle(e.config.Path, promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	e.ln = ln
	e.server = server

	go func() {
		_ = server.Serve(ln)
	}()
	return nil
}

// Addr returns the bound listen address, empty before Start.
func (e *PrometheusExporter) Addr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ln == nil {
		return ""
	}
	return e.ln.Addr().String()
}

// Stop shuts the scrape endpoint down.
func (e *PrometheusExporter) Stop(ctx context.Context) error {
	e.mu.Lock()
	server := e.server
	e.server = nil
	e.ln = nil
	e.mu.Unlock()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}
