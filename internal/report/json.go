package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pulseload/pulseload/internal/metrics"
)

// reportVersion is the JSON/CSV schema version.
const reportVersion = "1.0"

// JSONReport is the serialised form of a completed run. It contains
// everything needed to analyse results with external tooling.
type JSONReport struct {
	Metadata ReportMetadata `json:"metadata"`
	Run      RunContext     `json:"run"`
	Summary  ReportSummary  `json:"summary"`
}

// ReportMetadata describes the report itself.
type ReportMetadata struct {
	Version     string    `json:"version"`
	Title       string    `json:"title"`
	GeneratedAt time.Time `json:"generatedAt"`
	Generator   string    `json:"generator"`
}

// ReportSummary is the snapshot flattened for serialisation. Percentile
// maps are keyed by the quantile string (e.g. "0.95").
type ReportSummary struct {
	TotalExecutions uint64 `json:"totalExecutions"`
	SuccessCount    uint64 `json:"successCount"`
	FailureCount    uint64 `json:"failureCount"`
	SkippedCount    uint64 `json:"skippedCount"`

	SuccessTPS  float64 `json:"successTps"`
	FailureTPS  float64 `json:"failureTps"`
	ResponseTPS float64 `json:"responseTps"`
	FailureRate float64 `json:"failureRate"`

	SuccessLatencyMs map[string]float64 `json:"successLatencyMs"`
	FailureLatencyMs map[string]float64 `json:"failureLatencyMs"`
	QueueWaitMs      map[string]float64 `json:"queueWaitMs"`

	QueueDepth    int64 `json:"queueDepth"`
	ElapsedMillis int64 `json:"elapsedMillis"`
}

// buildSummary flattens a snapshot.
func buildSummary(snap metrics.AggregatedSnapshot) ReportSummary {
	return ReportSummary{
		TotalExecutions:  snap.TotalExecutions,
		SuccessCount:     snap.SuccessCount,
		FailureCount:     snap.FailureCount,
		SkippedCount:     snap.SkippedCount,
		SuccessTPS:       snap.SuccessTPS,
		FailureTPS:       snap.FailureTPS,
		ResponseTPS:      snap.ResponseTPS,
		FailureRate:      snap.FailureRate(),
		SuccessLatencyMs: percentilesMs(snap.SuccessLatency),
		FailureLatencyMs: percentilesMs(snap.FailureLatency),
		QueueWaitMs:      percentilesMs(snap.QueueWaitPercentiles),
		QueueDepth:       snap.QueueDepth,
		ElapsedMillis:    snap.ElapsedMillis,
	}
}

// percentilesMs converts a percentile map to milliseconds keyed by the
// quantile string.
func percentilesMs(ps map[float64]time.Duration) map[string]float64 {
	out := make(map[string]float64, len(ps))
	for q, d := range ps {
		out[fmt.Sprintf("%g", q)] = float64(d.Nanoseconds()) / float64(time.Millisecond)
	}
	return out
}

// JSONExporter writes the report to a file.
//
// Thread Safety: Safe for concurrent use.
type JSONExporter struct {
	path string
}

// NewJSONExporter creates a JSON file exporter.
func NewJSONExporter(path string) (*JSONExporter, error) {
	if path == "" {
		return nil, fmt.Errorf("report: json output path is required")
	}
	return &JSONExporter{path: path}, nil
}

// Name identifies the exporter.
func (e *JSONExporter) Name() string { return "json" }

// Export serialises the snapshot to the configured path.
func (e *JSONExporter) Export(title string, snap metrics.AggregatedSnapshot, runCtx RunContext) error {
	rep := JSONReport{
		Metadata: ReportMetadata{
			Version:     reportVersion,
			Title:       title,
			GeneratedAt: time.Now(),
			Generator:   "pulseload",
		},
		Run:     runCtx,
		Summary: buildSummary(snap),
	}

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal json: %w", err)
	}

	if dir := filepath.Dir(e.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("report: create output dir: %w", err)
		}
	}
	if err := os.WriteFile(e.path, data, 0o644); err != nil {
		return fmt.Errorf("report: write json: %w", err)
	}
	return nil
}

// Compile-time interface check
var _ MetricsExporter = (*JSONExporter)(nil)
