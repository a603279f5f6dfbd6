package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pulseload/pulseload/internal/metrics"
)

// CSVExporter writes a single-row summary plus one row per quantile of
// each percentile class, suitable for spreadsheet import and run-over-run diffing.
//
// Thread Safety: Safe for concurrent use.
type CSVExporter struct {
	path string
}

// NewCSVExporter creates a CSV file exporter.
func NewCSVExporter(path string) (*CSVExporter, error) {
	if path == "" {
		return nil, fmt.Errorf("report: csv output path is required")
	}
	return &CSVExporter{path: path}, nil
}

// Name identifies the exporter.
func (e *CSVExporter) Name() string { return "csv" }

// Export writes the summary rows.
func (e *CSVExporter) Export(title string, snap metrics.AggregatedSnapshot, runCtx RunContext) error {
	if dir := filepath.Dir(e.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("report: create output dir: %w", err)
		}
	}

	f, err := os.Create(e.path)
	if err != nil {
		return fmt.Errorf("report: create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	rows := [][]string{
		{"run_id", "title", "task", "pattern", "elapsed_ms",
			"total_executions", "success_count", "failure_count", "skipped_count",
			"success_tps", "failure_tps", "response_tps", "failure_rate", "queue_depth"},
		{
			runCtx.RunID, title, runCtx.TaskName, runCtx.PatternName,
			strconv.FormatInt(snap.ElapsedMillis, 10),
			strconv.FormatUint(snap.TotalExecutions, 10),
			strconv.FormatUint(snap.SuccessCount, 10),
			strconv.FormatUint(snap.FailureCount, 10),
			strconv.FormatUint(snap.SkippedCount, 10),
			formatFloat(snap.SuccessTPS),
			formatFloat(snap.FailureTPS),
			formatFloat(snap.ResponseTPS),
			formatFloat(snap.FailureRate()),
			strconv.FormatInt(snap.QueueDepth, 10),
		},
		{},
		{"class", "quantile", "latency_ms"},
	}
	rows = append(rows, percentileRows("success", snap.SuccessLatency)...)
	rows = append(rows, percentileRows("failure", snap.FailureLatency)...)
	rows = append(rows, percentileRows("queue_wait", snap.QueueWaitPercentiles)...)

	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("report: write csv: %w", err)
	}
	w.Flush()
	return w.Error()
}

// percentileRows renders one percentile class as CSV rows.
func percentileRows(class string, ps map[float64]time.Duration) [][]string {
	rows := make([][]string, 0, len(ps))
	for _, q := range sortedQuantiles(ps) {
		rows = append(rows, []string{
			class,
			strconv.FormatFloat(q, 'g', -1, 64),
			formatFloat(float64(ps[q].Nanoseconds()) / float64(time.Millisecond)),
		})
	}
	return rows
}

// formatFloat renders a float with sensible precision for CSV.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// Compile-time interface check
var _ MetricsExporter = (*CSVExporter)(nil)
