package report

import (
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/pulseload/pulseload/internal/metrics"
)

// ConsoleExporter prints a boxed summary of the final snapshot.
//
// Thread Safety: Safe for concurrent use.
type ConsoleExporter struct {
	writer io.Writer
}

// NewConsoleExporter creates a console exporter. A nil writer selects
// stdout.
func NewConsoleExporter(writer io.Writer) *ConsoleExporter {
	if writer == nil {
		writer = os.Stdout
	}
	return &ConsoleExporter{writer: writer}
}

// Name identifies the exporter.
func (e *ConsoleExporter) Name() string { return "console" }

// Export prints the summary box.
func (e *ConsoleExporter) Export(title string, snap metrics.AggregatedSnapshot, runCtx RunContext) error {
	w := e.writer

	fmt.Fprintln(w, "╔════════════════════════════════════════════════════════════╗")
	fmt.Fprintf(w, "║  %-58s ║\n", truncate(title, 58))
	fmt.Fprintln(w, "╠════════════════════════════════════════════════════════════╣")
	fmt.Fprintf(w, "║  Run ID:          %-41s ║\n", truncate(runCtx.RunID, 41))
	fmt.Fprintf(w, "║  Task:            %-41s ║\n", truncate(runCtx.TaskName, 41))
	fmt.Fprintf(w, "║  Pattern:         %-41s ║\n", truncate(runCtx.PatternName, 41))
	fmt.Fprintf(w, "║  Duration:        %-41s ║\n", (time.Duration(snap.ElapsedMillis) * time.Millisecond).Round(time.Millisecond))
	fmt.Fprintln(w, "╠════════════════════════════════════════════════════════════╣")
	fmt.Fprintf(w, "║  Executions:      %-41d ║\n", snap.TotalExecutions)
	fmt.Fprintf(w, "║  Success:         %-41d ║\n", snap.SuccessCount)
	fmt.Fprintf(w, "║  Failure:         %-41d ║\n", snap.FailureCount)
	fmt.Fprintf(w, "║  Skipped:         %-41d ║\n", snap.SkippedCount)
	fmt.Fprintf(w, "║  Response TPS:    %-41.2f ║\n", snap.ResponseTPS)
	fmt.Fprintf(w, "║  Success TPS:     %-41.2f ║\n", snap.SuccessTPS)
	fmt.Fprintf(w, "║  Failure rate:    %-40.2f%% ║\n", snap.FailureRate()*100)
	fmt.Fprintf(w, "║  Queue depth:     %-41d ║\n", snap.QueueDepth)

	e.printPercentiles(w, "Success latency", snap.SuccessLatency)
	e.printPercentiles(w, "Failure latency", snap.FailureLatency)
	e.printPercentiles(w, "Queue wait", snap.QueueWaitPercentiles)

	fmt.Fprintln(w, "╚════════════════════════════════════════════════════════════╝")
	return nil
}

// printPercentiles prints one percentile block, skipping empty sets.
func (e *ConsoleExporter) printPercentiles(w io.Writer, label string, ps map[float64]time.Duration) {
	if len(ps) == 0 {
		return
	}
	fmt.Fprintln(w, "╠════════════════════════════════════════════════════════════╣")
	fmt.Fprintf(w, "║  %-58s ║\n", label)
	for _, q := range sortedQuantiles(ps) {
		fmt.Fprintf(w, "║    p%-5s        %-42s ║\n", formatQuantile(q), ps[q])
	}
}

// sortedQuantiles returns the map keys in ascending order.
func sortedQuantiles(ps map[float64]time.Duration) []float64 {
	qs := make([]float64, 0, len(ps))
	for q := range ps {
		qs = append(qs, q)
	}
	slices.Sort(qs)
	return qs
}

// formatQuantile renders 0.95 as "95" and 0.999 as "99.9".
func formatQuantile(q float64) string {
	pct := q * 100
	if pct == float64(int(pct)) {
		return fmt.Sprintf("%d", int(pct))
	}
	return fmt.Sprintf("%.1f", pct)
}

// truncate shortens a string to max runes.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

// Compile-time interface check
var _ MetricsExporter = (*ConsoleExporter)(nil)
