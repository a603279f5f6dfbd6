package report

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/pulseload/pulseload/internal/metrics"
)

// HTMLExporter renders a self-contained report page.
//
// Thread Safety: Safe for concurrent use.
type HTMLExporter struct {
	path string
	tmpl *template.Template
}

// htmlData is the template input.
type htmlData struct {
	Title          string
	Run            RunContext
	Summary        ReportSummary
	Elapsed        time.Duration
	FailureRatePct float64
	GeneratedAt    time.Time
	Percentiles    []htmlPercentileBlock
}

type htmlPercentileBlock struct {
	Label string
	Rows  []htmlPercentileRow
}

type htmlPercentileRow struct {
	Quantile string
	Value    time.Duration
}

// NewHTMLExporter creates an HTML file exporter.
func NewHTMLExporter(path string) (*HTMLExporter, error) {
	if path == "" {
		return nil, fmt.Errorf("report: html output path is required")
	}
	tmpl, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return nil, fmt.Errorf("report: parse html template: %w", err)
	}
	return &HTMLExporter{path: path, tmpl: tmpl}, nil
}

// Name identifies the exporter.
func (e *HTMLExporter) Name() string { return "html" }

// Export renders the snapshot to the configured path.
func (e *HTMLExporter) Export(title string, snap metrics.AggregatedSnapshot, runCtx RunContext) error {
	data := htmlData{
		Title:          title,
		Run:            runCtx,
		Summary:        buildSummary(snap),
		Elapsed:        (time.Duration(snap.ElapsedMillis) * time.Millisecond).Round(time.Millisecond),
		FailureRatePct: snap.FailureRate() * 100,
		GeneratedAt:    time.Now(),
		Percentiles: []htmlPercentileBlock{
			percentileBlock("Success latency", snap.SuccessLatency),
			percentileBlock("Failure latency", snap.FailureLatency),
			percentileBlock("Queue wait", snap.QueueWaitPercentiles),
		},
	}

	if dir := filepath.Dir(e.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("report: create output dir: %w", err)
		}
	}

	f, err := os.Create(e.path)
	if err != nil {
		return fmt.Errorf("report: create html: %w", err)
	}
	defer f.Close()

	if err := e.tmpl.Execute(f, data); err != nil {
		return fmt.Errorf("report: render html: %w", err)
	}
	return nil
}

// percentileBlock builds one template block.
func percentileBlock(label string, ps map[float64]time.Duration) htmlPercentileBlock {
	block := htmlPercentileBlock{Label: label}
	for _, q := range sortedQuantiles(ps) {
		block.Rows = append(block.Rows, htmlPercentileRow{
			Quantile: "p" + formatQuantile(q),
			Value:    ps[q],
		})
	}
	return block
}

// htmlTemplate is the self-contained report page.
const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
  body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem; color: #1a1a2e; }
  h1 { font-size: 1.4rem; }
  table { border-collapse: collapse; margin: 1rem 0; min-width: 24rem; }
  th, td { border: 1px solid #d0d0e0; padding: 0.4rem 0.8rem; text-align: left; }
  th { background: #f0f0f8; }
  .meta { color: #666; font-size: 0.85rem; }
  .fail { color: #b00020; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="meta">run {{.Run.RunID}} · task {{.Run.TaskName}} · pattern {{.Run.PatternName}} · generated {{.GeneratedAt.Format "2006-01-02 15:04:05"}}</p>
<table>
  <tr><th>Duration</th><td>{{.Elapsed}}</td></tr>
  <tr><th>Total executions</th><td>{{.Summary.TotalExecutions}}</td></tr>
  <tr><th>Success</th><td>{{.Summary.SuccessCount}}</td></tr>
  <tr><th>Failure</th><td class="fail">{{.Summary.FailureCount}}</td></tr>
  <tr><th>Skipped</th><td>{{.Summary.SkippedCount}}</td></tr>
  <tr><th>Response TPS</th><td>{{printf "%.2f" .Summary.ResponseTPS}}</td></tr>
  <tr><th>Success TPS</th><td>{{printf "%.2f" .Summary.SuccessTPS}}</td></tr>
  <tr><th>Failure rate</th><td>{{printf "%.2f%%" .FailureRatePct}}</td></tr>
  <tr><th>Queue depth</th><td>{{.Summary.QueueDepth}}</td></tr>
</table>
{{range .Percentiles}}{{if .Rows}}
<h2>{{.Label}}</h2>
<table>
  <tr><th>Quantile</th><th>Latency</th></tr>
  {{range .Rows}}<tr><td>{{.Quantile}}</td><td>{{.Value}}</td></tr>
  {{end}}
</table>
{{end}}{{end}}
</body>
</html>
`

// Compile-time interface check
var _ MetricsExporter = (*HTMLExporter)(nil)
