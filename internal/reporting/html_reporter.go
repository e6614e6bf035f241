// internal/reporting/html_reporter.go
package reporting

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/xkilldash9x/chatprobe-cli/api/schemas"
)

// HTMLReporter buffers results and renders a single-file HTML report when
// the run is closed.
type HTMLReporter struct {
	writer  io.WriteCloser
	results []schemas.CheckResult
	closed  bool
}

// NewHTMLReporter creates a reporter that takes ownership of the writer.
func NewHTMLReporter(writer io.WriteCloser) *HTMLReporter {
	return &HTMLReporter{writer: writer}
}

// Write buffers a check result for the final render.
func (h *HTMLReporter) Write(result schemas.CheckResult) error {
	if h.closed {
		return fmt.Errorf("reporter is closed")
	}
	h.results = append(h.results, result)
	return nil
}

// Close renders the report and closes the writer.
func (h *HTMLReporter) Close(finished schemas.RunSummary) error {
	if h.closed {
		return nil
	}
	h.closed = true

	if len(finished.Results) == 0 {
		finished.Results = h.results
	}
	passed, failed, skipped := finished.Counts()

	data := htmlReportData{
		Summary:  finished,
		Passed:   passed,
		Failed:   failed,
		Skipped:  skipped,
		Duration: finished.FinishedAt.Sub(finished.StartedAt).Round(time.Millisecond),
	}

	if err := reportTemplate.Execute(h.writer, data); err != nil {
		h.writer.Close()
		return fmt.Errorf("failed to render HTML report: %w", err)
	}
	return h.writer.Close()
}

type htmlReportData struct {
	Summary  schemas.RunSummary
	Passed   int
	Failed   int
	Skipped  int
	Duration time.Duration
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"round": func(d time.Duration) time.Duration { return d.Round(time.Millisecond) },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>chatprobe report — {{.Summary.Target}}</title>
<style>
  body { font-family: system-ui, sans-serif; margin: 2rem; color: #1a1a1a; }
  h1 { font-size: 1.4rem; }
  .meta { color: #555; margin-bottom: 1.5rem; }
  .counts span { display: inline-block; padding: 0.2rem 0.7rem; border-radius: 4px; margin-right: 0.5rem; color: #fff; }
  .passed { background: #2e7d32; }
  .failed { background: #c62828; }
  .skipped { background: #757575; }
  table { border-collapse: collapse; width: 100%; margin-top: 1.5rem; }
  th, td { text-align: left; padding: 0.45rem 0.8rem; border-bottom: 1px solid #ddd; vertical-align: top; }
  tr.failed td:first-child { border-left: 3px solid #c62828; }
  tr.passed td:first-child { border-left: 3px solid #2e7d32; }
  tr.skipped td:first-child { border-left: 3px solid #757575; }
  td.detail { color: #555; white-space: pre-wrap; max-width: 40rem; }
  .cat { font-size: 0.8rem; color: #777; text-transform: uppercase; }
</style>
</head>
<body>
<h1>chatprobe report</h1>
<div class="meta">
  Target: <strong>{{.Summary.Target}}</strong><br>
  Run: {{.Summary.RunID}}<br>
  Started: {{.Summary.StartedAt.Format "2006-01-02 15:04:05 MST"}} · Duration: {{.Duration}}
</div>
<div class="counts">
  <span class="passed">{{.Passed}} passed</span>
  <span class="failed">{{.Failed}} failed</span>
  <span class="skipped">{{.Skipped}} skipped</span>
</div>
<table>
  <tr><th>Check</th><th>Status</th><th>Duration</th><th>Detail</th></tr>
  {{range .Summary.Results}}
  <tr class="{{.Status}}">
    <td><span class="cat">{{.Category}}</span><br>{{.Name}}</td>
    <td>{{.Status}}</td>
    <td>{{round .Duration}}</td>
    <td class="detail">{{.Detail}}{{if .Screenshot}}<br><a href="{{.Screenshot}}">screenshot</a>{{end}}</td>
  </tr>
  {{end}}
</table>
</body>
</html>
`))
