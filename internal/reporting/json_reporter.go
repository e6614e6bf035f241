// internal/reporting/json_reporter.go
package reporting

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/chatprobe-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONReporter buffers results and emits the full run summary as one
// indented JSON document on Close.
type JSONReporter struct {
	writer  io.WriteCloser
	results []schemas.CheckResult
	closed  bool
}

// NewJSONReporter creates a reporter that takes ownership of the writer.
func NewJSONReporter(writer io.WriteCloser) *JSONReporter {
	return &JSONReporter{writer: writer}
}

// Write buffers a check result.
func (j *JSONReporter) Write(result schemas.CheckResult) error {
	if j.closed {
		return fmt.Errorf("reporter is closed")
	}
	j.results = append(j.results, result)
	return nil
}

// Close writes the summary document and closes the writer.
func (j *JSONReporter) Close(finished schemas.RunSummary) error {
	if j.closed {
		return nil
	}
	j.closed = true

	if len(finished.Results) == 0 {
		finished.Results = j.results
	}

	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(finished); err != nil {
		j.writer.Close()
		return fmt.Errorf("failed to encode JSON report: %w", err)
	}
	return j.writer.Close()
}
