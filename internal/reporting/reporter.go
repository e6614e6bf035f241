// internal/reporting/reporter.go
package reporting

import (
	"fmt"
	"io"
	"os"

	"github.com/xkilldash9x/chatprobe-cli/api/schemas"
)

// Reporter defines the interface for writing probe results to an output.
type Reporter interface {
	// Write records a single check result.
	Write(result schemas.CheckResult) error
	// Close finalizes the report and releases the underlying writer.
	Close(finished schemas.RunSummary) error
}

// nopWriteCloser wraps an io.Writer with a no-op Close.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error { return nil }

// New creates a reporter for the given format writing to outputPath.
// An empty path or "stdout" writes to standard output.
func New(format, outputPath string) (Reporter, error) {
	var writer io.WriteCloser
	isStdout := outputPath == "" || outputPath == "stdout"

	if isStdout {
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	switch format {
	case "html":
		return NewHTMLReporter(writer), nil
	case "json":
		return NewJSONReporter(writer), nil
	default:
		if !isStdout {
			writer.Close()
		}
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
