// api/schemas/results.go

// Package schemas defines the result types shared between the probe runner,
// the reporters, and the CLI.
package schemas

import "time"

// CheckStatus is the outcome of a single check.
type CheckStatus string

const (
	StatusPassed  CheckStatus = "passed"
	StatusFailed  CheckStatus = "failed"
	StatusSkipped CheckStatus = "skipped"
)

// CheckCategory groups checks the way the suite is organized.
type CheckCategory string

const (
	CategoryUI       CheckCategory = "ui"
	CategoryQuality  CheckCategory = "quality"
	CategorySecurity CheckCategory = "security"
)

// CheckResult is the outcome of one check against the target widget.
type CheckResult struct {
	Name       string        `json:"name"`
	Category   CheckCategory `json:"category"`
	Status     CheckStatus   `json:"status"`
	Detail     string        `json:"detail,omitempty"`
	Duration   time.Duration `json:"duration"`
	Screenshot string        `json:"screenshot,omitempty"`
}

// RunInfo identifies one probe run.
type RunInfo struct {
	RunID     string    `json:"run_id"`
	Target    string    `json:"target"`
	StartedAt time.Time `json:"started_at"`
}

// RunSummary is the complete record of a probe run.
type RunSummary struct {
	RunInfo
	FinishedAt time.Time     `json:"finished_at"`
	Results    []CheckResult `json:"results"`
}

// Counts tallies results by status.
func (r *RunSummary) Counts() (passed, failed, skipped int) {
	for _, res := range r.Results {
		switch res.Status {
		case StatusPassed:
			passed++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}
	return
}

// Failed reports whether any check in the run failed.
func (r *RunSummary) Failed() bool {
	_, failed, _ := r.Counts()
	return failed > 0
}
