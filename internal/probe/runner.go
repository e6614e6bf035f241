// internal/probe/runner.go

// Package probe runs the full check catalogue (UI behavior, response
// quality, injection resilience) against a live chatbot target and collects
// per-check results for reporting.
package probe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/chatprobe-cli/api/schemas"
	"github.com/xkilldash9x/chatprobe-cli/internal/browser"
	"github.com/xkilldash9x/chatprobe-cli/internal/chatpage"
	"github.com/xkilldash9x/chatprobe-cli/internal/config"
	"github.com/xkilldash9x/chatprobe-cli/internal/dataset"
)

const shutdownTimeout = 15 * time.Second

var unsafePathChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Runner executes the check catalogue against one target.
type Runner struct {
	cfg     *config.Config
	logger  *zap.Logger
	ds      *dataset.Dataset
	limiter *rate.Limiter

	page    *chatpage.Page
	results []schemas.CheckResult
}

// NewRunner loads the dataset and prepares a runner.
func NewRunner(cfg *config.Config, logger *zap.Logger) (*Runner, error) {
	ds, err := dataset.Load(cfg.Target.Dataset)
	if err != nil {
		return nil, err
	}

	interval := cfg.Probe.MessageInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	return &Runner{
		cfg:     cfg,
		logger:  logger.Named("probe"),
		ds:      ds,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}, nil
}

// Run launches a browser, opens the target widget, and executes every check.
// Individual check failures are recorded, not returned; the error covers
// infrastructure failures only (browser launch, widget never loading).
func (r *Runner) Run(ctx context.Context) (*schemas.RunSummary, error) {
	summary := &schemas.RunSummary{
		RunInfo: schemas.RunInfo{
			RunID:     uuid.New().String(),
			Target:    r.cfg.Target.URL,
			StartedAt: time.Now(),
		},
	}

	r.logger.Info("Starting probe run",
		zap.String("run_id", summary.RunID),
		zap.String("target", summary.Target))

	manager, err := browser.NewManager(ctx, r.cfg, r.logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := manager.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("Browser shutdown reported an error.", zap.Error(err))
		}
	}()

	session, err := manager.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	defer session.Close(ctx)

	r.page = chatpage.NewPage(session, r.cfg, r.logger)
	if err := r.page.Open(ctx, r.cfg.Target.URL); err != nil {
		return nil, fmt.Errorf("target widget did not load: %w", err)
	}

	r.runUIChecks(ctx)
	r.runQualityChecks(ctx)
	r.runSecurityChecks(ctx)

	summary.FinishedAt = time.Now()
	summary.Results = r.results

	passed, failed, skipped := summary.Counts()
	r.logger.Info("Probe run finished",
		zap.Int("passed", passed),
		zap.Int("failed", failed),
		zap.Int("skipped", skipped))

	return summary, nil
}

// checkFn performs one check. A non-nil error fails the check; the returned
// detail is recorded either way.
type checkFn func(ctx context.Context) (detail string, err error)

// runCheck executes one check, times it, and captures a screenshot when it fails.
func (r *Runner) runCheck(ctx context.Context, name string, category schemas.CheckCategory, fn checkFn) {
	start := time.Now()
	detail, err := fn(ctx)

	result := schemas.CheckResult{
		Name:     name,
		Category: category,
		Status:   schemas.StatusPassed,
		Detail:   detail,
		Duration: time.Since(start),
	}

	if err != nil {
		result.Status = schemas.StatusFailed
		if detail != "" {
			result.Detail = detail + "\n" + err.Error()
		} else {
			result.Detail = err.Error()
		}
		result.Screenshot = r.captureFailureScreenshot(ctx, name)
		r.logger.Warn("Check failed", zap.String("check", name), zap.Error(err))
	} else {
		r.logger.Debug("Check passed", zap.String("check", name), zap.Duration("took", result.Duration))
	}

	r.results = append(r.results, result)
}

// skip records a skipped check with the given reason.
func (r *Runner) skip(name string, category schemas.CheckCategory, reason string) {
	r.results = append(r.results, schemas.CheckResult{
		Name:     name,
		Category: category,
		Status:   schemas.StatusSkipped,
		Detail:   reason,
	})
}

// captureFailureScreenshot saves a PNG under the artifacts directory and
// returns its path, or an empty string when capture fails.
func (r *Runner) captureFailureScreenshot(ctx context.Context, checkName string) string {
	shot, err := r.page.Session().Screenshot(ctx)
	if err != nil {
		r.logger.Debug("Could not capture failure screenshot.", zap.Error(err))
		return ""
	}

	dir := filepath.Join(r.cfg.Probe.ArtifactsDir, "screenshots")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.logger.Debug("Could not create screenshot directory.", zap.Error(err))
		return ""
	}

	path := filepath.Join(dir, unsafePathChars.ReplaceAllString(checkName, "_")+".png")
	if err := os.WriteFile(path, shot, 0o644); err != nil {
		r.logger.Debug("Could not write failure screenshot.", zap.Error(err))
		return ""
	}
	return path
}

// sendAndAwait rate-limits, sends a message, and waits for the bot response.
func (r *Runner) sendAndAwait(ctx context.Context, message string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	if err := r.page.SendMessage(ctx, message); err != nil {
		return "", err
	}
	return r.page.WaitForResponse(ctx, r.cfg.Network.ResponseTimeout)
}
