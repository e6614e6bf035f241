// internal/e2e/helper_test.go
package e2e

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/chatprobe-cli/internal/browser"
	"github.com/xkilldash9x/chatprobe-cli/internal/chatpage"
	"github.com/xkilldash9x/chatprobe-cli/internal/config"
	"github.com/xkilldash9x/chatprobe-cli/internal/dataset"
)

var (
	// globalProcessSemaphore limits the number of concurrent browser processes
	// across all tests in the package. Initialized lazily via sync.Once.
	globalProcessSemaphore     *semaphore.Weighted
	globalProcessSemaphoreOnce sync.Once
)

// maxTestConcurrency limits the number of concurrent browser processes.
const maxTestConcurrency = 2
const shutdownTimeout = 15 * time.Second

const (
	// Generous to accommodate overhead when running with -race.
	defaultBrowserTestTimeout = 120 * time.Second
	testCleanupGracePeriod    = 1 * time.Second
	semaphoreAcquireTimeout   = 10 * time.Second
	// minTestExecutionTime is the minimum time the test logic itself needs,
	// excluding cleanup.
	minTestExecutionTime = 5 * time.Second
)

// datasetPath locates the shared query catalogue relative to this package.
const datasetPath = "../../data/queries.json"

func getGlobalProcessSemaphore() *semaphore.Weighted {
	globalProcessSemaphoreOnce.Do(func() {
		concurrency := int64(runtime.GOMAXPROCS(0))
		if concurrency > maxTestConcurrency {
			concurrency = maxTestConcurrency
		}
		if concurrency < 1 {
			concurrency = 1
		}
		globalProcessSemaphore = semaphore.NewWeighted(concurrency)
	})
	return globalProcessSemaphore
}

// chatFixture is the sandboxed environment for widget tests: an isolated
// browser process, one session, and a Page opened on the target.
type chatFixture struct {
	Config  *config.Config
	Manager *browser.Manager
	Session *browser.Session
	Page    *chatpage.Page
	Logger  *zap.Logger
	Target  string
	// RootCtx is tied to the test's lifecycle (respecting t.Deadline).
	RootCtx context.Context
}

// fixtureConfigurator allows tests to modify the default config.
type fixtureConfigurator func(*config.Config)

// createTestConfig generates a configuration optimized for fast integration
// testing against the local mock widget.
func createTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig()

	cfg.Browser.Headless = headlessFromEnv()
	cfg.Browser.IgnoreTLSErrors = true
	// Isolated profile per test; parallel tests contending for the default
	// user data directory hit SingletonLock failures.
	cfg.Browser.Args = []string{
		"--user-data-dir=" + t.TempDir(),
		"--disable-dev-shm-usage",
	}

	cfg.Network.NavigationTimeout = 60 * time.Second
	cfg.Network.PostLoadWait = 500 * time.Millisecond
	cfg.Network.WidgetTimeout = 20 * time.Second
	cfg.Network.ResponseTimeout = 20 * time.Second
	cfg.Network.ElementTimeout = 5 * time.Second

	return cfg
}

func headlessFromEnv() bool {
	switch strings.ToLower(os.Getenv("CHATPROBE_HEADLESS")) {
	case "0", "false", "no":
		return false
	}
	return true
}

// targetURL returns the live target from the environment, or an empty string
// when the suite should run against the local mock widget.
func targetURL() string {
	return os.Getenv("CHATPROBE_TARGET_URL")
}

// newChatFixture starts an isolated browser, opens the target widget, and
// registers a robust LIFO teardown. When CHATPROBE_TARGET_URL is unset it
// serves the mock widget from an httptest server.
func newChatFixture(t *testing.T, configurators ...fixtureConfigurator) *chatFixture {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping browser test in -short mode")
	}

	logger := zaptest.NewLogger(t).With(zap.String("test", t.Name()))

	// t.Deadline() pattern: cancel the root context before the hard deadline
	// so cleanup still has time to run.
	timeNow := time.Now()
	testDeadline, ok := t.Deadline()
	if !ok {
		testDeadline = timeNow.Add(defaultBrowserTestTimeout)
	}
	rootDeadline := testDeadline.Add(-testCleanupGracePeriod)
	if rootDeadline.Sub(timeNow) < minTestExecutionTime {
		t.Fatalf("Insufficient test timeout: deadline (%v remaining) minus cleanup grace period (%v) leaves less than %v for execution. Increase 'go test -timeout'.",
			testDeadline.Sub(timeNow).Round(time.Millisecond), testCleanupGracePeriod, minTestExecutionTime)
	}

	rootCtx, rootCancel := context.WithDeadline(context.Background(), rootDeadline)
	t.Cleanup(rootCancel)

	cfg := createTestConfig(t)
	for _, configurator := range configurators {
		configurator(cfg)
	}

	// --- Semaphore acquisition ---
	processSemaphore := getGlobalProcessSemaphore()
	acquireCtx, acquireCancel := context.WithTimeout(rootCtx, semaphoreAcquireTimeout)
	if err := processSemaphore.Acquire(acquireCtx, 1); err != nil {
		acquireCancel()
		t.Fatalf("Failed to acquire browser semaphore: %v", err)
	}
	acquireCancel()
	t.Cleanup(func() {
		processSemaphore.Release(1) // LIFO: runs after manager shutdown.
	})

	// --- Target selection ---
	target := targetURL()
	if target == "" {
		server := newMockWidgetServer(t)
		target = server.URL
	}
	cfg.Target.URL = target

	// --- Browser lifecycle (per-test isolation) ---
	manager, err := browser.NewManager(rootCtx, cfg, logger)
	require.NoError(t, err, "Failed to initialize per-test browser manager")
	t.Cleanup(func() {
		// Fresh short-lived context for shutdown, detached from the test
		// context which may already be canceled.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		logger.Debug("Starting graceful shutdown of browser manager.")
		if err := manager.Shutdown(shutdownCtx); err != nil {
			t.Logf("Warning: Error during browser manager shutdown: %v", err)
		}
	})

	session, err := manager.NewSession(rootCtx)
	require.NoError(t, err, "Failed to open browser session")
	t.Cleanup(func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer closeCancel()
		session.Close(closeCtx)
	})

	fixture := &chatFixture{
		Config:  cfg,
		Manager: manager,
		Session: session,
		Logger:  logger,
		Target:  target,
		RootCtx: rootCtx,
	}
	fixture.Page = chatpage.NewPage(session, cfg, logger)

	// Screenshot on failure, before the session is torn down.
	t.Cleanup(func() {
		if t.Failed() {
			fixture.captureFailureScreenshot(t)
		}
	})

	require.NoError(t, fixture.Page.Open(rootCtx, target), "chat widget did not load at %s", target)
	return fixture
}

// captureFailureScreenshot saves a full-page PNG for the failed test under
// the artifacts directory.
func (f *chatFixture) captureFailureScreenshot(t *testing.T) {
	t.Helper()

	shotCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if snippet, err := f.Page.PageSourceSnippet(shotCtx, 2048); err == nil {
		t.Logf("Page source at failure:\n%s", snippet)
	}

	shot, err := f.Session.Screenshot(shotCtx)
	if err != nil {
		t.Logf("Could not capture failure screenshot: %v", err)
		return
	}

	dir := os.Getenv("CHATPROBE_ARTIFACTS_DIR")
	if dir == "" {
		dir = "artifacts"
	}
	dir = filepath.Join(dir, "screenshots")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Logf("Could not create screenshot directory: %v", err)
		return
	}

	name := fmt.Sprintf("%s_%s.png", sanitizeName(t.Name()), time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, shot, 0o644); err != nil {
		t.Logf("Could not write failure screenshot: %v", err)
		return
	}
	t.Logf("Failure screenshot saved to %s", path)
}

func sanitizeName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

// loadDataset loads the shared query catalogue once per process.
func loadDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.Load(datasetPath)
	require.NoError(t, err, "query dataset must load")
	return ds
}
