// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatprobe-cli/internal/config"
)

// scrubWebdriverScript removes the navigator.webdriver marker before any page
// script runs, mirroring what widget vendors see from a regular browser.
const scrubWebdriverScript = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`

// Manager owns the headless browser process. All session contexts derive from
// its allocator context.
type Manager struct {
	logger *zap.Logger
	cfg    *config.Config

	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc

	// wg tracks active sessions for a graceful shutdown.
	wg sync.WaitGroup
}

// NewManager launches the browser process and verifies it is responsive.
func NewManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Manager, error) {
	m := &Manager{
		logger: logger.Named("browser_manager"),
		cfg:    cfg,
	}

	if err := m.launchBrowser(ctx); err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	return m, nil
}

// launchBrowser prepares allocator options and starts the browser process.
func (m *Manager) launchBrowser(ctx context.Context) error {
	m.logger.Info("Initializing browser allocator...")

	opts := m.buildAllocatorOptions()

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	m.allocatorCtx = allocCtx
	m.allocatorCancel = cancel

	// Confirm the browser starts and responds before handing out sessions.
	testCtx, cancelTest := context.WithTimeout(allocCtx, 30*time.Second)
	testCtx, cancelTestCtx := chromedp.NewContext(testCtx)
	defer cancelTestCtx()
	defer cancelTest()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		m.allocatorCancel()
		return fmt.Errorf("browser failed to start or respond: %w", err)
	}

	m.logger.Info("Browser launched successfully and is responsive.")
	return nil
}

// buildAllocatorOptions assembles the flags for a stable, low-noise browser instance.
func (m *Manager) buildAllocatorOptions() []chromedp.ExecAllocatorOption {
	// Start from the defaults but disable the flag that advertises automation,
	// since chat widgets commonly degrade when they detect it. Later values
	// win inside the allocator, and false boolean flags are omitted entirely.
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	opts = append(opts,
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("headless", m.cfg.Browser.Headless),
		chromedp.Flag("ignore-certificate-errors", m.cfg.Browser.IgnoreTLSErrors),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", m.cfg.Browser.Headless),
		chromedp.WindowSize(m.cfg.Browser.WindowWidth, m.cfg.Browser.WindowHeight),
	)

	if m.cfg.Browser.DisableCache {
		opts = append(opts, chromedp.Flag("disk-cache-size", "0"))
	}
	if m.cfg.Browser.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(m.cfg.Browser.UserAgent))
	}

	// Custom arguments from the config file.
	for _, arg := range m.cfg.Browser.Args {
		key, value, found := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if found {
			opts = append(opts, chromedp.Flag(key, value))
		} else {
			opts = append(opts, chromedp.Flag(key, true))
		}
	}

	// Flags required for running inside containers (e.g., Docker on Linux).
	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
		)
	}

	return opts
}

// AllocatorContext exposes the allocator context for callers that need to
// derive their own tab contexts (test fixtures).
func (m *Manager) AllocatorContext() context.Context {
	return m.allocatorCtx
}

// NewSession creates a new, isolated browser tab wrapped in a Session.
func (m *Manager) NewSession(taskCtx context.Context) (*Session, error) {
	tabCtx, tabCancel := chromedp.NewContext(m.allocatorCtx)

	s, err := NewSession(tabCtx, tabCancel, m.cfg, m.logger, func() { m.wg.Done() })
	if err != nil {
		tabCancel()
		return nil, err
	}

	if err := s.Initialize(taskCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to initialize browser session: %w", err)
	}

	m.wg.Add(1)
	return s, nil
}

// Shutdown waits for active sessions to complete and terminates the browser process.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Browser manager shutdown initiated. Waiting for active sessions...")

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("All sessions have completed.")
	case <-ctx.Done():
		m.logger.Warn("Shutdown deadline exceeded. Forcing browser termination.", zap.Error(ctx.Err()))
	}

	if m.allocatorCancel != nil {
		m.allocatorCancel()
		<-m.allocatorCtx.Done()
	}
	return nil
}
