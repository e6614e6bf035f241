// internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatprobe-cli/internal/config"
)

// Session represents an active browser tab.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	cfg    *config.Config

	onClose func()

	mu       sync.Mutex
	isClosed bool
}

// NewSession creates a new Session wrapper around an existing tab context.
func NewSession(
	ctx context.Context,
	cancel context.CancelFunc,
	cfg *config.Config,
	logger *zap.Logger,
	onClose func(),
) (*Session, error) {
	sessionID := uuid.New().String()

	return &Session{
		id:      sessionID,
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger.With(zap.String("session_id", sessionID)),
		cfg:     cfg,
		onClose: onClose,
	}, nil
}

// Initialize connects the tab and installs persistent scripts.
func (s *Session) Initialize(ctx context.Context) error {
	// Ensure the target (tab) is created and CDP is connected.
	if err := chromedp.Run(s.ctx); err != nil {
		return fmt.Errorf("failed to initialize browser context/target connection: %w", err)
	}

	if err := s.InjectScriptPersistently(ctx, scrubWebdriverScript); err != nil {
		return err
	}

	s.logger.Debug("Session initialized.")
	return nil
}

// ID returns the unique identifier for the session.
func (s *Session) ID() string {
	return s.id
}

// Context returns the underlying tab context for the session.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Close terminates the browser session. It is safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")

	if s.cancel != nil {
		s.cancel()
	}
	if s.onClose != nil {
		s.onClose()
	}
	return nil
}

// InjectScriptPersistently adds a script executed on every new document in this tab.
func (s *Session) InjectScriptPersistently(ctx context.Context, script string) error {
	var scriptID page.ScriptIdentifier
	err := s.runActions(ctx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		scriptID, err = page.AddScriptToEvaluateOnNewDocument(script).Do(c)
		return err
	}))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("could not inject persistent script: %w", err)
	}
	s.logger.Debug("Injected persistent script.", zap.String("scriptID", string(scriptID)))
	return nil
}

// stabilize waits for the page state to settle after navigation.
func (s *Session) stabilize(ctx context.Context, quietPeriod time.Duration) error {
	stabCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := chromedp.Run(stabCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Debug("WaitReady failed during stabilization.", zap.Error(err))
	}

	if quietPeriod > 0 {
		if err := chromedp.Run(stabCtx, chromedp.Sleep(quietPeriod)); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
	return nil
}

// runActions executes chromedp actions, respecting both the session lifetime
// (s.ctx) and the incoming operation context (ctx).
func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()

	return chromedp.Run(runCtx, actions...)
}

// CombineContext creates a context canceled when either parent is canceled.
// chromedp requires the tab context as the base, so the secondary context's
// cancellation is forwarded by a monitor goroutine.
func CombineContext(parentCtx, secondaryCtx context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(parentCtx)

	go func() {
		select {
		case <-secondaryCtx.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}
