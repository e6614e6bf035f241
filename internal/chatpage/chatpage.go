// internal/chatpage/chatpage.go

// Package chatpage is the page object for a third-party chatbot widget. It
// wraps raw element lookups behind high-level actions (send a message, read
// the latest response) and owns the locator fallback rule: try the primary
// CSS selector, consult the alternate XPath only when the primary finds
// nothing before its deadline.
package chatpage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/chatprobe-cli/internal/browser"
	"github.com/xkilldash9x/chatprobe-cli/internal/config"
)

const (
	probeTimeout      = 2 * time.Second
	inputWaitTimeout  = 5 * time.Second
	buttonWaitTimeout = 3 * time.Second
	postSendSettle    = 500 * time.Millisecond
)

// Page drives one chatbot widget through a browser session.
type Page struct {
	session  *browser.Session
	cfg      *config.Config
	logger   *zap.Logger
	locators Locators
}

// NewPage creates a Page with the default locator table.
func NewPage(session *browser.Session, cfg *config.Config, logger *zap.Logger) *Page {
	return NewPageWithLocators(session, cfg, logger, DefaultLocators())
}

// NewPageWithLocators creates a Page with a custom locator table.
func NewPageWithLocators(session *browser.Session, cfg *config.Config, logger *zap.Logger, locators Locators) *Page {
	return &Page{
		session:  session,
		cfg:      cfg,
		logger:   logger.Named("chatpage"),
		locators: locators,
	}
}

// Session exposes the underlying browser session for checks that need raw
// page access (page source scans, JS probes, screenshots).
func (p *Page) Session() *browser.Session {
	return p.session
}

// resolve waits for the locator's primary selector to become visible and
// falls back to the alternate XPath. The returned selector/strategy pair is
// what matched, so follow-up actions hit the same element set.
func (p *Page) resolve(ctx context.Context, loc Locator, timeout time.Duration) (string, browser.By, error) {
	if err := p.session.WaitVisible(ctx, loc.CSS, browser.ByCSS, timeout); err == nil {
		return loc.CSS, browser.ByCSS, nil
	}
	if err := p.session.WaitVisible(ctx, loc.XPath, browser.ByXPath, timeout); err == nil {
		return loc.XPath, browser.ByXPath, nil
	}
	return "", browser.ByCSS, fmt.Errorf("%s not found via primary selector %q or fallback %q within %s",
		loc.Name, loc.CSS, loc.XPath, timeout)
}

// visible is the non-erroring probe form of resolve with a short timeout.
func (p *Page) visible(ctx context.Context, loc Locator) bool {
	if p.session.IsVisible(ctx, loc.CSS, browser.ByCSS, probeTimeout) {
		return true
	}
	return p.session.IsVisible(ctx, loc.XPath, browser.ByXPath, probeTimeout)
}

// texts extracts text content for all locator matches, primary first.
func (p *Page) texts(ctx context.Context, loc Locator) ([]string, error) {
	out, err := p.session.Texts(ctx, loc.CSS, browser.ByCSS)
	if err != nil {
		return nil, err
	}
	if len(out) > 0 {
		return out, nil
	}
	return p.session.Texts(ctx, loc.XPath, browser.ByXPath)
}

// Open navigates to the chatbot URL and waits for the widget to be ready.
func (p *Page) Open(ctx context.Context, url string) error {
	if err := p.session.Navigate(ctx, url); err != nil {
		return err
	}
	return p.WaitForWidget(ctx)
}

// WaitForWidget waits for the chat input to appear, the primary indicator
// that the widget finished loading. After both selectors miss once, it lets
// slow bundles settle briefly and retries the fallback a single time.
func (p *Page) WaitForWidget(ctx context.Context) error {
	timeout := p.cfg.Network.WidgetTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	if _, _, err := p.resolve(ctx, p.locators.Input, timeout/2); err == nil {
		return nil
	}

	p.logger.Debug("Chat widget not found on first pass, retrying after settle.")
	if err := sleepCtx(ctx, 2*time.Second); err != nil {
		return err
	}
	if err := p.session.WaitVisible(ctx, p.locators.Input.XPath, browser.ByXPath, timeout/2); err != nil {
		return fmt.Errorf("chat widget did not load: %w", err)
	}
	return nil
}

// WidgetLoaded reports whether the chat input is currently visible.
func (p *Page) WidgetLoaded(ctx context.Context) bool {
	return p.visible(ctx, p.locators.Input)
}

// SendMessage types a message into the chat input and submits it, clicking
// the send button when one exists and pressing Enter otherwise.
func (p *Page) SendMessage(ctx context.Context, message string) error {
	inputSel, inputBy, err := p.resolve(ctx, p.locators.Input, inputWaitTimeout)
	if err != nil {
		return err
	}

	if err := p.session.ClearInput(ctx, inputSel, inputBy); err != nil {
		p.logger.Debug("Input clear failed, continuing with typed text.", zap.Error(err))
	}
	if err := p.session.Type(ctx, inputSel, inputBy, message); err != nil {
		return err
	}

	if btnSel, btnBy, err := p.resolve(ctx, p.locators.SendButton, buttonWaitTimeout); err == nil {
		if err := p.session.Click(ctx, btnSel, btnBy); err != nil {
			return err
		}
	} else {
		p.logger.Debug("Send button not found, submitting with Enter key.")
		if err := p.session.PressEnter(ctx, inputSel, inputBy); err != nil {
			return err
		}
	}

	return sleepCtx(ctx, postSendSettle)
}

// InputValue returns the current content of the chat input.
func (p *Page) InputValue(ctx context.Context) (string, error) {
	sel, by, err := p.resolve(ctx, p.locators.Input, probeTimeout)
	if err != nil {
		return "", err
	}
	return p.session.InputValue(ctx, sel, by)
}

// InputCleared reports whether the chat input is empty.
func (p *Page) InputCleared(ctx context.Context) bool {
	value, err := p.InputValue(ctx)
	if err != nil {
		return false
	}
	return strings.TrimSpace(value) == ""
}

// WaitForResponse blocks until a bot message is rendered and returns its
// text. When a loading indicator is showing it first waits for it to clear.
func (p *Page) WaitForResponse(ctx context.Context, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = p.cfg.Network.ResponseTimeout
	}

	if p.LoadingVisible(ctx) {
		loc := p.locators.Loading
		if err := p.session.WaitNotVisible(ctx, loc.CSS, browser.ByCSS, timeout); err != nil {
			// The indicator may only match the fallback form.
			if err := p.session.WaitNotVisible(ctx, loc.XPath, browser.ByXPath, probeTimeout); err != nil {
				p.logger.Debug("Loading indicator did not clear.", zap.Error(err))
			}
		}
	}

	if _, _, err := p.resolve(ctx, p.locators.BotMsg, timeout); err != nil {
		return "", fmt.Errorf("no bot response rendered: %w", err)
	}
	return p.LatestResponse(ctx)
}

// LatestResponse returns the text of the most recent bot message, or an
// empty string when no bot message exists.
func (p *Page) LatestResponse(ctx context.Context) (string, error) {
	responses, err := p.AllResponses(ctx)
	if err != nil {
		return "", err
	}
	if len(responses) == 0 {
		return "", nil
	}
	return responses[len(responses)-1], nil
}

// AllResponses returns the text of every bot message in the conversation.
func (p *Page) AllResponses(ctx context.Context) ([]string, error) {
	return p.texts(ctx, p.locators.BotMsg)
}

// UserMessages returns the text of every user message in the conversation.
func (p *Page) UserMessages(ctx context.Context) ([]string, error) {
	return p.texts(ctx, p.locators.UserMsg)
}

// LoadingVisible reports whether a loading/typing indicator is showing.
func (p *Page) LoadingVisible(ctx context.Context) bool {
	if p.session.IsVisible(ctx, p.locators.Loading.CSS, browser.ByCSS, time.Second) {
		return true
	}
	return p.session.IsVisible(ctx, p.locators.Loading.XPath, browser.ByXPath, time.Second)
}

// ErrorMessage returns the widget's error or fallback message text, or an
// empty string when none is showing.
func (p *Page) ErrorMessage(ctx context.Context) string {
	if !p.visible(ctx, p.locators.Error) {
		return ""
	}
	texts, err := p.texts(ctx, p.locators.Error)
	if err != nil || len(texts) == 0 {
		return ""
	}
	return strings.TrimSpace(texts[0])
}

// Direction returns the document text direction, "ltr" or "rtl".
func (p *Page) Direction(ctx context.Context) (string, error) {
	var dir string
	if err := p.session.Evaluate(ctx, `document.documentElement.dir || ''`, &dir); err != nil {
		return "", err
	}
	if dir == "" {
		if err := p.session.Evaluate(ctx,
			`window.getComputedStyle(document.documentElement).direction || 'ltr'`, &dir); err != nil {
			return "", err
		}
	}
	if dir == "" {
		dir = "ltr"
	}
	return strings.ToLower(dir), nil
}

// ScrollToBottom scrolls the conversation to its end.
func (p *Page) ScrollToBottom(ctx context.Context) error {
	if err := p.session.Evaluate(ctx,
		`window.scrollTo(0, document.body.scrollHeight); undefined`, nil); err != nil {
		return err
	}
	return sleepCtx(ctx, postSendSettle)
}

// VisibleAndEnabled reports whether the locator resolves to an element that
// is both visible and enabled, the baseline accessibility probe.
func (p *Page) VisibleAndEnabled(ctx context.Context, loc Locator) bool {
	if p.session.IsVisible(ctx, loc.CSS, browser.ByCSS, probeTimeout) {
		return p.session.IsEnabled(ctx, loc.CSS, browser.ByCSS)
	}
	if p.session.IsVisible(ctx, loc.XPath, browser.ByXPath, probeTimeout) {
		return p.session.IsEnabled(ctx, loc.XPath, browser.ByXPath)
	}
	return false
}

// InputAccessible reports whether the chat input is visible and enabled.
func (p *Page) InputAccessible(ctx context.Context) bool {
	return p.VisibleAndEnabled(ctx, p.locators.Input)
}

// SendButtonAccessible reports whether a send button is visible and enabled.
// Widgets that rely on the Enter key legitimately have none.
func (p *Page) SendButtonAccessible(ctx context.Context) bool {
	return p.VisibleAndEnabled(ctx, p.locators.SendButton)
}

// PageSourceSnippet returns the first n bytes of the page source, for
// failure diagnostics.
func (p *Page) PageSourceSnippet(ctx context.Context, n int) (string, error) {
	source, err := p.session.PageSource(ctx)
	if err != nil {
		return "", err
	}
	if len(source) > n {
		source = source[:n]
	}
	return source, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
