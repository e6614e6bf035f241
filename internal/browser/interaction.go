// internal/browser/interaction.go
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"
)

// By selects the element lookup strategy for a selector string.
type By int

const (
	// ByCSS treats the selector as a CSS query.
	ByCSS By = iota
	// ByXPath treats the selector as an XPath expression.
	ByXPath
)

func (b By) queryOption() chromedp.QueryOption {
	if b == ByXPath {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// locateAllJS returns a JS expression evaluating to the elements matched by
// the selector, for either lookup strategy. Text extraction and attribute
// probes run through JS so CSS and XPath selectors behave identically.
func locateAllJS(sel string, by By) string {
	return fmt.Sprintf(`(function(sel, xpath) {
		if (xpath) {
			const out = [];
			const it = document.evaluate(sel, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
			for (let i = 0; i < it.snapshotLength; i++) { out.push(it.snapshotItem(i)); }
			return out;
		}
		return Array.from(document.querySelectorAll(sel));
	})(%q, %t)`, sel, by == ByXPath)
}

// Navigate loads the specified URL and waits for the page to stabilize.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating to URL", zap.String("url", url))

	opCtx, opCancel := CombineContext(s.ctx, ctx)
	defer opCancel()

	navTimeout := s.cfg.Network.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = 30 * time.Second
	}
	navCtx, navCancel := context.WithTimeout(opCtx, navTimeout)
	defer navCancel()

	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		if navCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("navigation timed out after %s: %w", navTimeout, err)
		}
		if opCtx.Err() != nil {
			return fmt.Errorf("navigation canceled: %w", opCtx.Err())
		}
		return fmt.Errorf("navigation failed: %w", err)
	}

	if err := s.stabilize(opCtx, s.cfg.Network.PostLoadWait); err != nil {
		if opCtx.Err() != nil {
			return opCtx.Err()
		}
		s.logger.Warn("Page stabilization failed after navigation (non-critical).", zap.Error(err))
	}
	return nil
}

// WaitVisible blocks until the element is visible or the timeout elapses.
func (s *Session) WaitVisible(ctx context.Context, sel string, by By, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.runActions(waitCtx, chromedp.WaitVisible(sel, by.queryOption())); err != nil {
		return fmt.Errorf("element %q not visible within %s: %w", sel, timeout, err)
	}
	return nil
}

// WaitNotVisible blocks until the element is hidden or gone, or the timeout elapses.
func (s *Session) WaitNotVisible(ctx context.Context, sel string, by By, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.runActions(waitCtx, chromedp.WaitNotVisible(sel, by.queryOption())); err != nil {
		return fmt.Errorf("element %q still visible after %s: %w", sel, timeout, err)
	}
	return nil
}

// IsVisible reports whether the element becomes visible within the timeout.
// It never returns an error; absence is a normal outcome for probes.
func (s *Session) IsVisible(ctx context.Context, sel string, by By, timeout time.Duration) bool {
	return s.WaitVisible(ctx, sel, by, timeout) == nil
}

// Click scrolls the element into view and clicks it.
func (s *Session) Click(ctx context.Context, sel string, by By) error {
	s.logger.Debug("Clicking element", zap.String("selector", sel))

	clickCtx, cancel := context.WithTimeout(ctx, s.elementTimeout())
	defer cancel()

	err := s.runActions(clickCtx,
		chromedp.ScrollIntoView(sel, by.queryOption()),
		chromedp.WaitVisible(sel, by.queryOption()),
		chromedp.Click(sel, by.queryOption()),
	)
	if err != nil {
		return fmt.Errorf("click action failed for selector %q: %w", sel, err)
	}
	return nil
}

// Type inputs text into the element matching the selector.
func (s *Session) Type(ctx context.Context, sel string, by By, text string) error {
	s.logger.Debug("Typing into element", zap.String("selector", sel), zap.Int("text_length", len(text)))

	typeCtx, cancel := context.WithTimeout(ctx, s.elementTimeout())
	defer cancel()

	err := s.runActions(typeCtx,
		chromedp.ScrollIntoView(sel, by.queryOption()),
		chromedp.WaitVisible(sel, by.queryOption()),
		chromedp.SendKeys(sel, text, by.queryOption()),
	)
	if err != nil {
		return fmt.Errorf("type action failed for selector %q: %w", sel, err)
	}
	return nil
}

// ClearInput empties a text input, textarea or contenteditable element and
// fires an input event so framework-bound widgets notice the change.
func (s *Session) ClearInput(ctx context.Context, sel string, by By) error {
	script := fmt.Sprintf(`(function(els) {
		if (!els.length) { return false; }
		const el = els[0];
		if (el.isContentEditable) {
			el.textContent = '';
		} else {
			el.value = '';
		}
		el.dispatchEvent(new Event('input', {bubbles: true}));
		return true;
	})(%s)`, locateAllJS(sel, by))

	var cleared bool
	if err := s.Evaluate(ctx, script, &cleared); err != nil {
		return fmt.Errorf("clear action failed for selector %q: %w", sel, err)
	}
	if !cleared {
		return fmt.Errorf("element not found matching selector %q", sel)
	}
	return nil
}

// PressEnter sends the Enter key to the element matching the selector.
func (s *Session) PressEnter(ctx context.Context, sel string, by By) error {
	keyCtx, cancel := context.WithTimeout(ctx, s.elementTimeout())
	defer cancel()

	if err := s.runActions(keyCtx, chromedp.SendKeys(sel, kb.Enter, by.queryOption())); err != nil {
		return fmt.Errorf("enter key failed for selector %q: %w", sel, err)
	}
	return nil
}

// Evaluate runs a snippet of JavaScript in the current document and
// optionally unmarshals the result into res.
func (s *Session) Evaluate(ctx context.Context, script string, res interface{}) error {
	return s.runActions(ctx, chromedp.Evaluate(script, res))
}

// Texts returns the rendered text of every element matching the selector,
// in document order. A selector matching nothing yields an empty slice.
func (s *Session) Texts(ctx context.Context, sel string, by By) ([]string, error) {
	script := fmt.Sprintf(`%s.map(el => (el.innerText !== undefined && el.innerText !== '') ? el.innerText : (el.textContent || ''))`,
		locateAllJS(sel, by))

	texts := []string{}
	if err := s.Evaluate(ctx, script, &texts); err != nil {
		return nil, fmt.Errorf("text extraction failed for selector %q: %w", sel, err)
	}
	return texts, nil
}

// InputValue returns the current value of the first matching element: the
// value property for inputs and textareas, rendered text for contenteditable.
func (s *Session) InputValue(ctx context.Context, sel string, by By) (string, error) {
	script := fmt.Sprintf(`(function(els) {
		if (!els.length) { return null; }
		const el = els[0];
		if (el.value !== undefined && el.value !== null && el.tagName !== 'OPTION') { return el.value; }
		return el.innerText || el.textContent || '';
	})(%s)`, locateAllJS(sel, by))

	var value *string
	if err := s.Evaluate(ctx, script, &value); err != nil {
		return "", fmt.Errorf("value lookup failed for selector %q: %w", sel, err)
	}
	if value == nil {
		return "", fmt.Errorf("element not found matching selector %q", sel)
	}
	return *value, nil
}

// IsEnabled reports whether the first matching element exists and is not disabled.
func (s *Session) IsEnabled(ctx context.Context, sel string, by By) bool {
	script := fmt.Sprintf(`(function(els) {
		return els.length > 0 && !els[0].disabled;
	})(%s)`, locateAllJS(sel, by))

	var enabled bool
	if err := s.Evaluate(ctx, script, &enabled); err != nil {
		return false
	}
	return enabled
}

// PageSource returns the full serialized HTML of the current document.
func (s *Session) PageSource(ctx context.Context) (string, error) {
	var source string
	if err := s.runActions(ctx, chromedp.OuterHTML("html", &source, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to capture page source: %w", err)
	}
	return source, nil
}

// Screenshot captures a full-page PNG screenshot.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	// Quality 100 makes chromedp emit PNG rather than JPEG.
	if err := s.runActions(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

func (s *Session) elementTimeout() time.Duration {
	if s.cfg.Network.ElementTimeout > 0 {
		return s.cfg.Network.ElementTimeout
	}
	return 10 * time.Second
}
