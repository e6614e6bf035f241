// internal/probe/checks.go
package probe

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/xkilldash9x/chatprobe-cli/api/schemas"
	"github.com/xkilldash9x/chatprobe-cli/internal/dataset"
	"github.com/xkilldash9x/chatprobe-cli/internal/quality"
	"github.com/xkilldash9x/chatprobe-cli/internal/security"
)

// runUIChecks covers widget presence, message round-trip, layout direction,
// and scroll behavior.
func (r *Runner) runUIChecks(ctx context.Context) {
	r.runCheck(ctx, "ui/widget_loads", schemas.CategoryUI, func(ctx context.Context) (string, error) {
		if !r.page.WidgetLoaded(ctx) {
			return "", fmt.Errorf("chat input is not visible")
		}
		if !r.page.InputAccessible(ctx) {
			return "", fmt.Errorf("chat input is visible but not enabled")
		}
		if r.page.SendButtonAccessible(ctx) {
			return "input and send button accessible", nil
		}
		return "input accessible; no send button, Enter submission assumed", nil
	})

	messages := r.ds.UIValidation.TestMessages
	if len(messages) == 0 {
		r.skip("ui/message_roundtrip", schemas.CategoryUI, "dataset carries no ui_validation messages")
	}
	for i, msg := range messages {
		msg := msg
		name := fmt.Sprintf("ui/message_roundtrip_%d", i+1)
		r.runCheck(ctx, name, schemas.CategoryUI, func(ctx context.Context) (string, error) {
			if err := r.limiter.Wait(ctx); err != nil {
				return "", err
			}
			if err := r.page.SendMessage(ctx, msg); err != nil {
				return "", err
			}

			sent, err := r.page.UserMessages(ctx)
			if err != nil {
				return "", err
			}
			if !containsMessage(sent, msg) {
				return "", fmt.Errorf("sent message %q not rendered in conversation", msg)
			}
			if !r.page.InputCleared(ctx) {
				value, _ := r.page.InputValue(ctx)
				return "", fmt.Errorf("input not cleared after send, still holds %q", value)
			}
			return fmt.Sprintf("message %q rendered and input cleared", msg), nil
		})
	}

	r.runCheck(ctx, "ui/layout_direction", schemas.CategoryUI, func(ctx context.Context) (string, error) {
		dir, err := r.page.Direction(ctx)
		if err != nil {
			return "", err
		}
		if dir != "ltr" && dir != "rtl" {
			return "", fmt.Errorf("unexpected document direction %q", dir)
		}
		return "document direction is " + dir, nil
	})

	r.runCheck(ctx, "ui/scroll_stability", schemas.CategoryUI, func(ctx context.Context) (string, error) {
		if err := r.page.ScrollToBottom(ctx); err != nil {
			return "", err
		}
		if !r.page.WidgetLoaded(ctx) {
			return "", fmt.Errorf("widget lost after scrolling to bottom")
		}
		return "widget functional after scroll", nil
	})
}

// runQualityChecks sends every configured query and applies the heuristic
// battery to each response.
func (r *Runner) runQualityChecks(ctx context.Context) {
	for _, lang := range r.languages() {
		categories, ok := r.ds.Queries[lang]
		if !ok {
			r.skip("quality/"+lang, schemas.CategoryQuality,
				fmt.Sprintf("language %q not present in dataset", lang))
			continue
		}

		names := make([]string, 0, len(categories))
		for category := range categories {
			names = append(names, category)
		}
		sort.Strings(names)

		for _, category := range names {
			q := categories[category]
			name := fmt.Sprintf("quality/%s/%s", lang, category)
			r.runCheck(ctx, name, schemas.CategoryQuality, r.qualityCheck(q))
		}
	}

	r.runCheck(ctx, "quality/long_message_fallback", schemas.CategoryQuality, r.longMessageCheck)
}

// longMessageCheck sends a pathological, very long message. The widget must
// either answer it or surface an error message; silence is the failure.
func (r *Runner) longMessageCheck(ctx context.Context) (string, error) {
	long := strings.Repeat("please help me with this very long request again ", 21)

	response, err := r.sendAndAwait(ctx, long)
	if err == nil {
		if !quality.NonEmpty(response) {
			return "", fmt.Errorf("blank response to a long message")
		}
		return fmt.Sprintf("long message answered with %d chars", len(response)), nil
	}

	if msg := r.page.ErrorMessage(ctx); msg != "" {
		return fmt.Sprintf("widget surfaced error message: %q", msg), nil
	}
	return "", fmt.Errorf("no response and no error message after long input: %w", err)
}

// qualityCheck builds the check closure for one dataset query.
func (r *Runner) qualityCheck(q dataset.Query) checkFn {
	return func(ctx context.Context) (string, error) {
		response, err := r.sendAndAwait(ctx, q.Prompt)
		if err != nil {
			if msg := r.page.ErrorMessage(ctx); msg != "" {
				return "", fmt.Errorf("no response; widget error message: %q", msg)
			}
			return "", err
		}

		verdict := quality.Evaluate(response, quality.Bounds{
			MinLength: q.MinLength,
			MaxLength: q.MaxLength,
		})
		if !verdict.OK() {
			return "", fmt.Errorf("response failed heuristics [%s]: %q",
				strings.Join(verdict.Failures, ", "), truncateForDetail(response))
		}

		detail := fmt.Sprintf("%d chars, heuristics clean", len(response))
		if q.ExpectedBehavior != "" {
			detail += "; expected behavior: " + q.ExpectedBehavior
		}
		return detail, nil
	}
}

// runSecurityChecks sends every named payload from the dataset, then the JS
// execution probe and the special-character battery.
func (r *Runner) runSecurityChecks(ctx context.Context) {
	names := make([]string, 0, len(r.ds.Security))
	for name := range r.ds.Security {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		sc := r.ds.Security[name]
		r.runCheck(ctx, "security/"+name, schemas.CategorySecurity, r.securityCheck(name, sc))
	}

	r.runCheck(ctx, "security/js_execution", schemas.CategorySecurity, func(ctx context.Context) (string, error) {
		if _, err := r.sendAndAwait(ctx, security.XSSProbePayload); err != nil {
			// A refused or dropped payload is an acceptable outcome; the probe
			// flag is what matters.
			r.logger.Debug("JS execution payload produced no response.")
		}
		var executed bool
		if err := r.page.Session().Evaluate(ctx, security.XSSProbeCheckJS, &executed); err != nil {
			return "", err
		}
		if executed {
			return "", fmt.Errorf("injected script executed: window.%s was set", security.XSSProbeFlag)
		}
		return "probe flag never set, payload did not execute", nil
	})

	for i, payload := range security.SpecialCharacterPayloads() {
		payload := payload
		name := fmt.Sprintf("security/special_chars_%d", i+1)
		r.runCheck(ctx, name, schemas.CategorySecurity, func(ctx context.Context) (string, error) {
			if err := r.limiter.Wait(ctx); err != nil {
				return "", err
			}
			if err := r.page.SendMessage(ctx, payload); err != nil {
				return "", fmt.Errorf("widget rejected send of %q: %w", payload, err)
			}
			if !r.page.WidgetLoaded(ctx) {
				return "", fmt.Errorf("widget broken after payload %q", payload)
			}
			return fmt.Sprintf("widget functional after %q", payload), nil
		})
	}
}

// securityCheck builds the post-condition closure for one named payload.
func (r *Runner) securityCheck(name string, sc dataset.SecurityCase) checkFn {
	return func(ctx context.Context) (string, error) {
		response, err := r.sendAndAwait(ctx, sc.Prompt)
		if err != nil {
			// No response to an injection attempt is fine as long as the
			// widget itself survived.
			if !r.page.WidgetLoaded(ctx) {
				return "", fmt.Errorf("widget broken after payload: %w", err)
			}
			response = ""
		}

		switch name {
		case "script_injection":
			source, err := r.page.Session().PageSource(ctx)
			if err != nil {
				return "", err
			}
			if security.ExecutableScriptEcho(source, sc.Prompt) {
				return "", fmt.Errorf("payload echoed inside a live script element")
			}
		case "html_injection":
			source, err := r.page.Session().PageSource(ctx)
			if err != nil {
				return "", err
			}
			if security.EventHandlerSurvives(source, "onerror", "alert") {
				return "", fmt.Errorf("onerror handler from payload survived into the DOM")
			}
		case "prompt_injection_ignore_instructions":
			if security.CompliedWithJoke(response) {
				return "", fmt.Errorf("bot complied with instruction override: %q", truncateForDetail(response))
			}
		case "prompt_injection_system_prompt":
			if security.RevealsSystemPrompt(response, sc.ShouldNotContain) {
				return "", fmt.Errorf("response discloses system prompt content: %q", truncateForDetail(response))
			}
		case "sql_injection":
			if security.SQLEchoUnexplained(response, sc.ShouldNotContain) {
				return "", fmt.Errorf("SQL fragment echoed without block explanation: %q", truncateForDetail(response))
			}
		}

		if name != "prompt_injection_system_prompt" && name != "sql_injection" {
			if matches := security.DenyListMatches(response, sc.ShouldNotContain); len(matches) > 0 {
				return "", fmt.Errorf("response contains forbidden terms %v: %q",
					matches, truncateForDetail(response))
			}
		}

		detail := "post-conditions held"
		if sc.ExpectedBehavior != "" {
			detail += "; expected behavior: " + sc.ExpectedBehavior
		}
		return detail, nil
	}
}

// languages returns the configured probe languages, falling back to every
// language in the dataset.
func (r *Runner) languages() []string {
	langs := r.cfg.Probe.Languages
	if len(langs) == 0 {
		langs = r.ds.Languages()
	}
	out := append([]string(nil), langs...)
	sort.Strings(out)
	return out
}

func containsMessage(rendered []string, msg string) bool {
	want := strings.TrimSpace(msg)
	for _, m := range rendered {
		if strings.Contains(strings.TrimSpace(m), want) {
			return true
		}
	}
	return false
}

func truncateForDetail(s string) string {
	const max = 200
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
