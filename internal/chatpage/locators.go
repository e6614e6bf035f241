// internal/chatpage/locators.go
package chatpage

// Locator pairs a primary CSS selector with an alternate XPath expression.
// Chat widgets vary wildly in markup, so every lookup tries the precise CSS
// form first and falls back to a looser XPath when nothing matches.
type Locator struct {
	Name  string
	CSS   string
	XPath string
}

// Default locators for common chatbot widget markup. Adjust per deployment
// via NewPageWithLocators if a target uses non-standard classes.
var (
	LocatorInput = Locator{
		Name: "chat input",
		CSS:  `input[type='text'], textarea, [contenteditable='true']`,
		XPath: `//input[@type='text'] | //textarea | //*[@contenteditable='true'] | ` +
			`//*[contains(@class, 'input')] | //*[contains(@id, 'input')]`,
	}

	LocatorSendButton = Locator{
		Name: "send button",
		CSS:  `button[type='submit'], [class*='send']`,
		XPath: `//button[@type='submit'] | //*[contains(@class, 'send')] | ` +
			`//*[contains(@aria-label, 'send') or contains(@aria-label, 'Send')]`,
	}

	LocatorUserMessage = Locator{
		Name:  "user message",
		CSS:   `[class*='user-message'], .message.user`,
		XPath: `//*[contains(@class, 'user-message')] | //*[contains(@class, 'message') and contains(@class, 'user')]`,
	}

	LocatorBotMessage = Locator{
		Name: "bot message",
		CSS:  `[class*='ai-message'], [class*='bot-message'], [class*='assistant-message'], .message.bot`,
		XPath: `//*[contains(@class, 'ai-message')] | //*[contains(@class, 'bot-message')] | ` +
			`//*[contains(@class, 'assistant-message')] | //*[contains(@class, 'response')]`,
	}

	LocatorLoading = Locator{
		Name: "loading indicator",
		CSS:  `[class*='loading'], [class*='typing'], [class*='spinner']`,
		XPath: `//*[contains(@class, 'loading')] | //*[contains(@class, 'typing')] | ` +
			`//*[contains(@class, 'spinner')] | //*[contains(@aria-label, 'loading')]`,
	}

	LocatorError = Locator{
		Name:  "error message",
		CSS:   `[class*='error'], [class*='fallback']`,
		XPath: `//*[contains(@class, 'error')] | //*[contains(@class, 'fallback')]`,
	}
)

// Locators bundles the full locator table for one widget.
type Locators struct {
	Input      Locator
	SendButton Locator
	UserMsg    Locator
	BotMsg     Locator
	Loading    Locator
	Error      Locator
}

// DefaultLocators returns the locator table for common widget markup.
func DefaultLocators() Locators {
	return Locators{
		Input:      LocatorInput,
		SendButton: LocatorSendButton,
		UserMsg:    LocatorUserMessage,
		BotMsg:     LocatorBotMessage,
		Loading:    LocatorLoading,
		Error:      LocatorError,
	}
}
