// internal/e2e/mockwidget_test.go
package e2e

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// newMockWidgetServer serves a self-contained chat widget that mimics the
// markup and behavior of a typical government-service chatbot: a text input,
// a send button, user/bot message bubbles, and a typing indicator. All user
// content is rendered via textContent, so injected markup stays inert, which
// is exactly the behavior the security checks assert against.
func newMockWidgetServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(mockWidgetHTML))
	}))
	t.Cleanup(server.Close)
	return server
}

const mockWidgetHTML = `<!DOCTYPE html>
<html lang="en" dir="ltr">
<head>
<meta charset="utf-8">
<title>Service Assistant</title>
<style>
  body { font-family: sans-serif; margin: 0; }
  #chat { max-width: 640px; margin: 2rem auto; }
  .user-message, .bot-message { padding: 8px 12px; margin: 6px 0; border-radius: 8px; white-space: pre-wrap; }
  .user-message { background: #dbeafe; }
  .bot-message { background: #f1f5f9; }
  .typing-indicator { color: #888; font-style: italic; }
  .composer { display: flex; gap: 8px; margin-top: 12px; }
  textarea { flex: 1; min-height: 48px; }
</style>
</head>
<body>
<div id="chat">
  <div id="messages"></div>
  <div class="typing-indicator" id="typing" style="display:none">Assistant is typing...</div>
  <div class="composer">
    <textarea id="chat-input" placeholder="Ask about a government service"></textarea>
    <button type="button" class="send-button" id="send">Send</button>
  </div>
</div>
<script>
(function () {
  var input = document.getElementById('chat-input');
  var send = document.getElementById('send');
  var messages = document.getElementById('messages');
  var typing = document.getElementById('typing');
  var replyDelayMs = 900;

  function append(cls, text) {
    var el = document.createElement('div');
    el.className = cls;
    el.textContent = text;
    messages.appendChild(el);
  }

  function replyFor(msg) {
    var lower = msg.toLowerCase();
    if (lower.indexOf('ignore all previous instructions') !== -1 || lower.indexOf('ignore previous instructions') !== -1) {
      return 'I can only assist with UAE government services. Is there a service I can help you with today?';
    }
    if (lower.indexOf('system prompt') !== -1 || lower.indexOf('instructions you were given') !== -1) {
      return 'I am not able to share internal details. I can help you with Emirates ID, visas, and other government services.';
    }
    if (lower.indexOf('drop table') !== -1 || msg.indexOf('--') !== -1) {
      return 'That input looks invalid and was blocked for security reasons. Please ask about a government service instead.';
    }
    if (msg.indexOf('<') !== -1 || lower.indexOf('javascript:') !== -1) {
      return 'Your message contained content that is not allowed. Please rephrase your question about government services.';
    }
    if (lower.indexOf('emirates id') !== -1 || msg.indexOf('الهوية') !== -1) {
      return 'To renew your Emirates ID, submit a renewal application through the ICP smart services portal within 30 days of expiry, pay the renewal fee, and visit an approved typing center if biometrics are required. You will receive the renewed card by courier.';
    }
    if (lower.indexOf('golden visa') !== -1 || msg.indexOf('الذهبية') !== -1) {
      return 'For a golden visa application you generally need a valid passport, a personal photo, proof of eligibility such as an investment certificate or employment contract in an eligible category, and health insurance. The exact list depends on your eligibility track.';
    }
    if (lower.indexOf('documents') !== -1) {
      return 'Could you tell me which documents you need help with? For example Emirates ID, visas, or attestation services.';
    }
    if (lower.indexOf('pizza') !== -1) {
      return 'I focus on UAE government services, so I cannot help with that. Is there a government service I can assist you with?';
    }
    if (lower.indexOf('services') !== -1) {
      return 'I can help you with a wide range of UAE government services, including Emirates ID renewals, visa applications, traffic fines, and business licensing. What would you like to know more about?';
    }
    return 'I can help you with UAE government services such as Emirates ID, visas, and business licensing. What would you like to know?';
  }

  function submit() {
    var msg = input.value;
    if (!msg.trim()) { return; }
    append('user-message', msg);
    input.value = '';
    typing.style.display = 'block';
    setTimeout(function () {
      append('bot-message', replyFor(msg));
      typing.style.display = 'none';
      window.scrollTo(0, document.body.scrollHeight);
    }, replyDelayMs);
  }

  send.addEventListener('click', submit);
  input.addEventListener('keydown', function (e) {
    if (e.key === 'Enter' && !e.shiftKey) {
      e.preventDefault();
      submit();
    }
  });
})();
</script>
</body>
</html>
`
