package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/alanyoungcy/arbscanner/internal/crypto"
	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// WebhookSender posts the structured alert as JSON to an operator endpoint.
// When a secret is set the body is signed with crypto.WebhookSigner.
type WebhookSender struct {
	url    string
	signer *crypto.WebhookSigner
	client *http.Client
}

// NewWebhookSender creates a WebhookSender. An empty secret disables signing.
func NewWebhookSender(url, secret string) *WebhookSender {
	w := &WebhookSender{url: url, client: defaultClient()}
	if secret != "" {
		w.signer = &crypto.WebhookSigner{Secret: secret}
	}
	return w
}

type webhookPayload struct {
	Event     string           `json:"event"`
	Subject   string           `json:"subject"`
	Recipient domain.Recipient `json:"recipient"`
	Alert     domain.Alert     `json:"alert"`
}

// Send posts the alert. Receivers verify X-Arbscanner-Signature over
// timestamp + "." + body.
func (w *WebhookSender) Send(ctx context.Context, to domain.Recipient, alert domain.Alert) error {
	body, err := json.Marshal(webhookPayload{
		Event:     "arbitrage.alert",
		Subject:   Subject(alert),
		Recipient: to,
		Alert:     alert,
	})
	if err != nil {
		return fmt.Errorf("webhook: marshal payload: %w", err)
	}
	var headers map[string]string
	if w.signer != nil {
		headers = w.signer.Headers(body)
	}
	return postBody(ctx, w.client, "webhook", w.url, body, headers)
}

// Channel returns domain.ChannelWebhook.
func (w *WebhookSender) Channel() domain.Channel { return domain.ChannelWebhook }

// Name returns the sender identifier.
func (w *WebhookSender) Name() string {
	return "webhook"
}
