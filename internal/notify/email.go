package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// DefaultResendAPI is the Resend REST root.
const DefaultResendAPI = "https://api.resend.com"

var errNoEmail = errors.New("recipient has no email address")

// EmailSender delivers alerts through the Resend email API.
type EmailSender struct {
	apiKey  string
	from    string
	apiBase string
	client  *http.Client
}

// NewEmailSender creates an EmailSender. An empty apiBase uses
// DefaultResendAPI.
func NewEmailSender(apiKey, from, apiBase string) *EmailSender {
	if apiBase == "" {
		apiBase = DefaultResendAPI
	}
	return &EmailSender{
		apiKey:  apiKey,
		from:    from,
		apiBase: strings.TrimRight(apiBase, "/"),
		client:  defaultClient(),
	}
}

type resendEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text,omitempty"`
}

// Send emails the alert to the recipient's address.
func (e *EmailSender) Send(ctx context.Context, to domain.Recipient, alert domain.Alert) error {
	if to.Email == "" {
		return fmt.Errorf("email: %w", errNoEmail)
	}
	payload := resendEmail{
		From:    e.from,
		To:      []string{to.Email},
		Subject: Subject(alert),
		HTML:    EmailHTML(alert),
		Text:    PlainText(alert),
	}
	headers := map[string]string{"Authorization": "Bearer " + e.apiKey}
	return postJSON(ctx, e.client, "email", e.apiBase+"/emails", payload, headers)
}

// Channel returns domain.ChannelEmail.
func (e *EmailSender) Channel() domain.Channel { return domain.ChannelEmail }

// Name returns the sender identifier.
func (e *EmailSender) Name() string {
	return "email"
}
