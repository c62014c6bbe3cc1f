package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// DefaultTelegramAPI is the Bot API root.
const DefaultTelegramAPI = "https://api.telegram.org"

var errNoChatID = errors.New("recipient has no telegram chat id")

// TelegramSender delivers alerts via the Telegram Bot API to each
// recipient's own chat.
type TelegramSender struct {
	token   string
	apiBase string
	client  *http.Client
}

// NewTelegramSender creates a TelegramSender for the given bot token. An
// empty apiBase uses DefaultTelegramAPI. It uses a default HTTP client with a
// 10-second timeout.
func NewTelegramSender(token, apiBase string) *TelegramSender {
	if apiBase == "" {
		apiBase = DefaultTelegramAPI
	}
	return &TelegramSender{
		token:   token,
		apiBase: strings.TrimRight(apiBase, "/"),
		client:  defaultClient(),
	}
}

// Send posts the HTML-rendered alert to the recipient's chat using the
// sendMessage API.
func (t *TelegramSender) Send(ctx context.Context, to domain.Recipient, alert domain.Alert) error {
	if to.TelegramChatID == "" {
		return fmt.Errorf("telegram: %w", errNoChatID)
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)

	payload := map[string]any{
		"chat_id":              to.TelegramChatID,
		"text":                 TelegramHTML(alert),
		"parse_mode":           "HTML",
		"disable_notification": false,
	}
	return postJSON(ctx, t.client, "telegram", url, payload, nil)
}

// Channel returns domain.ChannelTelegram.
func (t *TelegramSender) Channel() domain.Channel { return domain.ChannelTelegram }

// Name returns the sender identifier.
func (t *TelegramSender) Name() string {
	return "telegram"
}
