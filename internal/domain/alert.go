package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Channel names an outbound notification transport.
type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelEmail    Channel = "email"
	ChannelDiscord  Channel = "discord"
	ChannelWebhook  Channel = "webhook"
)

// Recipient carries the per-user delivery targets.
type Recipient struct {
	TelegramChatID string `json:"telegram_chat_id,omitempty"`
	Email          string `json:"email,omitempty"`
}

// AlertRule is a user's threshold for being notified about an opportunity.
// An empty Crypto matches every crypto; empty venue lists match every venue.
type AlertRule struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	Crypto           string          `json:"crypto,omitempty"`
	MinSpreadPercent decimal.Decimal `json:"min_spread_percent"`
	BuyVenues        []string        `json:"buy_exchanges,omitempty"`
	SellVenues       []string        `json:"sell_exchanges,omitempty"`
	Active           bool            `json:"is_active"`
	NotifyTelegram   bool            `json:"notify_telegram"`
	NotifyEmail      bool            `json:"notify_email"`
	NotifyDiscord    bool            `json:"notify_discord"`
	NotifyWebhook    bool            `json:"notify_webhook"`
	Recipient        Recipient       `json:"recipient"`
}

// Channels lists the transports selected by the rule's flags.
func (r AlertRule) Channels() []Channel {
	var out []Channel
	if r.NotifyTelegram {
		out = append(out, ChannelTelegram)
	}
	if r.NotifyEmail {
		out = append(out, ChannelEmail)
	}
	if r.NotifyDiscord {
		out = append(out, ChannelDiscord)
	}
	if r.NotifyWebhook {
		out = append(out, ChannelWebhook)
	}
	return out
}

// Alert is the structured payload handed to notification transports.
type Alert struct {
	RuleID      string      `json:"rule_id"`
	UserID      string      `json:"user_id"`
	Opportunity Opportunity `json:"opportunity"`
	CreatedAt   time.Time   `json:"created_at"`
}

// AlertLogEntry records one delivered alert.
type AlertLogEntry struct {
	ID        string    `json:"id"`
	RuleID    string    `json:"rule_id"`
	UserID    string    `json:"user_id"`
	Crypto    string    `json:"crypto"`
	BuyVenue  string    `json:"buy_exchange"`
	SellVenue string    `json:"sell_exchange"`
	Channels  []Channel `json:"channels"`
	CreatedAt time.Time `json:"created_at"`
}
