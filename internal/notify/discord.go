package notify

import (
	"context"
	"net/http"
	"time"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// embedColor is the orange sidebar on alert embeds.
const embedColor = 0xF5A623

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields"`
	Timestamp   string         `json:"timestamp"`
}

type discordMessage struct {
	Username string         `json:"username"`
	Embeds   []discordEmbed `json:"embeds"`
}

// DiscordSender posts alerts as embeds to the operator's webhook; the
// recipient is not used.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{webhookURL: webhookURL, client: defaultClient()}
}

func discordPayload(a domain.Alert) discordMessage {
	o := a.Opportunity
	sym := currencySymbol(o.Fiat)
	ts := a.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return discordMessage{
		Username: "ArbScanner",
		Embeds: []discordEmbed{{
			Title:       Subject(a),
			Description: PlainText(a),
			Color:       embedColor,
			Fields: []discordField{
				{Name: "Buy on " + o.BuyVenue, Value: sym + FormatMoney(o.BuyPrice), Inline: true},
				{Name: "Sell on " + o.SellVenue, Value: sym + FormatMoney(o.SellPrice), Inline: true},
				{Name: "Per " + sym + "1M", Value: sym + FormatMoney(ProfitPerMillion(o)), Inline: true},
			},
			Timestamp: ts.UTC().Format(time.RFC3339),
		}},
	}
}

// Send answers with 204 on success; postJSON treats any 2xx as delivered.
func (d *DiscordSender) Send(ctx context.Context, _ domain.Recipient, alert domain.Alert) error {
	return postJSON(ctx, d.client, "discord", d.webhookURL, discordPayload(alert), nil)
}

func (d *DiscordSender) Channel() domain.Channel { return domain.ChannelDiscord }

func (d *DiscordSender) Name() string { return "discord" }
