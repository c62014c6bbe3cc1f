package notify

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

var million = decimal.NewFromInt(1_000_000)

// ProfitPerMillion is the gross profit of pushing one million units of fiat
// through the opportunity before fees.
func ProfitPerMillion(o domain.Opportunity) decimal.Decimal {
	if !o.BuyPrice.IsPositive() {
		return decimal.Zero
	}
	return o.SellPrice.Sub(o.BuyPrice).Mul(million).Div(o.BuyPrice).RoundBank(2)
}

// Subject is the one-line summary used for email subjects and chat titles.
func Subject(a domain.Alert) string {
	o := a.Opportunity
	return fmt.Sprintf("🚨 %s%% Arbitrage: %s %s → %s",
		o.GrossSpreadPercent.StringFixed(1), o.Crypto, o.BuyVenue, o.SellVenue)
}

// TelegramHTML renders the alert for Telegram's HTML parse mode.
func TelegramHTML(a domain.Alert) string {
	o := a.Opportunity
	sym := currencySymbol(o.Fiat)
	var b strings.Builder
	b.WriteString("🚨 <b>Arbitrage Alert!</b>\n\n")
	fmt.Fprintf(&b, "<b>%s</b> - %s%% Spread\n\n", html.EscapeString(o.Crypto), o.GrossSpreadPercent.StringFixed(2))
	fmt.Fprintf(&b, "📉 <b>Buy on %s</b>\n   %s%s\n\n", html.EscapeString(o.BuyVenue), sym, FormatMoney(o.BuyPrice))
	fmt.Fprintf(&b, "📈 <b>Sell on %s</b>\n   %s%s\n\n", html.EscapeString(o.SellVenue), sym, FormatMoney(o.SellPrice))
	fmt.Fprintf(&b, "💰 <b>Potential Profit:</b> %s%s per %s1M\n\n", sym, FormatMoney(ProfitPerMillion(o)), sym)
	b.WriteString("⚠️ <i>Prices change rapidly. Verify before trading.</i>")
	return b.String()
}

// PlainText renders the alert as markdown-free text for operator feeds.
func PlainText(a domain.Alert) string {
	o := a.Opportunity
	sym := currencySymbol(o.Fiat)
	return fmt.Sprintf(
		"%s %s%% spread\nBuy on %s at %s%s\nSell on %s at %s%s\nNet on %s%s: %s%s (%s%%)",
		o.Crypto, o.GrossSpreadPercent.StringFixed(2),
		o.BuyVenue, sym, FormatMoney(o.BuyPrice),
		o.SellVenue, sym, FormatMoney(o.SellPrice),
		sym, FormatMoney(o.FiatAmount), sym, FormatMoney(o.NetProfit), o.NetProfitPercent.StringFixed(2),
	)
}

// EmailHTML renders the alert as a standalone HTML document.
func EmailHTML(a domain.Alert) string {
	o := a.Opportunity
	sym := currencySymbol(o.Fiat)
	crypto := html.EscapeString(o.Crypto)
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><body style="font-family: Arial, sans-serif; color: #111827;">`)
	b.WriteString(`<div style="max-width: 600px; margin: 0 auto; padding: 20px;">`)
	b.WriteString(`<h1 style="color: #dc2626;">Arbitrage Alert!</h1>`)
	fmt.Fprintf(&b, `<p style="font-size: 24px; font-weight: bold; text-align: center;">%s%% Spread</p>`, o.GrossSpreadPercent.StringFixed(2))
	fmt.Fprintf(&b, `<div style="background: #f3f4f6; padding: 12px; border-radius: 6px;"><strong>BUY %s</strong> on %s<br>%s%s</div>`,
		crypto, html.EscapeString(o.BuyVenue), sym, FormatMoney(o.BuyPrice))
	b.WriteString(`<p style="text-align: center;">↓</p>`)
	fmt.Fprintf(&b, `<div style="background: #f3f4f6; padding: 12px; border-radius: 6px;"><strong>SELL %s</strong> on %s<br>%s%s</div>`,
		crypto, html.EscapeString(o.SellVenue), sym, FormatMoney(o.SellPrice))
	fmt.Fprintf(&b, `<p style="text-align: center; color: #10b981;"><strong>Potential profit: %s%s per %s1M</strong></p>`,
		sym, FormatMoney(ProfitPerMillion(o)), sym)
	b.WriteString(`<p style="font-size: 12px; color: #6b7280;">Note: Prices change rapidly. Verify current prices before trading.</p>`)
	b.WriteString(`</div></body></html>`)
	return b.String()
}

// FormatMoney renders d with two decimals and comma thousands separators.
func FormatMoney(d decimal.Decimal) string {
	s := d.StringFixedBank(2)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

func currencySymbol(fiat string) string {
	switch strings.ToUpper(fiat) {
	case "NGN", "":
		return "₦"
	case "USD":
		return "$"
	default:
		return strings.ToUpper(fiat) + " "
	}
}
