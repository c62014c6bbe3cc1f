// Package notify delivers arbitrage alerts over outbound channels. Each
// channel has one Sender; the Notifier routes an alert to the senders a rule
// asked for and collects their failures.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers alert to the recipient. Operator channels ignore to.
	Send(ctx context.Context, to domain.Recipient, alert domain.Alert) error
	// Channel reports which transport this sender serves.
	Channel() domain.Channel
	// Name returns a human-readable identifier for the sender.
	Name() string
}

// Notifier routes alerts to the configured senders by channel.
type Notifier struct {
	senders map[domain.Channel]Sender
	logger  *slog.Logger
}

// NewNotifier creates a Notifier for the given senders. A later sender for the
// same channel replaces an earlier one.
func NewNotifier(senders []Sender, logger *slog.Logger) *Notifier {
	m := make(map[domain.Channel]Sender, len(senders))
	for _, s := range senders {
		m[s.Channel()] = s
	}
	return &Notifier{
		senders: m,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Channels lists the channels that have a sender, sorted.
func (n *Notifier) Channels() []domain.Channel {
	out := make([]domain.Channel, 0, len(n.senders))
	for c := range n.senders {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Deliver sends alert on each requested channel and returns the channels that
// accepted it. Channels without a configured sender are skipped. A single
// sender failure does not prevent delivery on the remaining channels; all
// failures are returned as one combined error.
func (n *Notifier) Deliver(ctx context.Context, to domain.Recipient, alert domain.Alert, channels []domain.Channel) ([]domain.Channel, error) {
	var (
		delivered []domain.Channel
		errs      []string
	)
	for _, ch := range channels {
		s, ok := n.senders[ch]
		if !ok {
			n.logger.DebugContext(ctx, "no sender for channel",
				slog.String("channel", string(ch)),
				slog.String("rule_id", alert.RuleID),
			)
			continue
		}
		if err := s.Send(ctx, to, alert); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("rule_id", alert.RuleID),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("rule_id", alert.RuleID),
		)
		delivered = append(delivered, ch)
	}

	if len(errs) > 0 {
		return delivered, fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return delivered, nil
}

func defaultClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}
