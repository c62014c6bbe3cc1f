package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// AlertService manages user alert rules.
type AlertService struct {
	rules   domain.AlertRuleRepository
	venues  VenueLister
	cryptos []string
	logger  *slog.Logger
}

// NewAlertService creates an AlertService. cryptos are the symbols a rule may
// filter on.
func NewAlertService(rules domain.AlertRuleRepository, venues VenueLister, cryptos []string, logger *slog.Logger) *AlertService {
	return &AlertService{
		rules:   rules,
		venues:  venues,
		cryptos: cryptos,
		logger:  logger.With(slog.String("component", "alert_service")),
	}
}

// List returns userID's rules.
func (s *AlertService) List(ctx context.Context, userID string) ([]domain.AlertRule, error) {
	if userID == "" {
		return nil, fmt.Errorf("alert_service: user id required: %w", domain.ErrInvalidInput)
	}
	rules, err := s.rules.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("alert_service: list rules for %s: %w", userID, err)
	}
	return rules, nil
}

// Create validates and stores a new active rule.
func (s *AlertService) Create(ctx context.Context, rule domain.AlertRule) (domain.AlertRule, error) {
	if err := s.validate(&rule); err != nil {
		return domain.AlertRule{}, err
	}
	rule.ID = uuid.NewString()
	rule.Active = true

	created, err := s.rules.Create(ctx, rule)
	if err != nil {
		return domain.AlertRule{}, fmt.Errorf("alert_service: create rule: %w", err)
	}
	s.logger.InfoContext(ctx, "alert rule created",
		slog.String("rule_id", created.ID),
		slog.String("user_id", created.UserID),
		slog.String("crypto", created.Crypto),
	)
	return created, nil
}

// Delete removes a rule.
func (s *AlertService) Delete(ctx context.Context, id string) error {
	if err := s.rules.Delete(ctx, id); err != nil {
		return fmt.Errorf("alert_service: delete rule %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "alert rule deleted", slog.String("rule_id", id))
	return nil
}

func (s *AlertService) validate(rule *domain.AlertRule) error {
	var errs []string
	if rule.UserID == "" {
		errs = append(errs, "user_id is required")
	}
	rule.Crypto = strings.ToUpper(strings.TrimSpace(rule.Crypto))
	if rule.Crypto != "" && !contains(s.cryptos, rule.Crypto) {
		errs = append(errs, fmt.Sprintf("unsupported crypto %q", rule.Crypto))
	}
	if rule.MinSpreadPercent.IsNegative() {
		errs = append(errs, "min_spread_percent must not be negative")
	}
	known := make(map[string]bool)
	for _, v := range s.venues.Venues() {
		known[v.ID] = true
	}
	for _, id := range append(append([]string{}, rule.BuyVenues...), rule.SellVenues...) {
		if !known[id] {
			errs = append(errs, fmt.Sprintf("unknown exchange %q", id))
		}
	}
	if len(rule.Channels()) == 0 {
		errs = append(errs, "at least one notification channel is required")
	}
	if rule.NotifyTelegram && rule.Recipient.TelegramChatID == "" {
		errs = append(errs, "telegram_chat_id is required for telegram alerts")
	}
	if rule.NotifyEmail && rule.Recipient.Email == "" {
		errs = append(errs, "email is required for email alerts")
	}
	if len(errs) > 0 {
		return fmt.Errorf("alert_service: %s: %w", strings.Join(errs, "; "), domain.ErrInvalidInput)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
