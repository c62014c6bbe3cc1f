package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// AlertRuleStore implements domain.AlertRuleRepository. Recipients live on
// the users table and are upserted when a rule is created.
type AlertRuleStore struct {
	pool *pgxpool.Pool
}

var _ domain.AlertRuleRepository = (*AlertRuleStore)(nil)

// NewAlertRuleStore creates a new AlertRuleStore backed by the given pool.
func NewAlertRuleStore(pool *pgxpool.Pool) *AlertRuleStore {
	return &AlertRuleStore{pool: pool}
}

const ruleSelect = `
	SELECT r.id, r.user_id, r.crypto, r.min_spread_percent,
		r.buy_exchanges, r.sell_exchanges, r.is_active,
		r.notify_telegram, r.notify_email, r.notify_discord, r.notify_webhook,
		COALESCE(u.telegram_chat_id, ''), COALESCE(u.email, '')
	FROM alert_rules r
	JOIN users u ON u.id = r.user_id`

// ListActive returns every active rule with its owner's recipient details.
func (s *AlertRuleStore) ListActive(ctx context.Context) ([]domain.AlertRule, error) {
	rows, err := s.pool.Query(ctx, ruleSelect+` WHERE r.is_active ORDER BY r.created_at`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active alert rules: %w", err)
	}
	return collectRules(rows)
}

// List returns all of userID's rules, newest first.
func (s *AlertRuleStore) List(ctx context.Context, userID string) ([]domain.AlertRule, error) {
	rows, err := s.pool.Query(ctx, ruleSelect+` WHERE r.user_id = $1 ORDER BY r.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list alert rules for %s: %w", userID, err)
	}
	return collectRules(rows)
}

// Create upserts the owning user's recipient details and inserts the rule in
// one transaction.
func (s *AlertRuleStore) Create(ctx context.Context, rule domain.AlertRule) (domain.AlertRule, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.AlertRule{}, fmt.Errorf("postgres: begin create rule: %w", err)
	}
	defer tx.Rollback(ctx)

	const upsertUser = `
		INSERT INTO users (id, email, telegram_chat_id)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''))
		ON CONFLICT (id) DO UPDATE SET
			email            = COALESCE(EXCLUDED.email, users.email),
			telegram_chat_id = COALESCE(EXCLUDED.telegram_chat_id, users.telegram_chat_id),
			updated_at       = NOW()`
	if _, err := tx.Exec(ctx, upsertUser, rule.UserID, rule.Recipient.Email, rule.Recipient.TelegramChatID); err != nil {
		return domain.AlertRule{}, fmt.Errorf("postgres: upsert user %s: %w", rule.UserID, err)
	}

	const insertRule = `
		INSERT INTO alert_rules (
			id, user_id, crypto, min_spread_percent,
			buy_exchanges, sell_exchanges, is_active,
			notify_telegram, notify_email, notify_discord, notify_webhook
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := tx.Exec(ctx, insertRule,
		rule.ID, rule.UserID, rule.Crypto, rule.MinSpreadPercent,
		nonNil(rule.BuyVenues), nonNil(rule.SellVenues), rule.Active,
		rule.NotifyTelegram, rule.NotifyEmail, rule.NotifyDiscord, rule.NotifyWebhook,
	); err != nil {
		return domain.AlertRule{}, fmt.Errorf("postgres: insert alert rule %s: %w", rule.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.AlertRule{}, fmt.Errorf("postgres: commit alert rule %s: %w", rule.ID, err)
	}
	return rule, nil
}

// Delete removes a rule. It returns domain.ErrNotFound when no row matched.
func (s *AlertRuleStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM alert_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete alert rule %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func collectRules(rows pgx.Rows) ([]domain.AlertRule, error) {
	defer rows.Close()

	var rules []domain.AlertRule
	for rows.Next() {
		var r domain.AlertRule
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.Crypto, &r.MinSpreadPercent,
			&r.BuyVenues, &r.SellVenues, &r.Active,
			&r.NotifyTelegram, &r.NotifyEmail, &r.NotifyDiscord, &r.NotifyWebhook,
			&r.Recipient.TelegramChatID, &r.Recipient.Email,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan alert rule: %w", err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: alert rule rows: %w", err)
	}
	return rules, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
