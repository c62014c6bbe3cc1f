package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// AlertLogStore implements domain.AlertLogStore using PostgreSQL.
type AlertLogStore struct {
	pool *pgxpool.Pool
}

var _ domain.AlertLogStore = (*AlertLogStore)(nil)

// NewAlertLogStore creates a new AlertLogStore backed by the given pool.
func NewAlertLogStore(pool *pgxpool.Pool) *AlertLogStore {
	return &AlertLogStore{pool: pool}
}

// Record appends a delivered alert.
func (s *AlertLogStore) Record(ctx context.Context, e domain.AlertLogEntry) error {
	channels := make([]string, len(e.Channels))
	for i, c := range e.Channels {
		channels[i] = string(c)
	}
	const query = `
		INSERT INTO alert_log (id, rule_id, user_id, crypto, buy_exchange, sell_exchange, channels, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := s.pool.Exec(ctx, query,
		e.ID, e.RuleID, e.UserID, e.Crypto, e.BuyVenue, e.SellVenue, channels, e.CreatedAt,
	); err != nil {
		return fmt.Errorf("postgres: record alert %s: %w", e.ID, err)
	}
	return nil
}
