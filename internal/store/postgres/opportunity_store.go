package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

var _ domain.OpportunityStore = (*OpportunityStore)(nil)

// NewOpportunityStore creates a new OpportunityStore backed by the given pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const oppCols = `id, crypto, fiat, buy_exchange, sell_exchange,
	buy_price, sell_price, trade_amount, crypto_amount,
	gross_spread, spread_percent,
	buy_fee, sell_fee, withdrawal_fee, total_fees,
	net_profit, net_profit_percent, is_profitable, detected_at`

// InsertBatch stores a tick's opportunities. Rows with an existing id are
// skipped.
func (s *OpportunityStore) InsertBatch(ctx context.Context, opps []domain.Opportunity) error {
	if len(opps) == 0 {
		return nil
	}
	const query = `INSERT INTO opportunity_history (` + oppCols + `) VALUES (
		$1, $2, $3, $4, $5,
		$6, $7, $8, $9,
		$10, $11,
		$12, $13, $14, $15,
		$16, $17, $18, $19
	) ON CONFLICT (id) DO NOTHING`

	batch := &pgx.Batch{}
	for _, o := range opps {
		batch.Queue(query,
			o.ID, o.Crypto, o.Fiat, o.BuyVenue, o.SellVenue,
			o.BuyPrice, o.SellPrice, o.FiatAmount, o.CryptoAmount,
			o.GrossSpread, o.GrossSpreadPercent,
			o.Fees.BuyFee, o.Fees.SellFee, o.Fees.WithdrawalFee, o.Fees.Total,
			o.NetProfit, o.NetProfitPercent, o.Profitable, o.DetectedAt,
		)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres: insert %d opportunities: %w", len(opps), err)
	}
	return nil
}

// ListRecent returns persisted opportunities ordered by detection time, newest
// first.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	query := `SELECT ` + oppCols + ` FROM opportunity_history ORDER BY detected_at DESC, net_profit_percent DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent opportunities: %w", err)
	}
	defer rows.Close()

	opps := []domain.Opportunity{}
	for rows.Next() {
		var o domain.Opportunity
		if err := rows.Scan(
			&o.ID, &o.Crypto, &o.Fiat, &o.BuyVenue, &o.SellVenue,
			&o.BuyPrice, &o.SellPrice, &o.FiatAmount, &o.CryptoAmount,
			&o.GrossSpread, &o.GrossSpreadPercent,
			&o.Fees.BuyFee, &o.Fees.SellFee, &o.Fees.WithdrawalFee, &o.Fees.Total,
			&o.NetProfit, &o.NetProfitPercent, &o.Profitable, &o.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		opps = append(opps, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: opportunity rows: %w", err)
	}
	return opps, nil
}

// DeleteBefore prunes opportunities detected before the cutoff.
func (s *OpportunityStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM opportunity_history WHERE detected_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: prune opportunity history: %w", err)
	}
	return tag.RowsAffected(), nil
}
