package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// QuoteStore implements domain.QuoteStore using PostgreSQL.
type QuoteStore struct {
	pool *pgxpool.Pool
}

var _ domain.QuoteStore = (*QuoteStore)(nil)

// NewQuoteStore creates a new QuoteStore backed by the given pool.
func NewQuoteStore(pool *pgxpool.Pool) *QuoteStore {
	return &QuoteStore{pool: pool}
}

// InsertSnapshot stores every admitted quote of snap in one batch.
func (s *QuoteStore) InsertSnapshot(ctx context.Context, snap domain.Snapshot) error {
	if len(snap.Quotes) == 0 {
		return nil
	}
	const query = `
		INSERT INTO quote_history (
			venue, crypto, fiat, buy_price, sell_price, volume_24h, tier, observed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	batch := &pgx.Batch{}
	for _, q := range snap.Quotes {
		batch.Queue(query,
			q.Venue, q.Crypto, q.Fiat, q.BuyPrice, q.SellPrice, q.Volume24h, string(q.Tier), q.ObservedAt,
		)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres: insert %s quotes: %w", snap.Crypto, err)
	}
	return nil
}

// ListHistory returns quotes for crypto/fiat recorded after since, oldest
// first.
func (s *QuoteStore) ListHistory(ctx context.Context, crypto, fiat string, since time.Time) ([]domain.Quote, error) {
	const query = `
		SELECT venue, crypto, fiat, buy_price, sell_price, volume_24h, tier, observed_at
		FROM quote_history
		WHERE crypto = $1 AND fiat = $2 AND recorded_at >= $3
		ORDER BY recorded_at ASC, venue ASC`

	rows, err := s.pool.Query(ctx, query, crypto, fiat, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: list %s/%s history: %w", crypto, fiat, err)
	}
	defer rows.Close()

	var quotes []domain.Quote
	for rows.Next() {
		var q domain.Quote
		var tier string
		if err := rows.Scan(
			&q.Venue, &q.Crypto, &q.Fiat, &q.BuyPrice, &q.SellPrice, &q.Volume24h, &tier, &q.ObservedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan quote: %w", err)
		}
		q.Tier = domain.Tier(tier)
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: quote rows: %w", err)
	}
	return quotes, nil
}

// DeleteBefore prunes quotes recorded before the cutoff.
func (s *QuoteStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM quote_history WHERE recorded_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: prune quote history: %w", err)
	}
	return tag.RowsAffected(), nil
}
