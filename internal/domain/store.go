package domain

import (
	"context"
	"time"
)

// AlertRuleStore lists the rules the dispatcher evaluates each tick.
type AlertRuleStore interface {
	ListActive(ctx context.Context) ([]AlertRule, error)
}

// AlertRuleRepository manages user-owned alert rules. Recipient details are
// stored on the owning user.
type AlertRuleRepository interface {
	AlertRuleStore
	List(ctx context.Context, userID string) ([]AlertRule, error)
	Create(ctx context.Context, rule AlertRule) (AlertRule, error)
	Delete(ctx context.Context, id string) error
}

// QuoteStore persists admitted quotes for historical charts.
type QuoteStore interface {
	InsertSnapshot(ctx context.Context, snap Snapshot) error
	ListHistory(ctx context.Context, crypto, fiat string, since time.Time) ([]Quote, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// OpportunityStore persists ranked opportunities per tick.
type OpportunityStore interface {
	InsertBatch(ctx context.Context, opps []Opportunity) error
	ListRecent(ctx context.Context, limit int) ([]Opportunity, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AlertLogStore records delivered alerts.
type AlertLogStore interface {
	Record(ctx context.Context, entry AlertLogEntry) error
}
