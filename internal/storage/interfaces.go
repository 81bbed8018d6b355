package storage

import (
	"context"
	"errors"
	"time"

	"whalewatch/internal/domain"
)

// Sentinel errors shared by all store implementations.
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
)

// AlertStore provides append-only access to whale alerts.
type AlertStore interface {
	// Insert adds a new alert. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, a *domain.WhaleAlert) error

	// Recent retrieves the most recent alerts, newest first.
	Recent(ctx context.Context, limit int) ([]*domain.WhaleAlert, error)

	// MarkRead sets the read flag. Returns ErrNotFound if the id does not exist.
	MarkRead(ctx context.Context, id string) error
}

// LaunchStore provides write-once access to detected launches.
type LaunchStore interface {
	// InsertIfAbsent adds a launch keyed by (chain, token address).
	// Returns false without error when the key already exists.
	InsertIfAbsent(ctx context.Context, l *domain.Launch) (bool, error)

	// Recent retrieves the most recent launches, newest first.
	Recent(ctx context.Context, limit int) ([]*domain.Launch, error)
}

// TrendingToken is an aggregate over archived whale transactions.
type TrendingToken struct {
	Symbol   string  `json:"symbol"`
	Address  string  `json:"address,omitempty"`
	Chain    string  `json:"chain"`
	Count    int64   `json:"count"`
	TotalUSD float64 `json:"total_usd"`
}

// DailyRollup summarizes the last 24 hours of archived transactions.
type DailyRollup struct {
	Transactions int64   `json:"transactions"`
	TotalUSD     float64 `json:"total_usd"`
}

// TransactionArchive provides append-only analytics storage for whale
// transactions. Writes are best-effort at the call site.
type TransactionArchive interface {
	// Insert archives a confirmed whale transaction.
	Insert(ctx context.Context, tx *domain.WhaleTransaction) error

	// Trending aggregates token activity since the given time,
	// ordered by transaction count descending.
	Trending(ctx context.Context, since time.Time, limit int) ([]TrendingToken, error)

	// Rollup24h summarizes the trailing 24 hours.
	Rollup24h(ctx context.Context) (*DailyRollup, error)
}
