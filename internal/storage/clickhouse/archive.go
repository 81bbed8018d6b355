package clickhouse

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"whalewatch/internal/domain"
	"whalewatch/internal/storage"
)

// TransactionArchive implements storage.TransactionArchive using
// ClickHouse. The table is an append-only MergeTree; duplicates from
// at-least-once writes are tolerated by the aggregate queries.
type TransactionArchive struct {
	conn *Conn
}

// NewTransactionArchive creates a new TransactionArchive.
func NewTransactionArchive(conn *Conn) *TransactionArchive {
	return &TransactionArchive{conn: conn}
}

// Compile-time interface check.
var _ storage.TransactionArchive = (*TransactionArchive)(nil)

// Insert archives a confirmed whale transaction.
func (a *TransactionArchive) Insert(ctx context.Context, tx *domain.WhaleTransaction) error {
	batch, err := a.conn.PrepareBatch(ctx, `
		INSERT INTO whale_transactions (
			hash, chain, from_address, to_address, value, value_usd,
			classification, status, block_number, token_address, token_symbol, timestamp
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	value, _ := strconv.ParseFloat(tx.Value, 64)
	var tokenAddress, tokenSymbol string
	if tx.Token != nil {
		tokenAddress = tx.Token.Address
		tokenSymbol = tx.Token.Symbol
	}

	err = batch.Append(
		tx.Hash,
		string(tx.Chain),
		tx.From,
		tx.To,
		value,
		tx.ValueUSD,
		string(tx.Classification),
		string(tx.Status),
		uint64(tx.BlockNumber),
		tokenAddress,
		tokenSymbol,
		tx.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// Trending aggregates token activity since the given time, ordered by
// transaction count descending. Transactions without token metadata do
// not contribute.
func (a *TransactionArchive) Trending(ctx context.Context, since time.Time, limit int) ([]storage.TrendingToken, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT token_symbol, any(token_address), chain, count() AS cnt, sum(value_usd)
		FROM whale_transactions
		WHERE timestamp >= ? AND token_symbol != ''
		GROUP BY token_symbol, chain
		ORDER BY cnt DESC
		LIMIT ?
	`

	rows, err := a.conn.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query trending: %w", err)
	}
	defer rows.Close()

	var tokens []storage.TrendingToken
	for rows.Next() {
		var t storage.TrendingToken
		var count uint64

		if err := rows.Scan(&t.Symbol, &t.Address, &t.Chain, &count, &t.TotalUSD); err != nil {
			return nil, fmt.Errorf("scan trending row: %w", err)
		}
		t.Count = int64(count)
		tokens = append(tokens, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trending rows: %w", err)
	}

	return tokens, nil
}

// Rollup24h summarizes the trailing 24 hours.
func (a *TransactionArchive) Rollup24h(ctx context.Context) (*storage.DailyRollup, error) {
	query := `
		SELECT count(), sum(value_usd)
		FROM whale_transactions
		WHERE timestamp >= now() - INTERVAL 24 HOUR
	`

	var count uint64
	var total float64
	if err := a.conn.QueryRow(ctx, query).Scan(&count, &total); err != nil {
		return nil, fmt.Errorf("query 24h rollup: %w", err)
	}

	return &storage.DailyRollup{
		Transactions: int64(count),
		TotalUSD:     total,
	}, nil
}
