package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"whalewatch/internal/domain"
	"whalewatch/internal/storage"
)

// LaunchStore implements storage.LaunchStore using PostgreSQL.
// Write-once semantics come from the (chain, token_address) primary key
// plus ON CONFLICT DO NOTHING.
type LaunchStore struct {
	pool *Pool
}

// NewLaunchStore creates a new LaunchStore.
func NewLaunchStore(pool *Pool) *LaunchStore {
	return &LaunchStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LaunchStore = (*LaunchStore)(nil)

// InsertIfAbsent adds a launch keyed by (chain, token address).
// Returns false without error when the key already exists.
func (s *LaunchStore) InsertIfAbsent(ctx context.Context, l *domain.Launch) (bool, error) {
	var pair []byte
	if l.Pair != nil {
		var err error
		pair, err = json.Marshal(l.Pair)
		if err != nil {
			return false, fmt.Errorf("marshal launch pair: %w", err)
		}
	}

	query := `
		INSERT INTO token_launches (
			chain, token_address, symbol, pair_url, age_hours, liquidity_usd,
			market_cap, fdv, risk_score, pair_created_at, detected_at, pair
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (chain, token_address) DO NOTHING
	`

	tag, err := s.pool.Exec(ctx, query,
		string(l.Chain),
		l.TokenAddress,
		l.Symbol,
		l.PairURL,
		l.AgeHours,
		l.LiquidityUSD,
		l.MarketCap,
		l.FDV,
		l.RiskScore,
		l.PairCreatedAt,
		l.DetectedAt,
		pair,
	)
	if err != nil {
		return false, fmt.Errorf("insert launch: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Recent retrieves the most recent launches, newest first.
func (s *LaunchStore) Recent(ctx context.Context, limit int) ([]*domain.Launch, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT chain, token_address, symbol, pair_url, age_hours, liquidity_usd,
		       market_cap, fdv, risk_score, pair_created_at, detected_at, pair
		FROM token_launches
		ORDER BY detected_at DESC, token_address DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent launches: %w", err)
	}
	defer rows.Close()

	var launches []*domain.Launch
	for rows.Next() {
		var l domain.Launch
		var chain string
		var pair []byte

		err := rows.Scan(
			&chain,
			&l.TokenAddress,
			&l.Symbol,
			&l.PairURL,
			&l.AgeHours,
			&l.LiquidityUSD,
			&l.MarketCap,
			&l.FDV,
			&l.RiskScore,
			&l.PairCreatedAt,
			&l.DetectedAt,
			&pair,
		)
		if err != nil {
			return nil, fmt.Errorf("scan launch row: %w", err)
		}

		l.Chain = domain.Chain(chain)
		if len(pair) > 0 {
			if err := json.Unmarshal(pair, &l.Pair); err != nil {
				return nil, fmt.Errorf("unmarshal launch pair: %w", err)
			}
		}
		launches = append(launches, &l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate launch rows: %w", err)
	}

	return launches, nil
}
