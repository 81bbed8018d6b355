package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"whalewatch/internal/domain"
	"whalewatch/internal/storage"
)

// AlertStore implements storage.AlertStore using PostgreSQL. The full
// analysis payload is stored as JSONB alongside the indexed columns.
type AlertStore struct {
	pool *Pool
}

// NewAlertStore creates a new AlertStore.
func NewAlertStore(pool *Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AlertStore = (*AlertStore)(nil)

// Insert adds a new alert. Returns ErrDuplicateKey if the id exists.
func (s *AlertStore) Insert(ctx context.Context, a *domain.WhaleAlert) error {
	var analysis []byte
	if a.Analysis != nil {
		var err error
		analysis, err = json.Marshal(a.Analysis)
		if err != nil {
			return fmt.Errorf("marshal alert analysis: %w", err)
		}
	}

	query := `
		INSERT INTO whale_alerts (
			id, created_at, whale_address, token_address, chain, tx_hash, level, message, read, analysis
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.pool.Exec(ctx, query,
		a.ID,
		a.Timestamp,
		a.WhaleAddress,
		a.TokenAddress,
		string(a.Chain),
		a.TxHash,
		string(a.Level),
		a.Message,
		a.Read,
		analysis,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// Recent retrieves the most recent alerts, newest first.
func (s *AlertStore) Recent(ctx context.Context, limit int) ([]*domain.WhaleAlert, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, created_at, whale_address, token_address, chain, tx_hash, level, message, read, analysis
		FROM whale_alerts
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*domain.WhaleAlert
	for rows.Next() {
		var a domain.WhaleAlert
		var chain, level string
		var analysis []byte

		err := rows.Scan(
			&a.ID,
			&a.Timestamp,
			&a.WhaleAddress,
			&a.TokenAddress,
			&chain,
			&a.TxHash,
			&level,
			&a.Message,
			&a.Read,
			&analysis,
		)
		if err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}

		a.Chain = domain.Chain(chain)
		a.Level = domain.AlertLevel(level)
		if len(analysis) > 0 {
			if err := json.Unmarshal(analysis, &a.Analysis); err != nil {
				return nil, fmt.Errorf("unmarshal alert analysis: %w", err)
			}
		}
		alerts = append(alerts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert rows: %w", err)
	}

	return alerts, nil
}

// MarkRead sets the read flag. Returns ErrNotFound if the id does not exist.
func (s *AlertStore) MarkRead(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE whale_alerts SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark alert read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
