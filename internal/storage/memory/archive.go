package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"whalewatch/internal/domain"
	"whalewatch/internal/storage"
)

// TransactionArchive implements storage.TransactionArchive in memory.
type TransactionArchive struct {
	mu  sync.RWMutex
	txs []*domain.WhaleTransaction
}

// NewTransactionArchive creates a new in-memory TransactionArchive.
func NewTransactionArchive() *TransactionArchive {
	return &TransactionArchive{}
}

var _ storage.TransactionArchive = (*TransactionArchive)(nil)

// Insert archives a whale transaction.
func (s *TransactionArchive) Insert(ctx context.Context, tx *domain.WhaleTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *tx
	s.txs = append(s.txs, &cp)
	return nil
}

// Trending aggregates token activity since the given time.
func (s *TransactionArchive) Trending(ctx context.Context, since time.Time, limit int) ([]storage.TrendingToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agg := make(map[string]*storage.TrendingToken)
	for _, tx := range s.txs {
		if tx.Timestamp.Before(since) {
			continue
		}
		symbol := tx.Chain.NativeSymbol()
		address := ""
		if tx.Token != nil {
			symbol = tx.Token.Symbol
			address = tx.Token.Address
		}
		key := string(tx.Chain) + "|" + symbol
		t, ok := agg[key]
		if !ok {
			t = &storage.TrendingToken{Symbol: symbol, Address: address, Chain: string(tx.Chain)}
			agg[key] = t
		}
		t.Count++
		t.TotalUSD += tx.ValueUSD
	}

	out := make([]storage.TrendingToken, 0, len(agg))
	for _, t := range agg {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Rollup24h summarizes the trailing 24 hours.
func (s *TransactionArchive) Rollup24h(ctx context.Context) (*storage.DailyRollup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Add(-24 * time.Hour)
	rollup := &storage.DailyRollup{}
	for _, tx := range s.txs {
		if tx.Timestamp.Before(cutoff) {
			continue
		}
		rollup.Transactions++
		rollup.TotalUSD += tx.ValueUSD
	}
	return rollup, nil
}
