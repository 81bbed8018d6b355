// Package stats aggregates pipeline-wide figures for the query API:
// totals across chains, trailing-24h rollups, trending tokens, and a
// probabilistic count of unique active whale addresses.
package stats

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/axiomhq/hyperloglog"

	"whalewatch/internal/domain"
	"whalewatch/internal/fanout"
	"whalewatch/internal/storage"
)

// Engine is the per-chain view the service aggregates over.
// Implemented by detection.Engine.
type Engine interface {
	Chain() domain.Chain
	Counts() (transactions, whales int)
	Price() float64
	RecentTransactions(limit int, minUSD float64) []*domain.WhaleTransaction
}

// Snapshot is the aggregate stats payload.
type Snapshot struct {
	TotalTransactions int                  `json:"total_transactions"`
	TotalWhales       int                  `json:"total_whales"`
	TotalValueUSD     float64              `json:"total_value_usd"`
	UniqueAddresses   uint64               `json:"unique_addresses"`
	Prices            map[string]float64   `json:"prices"`
	Rollup24h         *storage.DailyRollup `json:"rollup_24h,omitempty"`
	GeneratedAt       time.Time            `json:"generated_at"`
}

// Service aggregates stats over the detection engines. When an archive
// is configured, trending and rollups are served from it; otherwise
// they fall back to the engines' in-memory history.
type Service struct {
	engines []Engine
	archive storage.TransactionArchive
	logger  *log.Logger

	mu       sync.Mutex
	sketch   *hyperloglog.Sketch
	valueUSD float64
}

// New creates a stats service. archive may be nil.
func New(engines []Engine, archive storage.TransactionArchive, logger *log.Logger) *Service {
	return &Service{
		engines: engines,
		archive: archive,
		logger:  logger,
		sketch:  hyperloglog.New16(),
	}
}

// Run consumes transaction events from the bus, feeding the unique
// address sketch and the running USD total. Returns when the context is
// cancelled.
func (s *Service) Run(ctx context.Context, bus *fanout.Bus) {
	events, cancel := bus.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Type != domain.EventTransaction {
				continue
			}
			tx, ok := ev.Data.(*domain.WhaleTransaction)
			if !ok {
				continue
			}
			s.observe(tx)
		}
	}
}

func (s *Service) observe(tx *domain.WhaleTransaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.From != "" {
		s.sketch.Insert([]byte(tx.From))
	}
	if tx.To != "" {
		s.sketch.Insert([]byte(tx.To))
	}
	s.valueUSD += tx.ValueUSD
}

// Stats assembles the aggregate snapshot. Archive failures degrade to a
// snapshot without the rollup.
func (s *Service) Stats(ctx context.Context) *Snapshot {
	snap := &Snapshot{
		Prices:      make(map[string]float64, len(s.engines)),
		GeneratedAt: time.Now().UTC(),
	}
	for _, e := range s.engines {
		txs, whales := e.Counts()
		snap.TotalTransactions += txs
		snap.TotalWhales += whales
		snap.Prices[string(e.Chain())] = e.Price()
	}

	s.mu.Lock()
	snap.UniqueAddresses = s.sketch.Estimate()
	snap.TotalValueUSD = s.valueUSD
	s.mu.Unlock()

	if s.archive != nil {
		rollup, err := s.archive.Rollup24h(ctx)
		if err != nil {
			s.logger.Printf("rollup: %v", err)
		} else {
			snap.Rollup24h = rollup
		}
	}
	return snap
}

// TimeframeSince resolves a trending timeframe label to its window
// start.
func TimeframeSince(timeframe string, now time.Time) (time.Time, error) {
	switch timeframe {
	case "1h":
		return now.Add(-time.Hour), nil
	case "24h", "":
		return now.Add(-24 * time.Hour), nil
	case "7d":
		return now.Add(-7 * 24 * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unknown timeframe %q", timeframe)
	}
}

// Trending returns the most active tokens since the window start,
// ordered by transaction count descending.
func (s *Service) Trending(ctx context.Context, timeframe string, limit int) ([]storage.TrendingToken, error) {
	since, err := TimeframeSince(timeframe, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if s.archive != nil {
		return s.archive.Trending(ctx, since, limit)
	}
	return s.memoryTrending(since, limit), nil
}

// memoryTrending aggregates over the engines' bounded histories. Only
// transactions carrying token metadata contribute.
func (s *Service) memoryTrending(since time.Time, limit int) []storage.TrendingToken {
	type key struct {
		chain, symbol string
	}
	agg := make(map[key]*storage.TrendingToken)

	for _, e := range s.engines {
		for _, tx := range e.RecentTransactions(0, 0) {
			if tx.Token == nil || tx.Timestamp.Before(since) {
				continue
			}
			k := key{chain: string(tx.Chain), symbol: tx.Token.Symbol}
			entry, ok := agg[k]
			if !ok {
				entry = &storage.TrendingToken{
					Symbol:  tx.Token.Symbol,
					Address: tx.Token.Address,
					Chain:   string(tx.Chain),
				}
				agg[k] = entry
			}
			entry.Count++
			entry.TotalUSD += tx.ValueUSD
		}
	}

	out := make([]storage.TrendingToken, 0, len(agg))
	for _, entry := range agg {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
