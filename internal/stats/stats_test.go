package stats

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whalewatch/internal/domain"
	"whalewatch/internal/fanout"
)

type fakeEngine struct {
	chain  domain.Chain
	txs    int
	whales int
	price  float64
	recent []*domain.WhaleTransaction
}

func (f *fakeEngine) Chain() domain.Chain          { return f.chain }
func (f *fakeEngine) Counts() (int, int)           { return f.txs, f.whales }
func (f *fakeEngine) Price() float64               { return f.price }
func (f *fakeEngine) RecentTransactions(limit int, minUSD float64) []*domain.WhaleTransaction {
	return f.recent
}

func testLogger() *log.Logger {
	return log.New(os.Stdout, "[test] ", log.LstdFlags)
}

func TestTimeframeSince(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	since, err := TimeframeSince("1h", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-time.Hour), since)

	since, err = TimeframeSince("24h", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-24*time.Hour), since)

	// Empty defaults to 24h
	since, err = TimeframeSince("", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-24*time.Hour), since)

	since, err = TimeframeSince("7d", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-7*24*time.Hour), since)

	_, err = TimeframeSince("1y", now)
	assert.Error(t, err)
}

func TestStats_AggregatesAcrossEngines(t *testing.T) {
	engines := []Engine{
		&fakeEngine{chain: domain.ChainEthereum, txs: 10, whales: 3, price: 2000},
		&fakeEngine{chain: domain.ChainSolana, txs: 5, whales: 2, price: 150},
	}
	s := New(engines, nil, testLogger())

	snap := s.Stats(context.Background())
	assert.Equal(t, 15, snap.TotalTransactions)
	assert.Equal(t, 5, snap.TotalWhales)
	assert.Equal(t, 2000.0, snap.Prices["ethereum"])
	assert.Equal(t, 150.0, snap.Prices["solana"])
	assert.Nil(t, snap.Rollup24h)
	assert.False(t, snap.GeneratedAt.IsZero())
}

func TestObserve_UniqueAddressesAndValue(t *testing.T) {
	s := New(nil, nil, testLogger())

	s.observe(&domain.WhaleTransaction{From: "0xa", To: "0xb", ValueUSD: 1000})
	s.observe(&domain.WhaleTransaction{From: "0xa", To: "0xc", ValueUSD: 500})
	s.observe(&domain.WhaleTransaction{From: "", To: "0xb", ValueUSD: 250})

	snap := s.Stats(context.Background())
	assert.Equal(t, 1750.0, snap.TotalValueUSD)
	// Three distinct addresses; the sketch estimate is exact at this
	// cardinality
	assert.Equal(t, uint64(3), snap.UniqueAddresses)
}

func TestRun_ConsumesTransactionEvents(t *testing.T) {
	s := New(nil, nil, testLogger())
	bus := fanout.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx, bus)

	// Give the subscriber a moment to attach
	assert.Eventually(t, func() bool { return bus.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	bus.Publish(domain.EventTransaction, &domain.WhaleTransaction{From: "0xa", To: "0xb", ValueUSD: 42})
	// Non-transaction events and foreign payloads are ignored
	bus.Publish(domain.EventAlert, "not a transaction")
	bus.Publish(domain.EventTransaction, 123)

	assert.Eventually(t, func() bool {
		return s.Stats(context.Background()).TotalValueUSD == 42
	}, time.Second, 5*time.Millisecond)
}

func TestTrending_MemoryFallback(t *testing.T) {
	now := time.Now().UTC()
	pepe := &domain.TokenInfo{Address: "0xpepe", Symbol: "PEPE"}
	doge := &domain.TokenInfo{Address: "0xdoge", Symbol: "DOGE"}

	eth := &fakeEngine{chain: domain.ChainEthereum, recent: []*domain.WhaleTransaction{
		{Chain: domain.ChainEthereum, Token: pepe, ValueUSD: 1000, Timestamp: now.Add(-time.Hour)},
		{Chain: domain.ChainEthereum, Token: pepe, ValueUSD: 2000, Timestamp: now.Add(-2 * time.Hour)},
		{Chain: domain.ChainEthereum, Token: doge, ValueUSD: 500, Timestamp: now.Add(-time.Hour)},
		// No token metadata, never trends
		{Chain: domain.ChainEthereum, ValueUSD: 9999, Timestamp: now.Add(-time.Hour)},
		// Outside the window
		{Chain: domain.ChainEthereum, Token: doge, ValueUSD: 800, Timestamp: now.Add(-30 * time.Hour)},
	}}
	s := New([]Engine{eth}, nil, testLogger())

	trending, err := s.Trending(context.Background(), "24h", 10)
	require.NoError(t, err)
	require.Len(t, trending, 2)
	assert.Equal(t, "PEPE", trending[0].Symbol)
	assert.Equal(t, int64(2), trending[0].Count)
	assert.Equal(t, 3000.0, trending[0].TotalUSD)
	assert.Equal(t, "DOGE", trending[1].Symbol)
	assert.Equal(t, int64(1), trending[1].Count)

	// Limit applies after ranking
	trending, err = s.Trending(context.Background(), "24h", 1)
	require.NoError(t, err)
	require.Len(t, trending, 1)
	assert.Equal(t, "PEPE", trending[0].Symbol)
}

func TestTrending_RejectsUnknownTimeframe(t *testing.T) {
	s := New(nil, nil, testLogger())
	_, err := s.Trending(context.Background(), "forever", 10)
	assert.Error(t, err)
}
