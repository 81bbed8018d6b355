package scoring

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whalewatch/internal/domain"
	"whalewatch/internal/fanout"
	"whalewatch/internal/storage/memory"
)

type fakePairSource struct {
	mu    sync.Mutex
	calls int
	pairs []domain.TokenPair
	err   error
}

func (f *fakePairSource) TokenPairs(ctx context.Context, chain domain.Chain, token string) ([]domain.TokenPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.pairs, f.err
}

func (f *fakePairSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testLogger() *log.Logger {
	return log.New(os.Stdout, "[test] ", log.LstdFlags)
}

func newTestScorer(t *testing.T, source *fakePairSource, opts ...Option) (*TokenRiskScorer, *memory.AlertStore) {
	t.Helper()
	store := memory.NewAlertStore()
	scorer := NewTokenRiskScorer(source, store, fanout.New(), testLogger(), opts...)
	return scorer, store
}

func TestAnalyze_CacheWithinTTL(t *testing.T) {
	source := &fakePairSource{pairs: []domain.TokenPair{*pairWith(200_000, 30_000, 1, 48*time.Hour)}}

	now := time.Now().UTC()
	clock := func() time.Time { return now }
	scorer, _ := newTestScorer(t, source, WithClock(clock))

	first, err := scorer.Analyze(context.Background(), domain.ChainEthereum, "0xtok")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, 1, source.callCount())

	// Second call inside the TTL must not hit the network
	second, err := scorer.Analyze(context.Background(), domain.ChainEthereum, "0xtok")
	require.NoError(t, err)
	assert.Equal(t, 1, source.callCount())
	assert.Equal(t, first, second)

	// After the TTL a fresh fetch happens
	now = now.Add(DefaultCacheTTL + time.Second)
	_, err = scorer.Analyze(context.Background(), domain.ChainEthereum, "0xtok")
	require.NoError(t, err)
	assert.Equal(t, 2, source.callCount())
}

func TestAnalyze_NoPairsIsNotAnError(t *testing.T) {
	scorer, _ := newTestScorer(t, &fakePairSource{})

	analysis, err := scorer.Analyze(context.Background(), domain.ChainSolana, "tok")
	require.NoError(t, err)
	assert.Nil(t, analysis)
}

func TestAnalyze_SourceErrorPropagates(t *testing.T) {
	scorer, _ := newTestScorer(t, &fakePairSource{err: errors.New("boom")})

	_, err := scorer.Analyze(context.Background(), domain.ChainEthereum, "0xtok")
	require.Error(t, err)
}

func TestAnalyze_PicksDeepestPair(t *testing.T) {
	shallow := *pairWith(10_000, 1_000, 0, time.Hour)
	deep := *pairWith(900_000, 50_000, 0, time.Hour)
	scorer, _ := newTestScorer(t, &fakePairSource{pairs: []domain.TokenPair{shallow, deep}})

	analysis, err := scorer.Analyze(context.Background(), domain.ChainEthereum, "0xtok")
	require.NoError(t, err)
	require.NotNil(t, analysis)
	assert.Equal(t, 900_000.0, analysis.LiquidityUSD)
}

func TestAnalyzeAcquisition_RaisesAndPersistsAlert(t *testing.T) {
	source := &fakePairSource{pairs: []domain.TokenPair{*pairWith(600_000, 80_000, 2, 10*24*time.Hour)}}
	scorer, store := newTestScorer(t, source)

	alert, err := scorer.AnalyzeAcquisition(context.Background(), "0xwhale", "0xtok", domain.ChainEthereum, "0xhash")
	require.NoError(t, err)
	require.NotNil(t, alert)
	require.NotNil(t, alert.Analysis)

	// High score maps to HIGH urgency under the inverted mapping
	assert.Equal(t, domain.AlertHigh, alert.Level)
	assert.Equal(t, "0xwhale", alert.WhaleAddress)
	assert.NotEmpty(t, alert.ID)

	persisted, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, alert.ID, persisted[0].ID)

	ring := scorer.RecentAlerts(10)
	require.Len(t, ring, 1)
	assert.Equal(t, alert.ID, ring[0].ID)
}

func TestAnalyzeAcquisition_UnlistedTokenIsCritical(t *testing.T) {
	scorer, _ := newTestScorer(t, &fakePairSource{})

	alert, err := scorer.AnalyzeAcquisition(context.Background(), "0xwhale", "0xghost", domain.ChainBNB, "")
	require.NoError(t, err)
	assert.Equal(t, domain.AlertCritical, alert.Level)
	assert.Nil(t, alert.Analysis)
}

func TestRecentAlerts_RingBounded(t *testing.T) {
	source := &fakePairSource{pairs: []domain.TokenPair{*pairWith(600_000, 80_000, 2, 10*24*time.Hour)}}
	scorer, _ := newTestScorer(t, source, WithAlertRing(3))

	for i := 0; i < 5; i++ {
		_, err := scorer.AnalyzeAcquisition(context.Background(), "0xwhale", "0xtok", domain.ChainEthereum, "")
		require.NoError(t, err)
	}

	ring := scorer.RecentAlerts(10)
	assert.Len(t, ring, 3)
}

func TestCachedAnalysis_LookupOnly(t *testing.T) {
	source := &fakePairSource{pairs: []domain.TokenPair{*pairWith(200_000, 30_000, 1, 48*time.Hour)}}
	scorer, _ := newTestScorer(t, source)

	assert.Nil(t, scorer.CachedAnalysis(domain.ChainEthereum, "0xtok"))
	assert.Equal(t, 0, source.callCount(), "cache lookup must not trigger scoring")

	_, err := scorer.Analyze(context.Background(), domain.ChainEthereum, "0xtok")
	require.NoError(t, err)
	assert.NotNil(t, scorer.CachedAnalysis(domain.ChainEthereum, "0xtok"))
}
