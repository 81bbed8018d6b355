// Package scoring computes token risk assessments from market
// snapshots and raises whale alerts when monitored addresses acquire
// new tokens.
package scoring

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"whalewatch/internal/domain"
	"whalewatch/internal/fanout"
	"whalewatch/internal/observability"
	"whalewatch/internal/storage"
)

// Default configuration values.
const (
	DefaultCacheTTL  = 10 * time.Minute
	DefaultAlertRing = 100
)

// PairSource looks up trading pairs for a token. Implemented by
// market.Client.
type PairSource interface {
	TokenPairs(ctx context.Context, chain domain.Chain, token string) ([]domain.TokenPair, error)
}

// TokenRiskScorer produces TokenAnalysis records with a TTL cache and
// raises alerts on whale token acquisitions.
type TokenRiskScorer struct {
	pairs  PairSource
	alerts storage.AlertStore
	bus    *fanout.Bus
	logger *log.Logger

	cacheTTL time.Duration
	ringSize int
	now      func() time.Time

	mu    sync.RWMutex
	cache map[string]cachedAnalysis
	ring  []*domain.WhaleAlert
}

type cachedAnalysis struct {
	analysis *domain.TokenAnalysis
	storedAt time.Time
}

// Option configures TokenRiskScorer.
type Option func(*TokenRiskScorer)

// WithCacheTTL sets the analysis cache lifetime.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *TokenRiskScorer) { s.cacheTTL = ttl }
}

// WithAlertRing sets the in-memory recent-alert capacity.
func WithAlertRing(n int) Option {
	return func(s *TokenRiskScorer) {
		if n > 0 {
			s.ringSize = n
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *TokenRiskScorer) { s.now = now }
}

// NewTokenRiskScorer creates a scorer. alerts may be nil; persistence
// is then skipped and alerts live only in the ring.
func NewTokenRiskScorer(pairs PairSource, alerts storage.AlertStore, bus *fanout.Bus, logger *log.Logger, opts ...Option) *TokenRiskScorer {
	s := &TokenRiskScorer{
		pairs:    pairs,
		alerts:   alerts,
		bus:      bus,
		logger:   logger,
		cacheTTL: DefaultCacheTTL,
		ringSize: DefaultAlertRing,
		now:      time.Now,
		cache:    make(map[string]cachedAnalysis),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func cacheKey(chain domain.Chain, token string) string {
	return string(chain) + "|" + token
}

// Analyze returns the risk assessment for a token, serving from cache
// within the TTL. A token with no trading pairs returns nil, nil.
func (s *TokenRiskScorer) Analyze(ctx context.Context, chain domain.Chain, token string) (*domain.TokenAnalysis, error) {
	key := cacheKey(chain, token)

	s.mu.RLock()
	entry, ok := s.cache[key]
	s.mu.RUnlock()
	if ok && s.now().Sub(entry.storedAt) < s.cacheTTL {
		return entry.analysis, nil
	}

	start := time.Now()
	pairs, err := s.pairs.TokenPairs(ctx, chain, token)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", token, err)
	}
	if len(pairs) == 0 {
		return nil, nil
	}

	analysis := s.build(chain, token, bestPair(pairs))
	observability.RecordTokenAnalysis(string(chain))
	observability.ObserveAnalysisDuration(time.Since(start).Seconds())

	s.mu.Lock()
	s.cache[key] = cachedAnalysis{analysis: analysis, storedAt: s.now()}
	s.mu.Unlock()

	s.bus.Publish(domain.EventAnalysis, analysis)
	return analysis, nil
}

// CachedAnalysis returns a still-fresh cached assessment, or nil.
func (s *TokenRiskScorer) CachedAnalysis(chain domain.Chain, token string) *domain.TokenAnalysis {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.cache[cacheKey(chain, token)]
	if !ok || s.now().Sub(entry.storedAt) >= s.cacheTTL {
		return nil
	}
	return entry.analysis
}

// bestPair selects the deepest pool as the representative market.
func bestPair(pairs []domain.TokenPair) *domain.TokenPair {
	best := &pairs[0]
	for i := range pairs[1:] {
		if pairs[i+1].LiquidityUSD > best.LiquidityUSD {
			best = &pairs[i+1]
		}
	}
	return best
}

func (s *TokenRiskScorer) build(chain domain.Chain, token string, pair *domain.TokenPair) *domain.TokenAnalysis {
	now := s.now().UTC()
	age := pair.AgeDays(now)
	curve := analyzeBondingCurve(pair)
	social := socialScore(pair)
	score := investmentScore(pair, curve.SlippageScore, social)

	return &domain.TokenAnalysis{
		TokenAddress:    token,
		Chain:           chain,
		Name:            pair.BaseToken.Name,
		Symbol:          pair.BaseToken.Symbol,
		PriceUSD:        pair.PriceUSD,
		MarketCap:       pair.MarketCap,
		FDV:             pair.FDV,
		LiquidityUSD:    pair.LiquidityUSD,
		Volume24h:       pair.Volume24h,
		PriceChange24h:  pair.PriceChange24h,
		AgeDays:         age,
		SocialScore:     social,
		BondingCurve:    curve,
		InvestmentScore: score,
		RiskLevel:       riskLevel(score, pair.LiquidityUSD, age),
		Alerts:          alertStrings(pair, curve, age),
		Recommendations: recommendations(score, pair),
		Pair:            pair,
		AnalyzedAt:      now,
	}
}

// AnalyzeAcquisition assesses a token a monitored whale just acquired
// and raises the corresponding alert. The alert is kept in the ring,
// persisted best-effort, and published to the bus.
func (s *TokenRiskScorer) AnalyzeAcquisition(ctx context.Context, whale, token string, chain domain.Chain, txHash string) (*domain.WhaleAlert, error) {
	analysis, err := s.Analyze(ctx, chain, token)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	alert := &domain.WhaleAlert{
		ID:           domain.AlertID(whale, token, now),
		Timestamp:    now,
		WhaleAddress: whale,
		TokenAddress: token,
		Chain:        chain,
		Analysis:     analysis,
		TxHash:       txHash,
	}

	if analysis != nil {
		alert.Level = alertLevelForScore(analysis.InvestmentScore)
		alert.Message = fmt.Sprintf("Whale %s acquired %s (%s), score %.1f, risk %s",
			shortAddr(whale), analysis.Symbol, token, analysis.InvestmentScore, analysis.RiskLevel)
	} else {
		// No market data at all is the worst signal we have
		alert.Level = domain.AlertCritical
		alert.Message = fmt.Sprintf("Whale %s acquired unlisted token %s", shortAddr(whale), token)
	}

	s.mu.Lock()
	s.ring = append([]*domain.WhaleAlert{alert}, s.ring...)
	if len(s.ring) > s.ringSize {
		s.ring = s.ring[:s.ringSize]
	}
	s.mu.Unlock()

	if s.alerts != nil {
		if err := s.alerts.Insert(ctx, alert); err != nil {
			s.logger.Printf("persist alert %s: %v", alert.ID, err)
		}
	}

	observability.RecordAlert(string(alert.Level))
	s.bus.Publish(domain.EventAlert, alert)
	s.bus.Publish(domain.AlertEventType(alert.Level), alert)
	return alert, nil
}

// RecentAlerts returns up to limit alerts from the in-memory ring,
// newest first.
func (s *TokenRiskScorer) RecentAlerts(limit int) []*domain.WhaleAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.ring)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*domain.WhaleAlert, n)
	copy(out, s.ring[:n])
	return out
}

func shortAddr(a string) string {
	if len(a) <= 12 {
		return a
	}
	return a[:6] + ".." + a[len(a)-4:]
}
