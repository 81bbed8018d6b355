// Package launch discovers newly created trading pairs across chains,
// scores them with a coarse additive risk model, and records the ones
// that qualify as launches or whale magnets.
package launch

import (
	"context"
	"log"
	"sync"
	"time"

	"whalewatch/internal/domain"
	"whalewatch/internal/fanout"
	"whalewatch/internal/market"
	"whalewatch/internal/observability"
	"whalewatch/internal/scoring"
	"whalewatch/internal/storage"
)

// Default configuration values.
const (
	DefaultRecencyWindow      = 2 * time.Hour
	DefaultSweepInterval      = 5 * time.Minute
	DefaultMagnetInterval     = 15 * time.Minute
	DefaultLiquidityThreshold = 50_000
	DefaultBuyThreshold       = 50

	maxLaunchRisk = 70
	maxMagnetRisk = 80

	// honeypotMinBuys is the buy count that, with zero sells, marks a
	// honeypot pattern.
	honeypotMinBuys = 10
)

// quoteAllowList holds the quote-token symbols accepted for a launch.
var quoteAllowList = map[string]bool{
	"WETH": true, "ETH": true,
	"WBNB": true, "BNB": true,
	"SOL": true, "WSOL": true,
	"USDC": true, "USDT": true,
	"DAI": true, "BUSD": true,
}

// DiscoverySource provides candidate feeds and pair lookups.
// Implemented by market.Client.
type DiscoverySource interface {
	BoostedTokens(ctx context.Context) ([]market.Candidate, error)
	TopBoostedTokens(ctx context.Context) ([]market.Candidate, error)
	LatestProfiles(ctx context.Context) ([]market.Candidate, error)
	TokenPairs(ctx context.Context, chain domain.Chain, token string) ([]domain.TokenPair, error)
}

// Tracker sweeps discovery feeds for new launches and whale magnets.
// Every token is analyzed at most once per process lifetime.
type Tracker struct {
	source DiscoverySource
	store  storage.LaunchStore
	bus    *fanout.Bus
	logger *log.Logger

	recencyWindow      time.Duration
	sweepInterval      time.Duration
	magnetInterval     time.Duration
	liquidityThreshold float64
	buyThreshold       int
	now                func() time.Time

	mu       sync.Mutex
	analyzed map[string]bool
}

// Option configures Tracker.
type Option func(*Tracker)

// WithRecencyWindow sets the maximum pair age for the launch sweep.
func WithRecencyWindow(d time.Duration) Option {
	return func(t *Tracker) { t.recencyWindow = d }
}

// WithSweepInterval sets the launch sweep cadence.
func WithSweepInterval(d time.Duration) Option {
	return func(t *Tracker) { t.sweepInterval = d }
}

// WithMagnetInterval sets the whale-magnet sweep cadence.
func WithMagnetInterval(d time.Duration) Option {
	return func(t *Tracker) { t.magnetInterval = d }
}

// WithLiquidityThreshold sets the standard liquidity threshold in USD.
func WithLiquidityThreshold(v float64) Option {
	return func(t *Tracker) { t.liquidityThreshold = v }
}

// WithBuyThreshold sets the standard 1h buy-count threshold.
func WithBuyThreshold(n int) Option {
	return func(t *Tracker) { t.buyThreshold = n }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New creates a tracker. store may be nil; launches are then only
// published, not persisted.
func New(source DiscoverySource, store storage.LaunchStore, bus *fanout.Bus, logger *log.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		source:             source,
		store:              store,
		bus:                bus,
		logger:             logger,
		recencyWindow:      DefaultRecencyWindow,
		sweepInterval:      DefaultSweepInterval,
		magnetInterval:     DefaultMagnetInterval,
		liquidityThreshold: DefaultLiquidityThreshold,
		buyThreshold:       DefaultBuyThreshold,
		now:                time.Now,
		analyzed:           make(map[string]bool),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Run drives both sweeps until the context is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	sweep := time.NewTicker(t.sweepInterval)
	defer sweep.Stop()
	magnet := time.NewTicker(t.magnetInterval)
	defer magnet.Stop()

	t.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			t.Sweep(ctx)
		case <-magnet.C:
			t.FindWhaleMagnets(ctx)
		}
	}
}

// Sweep runs one launch discovery pass: recency-filtered candidates
// against the relaxed (half-liquidity, 70% buys) thresholds.
func (t *Tracker) Sweep(ctx context.Context) {
	n := 0
	for _, cand := range t.candidates(ctx) {
		if t.inspect(ctx, cand, true) {
			n++
		}
	}
	if n > 0 {
		t.logger.Printf("sweep recorded %d launches", n)
	}
}

// FindWhaleMagnets runs the broader pass: no recency filter, full
// thresholds, risk cap 80.
func (t *Tracker) FindWhaleMagnets(ctx context.Context) {
	n := 0
	for _, cand := range t.candidates(ctx) {
		if t.inspect(ctx, cand, false) {
			n++
		}
	}
	if n > 0 {
		t.logger.Printf("magnet sweep recorded %d tokens", n)
	}
}

// ResetAnalyzed clears the analyzed-token guard.
func (t *Tracker) ResetAnalyzed() {
	t.mu.Lock()
	t.analyzed = make(map[string]bool)
	t.mu.Unlock()
}

// candidates unions all discovery feeds by (chain, token), dropping
// chains this system does not watch.
func (t *Tracker) candidates(ctx context.Context) []candidate {
	feeds := []func(context.Context) ([]market.Candidate, error){
		t.source.BoostedTokens,
		t.source.TopBoostedTokens,
		t.source.LatestProfiles,
	}

	seen := make(map[string]bool)
	var out []candidate
	for _, feed := range feeds {
		items, err := feed(ctx)
		if err != nil {
			t.logger.Printf("discovery feed: %v", err)
			continue
		}
		for _, item := range items {
			chain, ok := chainFromDexID(item.ChainID)
			if !ok {
				continue
			}
			key := string(chain) + "|" + item.TokenAddress
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, candidate{chain: chain, token: item.TokenAddress})
		}
	}
	return out
}

type candidate struct {
	chain domain.Chain
	token string
}

// inspect fetches a candidate's pairs and records it if one qualifies.
// Returns true when a launch was recorded. A candidate is consumed by
// the analyzed-set guard whether or not it qualifies.
func (t *Tracker) inspect(ctx context.Context, cand candidate, recent bool) bool {
	key := string(cand.chain) + "|" + cand.token

	t.mu.Lock()
	if t.analyzed[key] {
		t.mu.Unlock()
		return false
	}
	t.analyzed[key] = true
	t.mu.Unlock()

	pairs, err := t.source.TokenPairs(ctx, cand.chain, cand.token)
	if err != nil {
		t.logger.Printf("pairs %s: %v", cand.token, err)
		return false
	}

	now := t.now().UTC()
	for i := range pairs {
		pair := &pairs[i]
		if recent && now.Sub(pair.PairCreatedAt) > t.recencyWindow {
			continue
		}
		risk := RiskScore(pair, now)
		if !t.qualifies(pair, risk, recent, now) {
			continue
		}
		t.record(ctx, cand, pair, risk, now)
		return true
	}
	return false
}

// qualifies applies the launch rules: allow-listed quote asset,
// liquidity and buy-count floors, risk cap. The launch sweep uses
// relaxed floors, the magnet sweep the full ones.
func (t *Tracker) qualifies(pair *domain.TokenPair, risk float64, recent bool, now time.Time) bool {
	if !quoteAllowList[pair.QuoteToken.Symbol] {
		return false
	}

	minLiquidity := t.liquidityThreshold
	minBuys := float64(t.buyThreshold)
	maxRisk := float64(maxMagnetRisk)
	if recent {
		minLiquidity /= 2
		minBuys *= 0.7
		maxRisk = maxLaunchRisk
	}

	return pair.LiquidityUSD >= minLiquidity &&
		float64(pair.TxnsH1.Buys) >= minBuys &&
		risk <= maxRisk
}

// RiskScore is the coarse additive launch risk in [0,100]. Separate
// from, and much blunter than, the investment score.
func RiskScore(pair *domain.TokenPair, now time.Time) float64 {
	var risk float64

	age := now.Sub(pair.PairCreatedAt)
	switch {
	case age < time.Hour:
		risk += 30
	case age < 4*time.Hour:
		risk += 20
	case age < 24*time.Hour:
		risk += 10
	}

	switch {
	case pair.LiquidityUSD < 10_000:
		risk += 30
	case pair.LiquidityUSD < 50_000:
		risk += 20
	case pair.LiquidityUSD < 100_000:
		risk += 10
	}

	buys, sells := pair.TxnsH24.Buys, pair.TxnsH24.Sells
	if sells == 0 && buys >= honeypotMinBuys {
		risk += 40
	}
	if sells == 0 && buys > 0 {
		risk += 15
	}

	if pair.PriceChange24h > 100 || pair.PriceChange24h < -100 {
		risk += 15
	}

	if risk > 100 {
		risk = 100
	}
	return risk
}

func (t *Tracker) record(ctx context.Context, cand candidate, pair *domain.TokenPair, risk float64, now time.Time) {
	launch := &domain.Launch{
		Chain:         cand.chain,
		TokenAddress:  cand.token,
		Symbol:        pair.BaseToken.Symbol,
		PairURL:       pair.URL,
		AgeHours:      now.Sub(pair.PairCreatedAt).Hours(),
		LiquidityUSD:  pair.LiquidityUSD,
		MarketCap:     pair.MarketCap,
		FDV:           pair.FDV,
		RiskScore:     risk,
		PairCreatedAt: pair.PairCreatedAt,
		DetectedAt:    now,
		Pair:          pair,
	}

	if t.store != nil {
		inserted, err := t.store.InsertIfAbsent(ctx, launch)
		if err != nil {
			t.logger.Printf("persist %s %s: %v", cand.chain, cand.token, err)
		} else if !inserted {
			return
		}
	}

	observability.RecordLaunch(string(cand.chain))
	t.logger.Printf("%s %s (%s): liq $%.0f, risk %.0f",
		cand.chain, pair.BaseToken.Symbol, cand.token, pair.LiquidityUSD, risk)

	t.bus.Publish(domain.EventNewLaunch, launch)
	t.bus.Publish(domain.EventWhaleMagnet, launch)
	t.publishCurve(cand.chain, pair, now)
}

// publishCurve emits bonding-curve progress for chains with curve-style
// launch mechanics. Only Solana launches carry one here.
func (t *Tracker) publishCurve(chain domain.Chain, pair *domain.TokenPair, now time.Time) {
	if chain != domain.ChainSolana {
		return
	}
	status := scoring.CurveStatus(pair, domain.CurvePumpFun, now)
	if status.Progress <= 0 {
		return
	}
	t.bus.Publish(domain.EventCurveProgress, status)
	if status.Complete {
		t.bus.Publish(domain.EventCurveCompleted, status)
	}
}

// chainFromDexID maps a Dexscreener chain identifier to a watched chain.
func chainFromDexID(id string) (domain.Chain, bool) {
	switch id {
	case "ethereum":
		return domain.ChainEthereum, true
	case "bsc":
		return domain.ChainBNB, true
	case "solana":
		return domain.ChainSolana, true
	default:
		return "", false
	}
}
