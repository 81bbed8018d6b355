package domain

import "time"

// TokenRef identifies one side of a trading pair.
type TokenRef struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
	Symbol  string `json:"symbol"`
}

// TxnCounts holds buy/sell counts for a time bucket.
type TxnCounts struct {
	Buys  int `json:"buys"`
	Sells int `json:"sells"`
}

// PairInfo carries profile data attached to a pair listing.
type PairInfo struct {
	ImageURL string   `json:"image_url,omitempty"`
	Websites []string `json:"websites,omitempty"`
	Socials  []string `json:"socials,omitempty"`
}

// TokenPair is a market snapshot for a token/quote pair on a DEX.
type TokenPair struct {
	ChainID        string    `json:"chain_id"`
	DexID          string    `json:"dex_id,omitempty"`
	PairAddress    string    `json:"pair_address"`
	URL            string    `json:"url,omitempty"`
	BaseToken      TokenRef  `json:"base_token"`
	QuoteToken     TokenRef  `json:"quote_token"`
	PriceUSD       float64   `json:"price_usd"`
	LiquidityUSD   float64   `json:"liquidity_usd"`
	FDV            float64   `json:"fdv"`
	MarketCap      float64   `json:"market_cap"`
	Volume24h      float64   `json:"volume_24h"`
	PriceChange24h float64   `json:"price_change_24h"`
	TxnsH1         TxnCounts `json:"txns_h1"`
	TxnsH24        TxnCounts `json:"txns_h24"`
	PairCreatedAt  time.Time `json:"pair_created_at"`
	Info           *PairInfo `json:"info,omitempty"`
}

// AgeDays returns the pair age in days at time now.
func (p *TokenPair) AgeDays(now time.Time) float64 {
	if p.PairCreatedAt.IsZero() {
		return 0
	}
	return now.Sub(p.PairCreatedAt).Hours() / 24
}

// CurveType names a bonding-curve launch mechanism preset.
type CurveType string

const (
	CurvePumpFun  CurveType = "pumpfun"
	CurveMoonshot CurveType = "moonshot"
	CurveRaydium  CurveType = "raydium"
	CurveUnknown  CurveType = "unknown"
)

// CompletionMarketCap is the market cap at which the curve migrates
// liquidity. Zero means no fixed threshold is known.
func (c CurveType) CompletionMarketCap() float64 {
	switch c {
	case CurvePumpFun:
		return 69_000
	case CurveMoonshot:
		return 75_000
	case CurveRaydium:
		return 100_000
	default:
		return 0
	}
}

// BondingCurveStatus is the recomputed launch-curve progress for a token.
type BondingCurveStatus struct {
	Progress            float64   `json:"progress"`
	Complete            bool      `json:"complete"`
	LiquidityMigrated   bool      `json:"liquidity_migrated"`
	CurveType           CurveType `json:"curve_type"`
	EstimatedCompletion time.Time `json:"estimated_completion,omitempty"`
}

// Launch is the persisted record of a newly detected token launch.
// Write-once per (chain, token address).
type Launch struct {
	Chain         Chain      `json:"chain"`
	TokenAddress  string     `json:"token_address"`
	Symbol        string     `json:"symbol"`
	PairURL       string     `json:"pair_url,omitempty"`
	AgeHours      float64    `json:"age_hours"`
	LiquidityUSD  float64    `json:"liquidity_usd"`
	MarketCap     float64    `json:"market_cap"`
	FDV           float64    `json:"fdv"`
	RiskScore     float64    `json:"risk_score"`
	PairCreatedAt time.Time  `json:"pair_created_at"`
	DetectedAt    time.Time  `json:"detected_at"`
	Pair          *TokenPair `json:"pair,omitempty"`
}
