package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// RiskLevel classifies a token's investment risk.
type RiskLevel string

const (
	RiskLow     RiskLevel = "LOW"
	RiskMedium  RiskLevel = "MEDIUM"
	RiskHigh    RiskLevel = "HIGH"
	RiskExtreme RiskLevel = "EXTREME"
)

// AlertLevel is the urgency of a whale alert. Note the mapping from
// investment score is inverted: a low score escalates to CRITICAL.
type AlertLevel string

const (
	AlertLow      AlertLevel = "LOW"
	AlertMedium   AlertLevel = "MEDIUM"
	AlertHigh     AlertLevel = "HIGH"
	AlertCritical AlertLevel = "CRITICAL"
)

// BondingCurveAnalysis holds simplified price-impact estimates derived
// from pair liquidity.
type BondingCurveAnalysis struct {
	PriceImpactSmall  float64 `json:"price_impact_small"`
	PriceImpactMedium float64 `json:"price_impact_medium"`
	PriceImpactLarge  float64 `json:"price_impact_large"`
	LiquidityDepth    float64 `json:"liquidity_depth"`
	SlippageScore     float64 `json:"slippage_score"`
}

// TokenAnalysis is the cached risk assessment for a token.
type TokenAnalysis struct {
	TokenAddress    string                `json:"token_address"`
	Chain           Chain                 `json:"chain"`
	Name            string                `json:"name"`
	Symbol          string                `json:"symbol"`
	PriceUSD        float64               `json:"price_usd"`
	MarketCap       float64               `json:"market_cap"`
	FDV             float64               `json:"fdv"`
	LiquidityUSD    float64               `json:"liquidity_usd"`
	Volume24h       float64               `json:"volume_24h"`
	PriceChange24h  float64               `json:"price_change_24h"`
	AgeDays         float64               `json:"age_days"`
	HolderCount     int                   `json:"holder_count,omitempty"`
	SocialScore     float64               `json:"social_score"`
	BondingCurve    *BondingCurveAnalysis `json:"bonding_curve,omitempty"`
	InvestmentScore float64               `json:"investment_score"`
	RiskLevel       RiskLevel             `json:"risk_level"`
	Alerts          []string              `json:"alerts,omitempty"`
	Recommendations []string              `json:"recommendations,omitempty"`
	Pair            *TokenPair            `json:"pair,omitempty"`
	AnalyzedAt      time.Time             `json:"analyzed_at"`
}

// WhaleAlert is the persisted alert raised when a whale acquires a token.
type WhaleAlert struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	WhaleAddress string         `json:"whale_address"`
	TokenAddress string         `json:"token_address"`
	Chain        Chain          `json:"chain"`
	Analysis     *TokenAnalysis `json:"analysis,omitempty"`
	TxHash       string         `json:"tx_hash,omitempty"`
	Level        AlertLevel     `json:"level"`
	Message      string         `json:"message"`
	Read         bool           `json:"read"`
}

// AlertID derives a stable alert identifier from whale, token and time.
func AlertID(whale, token string, at time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", whale, token, at.UnixMilli())))
	return hex.EncodeToString(sum[:16])
}
