package scoring

import (
	"fmt"
	"time"

	"whalewatch/internal/domain"
)

// Nominal trade sizes for price-impact estimation, in USD.
const (
	tradeSmall  = 100
	tradeMedium = 1_000
	tradeLarge  = 10_000
)

// Investment score weights and normalization anchors.
const (
	weightLiquidity = 0.30
	weightVolume    = 0.25
	weightStability = 0.20
	weightSlippage  = 0.15
	weightSocial    = 0.10

	liquidityAnchor = 100_000 // USD of liquidity worth 100 points
	volumeAnchor    = 50_000  // USD of 24h volume worth 100 points
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// analyzeBondingCurve derives simplified price-impact estimates from
// liquidity. Impact scales with the trade-size/liquidity ratio, capped
// at 100%.
func analyzeBondingCurve(pair *domain.TokenPair) *domain.BondingCurveAnalysis {
	impact := func(tradeUSD float64) float64 {
		if pair.LiquidityUSD <= 0 {
			return 100
		}
		return clamp(tradeUSD/pair.LiquidityUSD*100, 0, 100)
	}

	a := &domain.BondingCurveAnalysis{
		PriceImpactSmall:  impact(tradeSmall),
		PriceImpactMedium: impact(tradeMedium),
		PriceImpactLarge:  impact(tradeLarge),
		LiquidityDepth:    pair.LiquidityUSD / 1_000_000,
	}
	score := 100 - (a.PriceImpactSmall*2 + a.PriceImpactMedium*5 + a.PriceImpactLarge*10)
	if score < 0 {
		score = 0
	}
	a.SlippageScore = score
	return a
}

// socialScore is an additive presence heuristic clamped to [0,100].
func socialScore(pair *domain.TokenPair) float64 {
	var score float64
	if pair.Info != nil {
		if len(pair.Info.Websites) > 0 {
			score += 20
		}
		score += float64(len(pair.Info.Socials)) * 10
		if pair.Info.ImageURL != "" {
			score += 10
		}
	}
	if len(pair.BaseToken.Name) < 3 {
		score -= 20
	}
	if len(pair.BaseToken.Symbol) < 2 {
		score -= 20
	}
	return clamp(score, 0, 100)
}

// investmentScore is the weighted composite, clamped to [0,100].
func investmentScore(pair *domain.TokenPair, slippage, social float64) float64 {
	liquidity := clamp(pair.LiquidityUSD/liquidityAnchor*100, 0, 100)
	volume := clamp(pair.Volume24h/volumeAnchor*100, 0, 100)

	change := pair.PriceChange24h
	if change < 0 {
		change = -change
	}
	stability := 100 - 2*change
	if stability < 0 {
		stability = 0
	}

	score := liquidity*weightLiquidity +
		volume*weightVolume +
		stability*weightStability +
		slippage*weightSlippage +
		social*weightSocial
	return clamp(score, 0, 100)
}

// riskLevel evaluates thresholds in order; the first match wins.
func riskLevel(score, liquidityUSD, ageDays float64) domain.RiskLevel {
	switch {
	case score >= 80 && liquidityUSD >= 500_000 && ageDays >= 7:
		return domain.RiskLow
	case score >= 60 && liquidityUSD >= 100_000 && ageDays >= 3:
		return domain.RiskMedium
	case score >= 40 && liquidityUSD >= 10_000:
		return domain.RiskHigh
	default:
		return domain.RiskExtreme
	}
}

// alertStrings emits non-exclusive warning notes for a pair.
func alertStrings(pair *domain.TokenPair, curve *domain.BondingCurveAnalysis, ageDays float64) []string {
	var alerts []string
	if pair.LiquidityUSD < 10_000 {
		alerts = append(alerts, fmt.Sprintf("Very low liquidity ($%.0f)", pair.LiquidityUSD))
	}
	if curve.PriceImpactSmall > 20 {
		alerts = append(alerts, fmt.Sprintf("High price impact on small trades (%.1f%%)", curve.PriceImpactSmall))
	}
	if pair.Volume24h < 1_000 {
		alerts = append(alerts, fmt.Sprintf("Very low 24h volume ($%.0f)", pair.Volume24h))
	}
	if pair.PriceChange24h > 50 || pair.PriceChange24h < -50 {
		alerts = append(alerts, fmt.Sprintf("Extreme 24h price movement (%+.1f%%)", pair.PriceChange24h))
	}
	if ageDays < 1 {
		alerts = append(alerts, "Token is less than 1 day old")
	}
	if pair.Info == nil || len(pair.Info.Websites) == 0 {
		alerts = append(alerts, "No website listed")
	}
	return alerts
}

// recommendations returns the score-banded message set plus
// supplementary liquidity/volume notes.
func recommendations(score float64, pair *domain.TokenPair) []string {
	var recs []string
	switch {
	case score >= 80:
		recs = append(recs,
			"Strong investment potential",
			"Consider a dollar-cost-averaging entry")
	case score >= 60:
		recs = append(recs,
			"Moderate potential, monitor closely before committing")
	case score >= 40:
		recs = append(recs,
			"High risk, limit exposure to a small position")
	default:
		recs = append(recs,
			"Extreme risk, avoid or use minimal size only")
	}
	if pair.LiquidityUSD > 1_000_000 {
		recs = append(recs, "Deep liquidity supports larger positions")
	}
	if pair.Volume24h > 100_000 {
		recs = append(recs, "High trading volume indicates active interest")
	}
	return recs
}

// alertLevelForScore maps investment score to alert urgency. The
// mapping is deliberately inverted risk escalation: a low score raises
// the most urgent alert.
func alertLevelForScore(score float64) domain.AlertLevel {
	switch {
	case score >= 80:
		return domain.AlertHigh
	case score >= 60:
		return domain.AlertMedium
	case score >= 40:
		return domain.AlertLow
	default:
		return domain.AlertCritical
	}
}

// CurveStatus recomputes bonding-curve progress for a pair against the
// type-specific completion threshold.
func CurveStatus(pair *domain.TokenPair, curveType domain.CurveType, now time.Time) *domain.BondingCurveStatus {
	status := &domain.BondingCurveStatus{CurveType: curveType}

	target := curveType.CompletionMarketCap()
	if target <= 0 {
		return status
	}

	status.Progress = clamp(pair.MarketCap/target*100, 0, 100)
	status.Complete = status.Progress >= 100
	// Migration shows up as liquidity arriving on a regular DEX pool
	status.LiquidityMigrated = status.Complete && pair.LiquidityUSD > 0

	if !status.Complete && status.Progress > 0 {
		age := now.Sub(pair.PairCreatedAt)
		if age > 0 {
			remaining := time.Duration(float64(age) * (100 - status.Progress) / status.Progress)
			status.EstimatedCompletion = now.Add(remaining)
		}
	}
	return status
}
