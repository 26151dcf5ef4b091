package portfolio

import (
	"lorentzian-signals/internal/kernel"
	"lorentzian-signals/internal/model"
)

// RegimeState is the cross-symbol market read derived from kernel outputs.
// Recomputed every cycle, never persisted.
type RegimeState struct {
	Regime     float64 `json:"regime"`     // [-1, 1]
	Confidence float64 `json:"confidence"` // [0, 1] in normal markets
	Symbols    int     `json:"symbols"`    // kernels that contributed to Regime
}

// RiskLimits are the cycle's effective limits after regime scaling.
type RiskLimits struct {
	MaxDrawdown   float64 `json:"max_drawdown"`
	MaxLeverage   float64 `json:"max_leverage"`
	MaxVolatility float64 `json:"max_volatility"`
}

// DetectRegime averages kernel trend direction (+1 bullish, -1 bearish, 0 for
// a ready kernel with no trend yet) and estimate tracking confidence
// 1-|price-estimate|/price over ready kernels.
// Regime is 0 and Confidence 0.5 when nothing contributes.
func DetectRegime(kernels map[string]kernel.Output, snap model.PortfolioSnapshot) RegimeState {
	var trendSum, confSum float64
	var trendN, confN int
	for sym, k := range kernels {
		if !k.Ready {
			continue
		}
		trendSum += k.Trend.Sign()
		trendN++
		if price, ok := snap.Price(sym); ok {
			confSum += Confidence(price, k.Estimate)
			confN++
		}
	}

	rs := RegimeState{Confidence: 0.5, Symbols: trendN}
	if trendN > 0 {
		rs.Regime = trendSum / float64(trendN)
	}
	if confN > 0 {
		rs.Confidence = confSum / float64(confN)
	}
	return rs
}

// Confidence is how closely the kernel estimate tracks price: 1-|p-e|/p.
func Confidence(price, estimate float64) float64 {
	if price <= 0 {
		return 0
	}
	d := price - estimate
	if d < 0 {
		d = -d
	}
	return 1 - d/price
}

// ScaleLimits applies the regime/confidence multipliers to the base limits:
//
//	max_drawdown   = base · (1 + 0.2·regime) · (1 + 0.3·confidence)
//	max_leverage   = base · (1 + 0.1·regime) · (1 + 0.2·confidence)
//	max_volatility = base · (1 + 0.3·regime) · (1 + 0.3·confidence)
func ScaleLimits(cfg RiskConfig, rs RegimeState) RiskLimits {
	return RiskLimits{
		MaxDrawdown:   cfg.BaseMaxDrawdown * (1 + 0.2*rs.Regime) * (1 + 0.3*rs.Confidence),
		MaxLeverage:   cfg.BaseMaxLeverage * (1 + 0.1*rs.Regime) * (1 + 0.2*rs.Confidence),
		MaxVolatility: cfg.BaseMaxVolatility * (1 + 0.3*rs.Regime) * (1 + 0.3*rs.Confidence),
	}
}
