package execution

import (
	"math"

	"lorentzian-signals/internal/model"
	"lorentzian-signals/internal/strategy"
)

// Sizer turns a directional signal into a desired holding.
type Sizer struct {
	RiskPerTrade  float64 // fraction of equity committed per position
	MaxOpenTrades int     // 0 = unlimited
}

// Target returns the desired position for sig. ok is false when the signal
// carries no action or opening it would exceed MaxOpenTrades.
func (s Sizer) Target(sig strategy.Signal, equity float64, openCount int, currentQty float64) (model.PositionTarget, bool) {
	dir := sig.Action.Direction()
	if dir == 0 || sig.Price <= 0 || equity <= 0 {
		return model.PositionTarget{}, false
	}
	if currentQty == 0 && s.MaxOpenTrades > 0 && openCount >= s.MaxOpenTrades {
		return model.PositionTarget{}, false
	}
	qty := math.Trunc(equity * s.RiskPerTrade / sig.Price)
	if qty == 0 {
		return model.PositionTarget{}, false
	}
	return model.PositionTarget{Symbol: sig.Symbol, Quantity: dir * qty}, true
}
