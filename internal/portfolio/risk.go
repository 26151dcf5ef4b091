package portfolio

import (
	"log/slog"
	"math"
	"sync"

	"lorentzian-signals/internal/indicator"
	"lorentzian-signals/internal/kernel"
	"lorentzian-signals/internal/model"
)

// RiskConfig holds the base limits before regime scaling.
type RiskConfig struct {
	BaseMaxDrawdown           float64 `json:"base_max_drawdown"`
	BaseMaxLeverage           float64 `json:"base_max_leverage"`
	VolatilityLookback        int     `json:"volatility_lookback"`
	BaseMaxVolatility         float64 `json:"base_max_volatility"`
	KernelConfidenceThreshold float64 `json:"kernel_confidence_threshold"`
}

// DefaultRiskConfig returns the stock limits.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		BaseMaxDrawdown:           0.10,
		BaseMaxLeverage:           2.0,
		VolatilityLookback:        30,
		BaseMaxVolatility:         0.05,
		KernelConfidenceThreshold: 0.7,
	}
}

// RiskModel rescales position targets for one evaluation cycle.
type RiskModel interface {
	Evaluate(targets []model.PositionTarget, snap model.PortfolioSnapshot, kernels map[string]kernel.Output) []model.PositionTarget
}

// RiskAction names the rule that fired in a cycle.
type RiskAction string

const (
	RiskNone      RiskAction = "none"
	RiskDrawdown  RiskAction = "drawdown"
	RiskLeverage  RiskAction = "leverage"
	RiskPerSymbol RiskAction = "per_symbol"
)

// RiskReport summarises one evaluation cycle.
type RiskReport struct {
	Action     RiskAction  `json:"action"`
	Drawdown   float64     `json:"drawdown"`
	Leverage   float64     `json:"leverage"`
	PeakValue  float64     `json:"peak_value"`
	Regime     RegimeState `json:"regime"`
	Limits     RiskLimits  `json:"limits"`
	VolCapped  int         `json:"vol_capped"`
	Boosted    int         `json:"boosted"`
	Trimmed    int         `json:"trimmed"`
	PassedOpen int         `json:"passed_open"` // targets passed through for missing data
}

const reductionFactor = 0.5

// RiskManager adapts drawdown, leverage and volatility limits to the kernel
// regime and rescales targets. Only the peak portfolio value and the
// per-symbol volatility windows survive between cycles.
type RiskManager struct {
	mu   sync.Mutex
	cfg  RiskConfig
	peak float64
	vol  map[string]*indicator.StdDev
	last RiskReport
	log  *slog.Logger
}

// NewRiskManager creates a risk manager.
func NewRiskManager(cfg RiskConfig) *RiskManager {
	if cfg.VolatilityLookback < 2 {
		cfg.VolatilityLookback = DefaultRiskConfig().VolatilityLookback
	}
	return &RiskManager{
		cfg: cfg,
		vol: make(map[string]*indicator.StdDev),
		log: slog.Default().With("component", "risk"),
	}
}

// AddSymbol starts tracking volatility for symbol.
func (rm *RiskManager) AddSymbol(symbol string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if _, ok := rm.vol[symbol]; !ok {
		rm.vol[symbol] = indicator.NewStdDev(rm.cfg.VolatilityLookback)
	}
}

// RemoveSymbol drops symbol's volatility state.
func (rm *RiskManager) RemoveSymbol(symbol string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	delete(rm.vol, symbol)
}

// Evaluate returns rescaled copies of targets. The input slice is not modified.
func (rm *RiskManager) Evaluate(targets []model.PositionTarget, snap model.PortfolioSnapshot, kernels map[string]kernel.Output) []model.PositionTarget {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	current := snap.TotalValue
	if current > rm.peak {
		rm.peak = current
	}
	rep := RiskReport{Action: RiskNone, PeakValue: rm.peak}
	if rm.peak > 0 {
		rep.Drawdown = (rm.peak - current) / rm.peak
	}
	rep.Leverage = grossLeverage(snap)
	rep.Regime = DetectRegime(kernels, snap)
	rep.Limits = ScaleLimits(rm.cfg, rep.Regime)

	// Volatility windows advance once per cycle per priced target.
	for _, t := range targets {
		if price, ok := snap.Price(t.Symbol); ok {
			rm.volFor(t.Symbol).Update(price)
		}
	}

	out := make([]model.PositionTarget, len(targets))
	copy(out, targets)

	switch {
	case rep.Drawdown > rep.Limits.MaxDrawdown:
		rep.Action = RiskDrawdown
		for i := range out {
			out[i].Quantity = truncate(out[i].Quantity * (1 - reductionFactor))
		}
		rm.log.Warn("max drawdown reached, reducing all targets",
			"drawdown", rep.Drawdown, "max_drawdown", rep.Limits.MaxDrawdown)

	case rep.Leverage > rep.Limits.MaxLeverage:
		rep.Action = RiskLeverage
		scale := rep.Limits.MaxLeverage / rep.Leverage
		for i := range out {
			out[i].Quantity = truncate(out[i].Quantity * scale)
		}
		rm.log.Warn("max leverage reached, scaling targets",
			"leverage", rep.Leverage, "max_leverage", rep.Limits.MaxLeverage, "scale", scale)

	default:
		rep.Action = RiskPerSymbol
		for i := range out {
			rm.checkSymbol(&out[i], snap, kernels, &rep)
		}
	}

	rm.last = rep
	return out
}

func (rm *RiskManager) checkSymbol(t *model.PositionTarget, snap model.PortfolioSnapshot, kernels map[string]kernel.Output, rep *RiskReport) {
	price, ok := snap.Price(t.Symbol)
	if !ok {
		rep.PassedOpen++
		rm.log.Debug("no market data, target passes through", "symbol", t.Symbol)
		return
	}

	if ratio := rm.volFor(t.Symbol).Value() / price; ratio > rep.Limits.MaxVolatility {
		t.Quantity = truncate(t.Quantity * (1 - reductionFactor))
		rep.VolCapped++
		rm.log.Info("volatility cap reached, reducing target",
			"symbol", t.Symbol, "volatility", ratio, "max_volatility", rep.Limits.MaxVolatility)
		return
	}

	k, ok := kernels[t.Symbol]
	if !ok || !k.Ready {
		rep.PassedOpen++
		rm.log.Debug("kernel not ready, target passes through", "symbol", t.Symbol)
		return
	}
	conf := Confidence(price, k.Estimate)
	thr := rm.cfg.KernelConfidenceThreshold
	switch {
	case conf > thr:
		t.Quantity = truncate(t.Quantity * 1.2)
		rep.Boosted++
	case conf < 1-thr:
		t.Quantity = truncate(t.Quantity * 0.8)
		rep.Trimmed++
	}
}

func (rm *RiskManager) volFor(symbol string) *indicator.StdDev {
	sd, ok := rm.vol[symbol]
	if !ok {
		sd = indicator.NewStdDev(rm.cfg.VolatilityLookback)
		rm.vol[symbol] = sd
	}
	return sd
}

// LastReport returns the summary of the most recent Evaluate call.
func (rm *RiskManager) LastReport() RiskReport {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.last
}

// PeakValue returns the highest portfolio value seen.
func (rm *RiskManager) PeakValue() float64 {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.peak
}

// Tracked returns the number of symbols with volatility state.
func (rm *RiskManager) Tracked() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.vol)
}

func grossLeverage(snap model.PortfolioSnapshot) float64 {
	if snap.TotalValue <= 0 {
		return 0
	}
	gross := 0.0
	for _, h := range snap.Holdings {
		if h.Invested() {
			gross += math.Abs(h.Quantity * h.Price)
		}
	}
	return gross / snap.TotalValue
}

// truncate rounds toward zero like an integer share count.
func truncate(q float64) float64 { return math.Trunc(q) }
