package strategy

import (
	"math"

	"lorentzian-signals/internal/kernel"
	"lorentzian-signals/internal/model"
)

// FilterConfig toggles and parameterises the fusion filters.
type FilterConfig struct {
	Volatility      bool
	VolatilityCap   float64 // max ATR/close
	Regime          bool
	RegimeThreshold float64
	ADX             bool
	ADXThreshold    float64
	Kernel          bool // require kernel trend to agree with direction
}

// DefaultFilterConfig mirrors the stock parameter set.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		Volatility:      true,
		VolatilityCap:   0.05,
		Regime:          true,
		RegimeThreshold: -0.1,
		ADX:             false,
		ADXThreshold:    20,
		Kernel:          true,
	}
}

// FusionConfig holds the base threshold and filters.
type FusionConfig struct {
	Threshold float64
	Filters   FilterConfig
}

// Inputs is everything Fuse may look at for the current bar.
type Inputs struct {
	Score      float64
	Kernel     kernel.Output
	Volatility float64 // ATR / close
	ADX        float64
}

// Fuser combines classifier score, kernel output and filters into a Signal.
// One Fuser per symbol; it remembers the last emitted action for debouncing.
type Fuser struct {
	cfg  FusionConfig
	last Action
}

// NewFuser creates a fuser whose previous action starts as HOLD.
func NewFuser(cfg FusionConfig) *Fuser {
	return &Fuser{cfg: cfg, last: ActionHold}
}

// Fuse evaluates the current bar. Only current-bar inputs are used.
func (f *Fuser) Fuse(in Inputs) Signal {
	base := ActionHold
	switch {
	case in.Score > f.cfg.Threshold:
		base = ActionBuy
	case in.Score < -f.cfg.Threshold:
		base = ActionSell
	}

	flt := Filters{Volatility: true, Regime: true, ADX: true, Kernel: true}
	if base != ActionHold {
		dir := base.Direction()
		fc := f.cfg.Filters
		if fc.Volatility {
			flt.Volatility = in.Volatility < fc.VolatilityCap
		}
		if fc.Regime {
			r := RegimeScore(in.Kernel)
			flt.Regime = model.Sign(r) == dir && math.Abs(r) > fc.RegimeThreshold
		}
		if fc.ADX {
			flt.ADX = in.ADX > fc.ADXThreshold
		}
		if fc.Kernel {
			flt.Kernel = in.Kernel.Ready && in.Kernel.Trend.Sign() == dir
		}
	}

	action := base
	if !flt.Passed() {
		action = ActionHold
	}

	sig := Signal{
		Action:   action,
		Base:     base,
		Score:    in.Score,
		Trend:    in.Kernel.Trend.String(),
		Alert:    in.Kernel.Alert,
		Estimate: in.Kernel.Estimate,
		IsNew:    action != f.last,
		Filters:  flt,
	}
	f.last = action
	return sig
}

// Last returns the previously emitted action.
func (f *Fuser) Last() Action { return f.last }

// Reset forgets the previous action.
func (f *Fuser) Reset() { f.last = ActionHold }

// RegimeScore is the kernel slope as a percentage of the previous estimate,
// clipped to [-1, 1]. 0 until two estimates exist.
func RegimeScore(out kernel.Output) float64 {
	if !out.Ready {
		return 0
	}
	prev := out.Estimate - out.Slope
	if prev == 0 {
		return 0
	}
	return model.Clamp(out.Slope/prev*100, -1, 1)
}
