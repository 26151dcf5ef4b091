package portfolio

import (
	"math"
	"testing"

	"lorentzian-signals/internal/kernel"
	"lorentzian-signals/internal/model"
)

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f)", label, got, want, tol)
	}
}

func snapshot(total float64, prices map[string]float64, holdings ...model.Holding) model.PortfolioSnapshot {
	return model.PortfolioSnapshot{TotalValue: total, Cash: total, Holdings: holdings, Prices: prices}
}

func targets(pairs ...any) []model.PositionTarget {
	var out []model.PositionTarget
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, model.PositionTarget{Symbol: pairs[i].(string), Quantity: pairs[i+1].(float64)})
	}
	return out
}

func TestScaleLimits(t *testing.T) {
	cfg := DefaultRiskConfig()
	tests := []struct {
		name         string
		rs           RegimeState
		dd, lev, vol float64
	}{
		{"neutral", RegimeState{Regime: 0, Confidence: 0.5}, 0.115, 2.2, 0.0575},
		{"bullish confident", RegimeState{Regime: 1, Confidence: 1}, 0.10 * 1.2 * 1.3, 2.0 * 1.1 * 1.2, 0.05 * 1.3 * 1.3},
		{"bearish", RegimeState{Regime: -1, Confidence: 0}, 0.08, 1.8, 0.035},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := ScaleLimits(cfg, tt.rs)
			assertClose(t, "max_drawdown", l.MaxDrawdown, tt.dd, 1e-12)
			assertClose(t, "max_leverage", l.MaxLeverage, tt.lev, 1e-12)
			assertClose(t, "max_volatility", l.MaxVolatility, tt.vol, 1e-12)
		})
	}
}

func TestDetectRegime(t *testing.T) {
	kernels := map[string]kernel.Output{
		"A": {Ready: true, Trend: kernel.Bullish, Estimate: 100},
		"B": {Ready: true, Trend: kernel.Bullish, Estimate: 45},
		"C": {Ready: true, Trend: kernel.Bearish, Estimate: 10},
		"D": {Ready: false, Trend: kernel.Bearish, Estimate: 1},
	}
	prices := map[string]float64{"A": 100, "B": 50, "D": 1}
	rs := DetectRegime(kernels, snapshot(1000, prices))
	assertClose(t, "regime", rs.Regime, 1.0/3, 1e-12)
	// A: 1, B: 1-5/50 = 0.9; C has no price, D not ready
	assertClose(t, "confidence", rs.Confidence, 0.95, 1e-12)

	// a freshly ready kernel has no trend yet and still counts in the mean
	kernels["E"] = kernel.Output{Ready: true, Trend: kernel.Neutral, Estimate: 5}
	rs = DetectRegime(kernels, snapshot(1000, prices))
	assertClose(t, "regime with neutral", rs.Regime, 1.0/4, 1e-12)
	if rs.Symbols != 4 {
		t.Errorf("symbols = %d, want 4", rs.Symbols)
	}

	empty := DetectRegime(nil, snapshot(1000, nil))
	if empty.Regime != 0 || empty.Confidence != 0.5 {
		t.Errorf("empty regime = %+v, want 0 / 0.5", empty)
	}
}

func TestEvaluate_DrawdownHalvesAll(t *testing.T) {
	rm := NewRiskManager(DefaultRiskConfig())
	rm.Evaluate(nil, snapshot(100000, nil), nil)

	in := targets("A", 101.0, "B", -7.0)
	out := rm.Evaluate(in, snapshot(85000, nil), nil)

	rep := rm.LastReport()
	assertClose(t, "drawdown", rep.Drawdown, 0.15, 1e-12)
	assertClose(t, "max_drawdown", rep.Limits.MaxDrawdown, 0.115, 1e-12)
	if rep.Action != RiskDrawdown {
		t.Fatalf("action=%s, want drawdown", rep.Action)
	}
	if out[0].Quantity != 50 || out[1].Quantity != -3 {
		t.Fatalf("targets=%+v, want 50 and -3", out)
	}
	if in[0].Quantity != 101 {
		t.Fatal("input targets were modified")
	}
}

func TestEvaluate_PeakResets(t *testing.T) {
	rm := NewRiskManager(DefaultRiskConfig())
	rm.Evaluate(nil, snapshot(100000, nil), nil)
	rm.Evaluate(nil, snapshot(95000, nil), nil)
	assertClose(t, "drawdown", rm.LastReport().Drawdown, 0.05, 1e-12)

	rm.Evaluate(nil, snapshot(100001, nil), nil)
	if rm.LastReport().Drawdown != 0 {
		t.Fatalf("drawdown=%v after new high, want 0", rm.LastReport().Drawdown)
	}
	if rm.PeakValue() != 100001 {
		t.Fatalf("peak=%v, want 100001", rm.PeakValue())
	}
}

func TestEvaluate_LeverageScales(t *testing.T) {
	rm := NewRiskManager(DefaultRiskConfig())
	snap := snapshot(100000, map[string]float64{"A": 100},
		model.Holding{Symbol: "A", Quantity: 3000, Price: 100})

	out := rm.Evaluate(targets("A", 100.0, "B", -10.0), snap, nil)
	rep := rm.LastReport()
	if rep.Action != RiskLeverage {
		t.Fatalf("action=%s, want leverage", rep.Action)
	}
	assertClose(t, "leverage", rep.Leverage, 3, 1e-12)
	// max_leverage = 2.0 · 1 · 1.1 = 2.2 → scale 0.7333
	if out[0].Quantity != 73 || out[1].Quantity != -7 {
		t.Fatalf("targets=%+v, want 73 and -7", out)
	}
}

func TestEvaluate_VolatilityCap(t *testing.T) {
	cfg := DefaultRiskConfig()
	cfg.VolatilityLookback = 4
	rm := NewRiskManager(cfg)
	rm.AddSymbol("X")

	var out []model.PositionTarget
	for i, p := range []float64{80, 120, 80, 120} {
		out = rm.Evaluate(targets("X", 10.0), snapshot(100000, map[string]float64{"X": p}), nil)
		if i < 3 && out[0].Quantity != 10 {
			t.Fatalf("cycle %d: volatility window not full, got %v", i, out[0].Quantity)
		}
	}
	// σ = 20, ratio 20/120 ≈ 0.167 > 0.0575
	if out[0].Quantity != 5 {
		t.Fatalf("quantity=%v, want 5", out[0].Quantity)
	}
	if rm.LastReport().VolCapped != 1 {
		t.Fatalf("VolCapped=%d, want 1", rm.LastReport().VolCapped)
	}
}

func TestEvaluate_ConfidenceNudge(t *testing.T) {
	tests := []struct {
		name     string
		estimate float64
		want     float64
	}{
		{"high confidence boosts", 100, 12},
		{"mid confidence unchanged", 50, 10},
		{"low confidence trims", 20, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rm := NewRiskManager(DefaultRiskConfig())
			k := map[string]kernel.Output{"S": {Ready: true, Trend: kernel.Bullish, Estimate: tt.estimate}}
			out := rm.Evaluate(targets("S", 10.0), snapshot(100000, map[string]float64{"S": 100}), k)
			if out[0].Quantity != tt.want {
				t.Fatalf("quantity=%v, want %v", out[0].Quantity, tt.want)
			}
		})
	}
}

func TestEvaluate_FailOpen(t *testing.T) {
	rm := NewRiskManager(DefaultRiskConfig())
	k := map[string]kernel.Output{
		"READY":    {Ready: true, Trend: kernel.Bullish, Estimate: 100},
		"NOTREADY": {Ready: false},
	}
	prices := map[string]float64{"READY": 100, "NOTREADY": 50}
	out := rm.Evaluate(targets("READY", 10.0, "NODATA", 7.0, "NOTREADY", 9.0), snapshot(100000, prices), k)

	if out[0].Quantity != 12 {
		t.Errorf("READY=%v, want 12", out[0].Quantity)
	}
	if out[1].Quantity != 7 {
		t.Errorf("NODATA=%v, want pass-through 7", out[1].Quantity)
	}
	if out[2].Quantity != 9 {
		t.Errorf("NOTREADY=%v, want pass-through 9", out[2].Quantity)
	}
	if rm.LastReport().PassedOpen != 2 {
		t.Errorf("PassedOpen=%d, want 2", rm.LastReport().PassedOpen)
	}
}

func TestAddRemoveSymbol(t *testing.T) {
	rm := NewRiskManager(DefaultRiskConfig())
	rm.AddSymbol("A")
	rm.AddSymbol("A")
	rm.AddSymbol("B")
	if rm.Tracked() != 2 {
		t.Fatalf("Tracked()=%d, want 2", rm.Tracked())
	}
	rm.RemoveSymbol("A")
	if rm.Tracked() != 1 {
		t.Fatalf("Tracked()=%d, want 1", rm.Tracked())
	}
}
