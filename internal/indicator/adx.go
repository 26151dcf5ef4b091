package indicator

import (
	"math"

	"lorentzian-signals/internal/model"
)

// ADX calculates the Average Directional Index. True range and directional
// movement are smoothed with EMA(period); DI± = 100·EMA(±DM)/ATR and
// ADX = EMA(DX). Zero denominators produce 0 instead of NaN.
type ADX struct {
	period int
	count  int

	prevHigh  float64
	prevLow   float64
	prevClose float64

	tr      *EMA
	plusDM  *EMA
	minusDM *EMA
	adx     *EMA

	plusDI  float64
	minusDI float64
}

// NewADX creates an ADX indicator (typically 14).
func NewADX(period int) *ADX {
	return &ADX{
		period:  period,
		tr:      NewEMA(period),
		plusDM:  NewEMA(period),
		minusDM: NewEMA(period),
		adx:     NewEMA(period),
	}
}

func (a *ADX) Name() string { return "ADX_" + itoaInd(a.period) }

func (a *ADX) Update(bar model.Bar) {
	a.count++
	if a.count == 1 {
		a.prevHigh, a.prevLow, a.prevClose = bar.High, bar.Low, bar.Close
		return
	}

	a.tr.Update(TrueRange(bar, a.prevClose))

	up := bar.High - a.prevHigh
	down := a.prevLow - bar.Low
	pdm, mdm := 0.0, 0.0
	if up > down && up > 0 {
		pdm = up
	}
	if down > up && down > 0 {
		mdm = down
	}
	a.plusDM.Update(pdm)
	a.minusDM.Update(mdm)
	a.prevHigh, a.prevLow, a.prevClose = bar.High, bar.Low, bar.Close

	atr := a.tr.current
	if atr == 0 {
		a.plusDI, a.minusDI = 0, 0
	} else {
		a.plusDI = 100 * a.plusDM.current / atr
		a.minusDI = 100 * a.minusDM.current / atr
	}

	dx := 0.0
	if sum := a.plusDI + a.minusDI; sum != 0 {
		dx = 100 * math.Abs(a.plusDI-a.minusDI) / sum
	}
	a.adx.Update(dx)
}

func (a *ADX) Value() float64   { return a.adx.Value() }
func (a *ADX) PlusDI() float64  { return a.plusDI }
func (a *ADX) MinusDI() float64 { return a.minusDI }
func (a *ADX) Ready() bool      { return a.adx.Ready() }

// TrueRange returns max(H-L, |H-prevClose|, |L-prevClose|).
func TrueRange(bar model.Bar, prevClose float64) float64 {
	return math.Max(bar.High-bar.Low, math.Max(math.Abs(bar.High-prevClose), math.Abs(bar.Low-prevClose)))
}
