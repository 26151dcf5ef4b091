package indicator

import (
	"math"

	"lorentzian-signals/internal/model"
)

// WaveTrend is the channel-normalised oscillator:
//
//	esa = EMA(hlc3, channel)
//	d   = EMA(|hlc3 - esa|, channel)
//	ci  = (hlc3 - esa) / (0.015 * d)   (0 when d = 0)
//	wt1 = EMA(ci, average)
//	wt2 = SMA(wt1, 4)
type WaveTrend struct {
	channel int
	average int
	esa     *EMA
	dev     *EMA
	wt1     *EMA
	wt2     *SMA
}

// NewWaveTrend creates a WaveTrend oscillator (typically 10, 21).
func NewWaveTrend(channel, average int) *WaveTrend {
	return &WaveTrend{
		channel: channel,
		average: average,
		esa:     NewEMA(channel),
		dev:     NewEMA(channel),
		wt1:     NewEMA(average),
		wt2:     NewSMA(4),
	}
}

func (w *WaveTrend) Name() string {
	return "WT_" + itoaInd(w.channel) + "_" + itoaInd(w.average)
}

func (w *WaveTrend) Update(bar model.Bar) {
	hlc3 := bar.HLC3()
	w.esa.Update(hlc3)
	esa := w.esa.current
	w.dev.Update(math.Abs(hlc3 - esa))
	d := w.dev.current

	ci := 0.0
	if d != 0 {
		ci = (hlc3 - esa) / (0.015 * d)
	}
	w.wt1.Update(ci)
	if w.wt1.Ready() {
		w.wt2.Update(w.wt1.Value())
	}
}

// Value returns wt1.
func (w *WaveTrend) Value() float64 {
	if !w.Ready() {
		return 0
	}
	return w.wt1.Value()
}

// Signal returns wt2, the 4-bar average of wt1.
func (w *WaveTrend) Signal() float64 { return w.wt2.Value() }

func (w *WaveTrend) Ready() bool {
	return w.esa.Ready() && w.dev.Ready() && w.wt2.Ready()
}
