package indicator

import (
	"math"

	"lorentzian-signals/internal/model"
)

// HeikinAshi converts a bar stream into Heikin-Ashi bars. One instance per
// symbol; the first bar seeds ha_open with the raw open.
type HeikinAshi struct {
	started   bool
	prevOpen  float64
	prevClose float64
}

// NewHeikinAshi creates a Heikin-Ashi transformer.
func NewHeikinAshi() *HeikinAshi { return &HeikinAshi{} }

// Transform returns the Heikin-Ashi version of bar and advances the state.
func (h *HeikinAshi) Transform(bar model.Bar) model.Bar {
	haClose := (bar.Open + bar.High + bar.Low + bar.Close) / 4
	haOpen := bar.Open
	if h.started {
		haOpen = (h.prevOpen + h.prevClose) / 2
	}
	h.started = true
	h.prevOpen, h.prevClose = haOpen, haClose

	out := bar
	out.Open = haOpen
	out.Close = haClose
	out.High = math.Max(bar.High, math.Max(haOpen, haClose))
	out.Low = math.Min(bar.Low, math.Min(haOpen, haClose))
	return out
}
