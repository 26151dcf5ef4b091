package indicator

import "lorentzian-signals/internal/model"

// ATR is the rolling mean of true range. The first bar has no previous
// close, so its true range is H-L.
type ATR struct {
	period    int
	count     int
	prevClose float64
	sma       *SMA
}

// NewATR creates an ATR indicator (typically 14).
func NewATR(period int) *ATR {
	return &ATR{period: period, sma: NewSMA(period)}
}

func (a *ATR) Name() string { return "ATR_" + itoaInd(a.period) }

func (a *ATR) Update(bar model.Bar) {
	a.count++
	tr := bar.High - bar.Low
	if a.count > 1 {
		tr = TrueRange(bar, a.prevClose)
	}
	a.prevClose = bar.Close
	a.sma.Update(tr)
}

func (a *ATR) Value() float64 { return a.sma.Value() }
func (a *ATR) Ready() bool    { return a.sma.Ready() }
