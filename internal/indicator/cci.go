package indicator

import (
	"math"

	"lorentzian-signals/internal/model"
	"lorentzian-signals/internal/ringbuf"
)

// CCI calculates the Commodity Channel Index over the typical price:
// (tp - SMA(tp)) / (0.015 * meanAbsDev(tp)). A zero deviation yields 0.
// O(period) per update.
type CCI struct {
	period  int
	buf     *ringbuf.Ring[float64]
	current float64
}

// NewCCI creates a CCI indicator (typically 20).
func NewCCI(period int) *CCI {
	if period < 2 {
		period = 2
	}
	return &CCI{period: period, buf: ringbuf.New[float64](period)}
}

func (c *CCI) Name() string { return "CCI_" + itoaInd(c.period) }

func (c *CCI) Update(bar model.Bar) {
	tp := bar.HLC3()
	c.buf.Push(tp)
	if !c.Ready() {
		return
	}

	mean := 0.0
	c.buf.Do(func(v float64) { mean += v })
	mean /= float64(c.period)

	mad := 0.0
	c.buf.Do(func(v float64) { mad += math.Abs(v - mean) })
	mad /= float64(c.period)

	if mad == 0 {
		c.current = 0
		return
	}
	c.current = (tp - mean) / (0.015 * mad)
}

func (c *CCI) Value() float64 { return c.current }
func (c *CCI) Ready() bool    { return c.buf.Full() }
