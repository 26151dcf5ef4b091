package indicator

// EMA calculates Exponential Moving Average with α = 2/(period+1).
// The first input seeds the average directly (no SMA seed), so the series
// matches a non-adjusted exponentially weighted mean. O(1) per update.
type EMA struct {
	period  int
	alpha   float64
	current float64
	count   int
}

// NewEMA creates a new EMA indicator with the given period.
func NewEMA(period int) *EMA {
	if period < 1 {
		period = 1
	}
	return &EMA{
		period: period,
		alpha:  2.0 / float64(period+1),
	}
}

func (e *EMA) Name() string { return "EMA_" + itoaInd(e.period) }

func (e *EMA) Update(v float64) {
	e.count++
	if e.count == 1 {
		e.current = v
		return
	}
	// EMA = v*α + EMA_prev*(1-α)
	e.current = v*e.alpha + e.current*(1-e.alpha)
}

func (e *EMA) Value() float64 {
	if !e.Ready() {
		return 0
	}
	return e.current
}

func (e *EMA) Ready() bool { return e.count >= e.period }

// Reset clears the EMA state for reuse.
func (e *EMA) Reset() {
	e.current = 0
	e.count = 0
}
