package indicator

// RSI calculates the Relative Strength Index. Average gain and loss are
// smoothed exponentially with α = 2/(period+1); the first delta seeds both
// averages. The first value is emitted once `period` prices have been seen.
// Update is O(1) per bar.
type RSI struct {
	period    int
	alpha     float64
	count     int
	prevClose float64
	avgGain   float64
	avgLoss   float64
	current   float64
}

// NewRSI creates a new RSI indicator with the given period (typically 14).
func NewRSI(period int) *RSI {
	if period < 2 {
		period = 2
	}
	return &RSI{period: period, alpha: 2.0 / float64(period+1)}
}

func (r *RSI) Name() string { return "RSI_" + itoaInd(r.period) }

func (r *RSI) Update(price float64) {
	r.count++

	if r.count == 1 {
		// First bar: just record price, no delta yet
		r.prevClose = price
		return
	}

	delta := price - r.prevClose
	r.prevClose = price

	gain, loss := 0.0, 0.0
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}

	if r.count == 2 {
		r.avgGain = gain
		r.avgLoss = loss
	} else {
		r.avgGain = gain*r.alpha + r.avgGain*(1-r.alpha)
		r.avgLoss = loss*r.alpha + r.avgLoss*(1-r.alpha)
	}

	// Zero-loss guard: no losses in the smoothed window means RSI = 100.
	if r.avgLoss == 0 {
		r.current = 100.0
		return
	}
	rs := r.avgGain / r.avgLoss
	r.current = 100.0 - (100.0 / (1.0 + rs))
}

func (r *RSI) Value() float64 {
	if !r.Ready() {
		return 0
	}
	return r.current
}

// Ready reports whether period prices (period-1 deltas) have been seen.
func (r *RSI) Ready() bool { return r.count >= r.period }
