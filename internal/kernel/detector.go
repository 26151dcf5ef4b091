package kernel

// Trend is the discrete kernel trend label.
type Trend int

const (
	Neutral Trend = iota
	Bullish
	Bearish
)

func (t Trend) String() string {
	switch t {
	case Bullish:
		return "bullish"
	case Bearish:
		return "bearish"
	default:
		return "neutral"
	}
}

// Sign returns +1 for Bullish, -1 for Bearish and 0 otherwise.
func (t Trend) Sign() float64 {
	switch t {
	case Bullish:
		return 1
	case Bearish:
		return -1
	default:
		return 0
	}
}

// Config holds the regression shape and alert mode.
type Config struct {
	Lookback       float64 // h
	RelativeWeight float64 // α
	StartBar       int     // warm-up; buffer capacity is StartBar+1
	Lag            int     // second estimate uses bandwidth h-Lag
	SmoothColors   bool    // crossover mode instead of rate-of-change mode
}

// DefaultConfig returns h=8, α=8, start_bar=25, lag=2 in rate mode.
func DefaultConfig() Config {
	return Config{Lookback: 8, RelativeWeight: 8, StartBar: 25, Lag: 2}
}

// Output is one detector update.
type Output struct {
	Estimate    float64 // yhat1
	EstimateLag float64 // yhat2
	Slope       float64 // yhat1 - previous yhat1
	Trend       Trend
	Alert       int  // -1 bearish, +1 bullish, 0 none
	Change      bool // slope direction flipped this update
	Cross       bool // yhat2 crossed yhat1 this update
	Ready       bool
}

// TrendDetector is the capability the signal pipeline and risk manager use.
type TrendDetector interface {
	Update(price float64) Output
	Last() Output
	Ready() bool
}

// Detector tracks one symbol's kernel estimates and derives trend and alerts.
// Not safe for concurrent use.
type Detector struct {
	cfg Config
	buf *Buffer

	n            int // estimates produced so far
	prev1, prev2 float64
	prevLag      float64
	last         Output
}

// NewDetector creates a detector. Non-positive fields fall back to DefaultConfig.
func NewDetector(cfg Config) *Detector {
	d := DefaultConfig()
	if cfg.Lookback <= 0 {
		cfg.Lookback = d.Lookback
	}
	if cfg.RelativeWeight <= 0 {
		cfg.RelativeWeight = d.RelativeWeight
	}
	if cfg.StartBar <= 0 {
		cfg.StartBar = d.StartBar
	}
	if cfg.Lag < 0 {
		cfg.Lag = 0
	}
	return &Detector{cfg: cfg, buf: NewBuffer(cfg.StartBar + 1)}
}

// Update appends price and recomputes both estimates over the buffer.
// Output.Ready is false until the buffer holds start_bar+1 prices.
func (d *Detector) Update(price float64) Output {
	d.buf.Push(price)
	if !d.buf.Full() {
		return Output{}
	}

	prices := d.buf.NewestFirst()
	y1 := Estimate(prices, d.cfg.Lookback, d.cfg.RelativeWeight)
	y2 := Estimate(prices, d.cfg.Lookback-float64(d.cfg.Lag), d.cfg.RelativeWeight)

	out := Output{Estimate: y1, EstimateLag: y2, Ready: true}

	if d.n >= 1 {
		rising := y1 > d.prev1
		falling := y1 < d.prev1
		out.Slope = y1 - d.prev1

		bullCross := y2 > y1 && d.prevLag <= d.prev1
		bearCross := y2 < y1 && d.prevLag >= d.prev1
		out.Cross = bullCross || bearCross

		var bullChange, bearChange bool
		if d.n >= 2 {
			bullChange = rising && d.prev2 > d.prev1
			bearChange = falling && d.prev2 < d.prev1
		}
		out.Change = bullChange || bearChange

		if d.cfg.SmoothColors {
			out.Trend = Bearish
			if y2 > y1 {
				out.Trend = Bullish
			}
			switch {
			case bullCross:
				out.Alert = 1
			case bearCross:
				out.Alert = -1
			}
		} else {
			out.Trend = Bearish
			if rising {
				out.Trend = Bullish
			}
			switch {
			case bullChange:
				out.Alert = 1
			case bearChange:
				out.Alert = -1
			}
		}
	}

	d.prev2, d.prev1, d.prevLag = d.prev1, y1, y2
	d.n++
	d.last = out
	return out
}

// Last returns the most recent output.
func (d *Detector) Last() Output { return d.last }

// Ready reports whether at least one estimate has been produced.
func (d *Detector) Ready() bool { return d.last.Ready }

// Len returns the current buffer size.
func (d *Detector) Len() int { return d.buf.Len() }

// Config returns the effective configuration.
func (d *Detector) Config() Config { return d.cfg }
