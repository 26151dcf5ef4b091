package indicator

// MACD is the fast/slow EMA difference with a signal EMA and histogram.
// The signal line only starts once the slow EMA is ready, so its warm-up is
// slow+signal-1 bars.
type MACD struct {
	fast   *EMA
	slow   *EMA
	signal *EMA
	macd   float64
}

// NewMACD creates a MACD indicator (typically 12, 26, 9).
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{
		fast:   NewEMA(fast),
		slow:   NewEMA(slow),
		signal: NewEMA(signal),
	}
}

func (m *MACD) Name() string {
	return "MACD_" + itoaInd(m.fast.period) + "_" + itoaInd(m.slow.period) + "_" + itoaInd(m.signal.period)
}

func (m *MACD) Update(price float64) {
	m.fast.Update(price)
	m.slow.Update(price)
	if !m.slow.Ready() {
		return
	}
	m.macd = m.fast.current - m.slow.current
	m.signal.Update(m.macd)
}

func (m *MACD) Value() float64 { return m.macd }

// Signal returns the signal-line value.
func (m *MACD) Signal() float64 { return m.signal.Value() }

// Hist returns macd - signal.
func (m *MACD) Hist() float64 {
	if !m.Ready() {
		return 0
	}
	return m.macd - m.signal.current
}

func (m *MACD) Ready() bool { return m.slow.Ready() && m.signal.Ready() }
