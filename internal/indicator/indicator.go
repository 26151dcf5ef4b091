// Package indicator provides streaming technical indicator calculations over bars.
//
// Scalar indicators implement Indicator and receive one float64 per bar;
// indicators that need the full OHLC implement BarIndicator. Every indicator
// reports Ready()=false until its lookback is satisfied, and Value() is
// meaningless until then. Indicators are composable: WaveTrend, ADX and MACD
// are built from EMA and SMA.
package indicator

import "lorentzian-signals/internal/model"

// Indicator is the interface for scalar streaming indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "SMA_20", "RSI_14").
	Name() string

	// Update feeds the next value and recalculates.
	Update(v float64)

	// Value returns the current calculated value. Returns 0 if not ready.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool
}

// BarIndicator is the interface for indicators computed from whole bars.
type BarIndicator interface {
	Name() string
	Update(bar model.Bar)
	Value() float64
	Ready() bool
}

// itoaInd converts int to string without importing strconv.
func itoaInd(n int) string {
	if n == 0 {
		return "0"
	}
	buf := [20]byte{}
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
