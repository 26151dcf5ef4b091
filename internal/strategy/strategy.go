// Package strategy turns bars into trading signals.
//
// A Strategy receives one symbol's bars and returns a Signal once its
// indicators, classifier and kernel are warmed up. The Registry owns one
// Lorentzian pipeline per symbol and the Engine routes a bar stream through it.
package strategy

import (
	"encoding/json"
	"time"

	"lorentzian-signals/internal/model"
)

// Action is the ternary trading direction.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Direction returns +1 for BUY, -1 for SELL and 0 for HOLD.
func (a Action) Direction() float64 {
	switch a {
	case ActionBuy:
		return 1
	case ActionSell:
		return -1
	default:
		return 0
	}
}

// Filters records which filters were evaluated and whether each passed.
// A disabled filter always reports true.
type Filters struct {
	Volatility bool `json:"volatility"`
	Regime     bool `json:"regime"`
	ADX        bool `json:"adx"`
	Kernel     bool `json:"kernel"`
}

// Passed reports whether every filter passed.
func (f Filters) Passed() bool { return f.Volatility && f.Regime && f.ADX && f.Kernel }

// Signal is one symbol's fused output for one bar.
type Signal struct {
	Strategy string    `json:"strategy"`
	Symbol   string    `json:"symbol"`
	TS       time.Time `json:"ts"`
	Action   Action    `json:"action"`
	Base     Action    `json:"base"` // direction before filters
	Score    float64   `json:"score"`
	Trend    string    `json:"trend"`
	Alert    int       `json:"alert"`
	Estimate float64   `json:"estimate"`
	Price    float64   `json:"price"`
	IsNew    bool      `json:"is_new"`
	Filters  Filters   `json:"filters"`
}

// StreamKey returns the Redis stream the signal is published on: "signal:{symbol}".
func (s *Signal) StreamKey() string { return "signal:" + s.Symbol }

// JSON returns the JSON-encoded signal (ignoring errors for hot-path usage).
func (s *Signal) JSON() []byte {
	out, _ := json.Marshal(s)
	return out
}

// Strategy is the interface every per-symbol signal pipeline implements.
type Strategy interface {
	// Name returns the unique name of the strategy instance.
	Name() string

	// OnBar is called for each new bar of the strategy's symbol, in time order.
	// Returns nil while warming up.
	OnBar(bar model.Bar) *Signal
}
