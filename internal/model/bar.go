package model

import (
	"encoding/json"
	"time"
)

// Bar is one OHLCV observation for a symbol over a fixed period.
// Bars are immutable once produced; every consumer receives a copy.
type Bar struct {
	Symbol string    `json:"symbol"`
	TS     time.Time `json:"ts"` // bar open time (UTC)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// HLC3 returns the typical price (H+L+C)/3.
func (b *Bar) HLC3() float64 {
	return (b.High + b.Low + b.Close) / 3
}

// StreamKey returns the Redis stream key the bar is published on: "bar:{symbol}".
func (b *Bar) StreamKey() string {
	return "bar:" + b.Symbol
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}
