package portfolio

import (
	"sync"
	"time"
)

// Trade represents a fill for P&L accounting.
type Trade struct {
	Symbol    string    `json:"symbol"`
	Action    string    `json:"action"` // BUY or SELL
	Qty       float64   `json:"qty"`    // always positive
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
	Realized  float64   `json:"realized"`
}

// PnLTracker keeps the trade log and running realised P&L.
type PnLTracker struct {
	mu       sync.RWMutex
	trades   []Trade
	realized float64
	wins     int
	losses   int
}

// NewPnLTracker creates a new P&L tracker.
func NewPnLTracker() *PnLTracker {
	return &PnLTracker{trades: make([]Trade, 0, 500)}
}

// RecordTrade appends a fill whose realised P&L is already known.
func (p *PnLTracker) RecordTrade(trade Trade) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.trades = append(p.trades, trade)
	p.realized += trade.Realized
	switch {
	case trade.Realized > 0:
		p.wins++
	case trade.Realized < 0:
		p.losses++
	}
}

// GetRealizedPnL returns total realised P&L.
func (p *PnLTracker) GetRealizedPnL() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.realized
}

// GetTrades returns a snapshot of all trades.
func (p *PnLTracker) GetTrades() []Trade {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]Trade, len(p.trades))
	copy(cp, p.trades)
	return cp
}

// PnLSummary is the end-of-run P&L view.
type PnLSummary struct {
	RealizedPnL   float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	TotalPnL      float64 `json:"total_pnl"`
	TotalTrades   int     `json:"total_trades"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	OpenPositions int     `json:"open_positions"`
}

// GetSummary combines the trade log with the portfolio's open positions.
func (p *PnLTracker) GetSummary(pf *Portfolio) PnLSummary {
	unrealized := pf.TotalUnrealizedPnL()
	open := pf.OpenCount()

	p.mu.RLock()
	defer p.mu.RUnlock()
	return PnLSummary{
		RealizedPnL:   p.realized,
		UnrealizedPnL: unrealized,
		TotalPnL:      p.realized + unrealized,
		TotalTrades:   len(p.trades),
		Wins:          p.wins,
		Losses:        p.losses,
		OpenPositions: open,
	}
}
