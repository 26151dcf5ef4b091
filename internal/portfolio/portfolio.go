// Package portfolio tracks paper positions and P&L, and hosts the adaptive
// risk manager that rescales position targets.
package portfolio

import (
	"sort"
	"sync"

	"lorentzian-signals/internal/model"
)

// Position represents a single symbol position.
type Position struct {
	Symbol    string  `json:"symbol"`
	Qty       float64 `json:"qty"`       // positive = long, negative = short
	AvgPrice  float64 `json:"avg_price"` // average entry price
	LastPrice float64 `json:"last_price"`
	OpenedBar int     `json:"opened_bar"` // bar index when the position was opened
}

// UnrealizedPnL returns the mark-to-market P&L.
func (p *Position) UnrealizedPnL() float64 {
	return (p.LastPrice - p.AvgPrice) * p.Qty
}

// Portfolio tracks cash and open positions.
type Portfolio struct {
	mu        sync.RWMutex
	cash      float64
	positions map[string]*Position
	prices    map[string]float64
}

// New creates a portfolio holding only cash.
func New(cash float64) *Portfolio {
	return &Portfolio{
		cash:      cash,
		positions: make(map[string]*Position),
		prices:    make(map[string]float64),
	}
}

// UpdatePrice records the latest close for the bar's symbol.
func (pf *Portfolio) UpdatePrice(bar model.Bar) {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	pf.prices[bar.Symbol] = bar.Close
	if pos, ok := pf.positions[bar.Symbol]; ok {
		pos.LastPrice = bar.Close
	}
}

// Apply books a fill of signed qty at price. Returns the realised P&L of any
// reduced or flipped portion.
func (pf *Portfolio) Apply(symbol string, qty, price float64, barIndex int) float64 {
	if qty == 0 {
		return 0
	}
	pf.mu.Lock()
	defer pf.mu.Unlock()

	pf.cash -= qty * price
	pf.prices[symbol] = price

	pos, ok := pf.positions[symbol]
	if !ok {
		pf.positions[symbol] = &Position{Symbol: symbol, Qty: qty, AvgPrice: price, LastPrice: price, OpenedBar: barIndex}
		return 0
	}
	pos.LastPrice = price

	realised := 0.0
	switch {
	case pos.Qty*qty > 0:
		// adding to the same side
		pos.AvgPrice = (pos.AvgPrice*pos.Qty + price*qty) / (pos.Qty + qty)
		pos.Qty += qty
	default:
		closing := min(abs(qty), abs(pos.Qty))
		realised = (price - pos.AvgPrice) * closing * sign(pos.Qty)
		remaining := pos.Qty + qty
		switch {
		case remaining == 0:
			delete(pf.positions, symbol)
		case remaining*pos.Qty < 0:
			// flipped through zero
			pos.Qty = remaining
			pos.AvgPrice = price
			pos.OpenedBar = barIndex
		default:
			pos.Qty = remaining
		}
	}
	return realised
}

// Quantity returns the held quantity for symbol.
func (pf *Portfolio) Quantity(symbol string) float64 {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	if pos, ok := pf.positions[symbol]; ok {
		return pos.Qty
	}
	return 0
}

// GetPositions returns a snapshot of all positions sorted by symbol.
func (pf *Portfolio) GetPositions() []Position {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	result := make([]Position, 0, len(pf.positions))
	for _, p := range pf.positions {
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Symbol < result[j].Symbol })
	return result
}

// OpenCount returns the number of open positions.
func (pf *Portfolio) OpenCount() int {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	return len(pf.positions)
}

// Cash returns the cash balance.
func (pf *Portfolio) Cash() float64 {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	return pf.cash
}

// TotalValue returns cash plus the marked value of every position.
func (pf *Portfolio) TotalValue() float64 {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	return pf.totalValueLocked()
}

func (pf *Portfolio) totalValueLocked() float64 {
	v := pf.cash
	for _, p := range pf.positions {
		v += p.Qty * p.LastPrice
	}
	return v
}

// TotalUnrealizedPnL returns the unrealized P&L across all positions.
func (pf *Portfolio) TotalUnrealizedPnL() float64 {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	var total float64
	for _, p := range pf.positions {
		total += p.UnrealizedPnL()
	}
	return total
}

// Snapshot builds the view the risk model consumes.
func (pf *Portfolio) Snapshot() model.PortfolioSnapshot {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	snap := model.PortfolioSnapshot{
		TotalValue: pf.totalValueLocked(),
		Cash:       pf.cash,
		Holdings:   make([]model.Holding, 0, len(pf.positions)),
		Prices:     make(map[string]float64, len(pf.prices)),
	}
	for s, p := range pf.prices {
		snap.Prices[s] = p
	}
	for _, p := range pf.positions {
		snap.Holdings = append(snap.Holdings, model.Holding{
			Symbol:   p.Symbol,
			Quantity: p.Qty,
			AvgPrice: p.AvgPrice,
			Price:    p.LastPrice,
		})
	}
	return snap
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
