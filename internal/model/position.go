package model

// PositionTarget is the desired holding for one symbol. It is produced by the
// execution layer and rescaled in place by the risk model before being returned.
type PositionTarget struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"` // positive = long, negative = short
}

// Holding is a currently held position as seen by the risk model.
type Holding struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	AvgPrice float64 `json:"avg_price"`
	Price    float64 `json:"price"` // latest market price
}

// Invested reports whether the holding carries a non-zero quantity.
func (h *Holding) Invested() bool {
	return h.Quantity != 0
}

// UnrealizedPnL computes unrealized profit/loss.
func (h *Holding) UnrealizedPnL() float64 {
	return (h.Price - h.AvgPrice) * h.Quantity
}

// PortfolioSnapshot is the portfolio state handed to the risk model once per cycle.
type PortfolioSnapshot struct {
	TotalValue float64            `json:"total_value"`
	Cash       float64            `json:"cash"`
	Holdings   []Holding          `json:"holdings"`
	Prices     map[string]float64 `json:"prices"` // latest price per symbol with market data
}

// Price returns the latest price for a symbol and whether market data exists.
func (s *PortfolioSnapshot) Price(symbol string) (float64, bool) {
	p, ok := s.Prices[symbol]
	if !ok || p <= 0 {
		return 0, false
	}
	return p, true
}
