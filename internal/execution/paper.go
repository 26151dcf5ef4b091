// Package execution simulates order fills for backtests and paper trading.
//
// The PaperExecutor turns new BUY/SELL signals into position targets, passes
// them through the risk model, and fills the difference against the paper
// portfolio at the bar close plus slippage.
package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lorentzian-signals/internal/kernel"
	"lorentzian-signals/internal/model"
	"lorentzian-signals/internal/portfolio"
	"lorentzian-signals/internal/strategy"
)

// Fill represents a simulated order fill.
type Fill struct {
	OrderID  string          `json:"order_id"`
	Strategy string          `json:"strategy"`
	Symbol   string          `json:"symbol"`
	Action   strategy.Action `json:"action"`
	Qty      float64         `json:"qty"` // always positive
	Price    float64         `json:"price"`
	Slippage float64         `json:"slippage"` // per unit
	Realized float64         `json:"realized"`
	Reason   string          `json:"reason"`
	FilledAt time.Time       `json:"filled_at"`
}

// FillRecorder persists fills (the SQLite Journal in production).
type FillRecorder interface {
	RecordFill(f Fill) error
}

// Config holds sizing, exit and slippage parameters.
type Config struct {
	SlippageBps     float64
	RiskPerTrade    float64
	MaxOpenTrades   int
	UseDynamicExits bool // exit on an opposing kernel alert instead of after FixedExitBars
	FixedExitBars   int
}

// PaperExecutor simulates order execution without real broker calls.
type PaperExecutor struct {
	mu       sync.Mutex
	cfg      Config
	sizer    Sizer
	pf       *portfolio.Portfolio
	pnl      *portfolio.PnLTracker
	risk     portfolio.RiskModel
	journal  FillRecorder
	fills    []Fill
	fillCh   chan Fill
	orderSeq int64
	bars     map[string]int
	log      *slog.Logger
}

// NewPaperExecutor creates a paper executor. risk and journal may be nil.
func NewPaperExecutor(cfg Config, pf *portfolio.Portfolio, pnl *portfolio.PnLTracker, risk portfolio.RiskModel, journal FillRecorder, fillBuffer int) *PaperExecutor {
	return &PaperExecutor{
		cfg:     cfg,
		sizer:   Sizer{RiskPerTrade: cfg.RiskPerTrade, MaxOpenTrades: cfg.MaxOpenTrades},
		pf:      pf,
		pnl:     pnl,
		risk:    risk,
		journal: journal,
		fills:   make([]Fill, 0, 1000),
		fillCh:  make(chan Fill, fillBuffer),
		bars:    make(map[string]int),
		log:     slog.Default().With("component", "paper"),
	}
}

// Fills returns the channel of fills (non-blocking sends, dropped when full).
func (p *PaperExecutor) Fills() <-chan Fill { return p.fillCh }

// GetFills returns a snapshot of all fills.
func (p *PaperExecutor) GetFills() []Fill {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]Fill, len(p.fills))
	copy(cp, p.fills)
	return cp
}

// OnBar marks the symbol's position to the bar close and applies exits.
func (p *PaperExecutor) OnBar(bar model.Bar, k kernel.Output) []Fill {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.bars[bar.Symbol]++
	p.pf.UpdatePrice(bar)

	qty := p.pf.Quantity(bar.Symbol)
	if qty == 0 {
		return nil
	}

	exit := false
	if p.cfg.UseDynamicExits {
		exit = k.Alert != 0 && float64(k.Alert)*qty < 0
	} else if p.cfg.FixedExitBars > 0 {
		for _, pos := range p.pf.GetPositions() {
			if pos.Symbol == bar.Symbol && p.bars[bar.Symbol]-pos.OpenedBar >= p.cfg.FixedExitBars {
				exit = true
			}
		}
	}
	if !exit {
		return nil
	}
	f := p.fill(bar.Symbol, "", -qty, bar.Close, bar.TS, "exit")
	return []Fill{f}
}

// Cycle runs one risk cycle: new directional signals become targets, the
// risk model rescales them, and the difference to current holdings is filled.
// The risk model runs every cycle so its peak value tracks the portfolio.
func (p *PaperExecutor) Cycle(signals []strategy.Signal, kernels map[string]kernel.Output) []Fill {
	p.mu.Lock()
	defer p.mu.Unlock()

	equity := p.pf.TotalValue()
	open := p.pf.OpenCount()
	targets := make([]model.PositionTarget, 0, len(signals))
	meta := make(map[string]strategy.Signal, len(signals))
	for _, sig := range signals {
		if !sig.IsNew {
			continue
		}
		t, ok := p.sizer.Target(sig, equity, open, p.pf.Quantity(sig.Symbol))
		if !ok {
			continue
		}
		if p.pf.Quantity(sig.Symbol) == 0 {
			open++
		}
		targets = append(targets, t)
		meta[sig.Symbol] = sig
	}

	if p.risk != nil {
		targets = p.risk.Evaluate(targets, p.pf.Snapshot(), kernels)
	}

	var out []Fill
	for _, t := range targets {
		delta := t.Quantity - p.pf.Quantity(t.Symbol)
		if delta == 0 {
			continue
		}
		sig := meta[t.Symbol]
		out = append(out, p.fill(t.Symbol, sig.Strategy, delta, sig.Price, sig.TS, "signal"))
	}
	return out
}

// Run consumes signals one at a time and runs a cycle for each.
// Blocks until ctx is cancelled or signalCh is closed.
func (p *PaperExecutor) Run(ctx context.Context, signalCh <-chan strategy.Signal, kernels func() map[string]kernel.Output) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signalCh:
			if !ok {
				return
			}
			p.Cycle([]strategy.Signal{sig}, kernels())
		}
	}
}

// fill books qty (signed) at price with slippage. Caller holds p.mu.
func (p *PaperExecutor) fill(symbol, strat string, qty, price float64, ts time.Time, reason string) Fill {
	p.orderSeq++
	action := strategy.ActionBuy
	slip := price * p.cfg.SlippageBps / 10000
	fillPrice := price + slip // buy higher
	if qty < 0 {
		action = strategy.ActionSell
		fillPrice = price - slip // sell lower
	}

	realized := p.pf.Apply(symbol, qty, fillPrice, p.bars[symbol])
	f := Fill{
		OrderID:  fmt.Sprintf("PAPER-%d", p.orderSeq),
		Strategy: strat,
		Symbol:   symbol,
		Action:   action,
		Qty:      abs(qty),
		Price:    fillPrice,
		Slippage: slip,
		Realized: realized,
		Reason:   reason,
		FilledAt: ts,
	}
	p.fills = append(p.fills, f)
	if p.pnl != nil {
		p.pnl.RecordTrade(portfolio.Trade{
			Symbol:    symbol,
			Action:    string(action),
			Qty:       f.Qty,
			Price:     fillPrice,
			Timestamp: ts,
			Realized:  realized,
		})
	}
	if p.journal != nil {
		if err := p.journal.RecordFill(f); err != nil {
			p.log.Error("journal write failed", "order", f.OrderID, "error", err)
		}
	}

	p.log.Info("filled", "order", f.OrderID, "symbol", symbol, "action", action,
		"qty", f.Qty, "price", fillPrice, "slippage", slip, "reason", reason, "realized", realized)

	select {
	case p.fillCh <- f:
	default:
	}
	return f
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
