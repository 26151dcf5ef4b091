package strategy

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"lorentzian-signals/internal/model"
)

// Engine routes a bar stream through a Registry and collects signals.
type Engine struct {
	registry *Registry
	signalCh chan Signal
	dropped  atomic.Uint64

	// Observe is called after every bar with the signal (nil while warming
	// up or for unknown symbols) and the pipeline latency. Optional.
	Observe func(bar model.Bar, sig *Signal, elapsed time.Duration)
}

// NewEngine creates a strategy engine.
func NewEngine(registry *Registry, signalBufferSize int) *Engine {
	return &Engine{
		registry: registry,
		signalCh: make(chan Signal, signalBufferSize),
	}
}

// Registry returns the engine's registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Signals returns the channel of emitted signals.
func (e *Engine) Signals() <-chan Signal {
	return e.signalCh
}

// Dropped returns how many signals were discarded because the channel was full.
func (e *Engine) Dropped() uint64 { return e.dropped.Load() }

// Run consumes bars and routes them to the registry.
// Blocks until ctx is cancelled or barCh is closed; closes the signal channel on return.
func (e *Engine) Run(ctx context.Context, barCh <-chan model.Bar) {
	defer close(e.signalCh)
	for {
		select {
		case <-ctx.Done():
			return
		case bar, ok := <-barCh:
			if !ok {
				return
			}
			start := time.Now()
			sig := e.registry.OnBar(bar)
			if e.Observe != nil {
				e.Observe(bar, sig, time.Since(start))
			}
			if sig == nil {
				continue
			}
			select {
			case e.signalCh <- *sig:
			default:
				e.dropped.Add(1)
				slog.Warn("signal channel full, dropping", "component", "strategy", "symbol", sig.Symbol)
			}
		}
	}
}
