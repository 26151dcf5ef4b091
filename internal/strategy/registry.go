package strategy

import (
	"fmt"
	"sort"
	"sync"

	"lorentzian-signals/internal/kernel"
	"lorentzian-signals/internal/model"
)

type entry struct {
	mu sync.Mutex
	p  *Lorentzian
}

// Registry maps symbols to their pipelines.
//
// Per-bar updates hold the read lock plus the symbol's own mutex, so
// different symbols may update in parallel. Add, Remove and KernelStates take
// the write lock: universe changes never interleave with an in-flight update,
// and the kernel snapshot is consistent across symbols.
type Registry struct {
	mu      sync.RWMutex
	cfg     Config
	entries map[string]*entry
}

// NewRegistry creates an empty registry; new pipelines use cfg.
func NewRegistry(cfg Config) *Registry {
	return &Registry{cfg: cfg, entries: make(map[string]*entry)}
}

// Add creates the pipeline for symbol. Adding an existing symbol is a no-op.
func (r *Registry) Add(symbol string) error {
	p, err := NewLorentzian(symbol, r.cfg)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[symbol]; !ok {
		r.entries[symbol] = &entry{p: p}
	}
	return nil
}

// Remove drops symbol. Returns false if it was not registered.
func (r *Registry) Remove(symbol string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[symbol]; !ok {
		return false
	}
	delete(r.entries, symbol)
	return true
}

// Has reports whether symbol is registered.
func (r *Registry) Has(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[symbol]
	return ok
}

// Symbols returns the registered symbols in sorted order.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for s := range r.entries {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// OnBar routes a bar to its symbol's pipeline. Bars for unknown symbols are
// ignored.
func (r *Registry) OnBar(bar model.Bar) *Signal {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[bar.Symbol]
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.p.OnBar(bar)
}

// Warmup feeds history to symbol's pipeline.
func (r *Registry) Warmup(symbol string, bars []model.Bar) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[symbol]
	if !ok {
		return fmt.Errorf("strategy: symbol %s not registered", symbol)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.p.Warmup(bars)
	return nil
}

// KernelStates snapshots the latest kernel output of every symbol.
func (r *Registry) KernelStates() map[string]kernel.Output {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]kernel.Output, len(r.entries))
	for s, e := range r.entries {
		out[s] = e.p.Kernel()
	}
	return out
}

// Kernel returns symbol's latest kernel output.
func (r *Registry) Kernel(symbol string) (kernel.Output, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[symbol]
	if !ok {
		return kernel.Output{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.p.Kernel(), true
}

// Len returns the number of registered symbols.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
