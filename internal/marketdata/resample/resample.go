// Package resample merges consecutive bars of one symbol into coarser bars.
// Every Factor input bars produce one output bar stamped with the first
// bar's open time.
package resample

import (
	"context"

	"lorentzian-signals/internal/model"
)

// state holds the forming bar for one symbol.
type state struct {
	bar   model.Bar
	count int
}

// Resampler is single-goroutine: Process and Run must not be called concurrently.
type Resampler struct {
	factor int
	states map[string]*state

	// OnBar is called for every completed bar (optional).
	OnBar func(b model.Bar)
}

// New creates a resampler. A factor of 1 or less passes bars through.
func New(factor int) *Resampler {
	if factor < 1 {
		factor = 1
	}
	return &Resampler{factor: factor, states: make(map[string]*state, 64)}
}

// Factor returns the number of input bars merged into one output bar.
func (r *Resampler) Factor() int { return r.factor }

// Process adds one bar and returns the completed bar, if any.
func (r *Resampler) Process(b model.Bar) (model.Bar, bool) {
	if r.factor == 1 {
		return b, true
	}
	st, ok := r.states[b.Symbol]
	if !ok {
		st = &state{}
		r.states[b.Symbol] = st
	}
	if st.count == 0 {
		st.bar = b
	} else {
		st.bar.High = max(st.bar.High, b.High)
		st.bar.Low = min(st.bar.Low, b.Low)
		st.bar.Close = b.Close
		st.bar.Volume += b.Volume
	}
	st.count++
	if st.count < r.factor {
		return model.Bar{}, false
	}
	out := st.bar
	st.count = 0
	if r.OnBar != nil {
		r.OnBar(out)
	}
	return out, true
}

// Pending returns how many bars are buffered for symbol.
func (r *Resampler) Pending(symbol string) int {
	if st, ok := r.states[symbol]; ok {
		return st.count
	}
	return 0
}

// Run resamples bars from in into out until ctx is cancelled or in is
// closed, then closes out. Partial bars are discarded.
func (r *Resampler) Run(ctx context.Context, in <-chan model.Bar, out chan<- model.Bar) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-in:
			if !ok {
				return
			}
			merged, done := r.Process(b)
			if !done {
				continue
			}
			select {
			case out <- merged:
			case <-ctx.Done():
				return
			}
		}
	}
}
