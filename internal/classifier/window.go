package classifier

import (
	"math"

	"lorentzian-signals/internal/ringbuf"
)

// DefaultMaxWindow is used when no capacity is configured.
const DefaultMaxWindow = 2000

// Window is the bounded training set. Inserting at capacity evicts the oldest
// sample; in addition every resetEvery insertions the oldest resetFactor
// fraction is dropped so the window keeps tracking the recent regime.
type Window struct {
	buf         *ringbuf.Ring[Sample]
	resetEvery  int
	resetFactor float64
	inserts     int
}

// NewWindow creates a window. weight sets the prune cadence as a fraction of
// capacity (resetEvery = ceil(capacity·weight)); weight ≤ 0 or resetFactor ≤ 0
// disables forced pruning.
func NewWindow(capacity int, weight, resetFactor float64) *Window {
	if capacity <= 0 {
		capacity = DefaultMaxWindow
	}
	w := &Window{
		buf:         ringbuf.New[Sample](capacity),
		resetFactor: math.Min(resetFactor, 1),
	}
	if weight > 0 && resetFactor > 0 {
		w.resetEvery = max(1, int(math.Ceil(float64(capacity)*weight)))
	}
	return w
}

// Insert appends a sample and applies the eviction policy.
func (w *Window) Insert(s Sample) {
	w.buf.Push(s)
	w.inserts++
	if w.resetEvery > 0 && w.inserts%w.resetEvery == 0 {
		w.prune()
	}
}

func (w *Window) prune() {
	n := int(math.Ceil(float64(w.buf.Len()) * w.resetFactor))
	w.buf.Drop(n)
}

// Len returns the number of samples held.
func (w *Window) Len() int { return w.buf.Len() }

// Cap returns the window capacity.
func (w *Window) Cap() int { return w.buf.Cap() }

// ResetEvery returns the forced-prune cadence (0 when disabled).
func (w *Window) ResetEvery() int { return w.resetEvery }

// EachNewest calls fn for every sample, newest first.
func (w *Window) EachNewest(fn func(Sample)) {
	for i := 0; i < w.buf.Len(); i++ {
		fn(w.buf.At(i))
	}
}
