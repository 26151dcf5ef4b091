// Package kernel implements Nadaraya-Watson regression with a
// rational-quadratic kernel and the trend/alert detector built on it.
package kernel

import (
	"math"

	"lorentzian-signals/internal/ringbuf"
)

// Weight returns the rational-quadratic kernel weight for a bar j positions
// away from the query bar: (1 + j²/(2αh²))^(-α).
func Weight(j int, h, alpha float64) float64 {
	jj := float64(j) * float64(j)
	return math.Pow(1+jj/(2*alpha*h*h), -alpha)
}

// Estimate computes Σ price_j·w_j / Σ w_j over prices ordered newest first.
// A non-positive bandwidth or α degenerates to the newest price.
func Estimate(prices []float64, h, alpha float64) float64 {
	if len(prices) == 0 {
		return 0
	}
	if h <= 0 || alpha <= 0 {
		return prices[0]
	}
	var num, den float64
	for j, p := range prices {
		w := Weight(j, h, alpha)
		num += p * w
		den += w
	}
	if den == 0 {
		return prices[0]
	}
	return num / den
}

// Buffer is the fixed-capacity rolling price window one detector owns.
type Buffer struct {
	ring    *ringbuf.Ring[float64]
	scratch []float64
}

// NewBuffer creates a buffer holding the last capacity prices.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		ring:    ringbuf.New[float64](capacity),
		scratch: make([]float64, 0, capacity),
	}
}

// Push appends a price, evicting the oldest when full.
func (b *Buffer) Push(price float64) { b.ring.Push(price) }

// Len returns the number of prices held.
func (b *Buffer) Len() int { return b.ring.Len() }

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int { return b.ring.Cap() }

// Full reports whether the buffer holds Cap prices.
func (b *Buffer) Full() bool { return b.ring.Full() }

// NewestFirst returns the prices newest first. The slice is reused by the
// next call.
func (b *Buffer) NewestFirst() []float64 {
	b.scratch = b.ring.NewestFirst(b.scratch[:0])
	return b.scratch
}
