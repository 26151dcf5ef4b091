package gateway

import (
	"math"
	"slices"
	"sync"

	"lorentzian-signals/internal/ringbuf"
)

// LatencyTracker keeps the last N bar-to-emit latency samples (ms) and
// reports percentiles. Safe for concurrent use.
type LatencyTracker struct {
	mu      sync.Mutex
	samples *ringbuf.Ring[float64]
}

// NewLatencyTracker creates a tracker holding capacity samples; capacity <= 0 means 10000.
func NewLatencyTracker(capacity int) *LatencyTracker {
	if capacity <= 0 {
		capacity = 10000
	}
	return &LatencyTracker{samples: ringbuf.New[float64](capacity)}
}

// Record adds one sample in milliseconds.
func (lt *LatencyTracker) Record(latencyMs float64) {
	lt.mu.Lock()
	lt.samples.Push(latencyMs)
	lt.mu.Unlock()
}

// Percentiles returns p50, p95 and p99 in milliseconds, or zeros without samples.
func (lt *LatencyTracker) Percentiles() (p50, p95, p99 float64) {
	lt.mu.Lock()
	sorted := lt.samples.NewestFirst(make([]float64, 0, lt.samples.Len()))
	lt.mu.Unlock()
	if len(sorted) == 0 {
		return 0, 0, 0
	}
	slices.Sort(sorted)
	return percentile(sorted, 0.50), percentile(sorted, 0.95), percentile(sorted, 0.99)
}

// Count returns the number of retained samples.
func (lt *LatencyTracker) Count() int {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.samples.Len()
}

// percentile linearly interpolates the p-th quantile (0..1) of sorted.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	rank := p * float64(n-1)
	lower := int(math.Floor(rank))
	if lower+1 >= n {
		return sorted[n-1]
	}
	frac := rank - float64(lower)
	return sorted[lower]*(1-frac) + sorted[lower+1]*frac
}
