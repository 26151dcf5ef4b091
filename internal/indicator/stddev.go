package indicator

import (
	"math"

	"lorentzian-signals/internal/ringbuf"
)

// StdDev is the rolling population standard deviation of the last `period`
// values. O(period) per update; periods are small and fixed.
type StdDev struct {
	period  int
	buf     *ringbuf.Ring[float64]
	current float64
}

// NewStdDev creates a rolling standard deviation over period values.
func NewStdDev(period int) *StdDev {
	if period < 2 {
		period = 2
	}
	return &StdDev{period: period, buf: ringbuf.New[float64](period)}
}

func (s *StdDev) Name() string { return "STD_" + itoaInd(s.period) }

func (s *StdDev) Update(v float64) {
	s.buf.Push(v)
	if !s.Ready() {
		return
	}
	mean := 0.0
	s.buf.Do(func(x float64) { mean += x })
	mean /= float64(s.period)
	variance := 0.0
	s.buf.Do(func(x float64) { variance += (x - mean) * (x - mean) })
	s.current = math.Sqrt(variance / float64(s.period))
}

func (s *StdDev) Value() float64 { return s.current }
func (s *StdDev) Ready() bool    { return s.buf.Full() }
