package indicator

import "lorentzian-signals/internal/ringbuf"

// SMA calculates Simple Moving Average over a rolling window.
// Uses a preallocated ring so the hot path never allocates.
type SMA struct {
	period  int
	buf     *ringbuf.Ring[float64]
	sum     float64
	current float64
}

// NewSMA creates a new SMA indicator with the given period.
func NewSMA(period int) *SMA {
	if period < 1 {
		period = 1
	}
	return &SMA{
		period: period,
		buf:    ringbuf.New[float64](period),
	}
}

func (s *SMA) Name() string { return "SMA_" + itoaInd(s.period) }

func (s *SMA) Update(v float64) {
	if old, evicted := s.buf.Push(v); evicted {
		s.sum -= old
	}
	s.sum += v
	if s.Ready() {
		s.current = s.sum / float64(s.period)
	}
}

func (s *SMA) Value() float64 { return s.current }
func (s *SMA) Ready() bool    { return s.buf.Full() }

// Window exposes the underlying values, newest first.
func (s *SMA) Window() []float64 { return s.buf.NewestFirst(make([]float64, 0, s.period)) }

// Reset clears the SMA state for reuse.
func (s *SMA) Reset() {
	s.buf.Reset()
	s.sum = 0
	s.current = 0
}
