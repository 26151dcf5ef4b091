package redis

import (
	"sync"

	"lorentzian-signals/internal/ringbuf"
	"lorentzian-signals/internal/strategy"
)

const defaultPendingMax = 10000

// pendingBuffer holds signals that could not be published. When full the
// oldest signal is dropped.
type pendingBuffer struct {
	mu   sync.Mutex
	ring *ringbuf.Ring[strategy.Signal]
}

func newPendingBuffer(max int) *pendingBuffer {
	if max <= 0 {
		max = defaultPendingMax
	}
	return &pendingBuffer{ring: ringbuf.New[strategy.Signal](max)}
}

// Add buffers s and reports whether an older signal was dropped.
func (b *pendingBuffer) Add(s strategy.Signal) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, dropped := b.ring.Push(s)
	return dropped
}

// Drain removes and returns every buffered signal, oldest first.
func (b *pendingBuffer) Drain() []strategy.Signal {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ring.Len() == 0 {
		return nil
	}
	out := make([]strategy.Signal, 0, b.ring.Len())
	b.ring.Do(func(s strategy.Signal) { out = append(out, s) })
	b.ring.Reset()
	return out
}

func (b *pendingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ring.Len()
}
