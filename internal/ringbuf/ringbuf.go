// Package ringbuf provides a fixed-capacity rolling window that evicts the
// oldest element on overflow. It backs every bounded buffer in the signal
// pipeline: indicator windows, the kernel price buffer and the classifier
// training window.
//
// A Ring is not safe for concurrent use; per-symbol state is owned by one
// goroutine at a time.
package ringbuf

// Ring is an overwrite-oldest circular buffer.
type Ring[T any] struct {
	buf   []T
	head  int // index of the oldest element
	count int
}

// New creates a ring with the given capacity. Minimum capacity is 1.
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v. When the ring is full the oldest element is overwritten and
// returned with evicted=true.
func (r *Ring[T]) Push(v T) (old T, evicted bool) {
	if r.count == len(r.buf) {
		old = r.buf[r.head]
		r.buf[r.head] = v
		r.head = (r.head + 1) % len(r.buf)
		return old, true
	}
	r.buf[(r.head+r.count)%len(r.buf)] = v
	r.count++
	return old, false
}

// At returns the i-th element counting back from the newest (At(0) is the
// most recent push). Panics if i is out of range.
func (r *Ring[T]) At(i int) T {
	if i < 0 || i >= r.count {
		panic("ringbuf: index out of range")
	}
	return r.buf[(r.head+r.count-1-i)%len(r.buf)]
}

// Oldest returns the i-th element counting forward from the oldest.
// Panics if i is out of range.
func (r *Ring[T]) Oldest(i int) T {
	if i < 0 || i >= r.count {
		panic("ringbuf: index out of range")
	}
	return r.buf[(r.head+i)%len(r.buf)]
}

// Drop removes up to n of the oldest elements and returns how many were removed.
func (r *Ring[T]) Drop(n int) int {
	if n > r.count {
		n = r.count
	}
	if n <= 0 {
		return 0
	}
	var zero T
	for i := 0; i < n; i++ {
		r.buf[r.head] = zero
		r.head = (r.head + 1) % len(r.buf)
	}
	r.count -= n
	return n
}

// Do calls fn for every element from oldest to newest.
func (r *Ring[T]) Do(fn func(v T)) {
	for i := 0; i < r.count; i++ {
		fn(r.buf[(r.head+i)%len(r.buf)])
	}
}

// NewestFirst appends the contents, newest first, to dst and returns it.
func (r *Ring[T]) NewestFirst(dst []T) []T {
	for i := 0; i < r.count; i++ {
		dst = append(dst, r.At(i))
	}
	return dst
}

// Len returns the current number of elements.
func (r *Ring[T]) Len() int { return r.count }

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// Full reports whether the next Push will evict.
func (r *Ring[T]) Full() bool { return r.count == len(r.buf) }

// Reset empties the ring without releasing its storage.
func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.head = 0
	r.count = 0
}
