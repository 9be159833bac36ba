package service

// ring is a fixed-capacity FIFO that overwrites its oldest element once full.
// It is not safe for concurrent use; owners guard it with their own lock.
type ring[T any] struct {
	buf  []T
	head int // index of the oldest element
	size int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &ring[T]{buf: make([]T, capacity)}
}

// push appends v and reports whether an element was evicted.
func (r *ring[T]) push(v T) bool {
	if r.size < len(r.buf) {
		r.buf[(r.head+r.size)%len(r.buf)] = v
		r.size++
		return false
	}

	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	return true
}

func (r *ring[T]) len() int { return r.size }

func (r *ring[T]) last() (T, bool) {
	var zero T
	if r.size == 0 {
		return zero, false
	}
	return r.buf[(r.head+r.size-1)%len(r.buf)], true
}

// lastN returns a copy of the newest n elements, oldest first. n <= 0 means
// everything.
func (r *ring[T]) lastN(n int) []T {
	if n <= 0 || n > r.size {
		n = r.size
	}

	out := make([]T, n)
	start := r.size - n
	for i := 0; i < n; i++ {
		out[i] = r.buf[(r.head+start+i)%len(r.buf)]
	}
	return out
}

func (r *ring[T]) each(fn func(T)) {
	for i := 0; i < r.size; i++ {
		fn(r.buf[(r.head+i)%len(r.buf)])
	}
}
