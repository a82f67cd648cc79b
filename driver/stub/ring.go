//go:build !tinygo && !baremetal

package stub

type ring[T any] struct {
	data       []T
	head, tail int // head = next pop, tail = next push
	count      int
}

func newRing[T any](capacity int) ring[T] {
	if capacity < 0 {
		capacity = 0
	}
	return ring[T]{data: make([]T, capacity)}
}

func (rb *ring[T]) full() bool { return rb.count == len(rb.data) }

func (rb *ring[T]) len() int { return rb.count }

// push overwrites the oldest entry when the ring is full.
func (rb *ring[T]) push(v T) {
	if len(rb.data) == 0 {
		return
	}
	var zero T
	if rb.full() {
		rb.data[rb.tail] = zero
		rb.head = (rb.head + 1) % len(rb.data)
		rb.count--
	}
	rb.data[rb.tail] = v
	rb.tail = (rb.tail + 1) % len(rb.data)
	rb.count++
}

func (rb *ring[T]) peek() (T, bool) {
	var zero T
	if rb.count == 0 {
		return zero, false
	}
	return rb.data[rb.head], true
}

func (rb *ring[T]) pop() (T, bool) {
	var zero T
	if rb.count == 0 {
		return zero, false
	}
	v := rb.data[rb.head]
	rb.data[rb.head] = zero
	rb.head = (rb.head + 1) % len(rb.data)
	rb.count--
	return v, true
}

func (rb *ring[T]) clear() {
	var zero T
	for i := range rb.data {
		rb.data[i] = zero
	}
	rb.head, rb.tail, rb.count = 0, 0, 0
}

func (rb *ring[T]) snapshot() []T {
	out := make([]T, 0, rb.count)
	for c, i := 0, rb.head; c < rb.count; c++ {
		out = append(out, rb.data[i])
		i = (i + 1) % len(rb.data)
	}
	return out
}
