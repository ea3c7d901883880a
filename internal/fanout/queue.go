package fanout

// ring is a bounded FIFO. It is not synchronized; Subscriber guards it.
type ring[T any] struct {
	items []T
	head  int // next write position
	tail  int // next read position
	count int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &ring[T]{items: make([]T, capacity)}
}

func (r *ring[T]) full() bool { return r.count == len(r.items) }
func (r *ring[T]) len() int   { return r.count }

// push appends v. Returns false when full.
func (r *ring[T]) push(v T) bool {
	if r.full() {
		return false
	}
	r.items[r.head] = v
	r.head = (r.head + 1) % len(r.items)
	r.count++
	return true
}

func (r *ring[T]) peek() (T, bool) {
	var zero T
	if r.count == 0 {
		return zero, false
	}
	return r.items[r.tail], true
}

func (r *ring[T]) dropOldest() bool {
	if r.count == 0 {
		return false
	}
	var zero T
	r.items[r.tail] = zero
	r.tail = (r.tail + 1) % len(r.items)
	r.count--
	return true
}

// popBatch removes up to n items in FIFO order.
func (r *ring[T]) popBatch(n int) []T {
	if r.count == 0 {
		return nil
	}
	if n <= 0 || n > r.count {
		n = r.count
	}
	out := make([]T, n)
	var zero T
	for i := range n {
		out[i] = r.items[r.tail]
		r.items[r.tail] = zero
		r.tail = (r.tail + 1) % len(r.items)
	}
	r.count -= n
	return out
}
