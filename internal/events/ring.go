package events

// ring is a fixed-capacity buffer that evicts its oldest entry when full.
type ring[T any] struct {
	buf    []T
	start  int
	size   int
	pushed uint64
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{buf: make([]T, capacity)}
}

func (r *ring[T]) cap() int { return len(r.buf) }

func (r *ring[T]) push(v T) {
	r.pushed++
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = v
		r.size++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring[T]) all() []T { return r.last(r.size) }

func (r *ring[T]) last(n int) []T {
	if n > r.size {
		n = r.size
	}
	if n <= 0 {
		return nil
	}
	out := make([]T, n)
	offset := r.size - n
	for i := range out {
		out[i] = r.buf[(r.start+offset+i)%len(r.buf)]
	}
	return out
}
