package service

// PendingBuffer is a fixed ring of grid power effects that were commanded
// but may not be visible in the latest meter reading yet.
type PendingBuffer struct {
	values []float64
	next   int
}

func NewPendingBuffer(size int) *PendingBuffer {
	if size < 1 {
		size = 1
	}
	return &PendingBuffer{values: make([]float64, size)}
}

// Push overwrites the oldest slot.
func (b *PendingBuffer) Push(v float64) {
	b.values[b.next] = v
	b.next = (b.next + 1) % len(b.values)
}

func (b *PendingBuffer) Sum() float64 {
	var sum float64
	for _, v := range b.values {
		sum += v
	}
	return sum
}

func (b *PendingBuffer) Reset() {
	clear(b.values)
	b.next = 0
}

func (b *PendingBuffer) Cap() int {
	return len(b.values)
}
