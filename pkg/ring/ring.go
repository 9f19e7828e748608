// Package ring provides the bounded sample store shared between acquisition
// and processing.
package ring

import "sync"

// Buffer is a fixed-capacity FIFO of float64 samples.
//
// Storage is allocated once; appends overwrite the oldest sample when the
// buffer is full. All methods are safe for concurrent use and hold the lock
// only for the duration of the copy.
type Buffer struct {
	mu    sync.Mutex
	data  []float64
	head  int    // index of the oldest sample
	size  int    // number of valid samples
	total uint64 // samples ever appended
}

// New creates a buffer holding at most capacity samples.
func New(capacity int) *Buffer {
	if capacity < 1 {
		panic("ring: capacity must be positive")
	}
	return &Buffer{
		data: make([]float64, capacity),
	}
}

// Append stores one sample, evicting the oldest one if the buffer is full.
func (b *Buffer) Append(v float64) {
	b.mu.Lock()
	b.push(v)
	b.mu.Unlock()
}

// AppendSlice stores samples in order under a single lock acquisition.
func (b *Buffer) AppendSlice(vs []float64) {
	b.mu.Lock()
	for _, v := range vs {
		b.push(v)
	}
	b.mu.Unlock()
}

func (b *Buffer) push(v float64) {
	c := len(b.data)
	if b.size < c {
		b.data[(b.head+b.size)%c] = v
		b.size++
	} else {
		b.data[b.head] = v
		b.head = (b.head + 1) % c
	}
	b.total++
}

// SnapshotTail returns a copy of the newest n samples, oldest first. If the
// buffer holds fewer than n samples, all of them are returned.
func (b *Buffer) SnapshotTail(n int) []float64 {
	return b.SnapshotTailInto(nil, n)
}

// SnapshotTailInto is SnapshotTail reusing dst when it has enough capacity.
func (b *Buffer) SnapshotTailInto(dst []float64, n int) []float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tail(dst, n)
}

// SnapshotTailSeq is SnapshotTailInto that also reports Total at the moment
// of the copy, so callers can tell how many samples arrived between snapshots.
func (b *Buffer) SnapshotTailSeq(dst []float64, n int) ([]float64, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tail(dst, n), b.total
}

func (b *Buffer) tail(dst []float64, n int) []float64 {
	n = max(min(n, b.size), 0)
	if dst != nil && cap(dst) >= n {
		dst = dst[:n]
	} else {
		dst = make([]float64, n)
	}

	c := len(b.data)
	start := (b.head + b.size - n) % c
	first := copy(dst, b.data[start:min(start+n, c)])
	copy(dst[first:], b.data[:n-first])

	return dst
}

// Len returns the number of stored samples.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Total returns the number of samples appended since creation.
func (b *Buffer) Total() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// Stat returns Len and Total from the same instant.
func (b *Buffer) Stat() (length int, total uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size, b.total
}
