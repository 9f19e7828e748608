package ring

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(from, to int) []float64 {
	out := make([]float64, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, float64(i))
	}
	return out
}

func TestNew_PanicsOnZeroCapacity(t *testing.T) {
	assert.Panics(t, func() { New(0) })
}

func TestAppend_BelowCapacity(t *testing.T) {
	b := New(10)
	for i := 0; i < 4; i++ {
		b.Append(float64(i))
	}

	assert.Equal(t, 4, b.Len())
	assert.Equal(t, 10, b.Cap())
	assert.Equal(t, uint64(4), b.Total())
	assert.Equal(t, seq(0, 4), b.SnapshotTail(4))
	assert.Equal(t, seq(2, 4), b.SnapshotTail(2))
}

func TestSnapshotTail_ShorterThanRequested(t *testing.T) {
	b := New(10)
	b.AppendSlice(seq(0, 3))

	got := b.SnapshotTail(8)
	assert.Equal(t, seq(0, 3), got)
	assert.Empty(t, New(3).SnapshotTail(2))
	assert.Empty(t, b.SnapshotTail(-1))
}

func TestAppend_EvictsOldest(t *testing.T) {
	b := New(5)
	b.AppendSlice(seq(0, 12))

	assert.Equal(t, 5, b.Len())
	assert.Equal(t, uint64(12), b.Total())
	assert.Equal(t, seq(7, 12), b.SnapshotTail(5))
	assert.Equal(t, seq(9, 12), b.SnapshotTail(3))
}

// TestSnapshotTail_Property appends varying batch sizes and checks the length
// bound and tail contents after every step.
func TestSnapshotTail_Property(t *testing.T) {
	const capacity = 37
	b := New(capacity)
	all := []float64{}

	next := 0
	for step := 0; step < 200; step++ {
		batch := seq(next, next+step%11)
		next += len(batch)
		if step%2 == 0 {
			b.AppendSlice(batch)
		} else {
			for _, v := range batch {
				b.Append(v)
			}
		}
		all = append(all, batch...)

		require.LessOrEqual(t, b.Len(), capacity)
		require.Equal(t, min(len(all), capacity), b.Len())

		for _, n := range []int{0, 1, 5, capacity / 2, capacity} {
			if n > b.Len() {
				continue
			}
			require.Equal(t, all[len(all)-n:], b.SnapshotTail(n), "step %d n %d", step, n)
		}
	}
}

func TestSnapshotTailInto_ReusesDst(t *testing.T) {
	b := New(8)
	b.AppendSlice(seq(0, 20))

	dst := make([]float64, 0, 16)
	got := b.SnapshotTailInto(dst, 6)
	assert.Equal(t, seq(14, 20), got)
	assert.Equal(t, cap(dst), cap(got))

	small := make([]float64, 0, 2)
	got = b.SnapshotTailInto(small, 6)
	assert.Equal(t, seq(14, 20), got)
}

func TestSnapshotTailSeq(t *testing.T) {
	b := New(8)
	b.AppendSlice(seq(0, 11))

	got, total := b.SnapshotTailSeq(nil, 3)
	assert.Equal(t, seq(8, 11), got)
	assert.Equal(t, uint64(11), total)

	length, total := b.Stat()
	assert.Equal(t, 8, length)
	assert.Equal(t, uint64(11), total)
}

// TestConcurrentAppendSnapshot runs a writer against readers; every snapshot
// must be a run of consecutive values because the writer appends a counter.
func TestConcurrentAppendSnapshot(t *testing.T) {
	b := New(256)
	const writes = 20000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < writes; i++ {
			b.Append(float64(i))
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var dst []float64
			for i := 0; i < 2000; i++ {
				dst = b.SnapshotTailInto(dst, 100)
				for j := 1; j < len(dst); j++ {
					if dst[j] != dst[j-1]+1 {
						t.Errorf("snapshot not contiguous at %d: %v then %v", j, dst[j-1], dst[j])
						return
					}
				}
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, uint64(writes), b.Total())
	assert.Equal(t, seq(writes-256, writes), b.SnapshotTail(256))
}
