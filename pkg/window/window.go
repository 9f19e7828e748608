// Package window cuts padded processing windows out of the sample buffer and
// carries the trailing raw pad from one cycle to the next.
package window

import (
	"errors"
	"fmt"
)

// ErrInsufficientData means the buffer does not yet hold enough samples for a
// window. It defers processing to the next tick and is not a failure.
var ErrInsufficientData = errors.New("insufficient data for window")

// Source is the part of the ring buffer the extractor reads.
type Source interface {
	SnapshotTailSeq(dst []float64, n int) ([]float64, uint64)
}

// Window is one padded processing window.
type Window struct {
	// Samples holds PadSize + PayloadSize + PadSize raw samples, oldest first.
	Samples []float64
	// Carried is true when the leading pad came from the previous cycle.
	Carried bool
	// Seq is the buffer's total append count when the tail was copied.
	Seq uint64
	// Fresh is the number of samples appended since the previous window, or
	// zero for the first window.
	Fresh uint64
}

// Contiguous reports whether the carried pad directly precedes the tail in
// the sample stream (no gap, no overlap).
func (w Window) Contiguous(payloadSize, padSize int) bool {
	return !w.Carried || w.Fresh == uint64(payloadSize+padSize)
}

// Gap returns the number of samples that were appended after the carried pad
// but fell out of the window, i.e. were never sent.
func (w Window) Gap(payloadSize, padSize int) uint64 {
	step := uint64(payloadSize + padSize)
	if !w.Carried || w.Fresh <= step {
		return 0
	}
	return w.Fresh - step
}

// Overlap returns the number of samples the carried pad and the new tail
// have in common.
func (w Window) Overlap(payloadSize, padSize int) uint64 {
	step := uint64(payloadSize + padSize)
	if !w.Carried || w.Fresh >= step {
		return 0
	}
	return step - w.Fresh
}

// Extractor produces windows and owns the pad carried between cycles. It is
// used by a single processing goroutine and is not safe for concurrent use.
type Extractor struct {
	payloadSize int
	padSize     int

	tail    []float64
	carry   []float64
	hasPad  bool
	lastSeq uint64
}

// NewExtractor creates an extractor for the given payload and pad sizes.
func NewExtractor(payloadSize, padSize int) (*Extractor, error) {
	if payloadSize <= 0 || padSize <= 0 {
		return nil, fmt.Errorf("payload (%d) and pad (%d) sizes must be positive", payloadSize, padSize)
	}
	return &Extractor{
		payloadSize: payloadSize,
		padSize:     padSize,
		tail:        make([]float64, 0, payloadSize+2*padSize),
		carry:       make([]float64, padSize),
	}, nil
}

// PayloadSize returns the interior length of each window.
func (e *Extractor) PayloadSize() int { return e.payloadSize }

// PadSize returns the pad length on each side.
func (e *Extractor) PadSize() int { return e.padSize }

// Size returns the full window length.
func (e *Extractor) Size() int { return e.payloadSize + 2*e.padSize }

// HasCarry reports whether the next window will reuse a carried pad.
func (e *Extractor) HasCarry() bool { return e.hasPad }

// Next extracts the next window from src. The returned Samples slice is newly
// allocated and owned by the caller. On ErrInsufficientData any carried pad is
// dropped and the next window is taken from the buffer directly.
func (e *Extractor) Next(src Source) (Window, error) {
	tailSize := e.payloadSize + e.padSize
	size := e.Size()

	if e.hasPad {
		var seq uint64
		e.tail, seq = src.SnapshotTailSeq(e.tail, tailSize)
		if len(e.tail) < tailSize {
			e.Reset()
			return Window{}, ErrInsufficientData
		}

		samples := make([]float64, 0, size)
		samples = append(samples, e.carry...)
		samples = append(samples, e.tail...)

		w := Window{Samples: samples, Carried: true, Seq: seq, Fresh: seq - e.lastSeq}
		e.keep(e.tail, seq)
		return w, nil
	}

	var seq uint64
	e.tail, seq = src.SnapshotTailSeq(e.tail, size)
	if len(e.tail) < size {
		return Window{}, ErrInsufficientData
	}

	samples := make([]float64, size)
	copy(samples, e.tail)

	e.keep(samples[e.padSize:], seq)
	return Window{Samples: samples, Seq: seq}, nil
}

// keep stores the last pad of rawTail as the next leading pad.
func (e *Extractor) keep(rawTail []float64, seq uint64) {
	copy(e.carry, rawTail[len(rawTail)-e.padSize:])
	e.hasPad = true
	e.lastSeq = seq
}

// Reset drops the carried pad.
func (e *Extractor) Reset() {
	e.hasPad = false
	e.lastSeq = 0
}
