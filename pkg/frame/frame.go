// Package frame serializes the interior of conditioned windows into fixed-size
// binary frames: payload_size little-endian IEEE-754 float32 values, with no
// header or delimiter.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/chewxy/math32"
)

// BytesPerSample is the encoded size of one sample.
const BytesPerSample = 4

// ErrWindowSize is returned when a conditioned window does not have
// PayloadSize+2*PadSize samples.
var ErrWindowSize = errors.New("unexpected window size")

// Encoder cuts the payload out of a padded window and encodes it.
type Encoder struct {
	PayloadSize int
	PadSize     int
}

// FrameSize is the encoded frame length in bytes.
func (e Encoder) FrameSize() int {
	return e.PayloadSize * BytesPerSample
}

// WindowSize is the expected conditioned window length.
func (e Encoder) WindowSize() int {
	return e.PayloadSize + 2*e.PadSize
}

// Encode returns the frame for window[PadSize : PadSize+PayloadSize].
func (e Encoder) Encode(window []float64) ([]byte, error) {
	return e.EncodeInto(nil, window)
}

// EncodeInto is like Encode but reuses dst when it has enough capacity.
func (e Encoder) EncodeInto(dst []byte, window []float64) ([]byte, error) {
	if len(window) != e.WindowSize() {
		return nil, fmt.Errorf("%w: got %d samples, want %d", ErrWindowSize, len(window), e.WindowSize())
	}

	size := e.FrameSize()
	if cap(dst) < size {
		dst = make([]byte, size)
	}
	dst = dst[:size]

	for i, v := range window[e.PadSize : e.PadSize+e.PayloadSize] {
		binary.LittleEndian.PutUint32(dst[i*BytesPerSample:], math.Float32bits(float32(v)))
	}

	return dst, nil
}

// Decode converts a frame back to samples. Trailing bytes that do not form a
// whole sample are ignored.
func Decode(b []byte) []float32 {
	out := make([]float32, len(b)/BytesPerSample)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*BytesPerSample:]))
	}
	return out
}

// ReadFrame blocks until a whole frame of payloadSize samples has been read
// from r.
func ReadFrame(r io.Reader, payloadSize int) ([]float32, error) {
	buf := make([]byte, payloadSize*BytesPerSample)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}
	return Decode(buf), nil
}

// Stats summarizes one frame after removing the front-end gain.
type Stats struct {
	Min         float32
	Max         float32
	PeakToPeak  float32
	MeanAbs     float32
	NonFinite   int // NaN or Inf samples, excluded from the other fields
	SampleCount int
}

// Summarize divides samples by gain and returns their statistics. A gain of
// zero is treated as unity.
func Summarize(samples []float32, gain float32) Stats {
	if gain == 0 {
		gain = 1
	}

	st := Stats{SampleCount: len(samples)}
	minV, maxV := math32.Inf(1), math32.Inf(-1)
	var sumAbs float32
	valid := 0
	for _, v := range samples {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			st.NonFinite++
			continue
		}
		v /= gain
		minV = math32.Min(minV, v)
		maxV = math32.Max(maxV, v)
		sumAbs += math32.Abs(v)
		valid++
	}

	if valid == 0 {
		return st
	}

	st.Min, st.Max = minV, maxV
	st.PeakToPeak = maxV - minV
	st.MeanAbs = sumAbs / float32(valid)
	return st
}
