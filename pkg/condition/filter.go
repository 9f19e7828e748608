package condition

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
)

// BandPass is a Butterworth band-pass built as a high-pass cascade at the low
// edge followed by a low-pass cascade at the high edge. It is applied with
// FiltFilt; the zero-phase result does not depend on any previous call.
//
// A BandPass reuses internal scratch buffers and is not safe for concurrent
// use.
type BandPass struct {
	sections []biquad.Coefficients
	zi       [][2]float64 // steady-state delay lines for a unit step input
	chain    *biquad.Chain
	scratch  []float64
}

// NewBandPass designs a band-pass between low and high Hz. Each edge is a
// Butterworth filter of the given order.
func NewBandPass(low, high float64, order int, sampleRate float64) (*BandPass, error) {
	nyquist := sampleRate / 2
	switch {
	case order <= 0:
		return nil, fmt.Errorf("filter order must be > 0, got %d", order)
	case low <= 0 || low >= nyquist:
		return nil, fmt.Errorf("low cutoff %g Hz outside (0, %g)", low, nyquist)
	case high <= low || high >= nyquist:
		return nil, fmt.Errorf("high cutoff %g Hz outside (%g, %g)", high, low, nyquist)
	}

	sections := append(butterworthHP(low, order, sampleRate), butterworthLP(high, order, sampleRate)...)

	return &BandPass{
		sections: sections,
		zi:       steadyState(sections),
		chain:    biquad.NewChain(sections),
	}, nil
}

// Sections returns the designed second-order sections.
func (f *BandPass) Sections() []biquad.Coefficients {
	out := make([]biquad.Coefficients, len(f.sections))
	copy(out, f.sections)
	return out
}

// PadLen is the odd-extension length FiltFilt adds on each side of inputs
// longer than PadLen.
func (f *BandPass) PadLen() int {
	return 3 * (2*len(f.sections) + 1)
}

// FiltFilt filters x forward and then backward so the result has no phase
// shift. x is not modified. Edges are stabilized with an odd extension of
// PadLen samples and steady-state initial conditions, so a window's output is
// a function of that window alone.
func (f *BandPass) FiltFilt(x []float64) []float64 {
	n := len(x)
	out := make([]float64, n)
	if n == 0 {
		return out
	}

	edge := min(f.PadLen(), n-1)
	ext := f.extend(x, edge)

	f.pass(ext)
	reverse(ext)
	f.pass(ext)
	reverse(ext)

	copy(out, ext[edge:edge+n])
	return out
}

// apply runs a single causal pass over x in place, starting from rest.
func (f *BandPass) apply(x []float64) {
	f.chain.Reset()
	f.chain.ProcessBlock(x)
}

// pass filters buf in place, starting from the steady state for buf[0].
func (f *BandPass) pass(buf []float64) {
	x0 := buf[0]
	state := make([][2]float64, len(f.zi))
	for i, z := range f.zi {
		state[i] = [2]float64{z[0] * x0, z[1] * x0}
	}
	f.chain.SetState(state)
	f.chain.ProcessBlock(buf)
}

// extend returns x with an odd extension of edge samples on both sides:
// 2*x[0]-x[edge..1] before and 2*x[n-1]-x[n-2..n-1-edge] after.
func (f *BandPass) extend(x []float64, edge int) []float64 {
	n := len(x)
	size := n + 2*edge
	if cap(f.scratch) < size {
		f.scratch = make([]float64, size)
	}
	ext := f.scratch[:size]

	first, last := x[0], x[n-1]
	for k := 1; k <= edge; k++ {
		ext[edge-k] = 2*first - x[k]
		ext[edge+n-1+k] = 2*last - x[n-1-k]
	}
	copy(ext[edge:], x)

	return ext
}

// steadyState returns, for each section, the delay line that makes a constant
// unit input to the cascade produce a constant output. Section i sees the DC
// gain of sections 0..i-1 as its input level.
func steadyState(sections []biquad.Coefficients) [][2]float64 {
	zi := make([][2]float64, len(sections))
	level := 1.0
	for i, c := range sections {
		g := dcGain(c)
		d1 := (c.B2 - c.A2*g) * level
		d0 := (c.B1-c.A1*g)*level + d1
		zi[i] = [2]float64{d0, d1}
		level *= g
	}
	return zi
}

func dcGain(c biquad.Coefficients) float64 {
	den := 1 + c.A1 + c.A2
	if den == 0 {
		return 0
	}
	return (c.B0 + c.B1 + c.B2) / den
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}

// butterworthQ returns the quality factor for section index of a Butterworth
// filter of the given order.
func butterworthQ(order, index int) float64 {
	theta := math.Pi * float64(2*index+1) / (2 * float64(order))
	s := math.Sin(theta)
	if s == 0 {
		return 1 / math.Sqrt2
	}
	return 1 / (2 * s)
}

// butterworthLP designs a lowpass Butterworth cascade. For odd orders the last
// section is first order (B2 = A2 = 0).
func butterworthLP(freq float64, order int, sampleRate float64) []biquad.Coefficients {
	sections := make([]biquad.Coefficients, 0, (order+1)/2)
	for i := order/2 - 1; i >= 0; i-- {
		sections = append(sections, lowpass(freq, butterworthQ(order, i), sampleRate))
	}
	if order%2 != 0 {
		k := math.Tan(math.Pi * freq / sampleRate)
		norm := 1 / (1 + k)
		sections = append(sections, biquad.Coefficients{
			B0: k * norm,
			B1: k * norm,
			A1: (k - 1) * norm,
		})
	}
	return sections
}

// butterworthHP designs a highpass Butterworth cascade.
func butterworthHP(freq float64, order int, sampleRate float64) []biquad.Coefficients {
	sections := make([]biquad.Coefficients, 0, (order+1)/2)
	for i := order/2 - 1; i >= 0; i-- {
		sections = append(sections, highpass(freq, butterworthQ(order, i), sampleRate))
	}
	if order%2 != 0 {
		k := math.Tan(math.Pi * freq / sampleRate)
		norm := 1 / (1 + k)
		sections = append(sections, biquad.Coefficients{
			B0: norm,
			B1: -norm,
			A1: (k - 1) * norm,
		})
	}
	return sections
}

// lowpass is the bilinear-transform second-order lowpass prewarped at freq.
func lowpass(freq, q, sampleRate float64) biquad.Coefficients {
	w0 := 2 * math.Pi * freq / sampleRate
	cw, sw := math.Cos(w0), math.Sin(w0)
	alpha := sw / (2 * q)
	return normalize((1-cw)/2, 1-cw, (1-cw)/2, 1+alpha, -2*cw, 1-alpha)
}

// highpass is the bilinear-transform second-order highpass prewarped at freq.
func highpass(freq, q, sampleRate float64) biquad.Coefficients {
	w0 := 2 * math.Pi * freq / sampleRate
	cw, sw := math.Cos(w0), math.Sin(w0)
	alpha := sw / (2 * q)
	return normalize((1+cw)/2, -(1 + cw), (1+cw)/2, 1+alpha, -2*cw, 1-alpha)
}

func normalize(b0, b1, b2, a0, a1, a2 float64) biquad.Coefficients {
	return biquad.Coefficients{
		B0: b0 / a0,
		B1: b1 / a0,
		B2: b2 / a0,
		A1: a1 / a0,
		A2: a2 / a0,
	}
}
