// Package features computes descriptors of a conditioned EEG segment: the
// Hjorth parameters and a band-limited power spectrum.
package features

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-dsp/dsp/spectrum"
	dsptime "github.com/cwbudde/algo-dsp/stats/time"
)

// ErrTooShort is returned for segments too short to analyse.
var ErrTooShort = errors.New("segment too short")

// Hjorth holds the Hjorth parameters of a segment. Activity is in the squared
// unit of the input; mobility is in radians per sample.
type Hjorth struct {
	Activity   float64
	Mobility   float64
	Complexity float64
}

// ComputeHjorth returns activity (variance), mobility and complexity of x.
// A constant segment has zero activity and NaN mobility and complexity.
func ComputeHjorth(x []float64) (Hjorth, error) {
	if len(x) < 3 {
		return Hjorth{}, fmt.Errorf("%w: hjorth needs 3 samples, got %d", ErrTooShort, len(x))
	}

	d1 := diff(x)
	d2 := diff(d1)

	v0, v1, v2 := variance(x), variance(d1), variance(d2)
	mobility := math.Sqrt(v1 / v0)

	return Hjorth{
		Activity:   v0,
		Mobility:   mobility,
		Complexity: math.Sqrt(v2/v1) / mobility,
	}, nil
}

func diff(x []float64) []float64 {
	out := make([]float64, len(x)-1)
	for i := range out {
		out[i] = x[i+1] - x[i]
	}
	return out
}

// variance is the population variance.
func variance(x []float64) float64 {
	_, v, _, _ := dsptime.Moments(x)
	return v
}

// Spectrum is a one-sided power spectrum, |X[k]|^2 / N for the N input
// samples, up to a maximum frequency.
type Spectrum struct {
	Freqs []float64 // bin centre frequencies (Hz)
	Power []float64
}

// Analyzer computes power spectra of segments of a fixed sample rate. Segments
// are zero-padded to the next power of two. An Analyzer caches FFT plans and
// is not safe for concurrent use.
type Analyzer struct {
	sampleRate float64
	maxFreq    float64

	plans map[int]*algofft.Plan[complex128]
	in    []complex128
	out   []complex128
}

// NewAnalyzer creates an analyzer that keeps bins up to maxFreq Hz.
func NewAnalyzer(sampleRate, maxFreq float64) (*Analyzer, error) {
	if sampleRate <= 0 || maxFreq <= 0 {
		return nil, fmt.Errorf("sample rate (%g) and max frequency (%g) must be positive", sampleRate, maxFreq)
	}
	return &Analyzer{
		sampleRate: sampleRate,
		maxFreq:    math.Min(maxFreq, sampleRate/2),
		plans:      make(map[int]*algofft.Plan[complex128]),
	}, nil
}

// FFTSize returns the transform length used for n samples.
func FFTSize(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// Spectrum returns the power spectrum of x.
func (a *Analyzer) Spectrum(x []float64) (Spectrum, error) {
	if len(x) < 2 {
		return Spectrum{}, fmt.Errorf("%w: spectrum needs 2 samples, got %d", ErrTooShort, len(x))
	}

	size := FFTSize(len(x))
	plan, err := a.plan(size)
	if err != nil {
		return Spectrum{}, err
	}

	if cap(a.in) < size {
		a.in = make([]complex128, size)
		a.out = make([]complex128, size)
	}
	in, out := a.in[:size], a.out[:size]
	clear(in)
	for i, v := range x {
		in[i] = complex(v, 0)
	}

	if err := plan.Forward(out, in); err != nil {
		return Spectrum{}, fmt.Errorf("failed to transform segment: %w", err)
	}

	step := a.sampleRate / float64(size)
	bins := min(int(a.maxFreq/step)+1, size/2+1)

	power := spectrum.Power(out[:bins])
	n := float64(len(x))
	freqs := make([]float64, bins)
	for k := range power {
		power[k] /= n
		freqs[k] = float64(k) * step
	}

	return Spectrum{Freqs: freqs, Power: power}, nil
}

func (a *Analyzer) plan(size int) (*algofft.Plan[complex128], error) {
	if p, ok := a.plans[size]; ok {
		return p, nil
	}
	p, err := algofft.NewPlan64(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create FFT plan of size %d: %w", size, err)
	}
	a.plans[size] = p
	return p, nil
}

// Peak returns the frequency and power of the strongest bin above DC.
func (s Spectrum) Peak() (freq, power float64) {
	best := -1
	for k := 1; k < len(s.Power); k++ {
		if best < 0 || s.Power[k] > s.Power[best] {
			best = k
		}
	}
	if best < 0 {
		return 0, 0
	}
	return s.Freqs[best], s.Power[best]
}

// BandPower sums the bins with lo <= f < hi.
func (s Spectrum) BandPower(lo, hi float64) float64 {
	var sum float64
	for k, f := range s.Freqs {
		if f >= lo && f < hi {
			sum += s.Power[k]
		}
	}
	return sum
}
