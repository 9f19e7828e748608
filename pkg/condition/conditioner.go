// Package condition band-pass filters processing windows and repairs samples
// corrupted by ADC saturation.
package condition

import "fmt"

// Params configures a Conditioner.
type Params struct {
	SampleRate float64
	LowCutoff  float64
	HighCutoff float64
	Order      int
	Threshold  float64
}

// Result is a conditioned window.
type Result struct {
	Samples   []float64
	Corrected int  // samples replaced by interpolation
	Saturated bool // every sample was an artifact; Samples is all zeros
}

// Conditioner applies the zero-phase band-pass and artifact rejection to
// whole windows. It is used by one processing goroutine.
type Conditioner struct {
	filter    *BandPass
	threshold float64
}

// New creates a Conditioner.
func New(p Params) (*Conditioner, error) {
	if p.Threshold <= 0 {
		return nil, fmt.Errorf("clip threshold must be > 0, got %g", p.Threshold)
	}
	f, err := NewBandPass(p.LowCutoff, p.HighCutoff, p.Order, p.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to design band-pass: %w", err)
	}
	return &Conditioner{filter: f, threshold: p.Threshold}, nil
}

// Filter returns the band-pass filter.
func (c *Conditioner) Filter() *BandPass {
	return c.filter
}

// Threshold returns the artifact threshold.
func (c *Conditioner) Threshold() float64 {
	return c.threshold
}

// Condition filters window and interpolates over artifacts in the filtered
// signal. window is not modified.
func (c *Conditioner) Condition(window []float64) Result {
	filtered := c.filter.FiltFilt(window)
	clean, corrected := InterpolateArtifacts(filtered, c.threshold)
	return Result{
		Samples:   clean,
		Corrected: corrected,
		Saturated: len(clean) > 0 && corrected == len(clean),
	}
}
