package condition

import "math"

// IsArtifact reports whether v cannot be a valid sample under threshold.
func IsArtifact(v, threshold float64) bool {
	return math.IsNaN(v) || math.Abs(v) > threshold
}

// InterpolateArtifacts returns a copy of signal in which every artifact
// (|v| > threshold, or NaN) is replaced by linear interpolation between the
// nearest valid neighbours. Artifact runs at either end hold the nearest valid
// value. If no sample is valid the result is all zeros. The second return
// value is the number of replaced samples.
func InterpolateArtifacts(signal []float64, threshold float64) ([]float64, int) {
	out := make([]float64, len(signal))
	copy(out, signal)

	prev := -1 // last valid index
	corrected := 0
	for i := 0; i <= len(out); i++ {
		if i < len(out) && IsArtifact(out[i], threshold) {
			continue
		}

		// out[prev+1:i] is a run of artifacts bounded by prev and i
		if gap := i - prev - 1; gap > 0 {
			corrected += gap
			fillRun(out, prev, i)
		}
		prev = i
	}

	if corrected == len(out) {
		clear(out)
	}

	return out, corrected
}

// fillRun replaces out[lo+1:hi]. lo == -1 or hi == len(out) mark an open end.
func fillRun(out []float64, lo, hi int) {
	switch {
	case lo < 0 && hi >= len(out):
		return
	case lo < 0:
		for j := 0; j < hi; j++ {
			out[j] = out[hi]
		}
	case hi >= len(out):
		for j := lo + 1; j < hi; j++ {
			out[j] = out[lo]
		}
	default:
		a, b := out[lo], out[hi]
		lower, upper := math.Min(a, b), math.Max(a, b)
		span := float64(hi - lo)
		for j := lo + 1; j < hi; j++ {
			v := a + (b-a)*float64(j-lo)/span
			out[j] = math.Max(lower, math.Min(upper, v))
		}
	}
}
