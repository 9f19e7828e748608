package condition

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/rand"
)

func TestInterpolateArtifacts(t *testing.T) {
	const thr = 0.126
	nan := math.NaN()

	tests := []struct {
		name      string
		in        []float64
		want      []float64
		corrected int
	}{
		{
			name: "clean",
			in:   []float64{0.01, -0.02, 0.03},
			want: []float64{0.01, -0.02, 0.03},
		},
		{
			name:      "interior run",
			in:        []float64{0.0, 0.2, 0.3, -0.2, 0.09},
			want:      []float64{0.0, 0.0225, 0.045, 0.0675, 0.09},
			corrected: 3,
		},
		{
			name:      "leading run holds first valid",
			in:        []float64{0.5, -0.5, 0.05, 0.06},
			want:      []float64{0.05, 0.05, 0.05, 0.06},
			corrected: 2,
		},
		{
			name:      "trailing run holds last valid",
			in:        []float64{0.01, -0.04, 1, 1},
			want:      []float64{0.01, -0.04, -0.04, -0.04},
			corrected: 2,
		},
		{
			name:      "nan is an artifact",
			in:        []float64{0.02, nan, 0.04},
			want:      []float64{0.02, 0.03, 0.04},
			corrected: 1,
		},
		{
			name:      "threshold itself is valid",
			in:        []float64{thr, -thr},
			want:      []float64{thr, -thr},
			corrected: 0,
		},
		{
			name:      "all clipped",
			in:        []float64{0.2, -0.3, nan, 5},
			want:      []float64{0, 0, 0, 0},
			corrected: 4,
		},
		{
			name: "empty",
			in:   []float64{},
			want: []float64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, corrected := InterpolateArtifacts(tt.in, thr)
			assert.Equal(t, tt.corrected, corrected)
			assert.InDeltaSlice(t, tt.want, got, 1e-12)
		})
	}
}

func TestInterpolateArtifacts_InputUntouched(t *testing.T) {
	in := []float64{0.01, 0.9, 0.02}
	_, corrected := InterpolateArtifacts(in, 0.126)

	assert.Equal(t, 1, corrected)
	assert.Equal(t, []float64{0.01, 0.9, 0.02}, in)
}

func TestInterpolateArtifacts_BoundedAndIdempotent(t *testing.T) {
	const thr = 0.126
	rng := rand.New(rand.NewSource(7))

	in := make([]float64, 2000)
	for i := range in {
		in[i] = rng.NormFloat64() * 0.1
	}

	once, _ := InterpolateArtifacts(in, thr)
	for i, v := range once {
		assert.LessOrEqual(t, math.Abs(v), thr, "sample %d", i)
	}

	twice, corrected := InterpolateArtifacts(once, thr)
	assert.Zero(t, corrected)
	assert.Equal(t, once, twice)
}
