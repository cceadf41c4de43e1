// Package harmonic fits a per-pixel periodic model to a stack of rasters:
// a fixed cosine/sine basis over a day-of-year axis, regressed with
// L1-regularized least squares at every pixel.
package harmonic

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Design builds the harmonic regression basis for the given periodic
// coordinates. The result has one row per coordinate and 1+2*pairs columns:
// column 0 is the raw coordinate (residual linear trend), then for column
// j >= 1 the value is cos(2π·h·t/freq − (j mod 2)·π/2) with h = ceil(j/2),
// so odd columns carry the sine phase and even columns the cosine at
// harmonics 1..pairs. The basis depends only on (coords, freq, pairs) and
// is built once per tile and polarization.
func Design(coords []float64, freq, pairs int) (*mat.Dense, error) {
	if len(coords) == 0 {
		return nil, fmt.Errorf("no coordinates")
	}
	if freq <= 0 || pairs < 1 {
		return nil, fmt.Errorf("invalid basis: freq=%d pairs=%d", freq, pairs)
	}

	cols := 1 + 2*pairs
	x := mat.NewDense(len(coords), cols, nil)
	for i, t := range coords {
		x.Set(i, 0, t)
		for j := 1; j < cols; j++ {
			h := math.Ceil(float64(j) / 2)
			phase := float64(j%2) * math.Pi / 2
			x.Set(i, j, math.Cos(2*math.Pi*h*t/float64(freq)-phase))
		}
	}
	return x, nil
}
