package harmonic

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestLassoRecoversLinearSignal(t *testing.T) {
	// y = 3 + 2*x with a tiny penalty: coordinate descent should land on
	// the OLS solution to within the shrinkage bias.
	xs := []float64{0, 1, 2, 3, 4, 5, 6, 7}
	x := mat.NewDense(len(xs), 1, nil)
	y := make([]float64, len(xs))
	for i, v := range xs {
		x.Set(i, 0, v)
		y[i] = 3 + 2*v
	}

	l := Lasso{Alpha: 1e-6, MaxIter: 10000}
	intercept, coefs := l.Fit(x, y)
	require.Len(t, coefs, 1)
	assert.InDelta(t, 3, intercept, 1e-3)
	assert.InDelta(t, 2, coefs[0], 1e-3)
}

func TestLassoLargeAlphaShrinksToMean(t *testing.T) {
	x := mat.NewDense(4, 2, []float64{
		1, 2,
		2, 1,
		3, 4,
		4, 3,
	})
	y := []float64{1, 2, 3, 4}

	l := Lasso{Alpha: 1e6, MaxIter: 1000}
	intercept, coefs := l.Fit(x, y)
	assert.Equal(t, []float64{0, 0}, coefs)
	assert.InDelta(t, 2.5, intercept, 1e-12)
}

func TestLassoSingleObservation(t *testing.T) {
	// One row: centering removes all signal; the fit degenerates to the
	// observation itself, not an error.
	x := mat.NewDense(1, 3, []float64{10, 0.5, 0.8})
	intercept, coefs := Lasso{Alpha: 0.1, MaxIter: 100}.Fit(x, []float64{7})
	assert.Equal(t, []float64{0, 0, 0}, coefs)
	assert.Equal(t, 7.0, intercept)
}

func TestLassoIterationCapIsBestEffort(t *testing.T) {
	// A single sweep never errors even on a poorly conditioned system.
	x := mat.NewDense(3, 4, []float64{
		1, 1, 1, 1,
		1, 1.0001, 1, 1,
		1, 1, 1.0001, 1,
	})
	y := []float64{1, 2, 3}
	intercept, coefs := Lasso{Alpha: 0.01, MaxIter: 1}.Fit(x, y)
	assert.False(t, math.IsNaN(intercept))
	require.Len(t, coefs, 4)
	for _, w := range coefs {
		assert.False(t, math.IsNaN(w))
	}
}
