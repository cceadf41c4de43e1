package harmonic

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDesignShapeAndColumns(t *testing.T) {
	coords := []float64{10, 61, 131, 183, 305}
	x, err := Design(coords, 365, 2)
	require.NoError(t, err)

	rows, cols := x.Dims()
	assert.Equal(t, len(coords), rows)
	assert.Equal(t, 5, cols)

	for i, tc := range coords {
		// Column 0 carries the raw coordinate for the linear trend.
		assert.Equal(t, tc, x.At(i, 0))

		base := 2 * math.Pi * tc / 365
		// Odd columns are the sine phase, even columns the cosine.
		assert.InDelta(t, math.Cos(base-math.Pi/2), x.At(i, 1), 1e-12)
		assert.InDelta(t, math.Cos(base), x.At(i, 2), 1e-12)
		assert.InDelta(t, math.Cos(2*base-math.Pi/2), x.At(i, 3), 1e-12)
		assert.InDelta(t, math.Cos(2*base), x.At(i, 4), 1e-12)
	}
}

func TestDesignSinePhaseEqualsSin(t *testing.T) {
	coords := []float64{45.0}
	x, err := Design(coords, 365, 1)
	require.NoError(t, err)
	assert.InDelta(t, math.Sin(2*math.Pi*45/365), x.At(0, 1), 1e-12)
}

func TestDesignRejectsBadInputs(t *testing.T) {
	_, err := Design(nil, 365, 1)
	assert.Error(t, err)

	_, err = Design([]float64{1}, 0, 1)
	assert.Error(t, err)

	_, err = Design([]float64{1}, 365, 0)
	assert.Error(t, err)
}
