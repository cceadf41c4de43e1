package raster

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	godal.RegisterAll()
	m.Run()
}

func testMeta(w, h, bands int) Meta {
	return Meta{
		Width:    w,
		Height:   h,
		Bands:    bands,
		GeoTrans: [6]float64{500000, 10, 0, 9000000, 0, -10},
	}
}

func TestSameGrid(t *testing.T) {
	a := testMeta(4, 3, 1)
	assert.True(t, a.SameGrid(testMeta(4, 3, 2)), "band count does not affect grid equality")

	b := testMeta(5, 3, 1)
	assert.False(t, a.SameGrid(b))

	c := testMeta(4, 3, 1)
	c.GeoTrans[0] = 500010
	assert.False(t, a.SameGrid(c))

	d := testMeta(4, 3, 1)
	d.Projection = "PROJCS[\"other\"]"
	assert.False(t, a.SameGrid(d))
}

func TestCoefficientRoundTrip(t *testing.T) {
	w, h := 5, 4
	meta := testMeta(w, h, 0)
	nan := float32(math.NaN())

	bands := make([][]float32, 3)
	for b := range bands {
		bands[b] = make([]float32, w*h)
		for i := range bands[b] {
			bands[b][i] = float32(b*100 + i)
		}
		bands[b][7] = nan
	}

	path := filepath.Join(t.TempDir(), "coefs.tif")
	require.NoError(t, WriteBands(path, "GTiff", meta, bands))

	got, err := ReadMeta(path)
	require.NoError(t, err)
	assert.Equal(t, w, got.Width)
	assert.Equal(t, h, got.Height)
	assert.Equal(t, 3, got.Bands)
	assert.Equal(t, meta.GeoTrans, got.GeoTrans)
	assert.True(t, got.HasNoData)
	assert.True(t, math.IsNaN(got.NoData))

	for b := 1; b <= 3; b++ {
		data, m, err := ReadBand(path, b)
		require.NoError(t, err)
		assert.True(t, meta.SameGrid(m))
		for i, v := range data {
			if i == 7 {
				assert.True(t, math.IsNaN(float64(v)), "band %d NaN location", b)
				continue
			}
			assert.Equal(t, bands[b-1][i], v, "band %d pixel %d", b, i)
		}
	}
}

func TestReadBandMapsSentinelToNaN(t *testing.T) {
	w, h := 3, 3
	meta := testMeta(w, h, 0)
	pixels := []float32{1, 2, -99, 4, 5, 6, -99, 8, 9}

	path := filepath.Join(t.TempDir(), "band.tif")
	require.NoError(t, WriteRaster(path, "GTiff", meta, []Band{
		{Pixels: pixels, NoData: -99, HasNoData: true},
	}))

	data, _, err := ReadBand(path, 1)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(float64(data[2])))
	assert.True(t, math.IsNaN(float64(data[6])))
	assert.Equal(t, float32(5), data[4])

	// Raw reads keep the sentinel for bit-identical restoration.
	_, raw, err := ReadRawBands(path)
	require.NoError(t, err)
	require.Len(t, raw, 1)
	assert.Equal(t, float32(-99), raw[0].Pixels[2])
	assert.True(t, raw[0].HasNoData)
	assert.Equal(t, -99.0, raw[0].NoData)
}

func TestReadBandOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one.tif")
	require.NoError(t, WriteRaster(path, "GTiff", testMeta(2, 2, 0), []Band{
		{Pixels: make([]float32, 4)},
	}))
	_, _, err := ReadBand(path, 2)
	assert.Error(t, err)
}

func TestWriteRejectsBadBands(t *testing.T) {
	meta := testMeta(2, 2, 0)
	path := filepath.Join(t.TempDir(), "bad.tif")

	assert.Error(t, WriteRaster(path, "GTiff", meta, nil))
	assert.Error(t, WriteRaster(path, "GTiff", meta, []Band{{Pixels: make([]float32, 3)}}))
}

func TestReadMissingFile(t *testing.T) {
	_, err := ReadMeta(filepath.Join(t.TempDir(), "absent.tif"))
	assert.Error(t, err)
}
