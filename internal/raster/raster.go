// Package raster reads and writes single- and multi-band geospatial rasters
// through GDAL, normalizing no-data pixels to NaN on the way in.
package raster

import (
	"fmt"
	"math"

	"github.com/airbusgeo/godal"
)

// Meta describes a raster's grid and georeferencing.
type Meta struct {
	Width      int
	Height     int
	Bands      int
	GeoTrans   [6]float64
	Projection string
	NoData     float64
	HasNoData  bool
}

// SameGrid reports whether two rasters share an identical spatial footprint:
// same pixel grid, same geotransform, same projection. Rasters stacked into
// one regression fit must all agree.
func (m Meta) SameGrid(other Meta) bool {
	if m.Width != other.Width || m.Height != other.Height {
		return false
	}
	if m.GeoTrans != other.GeoTrans {
		return false
	}
	return m.Projection == other.Projection
}

// ReadMeta opens a raster and returns its grid description without reading
// pixel data. The no-data value is taken from band 1.
func ReadMeta(path string) (Meta, error) {
	ds, err := godal.Open(path)
	if err != nil {
		return Meta{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer ds.Close()
	return metaOf(ds)
}

func metaOf(ds *godal.Dataset) (Meta, error) {
	st := ds.Structure()
	gt, err := ds.GeoTransform()
	if err != nil {
		return Meta{}, fmt.Errorf("read geotransform: %w", err)
	}
	m := Meta{
		Width:      st.SizeX,
		Height:     st.SizeY,
		Bands:      st.NBands,
		GeoTrans:   gt,
		Projection: ds.Projection(),
	}
	if st.NBands > 0 {
		m.NoData, m.HasNoData = ds.Bands()[0].NoData()
	}
	return m, nil
}

// ReadBand reads one band (1-based index) as a row-major float32 slice of
// length Width*Height. Pixels equal to the band's no-data value are mapped
// to NaN; a NaN no-data value passes through as-is.
func ReadBand(path string, band int) ([]float32, Meta, error) {
	ds, err := godal.Open(path)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer ds.Close()

	meta, err := metaOf(ds)
	if err != nil {
		return nil, Meta{}, err
	}
	if band < 1 || band > meta.Bands {
		return nil, Meta{}, fmt.Errorf("%s: band %d out of range (1..%d)", path, band, meta.Bands)
	}

	b := ds.Bands()[band-1]
	data := make([]float32, meta.Width*meta.Height)
	if err := b.Read(0, 0, data, meta.Width, meta.Height); err != nil {
		return nil, Meta{}, fmt.Errorf("read band %d of %s: %w", band, path, err)
	}

	if nd, ok := b.NoData(); ok && !math.IsNaN(nd) {
		nd32 := float32(nd)
		nan := float32(math.NaN())
		for i, v := range data {
			if v == nd32 {
				data[i] = nan
			}
		}
	}
	return data, meta, nil
}

// Band is one band's pixels plus its own no-data declaration, untouched by
// any normalization.
type Band struct {
	Pixels    []float32
	NoData    float64
	HasNoData bool
}

// ReadRawBands reads every band of a raster without mapping no-data to NaN.
// Used where the original pixel values must survive a round trip exactly,
// e.g. restoring no-data pixels after filtering.
func ReadRawBands(path string) (Meta, []Band, error) {
	ds, err := godal.Open(path)
	if err != nil {
		return Meta{}, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer ds.Close()

	meta, err := metaOf(ds)
	if err != nil {
		return Meta{}, nil, err
	}
	bands := make([]Band, meta.Bands)
	for i, b := range ds.Bands() {
		data := make([]float32, meta.Width*meta.Height)
		if err := b.Read(0, 0, data, meta.Width, meta.Height); err != nil {
			return Meta{}, nil, fmt.Errorf("read band %d of %s: %w", i+1, path, err)
		}
		bands[i].Pixels = data
		bands[i].NoData, bands[i].HasNoData = b.NoData()
	}
	return meta, bands, nil
}

// WriteRaster writes bands as a multi-band Float32 raster carrying meta's
// georeferencing and each band's own no-data value. format is a GDAL driver
// name; "GTiff" and "ENVI" are the ones this pipeline produces.
func WriteRaster(path, format string, meta Meta, bands []Band) error {
	if len(bands) == 0 {
		return fmt.Errorf("write %s: no bands", path)
	}
	for i, b := range bands {
		if len(b.Pixels) != meta.Width*meta.Height {
			return fmt.Errorf("write %s: band %d has %d pixels, want %d",
				path, i+1, len(b.Pixels), meta.Width*meta.Height)
		}
	}

	var opts []godal.DatasetCreateOption
	if format == "ENVI" {
		opts = append(opts, godal.CreationOption("INTERLEAVE=BIP"))
	}
	ds, err := godal.Create(godal.DriverName(format), path, len(bands), godal.Float32,
		meta.Width, meta.Height, opts...)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	werr := func() error {
		if err := ds.SetGeoTransform(meta.GeoTrans); err != nil {
			return fmt.Errorf("set geotransform on %s: %w", path, err)
		}
		if meta.Projection != "" {
			if err := ds.SetProjection(meta.Projection); err != nil {
				return fmt.Errorf("set projection on %s: %w", path, err)
			}
		}
		for i, b := range ds.Bands() {
			if bands[i].HasNoData {
				if err := b.SetNoData(bands[i].NoData); err != nil {
					return fmt.Errorf("set nodata on %s band %d: %w", path, i+1, err)
				}
			}
			if err := b.Write(0, 0, bands[i].Pixels, meta.Width, meta.Height); err != nil {
				return fmt.Errorf("write %s band %d: %w", path, i+1, err)
			}
		}
		return nil
	}()
	if cerr := ds.Close(); werr == nil && cerr != nil {
		werr = fmt.Errorf("close %s: %w", path, cerr)
	}
	return werr
}

// WriteBands writes a coefficient-style raster: every band shares the NaN
// no-data sentinel.
func WriteBands(path, format string, meta Meta, bands [][]float32) error {
	wrapped := make([]Band, len(bands))
	for i, b := range bands {
		wrapped[i] = Band{Pixels: b, NoData: math.NaN(), HasNoData: true}
	}
	return WriteRaster(path, format, meta, wrapped)
}
