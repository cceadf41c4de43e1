// Package gfilter denoises raster bands with an edge-preserving guided
// filter (He et al., ECCV 2010), using the band itself as its structural
// guide. Box-filter statistics run through OpenCV.
package gfilter

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// fillValue replaces no-data pixels for the duration of the filter so the
// kernel statistics stay finite; originals are restored on the way out.
const fillValue = -9999

// varEpsilon guards the a-coefficient division when the local guide
// variance plus eps underflows.
const varEpsilon = 1e-4

// Params holds the guided filter tuning knobs.
type Params struct {
	Kernel int     // box kernel size, positive odd
	Eps    float64 // regularization; larger means smoother
}

func (p Params) validate() error {
	if p.Kernel <= 0 || p.Kernel%2 == 0 {
		return fmt.Errorf("kernel size must be positive odd, got %d", p.Kernel)
	}
	if p.Eps < 0 {
		return fmt.Errorf("eps must be non-negative, got %g", p.Eps)
	}
	return nil
}

// Filter applies the guided filter to target using guide as the structural
// guide. Both are row-major width*height arrays and must be free of no-data
// markers (see FilterBand). Pure given its inputs.
func Filter(guide, target []float32, width, height int, p Params) ([]float32, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if len(guide) != width*height || len(target) != width*height {
		return nil, fmt.Errorf("band size mismatch: guide=%d target=%d want %d",
			len(guide), len(target), width*height)
	}

	n := width * height
	gt := make([]float32, n)
	gg := make([]float32, n)
	for i := range guide {
		gt[i] = guide[i] * target[i]
		gg[i] = guide[i] * guide[i]
	}

	meanG, err := boxFilter(guide, width, height, p.Kernel)
	if err != nil {
		return nil, err
	}
	meanT, err := boxFilter(target, width, height, p.Kernel)
	if err != nil {
		return nil, err
	}
	meanGT, err := boxFilter(gt, width, height, p.Kernel)
	if err != nil {
		return nil, err
	}
	meanGG, err := boxFilter(gg, width, height, p.Kernel)
	if err != nil {
		return nil, err
	}

	// Local linear model q = a*guide + b per window.
	a := gt // reuse
	b := gg
	denom := float32(p.Eps + varEpsilon)
	for i := 0; i < n; i++ {
		cov := meanGT[i] - meanG[i]*meanT[i]
		varG := meanGG[i] - meanG[i]*meanG[i]
		a[i] = cov / (varG + denom)
		b[i] = meanT[i] - a[i]*meanG[i]
	}

	meanA, err := boxFilter(a, width, height, p.Kernel)
	if err != nil {
		return nil, err
	}
	meanB, err := boxFilter(b, width, height, p.Kernel)
	if err != nil {
		return nil, err
	}

	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = meanA[i]*guide[i] + meanB[i]
	}
	return out, nil
}

// FilterBand self-guides the filter over one band, shielding no-data
// pixels: they are swapped for an out-of-range marker before filtering and
// restored bit-identical afterwards, so the filter neither smears across
// them nor invents values at their locations. noData may be NaN.
func FilterBand(band []float32, noData float64, hasNoData bool, width, height int, p Params) ([]float32, error) {
	if !hasNoData {
		return Filter(band, band, width, height, p)
	}

	masked := make([]float32, len(band))
	nd := float32(noData)
	ndIsNaN := math.IsNaN(noData)
	for i, v := range band {
		if isNoData(v, nd, ndIsNaN) {
			masked[i] = fillValue
		} else {
			masked[i] = v
		}
	}

	filtered, err := Filter(masked, masked, width, height, p)
	if err != nil {
		return nil, err
	}
	for i, v := range band {
		if isNoData(v, nd, ndIsNaN) {
			filtered[i] = v
		}
	}
	return filtered, nil
}

func isNoData(v, nd float32, ndIsNaN bool) bool {
	if ndIsNaN {
		return math.IsNaN(float64(v))
	}
	return v == nd
}

// boxFilter runs OpenCV's normalized box filter over a CV_32F view of src.
func boxFilter(src []float32, width, height, ksize int) ([]float32, error) {
	buf := make([]byte, len(src)*4)
	for i, v := range src {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	m, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV32F, buf)
	if err != nil {
		return nil, fmt.Errorf("wrap band as mat: %w", err)
	}
	defer m.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.BoxFilter(m, &dst, -1, image.Pt(ksize, ksize))

	data, err := dst.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read filtered mat: %w", err)
	}
	out := make([]float32, len(src))
	copy(out, data)
	return out, nil
}
