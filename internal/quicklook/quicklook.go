// Package quicklook renders browse previews of coefficient bands: a
// percentile-stretched color ramp, downscaled to a bounded PNG.
package quicklook

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"sort"

	xdraw "golang.org/x/image/draw"
	"gonum.org/v1/gonum/stat"
)

// Ramp endpoints: deep blue through white to brick red, a diverging ramp
// that keeps the coefficient sign readable.
var (
	rampLow  = color.NRGBA{R: 33, G: 102, B: 172, A: 255}
	rampMid  = color.NRGBA{R: 247, G: 247, B: 247, A: 255}
	rampHigh = color.NRGBA{R: 178, G: 24, B: 43, A: 255}
)

// Render maps a band to a color image. Values are stretched between the 2nd
// and 98th percentile of the finite pixels; NaN renders transparent. If the
// image exceeds maxDim on either side it is scaled down proportionally.
func Render(band []float32, width, height, maxDim int) (*image.NRGBA, error) {
	if len(band) != width*height {
		return nil, fmt.Errorf("band has %d pixels, want %d", len(band), width*height)
	}

	finite := make([]float64, 0, len(band))
	for _, v := range band {
		if !math.IsNaN(float64(v)) {
			finite = append(finite, float64(v))
		}
	}
	lo, hi := 0.0, 1.0
	if len(finite) > 0 {
		sort.Float64s(finite)
		lo = stat.Quantile(0.02, stat.Empirical, finite, nil)
		hi = stat.Quantile(0.98, stat.Empirical, finite, nil)
		if hi <= lo {
			hi = lo + 1
		}
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := float64(band[y*width+x])
			if math.IsNaN(v) {
				continue // zero value: fully transparent
			}
			t := (v - lo) / (hi - lo)
			img.SetNRGBA(x, y, rampColor(t))
		}
	}

	if maxDim > 0 && (width > maxDim || height > maxDim) {
		scale := float64(maxDim) / float64(width)
		if height > width {
			scale = float64(maxDim) / float64(height)
		}
		dw := int(float64(width) * scale)
		dh := int(float64(height) * scale)
		small := image.NewNRGBA(image.Rect(0, 0, dw, dh))
		xdraw.ApproxBiLinear.Scale(small, small.Bounds(), img, img.Bounds(), xdraw.Over, nil)
		img = small
	}
	return img, nil
}

func rampColor(t float64) color.NRGBA {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	if t < 0.5 {
		return lerp(rampLow, rampMid, t*2)
	}
	return lerp(rampMid, rampHigh, (t-0.5)*2)
}

func lerp(a, b color.NRGBA, t float64) color.NRGBA {
	f := func(x, y uint8) uint8 { return uint8(float64(x) + t*(float64(y)-float64(x)) + 0.5) }
	return color.NRGBA{R: f(a.R, b.R), G: f(a.G, b.G), B: f(a.B, b.B), A: 255}
}

// WritePNG writes the rendered preview to path.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
