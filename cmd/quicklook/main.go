// Command quicklook renders a PNG preview of one band of a coefficient
// raster for visual inspection.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/airbusgeo/godal"

	"sar-harmonics/internal/quicklook"
	"sar-harmonics/internal/raster"
)

func main() {
	input := flag.String("input", "", "Path to coefficient raster")
	band := flag.Int("band", 1, "Band to render (1-based; band 1 is the intercept)")
	output := flag.String("output", "", "Output PNG path (default: input name with .png)")
	maxDim := flag.Int("max-dim", 2048, "Maximum preview dimension in pixels")
	flag.Parse()

	if *input == "" {
		fmt.Println("Usage: quicklook -input <raster> [-band 1] [-output out.png] [-max-dim 2048]")
		os.Exit(1)
	}

	godal.RegisterAll()

	data, meta, err := raster.ReadBand(*input, *band)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read raster: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %s: %dx%d, band %d of %d\n", *input, meta.Width, meta.Height, *band, meta.Bands)

	img, err := quicklook.Render(data, meta.Width, meta.Height, *maxDim)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render preview: %v\n", err)
		os.Exit(1)
	}

	dst := *output
	if dst == "" {
		base := filepath.Base(*input)
		dst = strings.TrimSuffix(base, filepath.Ext(base)) + ".png"
	}
	if err := quicklook.WritePNG(dst, img); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write preview: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s (%dx%d)\n", dst, img.Bounds().Dx(), img.Bounds().Dy())
}
