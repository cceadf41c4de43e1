package gfilter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"sar-harmonics/internal/raster"
	"sar-harmonics/internal/workpool"
)

// FilterFile guided-filters every band of the raster at srcPath and writes
// the result into dstDir under the same base name (extension swapped to
// .tif for GTiff output). Georeferencing and per-band no-data values carry
// through unchanged. Returns the output path.
func FilterFile(srcPath, dstDir, format string, p Params) (string, error) {
	meta, bands, err := raster.ReadRawBands(srcPath)
	if err != nil {
		return "", err
	}

	out := make([]raster.Band, len(bands))
	for i, b := range bands {
		filtered, err := FilterBand(b.Pixels, b.NoData, b.HasNoData, meta.Width, meta.Height, p)
		if err != nil {
			return "", fmt.Errorf("filter band %d of %s: %w", i+1, srcPath, err)
		}
		out[i] = raster.Band{Pixels: filtered, NoData: b.NoData, HasNoData: b.HasNoData}
	}

	name := filepath.Base(srcPath)
	if format == "GTiff" {
		name = strings.TrimSuffix(name, filepath.Ext(name)) + ".tif"
	}
	dstPath := filepath.Join(dstDir, name)
	if err := raster.WriteRaster(dstPath, format, meta, out); err != nil {
		return "", err
	}
	return dstPath, nil
}

// FilterDir filters every raster in srcDir into dstDir, fanning files out
// through a bounded pool. It returns the per-file failure count; individual
// failures are logged and do not stop the batch.
func FilterDir(srcDir, dstDir, format string, p Params, workers int, log *slog.Logger) (failed int, err error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	paths, err := ListRasters(srcDir)
	if err != nil {
		return 0, err
	}
	if len(paths) == 0 {
		return 0, fmt.Errorf("no rasters to filter in %s", srcDir)
	}
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}

	pool := workpool.New(workers)
	for _, src := range paths {
		src := src
		pool.Submit(func() error {
			if _, ferr := FilterFile(src, dstDir, format, p); ferr != nil {
				log.Error("guided filter failed", "file", src, "err", ferr)
				return ferr
			}
			log.Debug("guided filter done", "file", src)
			return nil
		})
	}
	pool.Drain()
	pool.Close()
	_, nfail := pool.Stats()
	return int(nfail), nil
}

// ListRasters returns the raster files in dir, skipping GDAL sidecar files.
func ListRasters(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".aux.xml") || strings.HasSuffix(name, ".hdr") {
			continue
		}
		ext := filepath.Ext(name)
		if ext == ".img" || ext == ".tif" || ext == ".tiff" {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	return paths, nil
}
