// Package pipeline drives the per-tile harmonic regression flow: clip
// (external), guided filter, per-polarization fit, coefficient output.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"sar-harmonics/internal/config"
	"sar-harmonics/internal/gfilter"
	"sar-harmonics/internal/harmonic"
	"sar-harmonics/internal/raster"
	"sar-harmonics/internal/stage"
	"sar-harmonics/internal/timeseries"
	"sar-harmonics/internal/workpool"
)

// Pipeline holds the collaborators of one batch run.
type Pipeline struct {
	Cfg *config.Config
	Log *slog.Logger
	// Clip, when set, is the external stage that gathers and clips the
	// tile's imagery into the clip directory before filtering.
	Clip stage.Stage
	// ParallelFit selects the disk-backed row-parallel fitter for large
	// tiles; otherwise rows are fit sequentially in memory.
	ParallelFit bool
}

func (p *Pipeline) log() *slog.Logger {
	if p.Log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.Log
}

// ProcessTile runs the full flow for one tile. Precondition failures
// (missing clip directory, zero usable rasters, mismatched grids) abort the
// tile with an error naming it; no partial coefficient raster is written.
func (p *Pipeline) ProcessTile(ctx context.Context, tile string) error {
	log := p.log().With("tile", tile)
	cfg := p.Cfg

	clipDir := cfg.ClipDir(tile)
	if p.Clip != nil {
		if err := p.Clip.Run(ctx, nil, clipDir, map[string]string{"tile": tile}); err != nil {
			return fmt.Errorf("tile %s: clip stage: %w", tile, err)
		}
		log.Info("clip stage finished")
	}
	if _, err := os.Stat(clipDir); err != nil {
		return fmt.Errorf("tile %s: no clipped imagery at %s: %w", tile, clipDir, err)
	}

	ardDir := cfg.ARDDir(tile)
	params := gfilter.Params{Kernel: cfg.Harmonic.Kernel, Eps: cfg.Harmonic.Eps}
	failed, err := gfilter.FilterDir(clipDir, ardDir, cfg.Output.Format, params, cfg.Workers(), log)
	if err != nil {
		return fmt.Errorf("tile %s: guided filter: %w", tile, err)
	}
	log.Info("guided filter finished", "failed", failed)

	coefDir := filepath.Join(cfg.Dirs.Dst, cfg.Dirs.Coefs)
	if err := os.MkdirAll(coefDir, 0o755); err != nil {
		return fmt.Errorf("tile %s: create coefficient dir: %w", tile, err)
	}

	for _, pol := range cfg.Polarizations {
		if err := p.fitPolarization(tile, pol, ardDir, coefDir); err != nil {
			return err
		}
		log.Info("harmonic fit finished", "polarization", pol)
	}

	if !cfg.Harmonic.KeepIntermediate {
		os.RemoveAll(clipDir)
		os.RemoveAll(ardDir)
	}
	return nil
}

// fitPolarization fits one (tile, polarization) stack and writes its
// coefficient raster.
func (p *Pipeline) fitPolarization(tile, pol, ardDir, coefDir string) error {
	cfg := p.Cfg

	paths, err := gfilter.ListRasters(ardDir)
	if err != nil {
		return fmt.Errorf("tile %s: %w", tile, err)
	}
	var obs []timeseries.Observation
	for _, path := range paths {
		name := filepath.Base(path)
		if !strings.Contains(name, pol) {
			continue
		}
		date, err := timeseries.DateFromName(name)
		if err != nil {
			return fmt.Errorf("tile %s: %w", tile, err)
		}
		obs = append(obs, timeseries.Observation{Path: path, Date: date})
	}
	if len(obs) == 0 {
		return fmt.Errorf("tile %s: no %s rasters in %s", tile, pol, ardDir)
	}

	ordered, coords, err := timeseries.Align(obs, cfg.Harmonic.Frequency)
	if err != nil {
		return fmt.Errorf("tile %s: %w", tile, err)
	}
	design, err := harmonic.Design(coords, cfg.Harmonic.Frequency, cfg.Harmonic.Pairs)
	if err != nil {
		return fmt.Errorf("tile %s: %w", tile, err)
	}

	stack := make([][]float32, len(ordered))
	var meta raster.Meta
	for i, o := range ordered {
		band, m, err := raster.ReadBand(o.Path, 1)
		if err != nil {
			return fmt.Errorf("tile %s: %w", tile, err)
		}
		if i == 0 {
			meta = m
		} else if !meta.SameGrid(m) {
			return fmt.Errorf("tile %s: %s does not share the stack's grid (got %dx%d, want %dx%d)",
				tile, o.Path, m.Width, m.Height, meta.Width, meta.Height)
		}
		stack[i] = band
	}

	strategy := harmonic.RowSequential
	if p.ParallelFit {
		strategy = harmonic.RowParallel
	}
	coefs, err := harmonic.FitStack(stack, meta.Width, meta.Height, design, harmonic.FitOptions{
		Pairs:    cfg.Harmonic.Pairs,
		Alpha:    cfg.Harmonic.Alpha,
		MaxIter:  cfg.Harmonic.MaxIter,
		Strategy: strategy,
		Workers:  cfg.Workers(),
	})
	if err != nil {
		return fmt.Errorf("tile %s: fit %s: %w", tile, pol, err)
	}

	dst := filepath.Join(coefDir, fmt.Sprintf("tile%s_%s_harmonic.tif", tile, pol))
	if err := raster.WriteBands(dst, "GTiff", meta, coefs); err != nil {
		return fmt.Errorf("tile %s: %w", tile, err)
	}
	return nil
}

// Run processes tiles, either serially or fanned out through a bounded
// pool, and returns how many succeeded and failed. A failed tile never
// stops the batch.
func (p *Pipeline) Run(ctx context.Context, tiles []string, parallelTiles bool) (succeeded, failed int) {
	log := p.log()

	if parallelTiles {
		pool := workpool.New(p.Cfg.Workers())
		for _, tile := range tiles {
			tile := tile
			pool.Submit(func() error {
				if err := p.ProcessTile(ctx, tile); err != nil {
					log.Error("tile failed", "tile", tile, "err", err)
					return err
				}
				return nil
			})
		}
		pool.Drain()
		pool.Close()
		done, nfail := pool.Stats()
		succeeded, failed = int(done-nfail), int(nfail)
	} else {
		for _, tile := range tiles {
			if err := p.ProcessTile(ctx, tile); err != nil {
				log.Error("tile failed", "tile", tile, "err", err)
				failed++
				continue
			}
			succeeded++
		}
	}

	log.Info("batch finished", "tiles", len(tiles), "succeeded", succeeded, "failed", failed)
	return succeeded, failed
}
