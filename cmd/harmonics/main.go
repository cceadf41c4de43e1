// Command harmonics runs the harmonic regression batch over a set of tiles:
// guided filtering of each clipped raster, then a per-pixel L1-regularized
// harmonic fit per polarization, writing one coefficient raster per
// (tile, polarization).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/airbusgeo/godal"

	"sar-harmonics/internal/config"
	"sar-harmonics/internal/footprint"
	"sar-harmonics/internal/pipeline"
	"sar-harmonics/internal/stage"
	"sar-harmonics/internal/version"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration file")
	footprintPath := flag.String("footprint", "", "Tile footprint GeoJSON (features[].properties.tile)")
	tileList := flag.String("tiles", "", "Comma-separated tile indices (overrides -footprint)")
	parallelTiles := flag.Bool("parallel-tiles", false, "Fan tiles out through the worker pool")
	parallelFit := flag.Bool("parallel-fit", false, "Use the disk-backed row-parallel fitter (large tiles)")
	clipProgram := flag.String("clip-cmd", "", "Optional external clip command, e.g. a gather script")
	jsonLog := flag.Bool("log-json", false, "Emit JSON logs")
	verbose := flag.Bool("v", false, "Debug logging")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("harmonics", version.String())
		return
	}
	if *configPath == "" {
		fmt.Println("Usage: harmonics -config <path> [-footprint <geojson> | -tiles a,b,c] [-parallel-tiles] [-parallel-fit]")
		os.Exit(1)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	var handler slog.Handler
	if *jsonLog {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	log := slog.New(handler)

	godal.RegisterAll()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("configuration rejected", "err", err)
		os.Exit(1)
	}

	var tiles []string
	switch {
	case *tileList != "":
		for _, t := range strings.Split(*tileList, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tiles = append(tiles, t)
			}
		}
	case *footprintPath != "":
		tiles, err = footprint.Tiles(*footprintPath)
		if err != nil {
			log.Error("footprint rejected", "err", err)
			os.Exit(1)
		}
	default:
		fmt.Println("harmonics: one of -footprint or -tiles is required")
		os.Exit(1)
	}

	p := &pipeline.Pipeline{
		Cfg:         cfg,
		Log:         log,
		ParallelFit: *parallelFit,
	}
	if *clipProgram != "" {
		p.Clip = stage.CommandStage{
			Program: *clipProgram,
			Args:    []string{"-i", "{param:tile}", "-o", "{output}", "-c", *configPath},
			Log:     log,
		}
	}

	succeeded, failed := p.Run(context.Background(), tiles, *parallelTiles)
	fmt.Printf("Processed %d tiles: %d succeeded, %d failed\n", len(tiles), succeeded, failed)
	if failed > 0 {
		os.Exit(1)
	}
}
