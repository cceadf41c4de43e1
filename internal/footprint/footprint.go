// Package footprint extracts tile indices from a GeoJSON footprint file,
// the catalog the batch driver iterates over.
package footprint

import (
	"fmt"
	"os"

	"github.com/tidwall/gjson"
)

// Tiles returns the tile index of every feature in the footprint, in file
// order. Indices may be stored as strings or numbers; numeric values are
// rendered without a fractional part.
func Tiles(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read footprint: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("footprint %s is not valid JSON", path)
	}

	features := gjson.GetBytes(raw, "features")
	if !features.Exists() {
		return nil, fmt.Errorf("footprint %s has no features array", path)
	}

	var tiles []string
	badAt := -1
	features.ForEach(func(i, feature gjson.Result) bool {
		tile := feature.Get("properties.tile")
		if !tile.Exists() {
			badAt = len(tiles)
			return false
		}
		switch tile.Type {
		case gjson.Number:
			tiles = append(tiles, fmt.Sprintf("%d", int64(tile.Num)))
		default:
			tiles = append(tiles, tile.String())
		}
		return true
	})
	if badAt >= 0 {
		return nil, fmt.Errorf("footprint %s: feature %d has no properties.tile", path, badAt)
	}
	if len(tiles) == 0 {
		return nil, fmt.Errorf("footprint %s has no tiles", path)
	}
	return tiles, nil
}
