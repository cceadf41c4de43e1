package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sar-harmonics/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Dirs.Clip = dir + "/clip"
	cfg.Dirs.ARD = dir + "/ard"
	cfg.Dirs.Dst = dir + "/out"
	cfg.Dirs.Coefs = "coefs"
	cfg.Harmonic.Frequency = 365
	cfg.Harmonic.Pairs = 2
	cfg.Harmonic.Alpha = 0.05
	cfg.Harmonic.Kernel = 3
	cfg.Harmonic.MaxIter = 100
	cfg.Parallel.Workers = "2"
	cfg.Output.Format = "GTiff"
	cfg.Polarizations = []string{"VV"}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestProcessTileMissingClipDirIsFatal(t *testing.T) {
	p := &Pipeline{Cfg: testConfig(t)}
	err := p.ProcessTile(context.Background(), "120")
	require.Error(t, err)
	// The failure must name the tile and the missing precondition.
	assert.Contains(t, err.Error(), "tile 120")
	assert.Contains(t, err.Error(), "clip")
}

func TestRunTalliesFailuresWithoutAborting(t *testing.T) {
	p := &Pipeline{Cfg: testConfig(t)}

	// No clip directories exist, so every tile fails; the batch still
	// visits all of them.
	succeeded, failed := p.Run(context.Background(), []string{"1", "2", "3"}, false)
	assert.Equal(t, 0, succeeded)
	assert.Equal(t, 3, failed)

	succeeded, failed = p.Run(context.Background(), []string{"1", "2"}, true)
	assert.Equal(t, 0, succeeded)
	assert.Equal(t, 2, failed)
}
