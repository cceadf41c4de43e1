package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
dirs:
  dir_clip: /data/clip
  dir_ard: /data/ard
  dst_dir: /data/out
  dir_coefs: coefs
harmonic:
  harmonic_frequency: 365
  harmonic_pairs: 2
  alpha: 0.05
  kernel: 5
  eps: 0.01
parallel:
  threads_number: "4"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, 365, cfg.Harmonic.Frequency)
	assert.Equal(t, 2, cfg.Harmonic.Pairs)
	assert.Equal(t, 0.05, cfg.Harmonic.Alpha)
	assert.Equal(t, 4, cfg.Workers())
	assert.Equal(t, "GTiff", cfg.Output.Format)               // default
	assert.Equal(t, []string{"VV", "VH"}, cfg.Polarizations)  // default
	assert.Equal(t, 10000, cfg.Harmonic.MaxIter)              // default
	assert.Equal(t, "/data/clip_17", cfg.ClipDir("17"))
	assert.Equal(t, "/data/ard_17", cfg.ARDDir("17"))
}

func TestLoadDefaultWorkers(t *testing.T) {
	body := validYAML[:len(validYAML)-len("parallel:\n  threads_number: \"4\"\n")]
	cfg, err := Load(writeConfig(t, body))
	require.NoError(t, err)
	assert.Equal(t, runtime.NumCPU(), cfg.Workers())
}

func TestLoadRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name    string
		mutate  string
		wantErr string
	}{
		{"even kernel", "harmonic: {harmonic_pairs: 2, alpha: 0.1, kernel: 4, eps: 0.01}", "kernel"},
		{"zero pairs", "harmonic: {harmonic_pairs: 0, alpha: 0.1, kernel: 5, eps: 0.01}", "harmonic_pairs"},
		{"negative alpha", "harmonic: {harmonic_pairs: 2, alpha: -1, kernel: 5, eps: 0.01}", "alpha"},
		{"negative eps", "harmonic: {harmonic_pairs: 2, alpha: 0.1, kernel: 5, eps: -0.5}", "eps"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `
dirs:
  dir_clip: /c
  dir_ard: /a
  dst_dir: /d
  dir_coefs: coefs
` + tt.mutate + "\n"
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadRejectsBadWorkersAndFormat(t *testing.T) {
	_, err := Load(writeConfig(t, validYAML+"output:\n  format: PNG\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "format")

	bad := validYAML[:len(validYAML)-len("\"4\"\n")] + "\"many\"\n"
	_, err = Load(writeConfig(t, bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "threads_number")
}

func TestLoadMissingDirs(t *testing.T) {
	_, err := Load(writeConfig(t, "harmonic: {harmonic_pairs: 1, alpha: 0.1, kernel: 3, eps: 0}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dirs")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
