package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileConfigDefaults(t *testing.T) {
	fc, err := loadFileConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultFileConfig(), fc)

	cfg := fc.sampling()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 10*time.Millisecond, cfg.ProfilePeriod)
	assert.Equal(t, time.Duration(0), cfg.HistoryPeriod)
}

func TestLoadFileConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "waitsampler.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
socket = "/tmp/custom.sock"
workers = 8
history_period = 100
profile_period = 0
max_profile_entries = 500
profile_pid = false
`), 0o644))

	fc, err := loadFileConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.sock", fc.Socket)
	assert.Equal(t, 8, fc.Workers)

	cfg := fc.sampling()
	assert.Equal(t, 100*time.Millisecond, cfg.HistoryPeriod)
	assert.Equal(t, time.Duration(0), cfg.ProfilePeriod)
	assert.Equal(t, 500, cfg.MaxProfileEntries)
	assert.False(t, cfg.PerProcess)
	// Untouched keys keep their defaults.
	assert.True(t, cfg.PerQuery)
	assert.Equal(t, defaultFileConfig().HistorySize, cfg.HistorySize)
}

func TestLoadFileConfigMissingFile(t *testing.T) {
	_, err := loadFileConfig(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestFileSourceLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "waitsampler.toml")
	require.NoError(t, os.WriteFile(path, []byte("profile_period = 25\n"), 0o644))

	cfg, err := fileSource{path: path}.Load()
	require.NoError(t, err)
	assert.Equal(t, 25*time.Millisecond, cfg.ProfilePeriod)
}
