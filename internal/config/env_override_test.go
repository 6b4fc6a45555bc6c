package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOverrides(t *testing.T) {
	t.Run("AXIS_PROGRAMS_DIR and AXIS_DB", func(t *testing.T) {
		t.Setenv("AXIS_PROGRAMS_DIR", "/etc/axis/programs")
		t.Setenv("AXIS_DB", "/tmp/axis.db")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/etc/axis/programs", cfg.Programs.Dir)
		assert.Equal(t, "/tmp/axis.db", cfg.Store.Path)
	})

	t.Run("AXIS_MAX_SWEEPS", func(t *testing.T) {
		t.Setenv("AXIS_MAX_SWEEPS", "32")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, 32, cfg.Engine.MaxSweeps)
	})

	t.Run("unparsable AXIS_MAX_SWEEPS fails validation", func(t *testing.T) {
		t.Setenv("AXIS_MAX_SWEEPS", "lots")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Error(t, cfg.Validate())
	})

	t.Run("log settings are lowercased", func(t *testing.T) {
		t.Setenv("AXIS_LOG_LEVEL", "DEBUG")
		t.Setenv("AXIS_LOG_FORMAT", "JSON")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, "json", cfg.Logging.Format)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("empty variables leave values alone", func(t *testing.T) {
		t.Setenv("AXIS_DB", "")

		cfg := &Config{Store: StoreConfig{Path: "keep.db"}}
		cfg.applyEnvOverrides()

		assert.Equal(t, "keep.db", cfg.Store.Path)
	})
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "axis.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  path: file.db\n"), 0644))
	t.Setenv("AXIS_DB", "env.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env.db", cfg.Store.Path)
}

func TestLoad_EnvOverridesWithoutFile(t *testing.T) {
	t.Setenv("AXIS_LOG_LEVEL", "warn")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
}
