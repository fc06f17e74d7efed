package voxelise

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gekko3d/voxelise/voxelrt/rt/volume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 16, cfg.Resolution)
	assert.Equal(t, BackendSoftware, cfg.Backend)
	assert.Equal(t, "png", cfg.Format)
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxelise.yaml")
	require.NoError(t, os.WriteFile(path, []byte("resolution: 64\nformat: tiff\nwindow:\n  width: 640\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Resolution)
	assert.Equal(t, "tiff", string(cfg.ImageFormat()))
	assert.Equal(t, BackendSoftware, cfg.Backend)
	assert.Equal(t, 640, cfg.Window.Width)
	assert.Equal(t, 720, cfg.Window.Height)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero resolution", func(c *Config) { c.Resolution = 0 }},
		{"resolution too large to reload", func(c *Config) { c.Resolution = volume.MaxResolution + 1 }},
		{"unknown backend", func(c *Config) { c.Backend = "vulkan" }},
		{"unknown format", func(c *Config) { c.Format = "jpeg" }},
		{"negative workers", func(c *Config) { c.Workers = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: dx12\n"), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}
