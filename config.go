package voxelise

import (
	"fmt"
	"os"
	"runtime"

	"github.com/gekko3d/voxelise/voxelrt/rt/volume"
	"gopkg.in/yaml.v3"
)

const (
	BackendSoftware = "software"
	BackendWebGPU   = "webgpu"
)

type WindowConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Config drives the bake and view tools.
type Config struct {
	Resolution int    `yaml:"resolution"`
	Backend    string `yaml:"backend"`
	// Workers bounds software rasterizer parallelism; 0 means GOMAXPROCS.
	Workers  int          `yaml:"workers"`
	Format   string       `yaml:"format"`
	WriteRaw bool         `yaml:"write_raw"`
	Debug    bool         `yaml:"debug"`
	Window   WindowConfig `yaml:"window"`
}

func DefaultConfig() Config {
	return Config{
		Resolution: 16,
		Backend:    BackendSoftware,
		Workers:    runtime.GOMAXPROCS(0),
		Format:     string(volume.FormatPNG),
		Window:     WindowConfig{Width: 1280, Height: 720},
	}
}

// LoadConfig overlays a YAML file on the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if err := volume.CheckResolution(c.Resolution); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Backend {
	case BackendSoftware, BackendWebGPU:
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	switch volume.ImageFormat(c.Format) {
	case volume.FormatPNG, volume.FormatTIFF:
	default:
		return fmt.Errorf("config: unknown format %q", c.Format)
	}
	if c.Workers < 0 {
		return fmt.Errorf("config: workers %d: must not be negative", c.Workers)
	}
	return nil
}

func (c Config) ImageFormat() volume.ImageFormat {
	return volume.ImageFormat(c.Format)
}
