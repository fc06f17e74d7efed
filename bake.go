package voxelise

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gekko3d/voxelise/voxelrt/rt/volume"
	"gopkg.in/yaml.v3"
)

var ErrNoDefinitionPath = errors.New("voxel definition has no path")

const rawExt = ".vxr"

// ImportSettings is the sidecar stored next to a baked image. It tells
// importers to treat the tiled image as a flipbook 3D texture.
type ImportSettings struct {
	TextureShape    string `yaml:"texture_shape"`
	FlipbookColumns int    `yaml:"flipbook_columns"`
	FlipbookRows    int    `yaml:"flipbook_rows"`
	AlphaSource     string `yaml:"alpha_source"`
	WrapMode        string `yaml:"wrap_mode"`
	Resolution      int    `yaml:"resolution"`
	Fingerprint     string `yaml:"fingerprint,omitempty"`
}

func defaultImportSettings(vol *volume.Volume) ImportSettings {
	s := ImportSettings{
		TextureShape: "Texture3D",
		AlphaSource:  "FromInput",
		WrapMode:     "Clamp",
	}
	s.setProvenance(vol)
	return s
}

func (s *ImportSettings) setProvenance(vol *volume.Volume) {
	s.FlipbookColumns = vol.MetaRes
	s.FlipbookRows = vol.MetaRes
	s.Resolution = vol.Resolution
	s.Fingerprint = ""
	if vol.SourceFingerprint != 0 {
		s.Fingerprint = strconv.FormatUint(vol.SourceFingerprint, 16)
	}
}

func (s ImportSettings) fingerprint() (uint64, error) {
	if s.Fingerprint == "" {
		return 0, nil
	}
	return strconv.ParseUint(s.Fingerprint, 16, 64)
}

// BakedTexturePath is <dir of def.Path>/<base>_baked<ext>.
func BakedTexturePath(def *VoxelDefinition, format volume.ImageFormat) (string, error) {
	if def == nil || def.Path == "" {
		return "", ErrNoDefinitionPath
	}
	dir := filepath.Dir(def.Path)
	base := strings.TrimSuffix(filepath.Base(def.Path), filepath.Ext(def.Path))
	return filepath.Join(dir, base+"_baked"+format.Ext()), nil
}

func ImportSettingsPath(texturePath string) string {
	return texturePath + ".import.yaml"
}

func rawPath(texturePath string) string {
	return strings.TrimSuffix(texturePath, filepath.Ext(texturePath)) + rawExt
}

type BakeOptions struct {
	Format volume.ImageFormat
	// WriteRaw also stores full-precision float data next to the image.
	WriteRaw bool
}

// BakeTexture voxelises def, writes the tiled image next to the definition
// and stores the result in def.VoxelTexture. The import sidecar is created on
// the first bake; later bakes only refresh its resolution and fingerprint.
// Invalid definitions are skipped with a warning and return "".
func (v *Voxeliser) BakeTexture(def *VoxelDefinition, opts BakeOptions) (string, error) {
	logger := v.log()
	if err := def.Validate(); err != nil {
		logger.Warnf("%s: not baking: %v", def.displayName(), err)
		return "", nil
	}
	if opts.Format == "" {
		opts.Format = volume.FormatPNG
	}
	path, err := BakedTexturePath(def, opts.Format)
	if err != nil {
		return "", err
	}

	vol, err := v.VoxeliseMesh(def.SourceMesh, def.Resolution, def.VoxelisingProgram)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := vol.EncodeImage(&buf, opts.Format); err != nil {
		return "", fmt.Errorf("bake %s: %w", def.displayName(), err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("bake %s: %w", def.displayName(), err)
	}
	logger.Infof("Saved to %s", path)

	if opts.WriteRaw {
		data, err := vol.MarshalRaw()
		if err != nil {
			return "", fmt.Errorf("bake %s: %w", def.displayName(), err)
		}
		rp := rawPath(path)
		if err := os.WriteFile(rp, data, 0o644); err != nil {
			return "", fmt.Errorf("bake %s: %w", def.displayName(), err)
		}
		logger.Infof("Saved raw to %s", rp)
	}

	if err := writeImportSettings(ImportSettingsPath(path), vol); err != nil {
		return "", fmt.Errorf("bake %s: %w", def.displayName(), err)
	}

	def.VoxelTexture = vol
	return path, nil
}

func writeImportSettings(path string, vol *volume.Volume) error {
	settings := defaultImportSettings(vol)
	if existing, err := ReadImportSettings(path); err == nil {
		settings = existing
		settings.setProvenance(vol)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	data, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func ReadImportSettings(path string) (ImportSettings, error) {
	var s ImportSettings
	data, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse import settings %s: %w", path, err)
	}
	return s, nil
}

// LoadBakedTexture reads a bake written by BakeTexture. Raw files carry
// their own header; images need the import sidecar for their resolution.
func LoadBakedTexture(path string) (*volume.Volume, error) {
	if strings.EqualFold(filepath.Ext(path), rawExt) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return volume.UnmarshalRaw(data)
	}

	format, err := volume.FormatForPath(path)
	if err != nil {
		return nil, err
	}
	settings, err := ReadImportSettings(ImportSettingsPath(path))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	fp, err := settings.fingerprint()
	if err != nil {
		return nil, fmt.Errorf("load %s: bad fingerprint: %w", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	vol, err := volume.DecodeImage(f, format, settings.Resolution)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	vol.SourceFingerprint = fp
	return vol, nil
}
