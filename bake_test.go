package voxelise

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/gekko3d/voxelise/voxelrt/rt/raster"
	"github.com/gekko3d/voxelise/voxelrt/rt/volume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func bakeDefinition(t *testing.T) *VoxelDefinition {
	t.Helper()
	def := NewVoxelDefinition("crate", unitBox(), raster.New(2))
	def.Path = filepath.Join(t.TempDir(), "crate.vxdef")
	def.Resolution = 4
	return def
}

func TestBakedTexturePath(t *testing.T) {
	def := &VoxelDefinition{Path: filepath.Join("assets", "props", "crate.vxdef")}
	p, err := BakedTexturePath(def, volume.FormatPNG)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("assets", "props", "crate_baked.png"), p)

	p, err = BakedTexturePath(def, volume.FormatTIFF)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("assets", "props", "crate_baked.tiff"), p)

	_, err = BakedTexturePath(&VoxelDefinition{}, volume.FormatPNG)
	assert.ErrorIs(t, err, ErrNoDefinitionPath)
}

func TestBakeTextureWritesImageAndSidecar(t *testing.T) {
	logger := &recordingLogger{}
	def := bakeDefinition(t)

	path, err := NewVoxeliser(logger).BakeTexture(def, BakeOptions{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(def.Path), "crate_baked.png"), path)
	assert.FileExists(t, path)
	assert.Contains(t, logger.info, "Saved to "+path)

	settings, err := ReadImportSettings(ImportSettingsPath(path))
	require.NoError(t, err)
	assert.Equal(t, "Texture3D", settings.TextureShape)
	assert.Equal(t, 2, settings.FlipbookColumns)
	assert.Equal(t, 2, settings.FlipbookRows)
	assert.Equal(t, "FromInput", settings.AlphaSource)
	assert.Equal(t, "Clamp", settings.WrapMode)
	assert.Equal(t, 4, settings.Resolution)
	assert.Equal(t, strconv.FormatUint(def.SourceMesh.Fingerprint(), 16), settings.Fingerprint)

	require.NotNil(t, def.VoxelTexture)
	assert.True(t, def.IsReadyToDraw())
}

func TestBakeTextureKeepsEditedSidecar(t *testing.T) {
	def := bakeDefinition(t)
	v := NewVoxeliser(nil)

	path, err := v.BakeTexture(def, BakeOptions{})
	require.NoError(t, err)

	sidecar := ImportSettingsPath(path)
	settings, err := ReadImportSettings(sidecar)
	require.NoError(t, err)
	settings.WrapMode = "Repeat"
	data, err := yaml.Marshal(settings)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(sidecar, data, 0o644))

	def.Resolution = 9
	_, err = v.BakeTexture(def, BakeOptions{})
	require.NoError(t, err)

	settings, err = ReadImportSettings(sidecar)
	require.NoError(t, err)
	assert.Equal(t, "Repeat", settings.WrapMode)
	assert.Equal(t, 9, settings.Resolution)
	assert.Equal(t, 3, settings.FlipbookColumns)
}

func TestBakeTextureInvalidDefinition(t *testing.T) {
	logger := &recordingLogger{}
	def := bakeDefinition(t)
	def.SourceMesh = nil

	path, err := NewVoxeliser(logger).BakeTexture(def, BakeOptions{})
	assert.NoError(t, err)
	assert.Empty(t, path)
	assert.Len(t, logger.warn, 1)
	assert.Nil(t, def.VoxelTexture)
}

func TestLoadBakedTextureRoundTrip(t *testing.T) {
	for _, format := range []volume.ImageFormat{volume.FormatPNG, volume.FormatTIFF} {
		t.Run(string(format), func(t *testing.T) {
			def := bakeDefinition(t)
			path, err := NewVoxeliser(nil).BakeTexture(def, BakeOptions{Format: format, WriteRaw: true})
			require.NoError(t, err)

			loaded, err := LoadBakedTexture(path)
			require.NoError(t, err)
			assert.Equal(t, def.VoxelTexture.Resolution, loaded.Resolution)
			assert.Equal(t, def.VoxelTexture.SourceFingerprint, loaded.SourceFingerprint)
			assert.Equal(t, def.VoxelTexture.Pix, loaded.Pix)

			raw, err := LoadBakedTexture(rawPath(path))
			require.NoError(t, err)
			assert.Equal(t, def.VoxelTexture.Pix, raw.Pix)
			assert.Equal(t, def.VoxelTexture.SourceFingerprint, raw.SourceFingerprint)

			reloaded := NewVoxelDefinition("crate", def.SourceMesh, def.VoxelisingProgram)
			reloaded.Resolution = 4
			reloaded.VoxelTexture = loaded
			assert.True(t, reloaded.IsReadyToDraw())
		})
	}
}

func TestLoadBakedTextureMissingSidecar(t *testing.T) {
	def := bakeDefinition(t)
	path, err := NewVoxeliser(nil).BakeTexture(def, BakeOptions{})
	require.NoError(t, err)
	require.NoError(t, os.Remove(ImportSettingsPath(path)))

	_, err = LoadBakedTexture(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadBakedTextureRejectsEditedResolution(t *testing.T) {
	def := bakeDefinition(t)
	path, err := NewVoxeliser(nil).BakeTexture(def, BakeOptions{})
	require.NoError(t, err)

	sidecar := ImportSettingsPath(path)
	settings, err := ReadImportSettings(sidecar)
	require.NoError(t, err)
	settings.Resolution = 1 << 20
	data, err := yaml.Marshal(settings)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(sidecar, data, 0o644))

	_, err = LoadBakedTexture(path)
	assert.ErrorIs(t, err, volume.ErrResolutionRange)
}
