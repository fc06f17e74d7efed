package volume

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"
)

type ImageFormat string

const (
	FormatPNG  ImageFormat = "png"
	FormatTIFF ImageFormat = "tiff"
)

// FormatForPath picks the format from a file extension.
func FormatForPath(path string) (ImageFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return FormatPNG, nil
	case ".tif", ".tiff":
		return FormatTIFF, nil
	}
	return "", fmt.Errorf("unsupported volume image extension %q", filepath.Ext(path))
}

// Ext is the file extension written for the format.
func (f ImageFormat) Ext() string {
	if f == FormatTIFF {
		return ".tiff"
	}
	return ".png"
}

func quantize(f float32) uint8 {
	if !(f > 0) {
		return 0
	}
	if f >= 1 {
		return 255
	}
	return uint8(math.Round(float64(f) * 255))
}

// ToImage converts the tiled volume to an 8-bit straight-alpha image.
// Channels are clamped to [0,1].
func (v *Volume) ToImage() *image.NRGBA {
	side := v.Side()
	img := image.NewNRGBA(image.Rect(0, 0, side, side))
	for i := 0; i < side*side*4; i++ {
		img.Pix[i] = quantize(v.Pix[i])
	}
	return img
}

// FromImage rebuilds a volume of the given resolution from a tiled image.
func FromImage(img image.Image, resolution int) (*Volume, error) {
	if err := CheckResolution(resolution); err != nil {
		return nil, fmt.Errorf("volume image: %w", err)
	}
	side := NewTiling(resolution).Side()
	b := img.Bounds()
	if b.Dx() != side || b.Dy() != side {
		return nil, fmt.Errorf("volume image is %dx%d, resolution %d needs %dx%d",
			b.Dx(), b.Dy(), resolution, side, side)
	}
	v := New(resolution)
	for py := 0; py < side; py++ {
		for px := 0; px < side; px++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+px, b.Min.Y+py)).(color.NRGBA)
			o := v.pixOffset(px, py)
			v.Pix[o+0] = float32(c.R) / 255
			v.Pix[o+1] = float32(c.G) / 255
			v.Pix[o+2] = float32(c.B) / 255
			v.Pix[o+3] = float32(c.A) / 255
		}
	}
	return v, nil
}

// EncodeImage writes the tiled image losslessly in the given format.
func (v *Volume) EncodeImage(w io.Writer, format ImageFormat) error {
	img := v.ToImage()
	switch format {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	}
	return fmt.Errorf("unsupported volume image format %q", format)
}

// DecodeImage reads a tiled image written by EncodeImage.
func DecodeImage(r io.Reader, format ImageFormat, resolution int) (*Volume, error) {
	var (
		img image.Image
		err error
	)
	switch format {
	case FormatPNG:
		img, err = png.Decode(r)
	case FormatTIFF:
		img, err = tiff.Decode(r)
	default:
		return nil, fmt.Errorf("unsupported volume image format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s volume: %w", format, err)
	}
	return FromImage(img, resolution)
}
