package dataset

import (
	"image"
	// the readers must handle at least 8-bit RGB/RGBA rasters
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"splatload/pkg/scene"
)

// ImageProvider resolves an image reference into a decoded pixel buffer.
// Implementations must fail with an error on corrupt input; the loader
// wraps it into an ImageDecodeError and aborts.
type ImageProvider interface {
	Decode(path string) (image.Image, error)
}

// FileImages is the default provider, decoding images from the
// filesystem with the registered stdlib codecs.
type FileImages struct{}

// Decode opens and decodes the image at path.
func (FileImages) Decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

// decodeImage runs the provider and normalizes its failure into the
// fatal decode error carrying the triggering path.
func decodeImage(provider ImageProvider, path string) (image.Image, error) {
	img, err := provider.Decode(path)
	if err != nil {
		return nil, &scene.ImageDecodeError{Path: path, Err: err}
	}
	return img, nil
}

// imageStem returns the image name without directory or extension.
func imageStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// compositeOnBackground flattens any alpha channel onto a white or black
// background and returns an opaque RGB image. Fully opaque sources come
// back with their channel values unchanged.
func compositeOnBackground(img image.Image, white bool) *image.NRGBA {
	bounds := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	var bg float64
	if white {
		bg = 1.0
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			// RGBA() is alpha-premultiplied, so rgb*a is already folded
			// into the channel values.
			r, g, b, a := img.At(x, y).RGBA()
			af := float64(a) / 65535.0
			rest := bg * (1 - af)

			i := out.PixOffset(x-bounds.Min.X, y-bounds.Min.Y)
			out.Pix[i+0] = composedByte(float64(r)/65535.0 + rest)
			out.Pix[i+1] = composedByte(float64(g)/65535.0 + rest)
			out.Pix[i+2] = composedByte(float64(b)/65535.0 + rest)
			out.Pix[i+3] = 0xFF
		}
	}
	return out
}

func composedByte(v float64) byte {
	c := math.Round(v * 255.0)
	if c < 0 {
		c = 0
	} else if c > 255 {
		c = 255
	}
	return byte(c)
}
