package dataset

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splatload/pkg/scene"
)

func TestFileImagesDecode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.png")
	writePNG(t, path, 4, 2, flatColor(color.NRGBA{R: 9, G: 8, B: 7, A: 255}))

	img, err := FileImages{}.Decode(path)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())
}

func TestDecodeImageError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.png")
	writeTextFile(t, path, "not a png")

	_, err := decodeImage(FileImages{}, path)
	var decodeErr *scene.ImageDecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, path, decodeErr.Path)
}

func TestImageStem(t *testing.T) {
	assert.Equal(t, "r_12", imageStem("train/r_12.png"))
	assert.Equal(t, "shot", imageStem("shot.jpeg"))
	assert.Equal(t, "plain", imageStem("plain"))
}

func TestCompositeOnBackground(t *testing.T) {
	t.Run("opaque pixels are unchanged", func(t *testing.T) {
		src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
		src.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
		src.SetNRGBA(1, 0, color.NRGBA{R: 250, G: 0, B: 99, A: 255})

		for _, white := range []bool{false, true} {
			out := compositeOnBackground(src, white)
			assert.Equal(t, color.NRGBA{R: 10, G: 20, B: 30, A: 255}, out.NRGBAAt(0, 0))
			assert.Equal(t, color.NRGBA{R: 250, G: 0, B: 99, A: 255}, out.NRGBAAt(1, 0))
		}
	})

	t.Run("transparent pixel becomes the background", func(t *testing.T) {
		src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
		src.SetNRGBA(0, 0, color.NRGBA{R: 77, G: 77, B: 77, A: 0})

		white := compositeOnBackground(src, true)
		assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, white.NRGBAAt(0, 0))

		black := compositeOnBackground(src, false)
		assert.Equal(t, color.NRGBA{R: 0, G: 0, B: 0, A: 255}, black.NRGBAAt(0, 0))
	})

	t.Run("half alpha blends", func(t *testing.T) {
		src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
		src.SetNRGBA(0, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 128})

		out := compositeOnBackground(src, false)
		got := out.NRGBAAt(0, 0)
		assert.InDelta(t, 200.0*128/255, float64(got.R), 1.5)
		assert.InDelta(t, 100.0*128/255, float64(got.G), 1.5)
		assert.InDelta(t, 50.0*128/255, float64(got.B), 1.5)
		assert.Equal(t, uint8(255), got.A)

		onWhite := compositeOnBackground(src, true)
		gotW := onWhite.NRGBAAt(0, 0)
		assert.InDelta(t, 200.0*128/255+255.0*127/255, float64(gotW.R), 1.5)
	})

	t.Run("output is always opaque", func(t *testing.T) {
		src := image.NewNRGBA(image.Rect(0, 0, 3, 3))
		out := compositeOnBackground(src, true)
		for y := 0; y < 3; y++ {
			for x := 0; x < 3; x++ {
				assert.Equal(t, uint8(255), out.NRGBAAt(x, y).A)
			}
		}
	})
}
