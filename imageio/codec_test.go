package imageio

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkerboard() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 6, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			c := color.RGBA{R: uint8(x * 40), G: uint8(y * 60), B: 7, A: 255}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestStdCodecLosslessRoundTrip(t *testing.T) {
	for _, ext := range []string{".png", ".bmp", ".webp", ".tiff"} {
		t.Run(ext, func(t *testing.T) {
			src := checkerboard()
			path := filepath.Join(t.TempDir(), "nested", "out"+ext)

			require.NoError(t, Default.Encode(path, src))

			got, err := Default.Decode(path)
			require.NoError(t, err)
			require.Equal(t, src.Bounds(), got.Bounds())
			for y := 0; y < 4; y++ {
				for x := 0; x < 6; x++ {
					r, g, b, _ := got.At(x, y).RGBA()
					want := src.RGBAAt(x, y)
					assert.Equal(t, [3]uint8{want.R, want.G, want.B}, [3]uint8{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)})
				}
			}
		})
	}
}

func TestStdCodecJPEGDimensions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jpg")

	require.NoError(t, StdCodec{Quality: 80}.Encode(path, checkerboard()))

	got, err := Default.Decode(path)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Bounds().Dx())
	assert.Equal(t, 4, got.Bounds().Dy())
}

func TestStdCodecDecodeMissing(t *testing.T) {
	for _, name := range []string{"missing.png", "missing.webp", "missing.bmp"} {
		_, err := Default.Decode(filepath.Join(t.TempDir(), name))
		assert.Error(t, err, name)
	}
}

func TestExt(t *testing.T) {
	assert.Equal(t, ".png", Ext("/a/b/C.PNG"))
	assert.Equal(t, "", Ext("/a/b/c"))
}
