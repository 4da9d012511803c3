package images

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestImage() image.Image {
	// Create a simple 100x100 red image.
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 0, B: 0, A: 255})
		}
	}

	return img
}

// stripes returns a width x 1 image where column x has gray level x*10.
func stripes(width int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, 1))
	for x := 0; x < width; x++ {
		v := uint8(x * 10)
		img.SetRGBA(x, 0, color.RGBA{R: v, G: v, B: v, A: 255})
	}
	return img
}

func TestResizeDimensions(t *testing.T) {
	filters := map[string]ResampleFilter{
		"nearest":  NearestNeighborFilter,
		"bilinear": BilinearFilter,
		"lanczos":  LanczosFilter,
	}

	for name, filter := range filters {
		t.Run(name, func(t *testing.T) {
			out := Resize(getTestImage(), 37, 53, filter)
			assert.Equal(t, 37, out.Bounds().Dx())
			assert.Equal(t, 53, out.Bounds().Dy())
			assert.Equal(t, image.Point{}, out.Bounds().Min)
		})
	}
}

func TestResizeZeroDimensions(t *testing.T) {
	out := Resize(getTestImage(), 0, 10, BilinearFilter)
	assert.True(t, out.Bounds().Empty())
}

func TestResizeNearestNeighborDownscaleNeverBlends(t *testing.T) {
	src := stripes(8)

	out := ResizeNearestNeighbor(src, 4, 1)

	// floor(x*8/4) picks columns 0, 2, 4, 6.
	want := []uint8{0, 20, 40, 60}
	for x, v := range want {
		assert.Equal(t, color.RGBA{R: v, G: v, B: v, A: 255}, out.RGBAAt(x, 0), "column %d", x)
	}
}

func TestResizeNearestNeighborUpscale(t *testing.T) {
	src := stripes(2)

	out := Resize(src, 5, 3, NearestNeighborFilter)

	// floor(x*2/5) maps columns 0..4 to 0,0,0,1,1.
	want := []uint8{0, 0, 0, 10, 10}
	for y := 0; y < 3; y++ {
		for x, v := range want {
			assert.Equal(t, v, out.RGBAAt(x, y).R, "pixel (%d,%d)", x, y)
		}
	}
}

func TestResizeSameSizeReturnsCopy(t *testing.T) {
	src := stripes(3)

	out := Resize(src, 3, 1, BilinearFilter)
	out.SetRGBA(0, 0, color.RGBA{R: 99, A: 255})

	assert.Equal(t, uint8(0), src.RGBAAt(0, 0).R)
}

func TestNearestSourceIndex(t *testing.T) {
	assert.Equal(t, 0, NearestSourceIndex(0, 10, 3))
	assert.Equal(t, 3, NearestSourceIndex(1, 10, 3))
	assert.Equal(t, 6, NearestSourceIndex(2, 10, 3))
	assert.Equal(t, 2, NearestSourceIndex(7, 3, 8))
}

func TestToRGBAReanchorsSubImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	src.SetRGBA(2, 2, color.RGBA{R: 7, G: 8, B: 9, A: 255})
	sub := src.SubImage(image.Rect(2, 2, 4, 4))

	out := ToRGBA(sub)

	require.Equal(t, image.Rect(0, 0, 2, 2), out.Bounds())
	assert.Equal(t, color.RGBA{R: 7, G: 8, B: 9, A: 255}, out.RGBAAt(0, 0))
}
