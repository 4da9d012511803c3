package segmentation

import (
	"image/color"
	"math/rand"
	"sync"
)

// DefaultPaletteSize is the number of colors in DefaultPalette.
const DefaultPaletteSize = 5000

// Palette holds one color per class index.
type Palette []color.RGBA

var (
	defaultPalette     Palette
	defaultPaletteOnce sync.Once
)

// DefaultPalette returns the fixed palette used when no colors are configured.
//
// The colors are drawn from a zero-seeded generator, so they are identical across runs
// and processes. The returned slice is shared and must not be modified.
func DefaultPalette() Palette {
	defaultPaletteOnce.Do(func() {
		rng := rand.New(rand.NewSource(0))
		defaultPalette = make(Palette, DefaultPaletteSize)
		for i := range defaultPalette {
			defaultPalette[i] = color.RGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			}
		}
	})
	return defaultPalette
}

// NewPalette builds a palette from RGB triples.
func NewPalette(rgb [][3]uint8) Palette {
	p := make(Palette, len(rgb))
	for i, c := range rgb {
		p[i] = color.RGBA{R: c[0], G: c[1], B: c[2], A: 255}
	}
	return p
}

func (p Palette) orDefault() Palette {
	if p == nil {
		return DefaultPalette()
	}
	return p
}
