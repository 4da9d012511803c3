package segmentation

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Legend geometry.
const (
	LegendWidth     = 125
	LegendRowHeight = 25
	legendBaseline  = 17
	legendSwatchX0  = 110
	legendSwatchX1  = 135
)

// Legends draws a white strip listing each class name next to a swatch of its color.
//
// Row i holds the name in black with its baseline at 25*i+17 and a swatch filling
// x in [110, 135] and y in [25*i, 25*i+25], clipped to the strip. Names without a palette
// entry are not drawn.
//
// Arguments:
//   - classNames: The names, in class index order.
//   - palette: The class colors; nil selects DefaultPalette.
//
// Returns:
//   - *image.RGBA: A 125 px wide image, 25*len(classNames)+25 px high.
func Legends(classNames []string, palette Palette) *image.RGBA {
	palette = palette.orDefault()

	legend := image.NewRGBA(image.Rect(0, 0, LegendWidth, len(classNames)*LegendRowHeight+LegendRowHeight))
	draw.Draw(legend, legend.Bounds(), image.White, image.Point{}, draw.Src)

	n := min(len(classNames), len(palette))
	drawer := font.Drawer{
		Dst:  legend,
		Src:  image.Black,
		Face: basicfont.Face7x13,
	}
	for i := 0; i < n; i++ {
		top := i * LegendRowHeight

		drawer.Dot = fixed.P(0, top+legendBaseline)
		drawer.DrawString(classNames[i])

		swatch := image.Rect(legendSwatchX0, top, legendSwatchX1+1, top+LegendRowHeight+1).Intersect(legend.Bounds())
		c := palette[i]
		draw.Draw(legend, swatch, image.NewUniform(color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}), image.Point{}, draw.Src)
	}
	return legend
}
