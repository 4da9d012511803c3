package segmentation

import (
	"image"
	"image/draw"

	"github.com/nvr-ai/go-segmentation/images"
)

// OverlaySegImage blends seg over src with equal weight.
//
// seg is nearest-neighbor resized to the size of src first. Each channel of the result is
// (a+b)/2 rounded down.
//
// Arguments:
//   - src: The source image.
//   - seg: The colorized segmentation.
//
// Returns:
//   - *image.RGBA: An opaque image the size of src.
func OverlaySegImage(src image.Image, seg image.Image) *image.RGBA {
	base := images.ToRGBA(src)
	w, h := base.Bounds().Dx(), base.Bounds().Dy()
	top := images.ResizeNearestNeighbor(seg, w, h)

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(out.Pix); i += 4 {
		out.Pix[i] = uint8((uint16(base.Pix[i]) + uint16(top.Pix[i])) / 2)
		out.Pix[i+1] = uint8((uint16(base.Pix[i+1]) + uint16(top.Pix[i+1])) / 2)
		out.Pix[i+2] = uint8((uint16(base.Pix[i+2]) + uint16(top.Pix[i+2])) / 2)
		out.Pix[i+3] = 255
	}
	return out
}

// ConcatLegends places legend on the left of seg.
//
// The canvas is as high as the taller of the two and as wide as both together. Uncovered
// pixels take the first channel value of the legend's top-left pixel in every channel.
//
// Arguments:
//   - seg: The segmentation image.
//   - legend: The legend strip.
//
// Returns:
//   - *image.RGBA: The combined image.
func ConcatLegends(seg image.Image, legend image.Image) *image.RGBA {
	sb, lb := seg.Bounds(), legend.Bounds()
	h := max(sb.Dy(), lb.Dy())
	w := sb.Dx() + lb.Dx()

	var fill uint8
	if !lb.Empty() {
		r, _, _, _ := legend.At(lb.Min.X, lb.Min.Y).RGBA()
		fill = uint8(r >> 8)
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(out.Pix); i += 4 {
		out.Pix[i], out.Pix[i+1], out.Pix[i+2], out.Pix[i+3] = fill, fill, fill, 255
	}

	draw.Draw(out, image.Rect(0, 0, lb.Dx(), lb.Dy()), legend, lb.Min, draw.Src)
	draw.Draw(out, image.Rect(lb.Dx(), 0, w, sb.Dy()), seg, sb.Min, draw.Src)
	return out
}
