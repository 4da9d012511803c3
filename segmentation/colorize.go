package segmentation

import (
	"image"

	"github.com/pkg/errors"
)

// ColoredSegmentationImage paints every pixel of class c in [0, nClasses) with palette[c].
// Pixels of any other class stay black.
//
// Arguments:
//   - seg: The class map.
//   - nClasses: The number of classes to paint.
//   - palette: The class colors; nil selects DefaultPalette.
//
// Returns:
//   - *image.RGBA: An opaque image the size of seg.
//   - error: ErrMissingPrecondition if the palette has fewer than nClasses colors.
func ColoredSegmentationImage(seg Map, nClasses int, palette Palette) (*image.RGBA, error) {
	palette = palette.orDefault()
	if nClasses > len(palette) {
		return nil, errors.Wrapf(ErrMissingPrecondition, "palette has %d colors for %d classes", len(palette), nClasses)
	}

	img := image.NewRGBA(image.Rect(0, 0, seg.Width, seg.Height))
	for i, c := range seg.Labels {
		p := img.Pix[i*4 : i*4+4]
		p[3] = 255
		if c < 0 || c >= nClasses {
			continue
		}
		col := palette[c]
		p[0], p[1], p[2] = col.R, col.G, col.B
	}
	return img, nil
}
