package segmentation

import (
	"image"

	"github.com/nvr-ai/go-segmentation/images"
	"github.com/pkg/errors"
)

// VisualizeConfig selects what VisualizeSegmentation renders.
type VisualizeConfig struct {
	// NClasses is the number of classes to paint. Zero uses the largest class in the map,
	// which leaves that class itself unpainted.
	NClasses int `json:"n_classes" yaml:"n_classes"`
	// Colors are the class colors; nil selects DefaultPalette.
	Colors Palette `json:"-" yaml:"-"`
	// ClassNames label the legend. Required when ShowLegends is set.
	ClassNames []string `json:"class_names" yaml:"class_names"`
	// OverlayImg blends the segmentation over the source image.
	OverlayImg bool `json:"overlay_img" yaml:"overlay_img"`
	// ShowLegends adds the legend strip on the left.
	ShowLegends bool `json:"show_legends" yaml:"show_legends"`
	// PredictionWidth and PredictionHeight resize the output when both are positive.
	PredictionWidth  int `json:"prediction_width"  yaml:"prediction_width"`
	PredictionHeight int `json:"prediction_height" yaml:"prediction_height"`
}

// VisualizeSegmentation renders a class map.
//
// Order of operations:
//  1. Colorize the map.
//  2. Nearest-neighbor resize it to the source size, if a source is given.
//  3. Resize it (nearest-neighbor) and the source (bilinear) to the prediction size, if set.
//  4. Blend with the source, if OverlayImg.
//  5. Prepend the legend, if ShowLegends.
//
// Arguments:
//   - seg: The class map.
//   - src: The source image; may be nil unless OverlayImg is set.
//   - cfg: The rendering options.
//
// Returns:
//   - *image.RGBA: The rendering. Identical inputs give identical pixels.
//   - error: ErrMissingPrecondition if an option lacks its input.
func VisualizeSegmentation(seg Map, src image.Image, cfg VisualizeConfig) (*image.RGBA, error) {
	if cfg.OverlayImg && src == nil {
		return nil, errors.Wrap(ErrMissingPrecondition, "overlay requires the input image")
	}
	if cfg.ShowLegends && cfg.ClassNames == nil {
		return nil, errors.Wrap(ErrMissingPrecondition, "legends require class names")
	}

	nClasses := cfg.NClasses
	if nClasses == 0 {
		nClasses = seg.Max()
	}
	colors := cfg.Colors.orDefault()

	segImg, err := ColoredSegmentationImage(seg, nClasses, colors)
	if err != nil {
		return nil, err
	}

	if src != nil {
		b := src.Bounds()
		segImg = images.ResizeNearestNeighbor(segImg, b.Dx(), b.Dy())
	}

	if cfg.PredictionWidth > 0 && cfg.PredictionHeight > 0 {
		segImg = images.ResizeNearestNeighbor(segImg, cfg.PredictionWidth, cfg.PredictionHeight)
		if src != nil {
			src = images.Resize(src, cfg.PredictionWidth, cfg.PredictionHeight, images.BilinearFilter)
		}
	}

	if cfg.OverlayImg {
		segImg = OverlaySegImage(src, segImg)
	}

	if cfg.ShowLegends {
		segImg = ConcatLegends(segImg, Legends(cfg.ClassNames, colors))
	}

	return segImg, nil
}
