// Package images - Image resizing and conversion helpers for segmentation pipelines.
package images

import (
	"image"
	"image/draw"

	"github.com/nfnt/resize"
)

// ResampleFilter defines the resampling algorithm used for image scaling.
type ResampleFilter int

const (
	// NearestNeighborFilter copies the closest source pixel. It never mixes values, which
	// makes it the only filter safe for label maps and colorized predictions.
	NearestNeighborFilter ResampleFilter = iota
	// BilinearFilter uses bilinear interpolation.
	BilinearFilter
	// LanczosFilter uses Lanczos resampling with a=3.
	LanczosFilter
)

var interpolations = map[ResampleFilter]resize.InterpolationFunction{
	BilinearFilter: resize.Bilinear,
	LanczosFilter:  resize.Lanczos3,
}

// Resize scales img to width x height with the given filter.
//
// Arguments:
//   - img: The source image.
//   - width: The target width in pixels.
//   - height: The target height in pixels.
//   - filter: The resampling filter to use for interpolation.
//
// Returns:
//   - *image.RGBA: A new image anchored at the origin. The source is never modified.
//
// @example
// resized := Resize(src, 473, 473, BilinearFilter)
func Resize(img image.Image, width, height int, filter ResampleFilter) *image.RGBA {
	if width <= 0 || height <= 0 {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}

	bounds := img.Bounds()
	if bounds.Dx() == width && bounds.Dy() == height {
		return ToRGBA(img)
	}

	interp, ok := interpolations[filter]
	if !ok {
		return ResizeNearestNeighbor(img, width, height)
	}
	return ToRGBA(resize.Resize(uint(width), uint(height), img, interp))
}

// ResizeNearestNeighbor performs nearest-neighbor resizing.
//
// Destination pixel x samples source pixel floor(x * srcWidth / width), the same mapping
// OpenCV uses for INTER_NEAREST.
//
// Arguments:
//   - src: The source image.
//   - width: Target width.
//   - height: Target height.
//
// Returns:
//   - *image.RGBA: The resized image.
func ResizeNearestNeighbor(src image.Image, width, height int) *image.RGBA {
	bounds := src.Bounds()
	srcWidth := bounds.Dx()
	srcHeight := bounds.Dy()

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	if srcWidth == 0 || srcHeight == 0 {
		return dst
	}

	xs := make([]int, width)
	for x := range xs {
		xs[x] = NearestSourceIndex(x, srcWidth, width)
	}

	rgba := ToRGBA(src)
	Parallel(height, func(partStart, partEnd int) {
		for y := partStart; y < partEnd; y++ {
			srcY := NearestSourceIndex(y, srcHeight, height)
			srcRow := rgba.Pix[srcY*rgba.Stride:]
			dstRow := dst.Pix[y*dst.Stride:]
			for x, srcX := range xs {
				copy(dstRow[x*4:x*4+4], srcRow[srcX*4:srcX*4+4])
			}
		}
	})

	return dst
}

// NearestSourceIndex maps a destination coordinate to its nearest-neighbor source coordinate.
//
// Arguments:
//   - dst: The destination coordinate.
//   - srcLen: The source length along the axis.
//   - dstLen: The destination length along the axis.
//
// Returns:
//   - int: The source coordinate, clamped to [0, srcLen).
func NearestSourceIndex(dst, srcLen, dstLen int) int {
	i := dst * srcLen / dstLen
	if i >= srcLen {
		i = srcLen - 1
	}
	return i
}

// ToRGBA returns img as an *image.RGBA anchored at the origin.
//
// An *image.RGBA already anchored at the origin is copied, so callers may always mutate the
// result.
func ToRGBA(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return dst
}
