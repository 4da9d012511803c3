// Package cv - OpenCV backed image codec.
package cv

import (
	"image"

	"github.com/nvr-ai/go-segmentation/imageio"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Codec reads and writes images through OpenCV.
type Codec struct{}

var _ imageio.Codec = Codec{}

// Decode reads path with IMRead in color mode.
//
// Arguments:
//   - path: The image file.
//
// Returns:
//   - image.Image: The decoded image in RGB order.
//   - error: An error if OpenCV cannot read the file.
func (Codec) Decode(path string) (image.Image, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	defer mat.Close()

	if mat.Empty() {
		return nil, errors.Errorf("failed to read image %s", path)
	}

	img, err := mat.ToImage()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to convert %s", path)
	}
	return img, nil
}

// Encode writes img to path with IMWrite, creating parent directories as needed.
//
// Arguments:
//   - path: The destination file.
//   - img: The image to write.
//
// Returns:
//   - error: An error if the image cannot be converted or written.
func (Codec) Encode(path string, img image.Image) error {
	if err := imageio.EnsureDir(path); err != nil {
		return err
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return errors.Wrap(err, "failed to convert image to Mat")
	}
	defer mat.Close()

	if !gocv.IMWrite(path, mat) {
		return errors.Errorf("failed to write image %s", path)
	}
	return nil
}
