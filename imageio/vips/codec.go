// Package vips - libvips backed image codec.
//
// libvips reads formats the pure Go codec cannot (HEIF, JPEG 2000, JPEG XL, ...), so it is
// the codec of choice for datasets delivered in those formats.
package vips

import (
	"bytes"
	"image"
	"image/png"
	"os"

	"github.com/cshum/vipsgen/vips"
	"github.com/nvr-ai/go-segmentation/imageio"
	"github.com/pkg/errors"
)

// Codec reads and writes images through libvips.
type Codec struct{}

var _ imageio.Codec = Codec{}

// Decode loads path with libvips and converts it to a Go image.
//
// Arguments:
//   - path: Any file libvips can load.
//
// Returns:
//   - image.Image: The decoded image.
//   - error: An error if the file cannot be read, loaded or converted.
func (Codec) Decode(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}

	img, err := vips.NewImageFromBuffer(data, &vips.LoadOptions{
		Access: vips.AccessSequential,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s", path)
	}
	defer img.Close()

	encoded, err := img.PngsaveBuffer(&vips.PngsaveBufferOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to export %s", path)
	}

	decoded, err := png.Decode(bytes.NewReader(encoded))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to convert %s", path)
	}
	return decoded, nil
}

// Encode writes img to path as PNG, JPEG or WebP depending on the extension.
//
// Arguments:
//   - path: The destination file.
//   - img: The image to write.
//
// Returns:
//   - error: An error for unsupported extensions or failed writes.
func (Codec) Encode(path string, img image.Image) error {
	ext := imageio.Ext(path)
	switch ext {
	case ".png", ".jpg", ".jpeg", ".webp":
	default:
		return errors.Errorf("unsupported output format %q", ext)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return errors.Wrap(err, "failed to stage image")
	}

	vimg, err := vips.NewImageFromBuffer(buf.Bytes(), &vips.LoadOptions{
		Access: vips.AccessSequential,
	})
	if err != nil {
		return errors.Wrap(err, "failed to load staged image")
	}
	defer vimg.Close()

	var out []byte
	switch ext {
	case ".jpg", ".jpeg":
		out, err = vimg.JpegsaveBuffer(&vips.JpegsaveBufferOptions{})
	case ".webp":
		out, err = vimg.WebpsaveBuffer(&vips.WebpsaveBufferOptions{})
	default:
		out, err = vimg.PngsaveBuffer(&vips.PngsaveBufferOptions{})
	}
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s", path)
	}

	if err := imageio.EnsureDir(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}
