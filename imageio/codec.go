// Package imageio - Reading and writing image files.
package imageio

import (
	"bufio"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"
	"github.com/up-zero/gotool/imageutil"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Codec reads and writes image files.
type Codec interface {
	// Decode reads the image stored at path.
	Decode(path string) (image.Image, error)
	// Encode writes img to path, choosing the format from the extension.
	Encode(path string, img image.Image) error
}

// StdCodec is the pure Go codec.
type StdCodec struct {
	// Quality is the JPEG quality in [1, 100].
	Quality int `json:"quality" yaml:"quality"`
}

// Default is the codec used when none is configured.
var Default Codec = StdCodec{Quality: 95}

// Decode reads the image stored at path.
//
// Arguments:
//   - path: The image file. WebP, BMP and TIFF are decoded by extension; everything else is
//     sniffed.
//
// Returns:
//   - image.Image: The decoded image.
//   - error: An error if the file cannot be opened or decoded.
func (c StdCodec) Decode(path string) (image.Image, error) {
	switch Ext(path) {
	case ".webp":
		return decodeWith(path, webp.Decode)
	case ".bmp":
		return decodeWith(path, bmp.Decode)
	case ".tif", ".tiff":
		return decodeWith(path, tiff.Decode)
	}

	img, err := imageutil.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", path)
	}
	return img, nil
}

// Encode writes img to path, creating parent directories as needed.
//
// Arguments:
//   - path: The destination file.
//   - img: The image to write.
//
// Returns:
//   - error: An error if the directory or the file cannot be written.
func (c StdCodec) Encode(path string, img image.Image) error {
	if err := EnsureDir(path); err != nil {
		return err
	}

	var err error
	switch Ext(path) {
	case ".webp":
		err = encodeWith(path, func(f *os.File) error {
			return webp.Encode(f, img, &webp.Options{Lossless: true})
		})
	case ".bmp":
		err = encodeWith(path, func(f *os.File) error {
			return bmp.Encode(f, img)
		})
	case ".tif", ".tiff":
		err = encodeWith(path, func(f *os.File) error {
			return tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate})
		})
	default:
		quality := c.Quality
		if quality <= 0 || quality > 100 {
			quality = 95
		}
		err = imageutil.Save(path, img, quality)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s", path)
	}
	return nil
}

// Ext returns the lower-cased extension of path.
func Ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// EnsureDir creates the parent directory of path.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", dir)
	}
	return nil
}

func decodeWith(path string, decode func(io.Reader) (image.Image, error)) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	img, err := decode(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", path)
	}
	return img, nil
}

func encodeWith(path string, encode func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
