package images

import (
	"fmt"
	"image"

	"gorgonia.org/tensor"
)

// FromTensor converts an interleaved H×W×3 (or 1×H×W×3) tensor into an image.
//
// Channels are read in B, G, R order, the layout OpenCV uses for decoded images.
// uint8 tensors are copied as-is; float32 and float64 values are clamped to [0, 255]
// and truncated.
//
// Arguments:
//   - t: The tensor to convert.
//
// Returns:
//   - *image.RGBA: The converted image, fully opaque.
//   - error: An error if the shape or the element type is unsupported.
func FromTensor(t tensor.Tensor) (*image.RGBA, error) {
	shape := t.Shape()
	dims := []int(shape)
	if len(dims) == 4 {
		if dims[0] != 1 {
			return nil, fmt.Errorf("batch dimension must be 1, got shape %v", shape)
		}
		dims = dims[1:]
	}
	if len(dims) != 3 || dims[2] != 3 {
		return nil, fmt.Errorf("expected an H×W×3 tensor, got shape %v", shape)
	}

	height, width := dims[0], dims[1]
	if height == 0 || width == 0 {
		return nil, fmt.Errorf("tensor has an empty spatial dimension: %v", shape)
	}

	values, err := tensorBytes(t, height*width*3)
	if err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i, p := 0, 0; i < len(values); i, p = i+3, p+4 {
		img.Pix[p] = values[i+2]
		img.Pix[p+1] = values[i+1]
		img.Pix[p+2] = values[i]
		img.Pix[p+3] = 255
	}
	return img, nil
}

func tensorBytes(t tensor.Tensor, n int) ([]uint8, error) {
	var out []uint8
	switch data := t.Data().(type) {
	case []uint8:
		out = data
	case []float32:
		out = make([]uint8, len(data))
		for i, v := range data {
			out[i] = clampByte(float64(v))
		}
	case []float64:
		out = make([]uint8, len(data))
		for i, v := range data {
			out[i] = clampByte(v)
		}
	default:
		return nil, fmt.Errorf("unsupported tensor dtype %v", t.Dtype())
	}
	if len(out) < n {
		return nil, fmt.Errorf("tensor holds %d values, shape needs %d", len(out), n)
	}
	return out[:n], nil
}

func clampByte(v float64) uint8 {
	switch {
	case v != v || v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}
