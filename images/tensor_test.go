package images

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestFromTensorUint8BGR(t *testing.T) {
	backing := []uint8{
		1, 2, 3, 4, 5, 6,
		7, 8, 9, 10, 11, 12,
	}
	src := tensor.New(tensor.WithShape(2, 2, 3), tensor.WithBacking(backing))

	img, err := FromTensor(src)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 2, 2), img.Bounds())
	assert.Equal(t, color.RGBA{R: 3, G: 2, B: 1, A: 255}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{R: 12, G: 11, B: 10, A: 255}, img.RGBAAt(1, 1))
}

func TestFromTensorFloat32Batch(t *testing.T) {
	backing := []float32{-5, 128.9, 300}
	src := tensor.New(tensor.WithShape(1, 1, 1, 3), tensor.WithBacking(backing))

	img, err := FromTensor(src)
	require.NoError(t, err)

	assert.Equal(t, color.RGBA{R: 255, G: 128, B: 0, A: 255}, img.RGBAAt(0, 0))
}

func TestFromTensorRejectsShapes(t *testing.T) {
	tests := []struct {
		name  string
		shape []int
	}{
		{name: "rank 2", shape: []int{2, 6}},
		{name: "four channels", shape: []int{1, 3, 4}},
		{name: "batch of two", shape: []int{2, 1, 1, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size := 1
			for _, d := range tt.shape {
				size *= d
			}
			src := tensor.New(tensor.WithShape(tt.shape...), tensor.WithBacking(make([]uint8, size)))

			_, err := FromTensor(src)
			assert.Error(t, err)
		})
	}
}

func TestFromTensorRejectsDtype(t *testing.T) {
	src := tensor.New(tensor.WithShape(1, 1, 3), tensor.WithBacking([]int32{1, 2, 3}))

	_, err := FromTensor(src)
	assert.Error(t, err)
}
