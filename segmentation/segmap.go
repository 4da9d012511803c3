// Package segmentation - Prediction, visualization and evaluation of semantic segmentation
// models.
package segmentation

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-segmentation/images"
	"github.com/nvr-ai/go-segmentation/models/model"
	"gorgonia.org/tensor"
)

// Map is a grid of class indices stored row-major.
type Map struct {
	Width  int   `json:"width"  yaml:"width"`
	Height int   `json:"height" yaml:"height"`
	Labels []int `json:"labels" yaml:"labels"`
}

// NewMap returns an all-zero width x height map.
func NewMap(width, height int) Map {
	return Map{Width: width, Height: height, Labels: make([]int, width*height)}
}

// At returns the class at (x, y).
func (m Map) At(x, y int) int {
	return m.Labels[y*m.Width+x]
}

// Set stores class at (x, y).
func (m Map) Set(x, y, class int) {
	m.Labels[y*m.Width+x] = class
}

// Max returns the largest class index, or 0 for an empty map.
func (m Map) Max() int {
	if len(m.Labels) == 0 {
		return 0
	}
	maxClass := m.Labels[0]
	for _, c := range m.Labels[1:] {
		if c > maxClass {
			maxClass = c
		}
	}
	return maxClass
}

// Resize returns a nearest-neighbor resized copy.
func (m Map) Resize(width, height int) Map {
	out := NewMap(width, height)
	if m.Width == 0 || m.Height == 0 {
		return out
	}
	for y := 0; y < height; y++ {
		sy := images.NearestSourceIndex(y, m.Height, height)
		for x := 0; x < width; x++ {
			out.Labels[y*width+x] = m.Labels[sy*m.Width+images.NearestSourceIndex(x, m.Width, width)]
		}
	}
	return out
}

// MapFromScores reduces raw model scores to a class map by taking the arg-max over the
// class axis. Ties resolve to the lowest class index.
//
// Arguments:
//   - scores: OutputHeight*OutputWidth*NClasses values laid out as (row, column, class).
//   - dims: The model geometry.
//
// Returns:
//   - Map: An OutputWidth x OutputHeight class map.
//   - error: An error if the score count is wrong or a score is not finite.
func MapFromScores(scores []float32, dims model.Dimensions) (Map, error) {
	if want := dims.OutputSize(); len(scores) != want || want == 0 {
		return Map{}, fmt.Errorf("model returned %d scores, geometry %dx%dx%d needs %d",
			len(scores), dims.OutputHeight, dims.OutputWidth, dims.NClasses, want)
	}
	for i, v := range scores {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			return Map{}, fmt.Errorf("score %d is not finite: %v", i, v)
		}
	}

	t := tensor.New(
		tensor.WithShape(dims.OutputHeight, dims.OutputWidth, dims.NClasses),
		tensor.WithBacking(scores),
	)
	am, err := t.Argmax(2)
	if err != nil {
		return Map{}, fmt.Errorf("failed to reduce scores: %w", err)
	}

	var labels []int
	switch data := am.Data().(type) {
	case []int:
		labels = append([]int(nil), data...)
	case int:
		// Single-pixel outputs reduce to a scalar.
		labels = []int{data}
	default:
		return Map{}, fmt.Errorf("unexpected arg-max data type %T", data)
	}
	if len(labels) != dims.OutputWidth*dims.OutputHeight {
		return Map{}, fmt.Errorf("arg-max produced %d labels", len(labels))
	}
	return Map{Width: dims.OutputWidth, Height: dims.OutputHeight, Labels: labels}, nil
}
