// Package modeltest provides an in-memory Model for tests.
package modeltest

import (
	"context"
	"sync"

	"github.com/nvr-ai/go-segmentation/models/model"
	"github.com/nvr-ai/go-segmentation/models/model/preprocess"
	"github.com/pkg/errors"
)

// PredictFunc computes scores for one preprocessed batch.
type PredictFunc func(batch []float32) ([]float32, error)

// Model is a scripted model.Model.
type Model struct {
	Dims   model.Dimensions
	Config preprocess.ModelConfig
	// PredictFn defaults to OneHot(Labels) when nil.
	PredictFn PredictFunc
	// Labels is the class map returned by the default PredictFn, row-major.
	Labels []int

	mu       sync.Mutex
	calls    int
	loaded   []string
	closed   bool
	LoadErr  error
	CloseErr error
}

var _ model.Model = (*Model)(nil)

// New returns a model that always predicts labels.
//
// Arguments:
//   - dims: The model geometry.
//   - labels: The predicted class map, OutputHeight*OutputWidth entries in row-major order.
//
// Returns:
//   - *Model: The fake model.
func New(dims model.Dimensions, labels []int) *Model {
	return &Model{
		Dims:   dims,
		Config: preprocess.DefaultConfig(dims.InputWidth, dims.InputHeight),
		Labels: labels,
	}
}

// Dimensions returns the configured geometry.
func (m *Model) Dimensions() model.Dimensions {
	return m.Dims
}

// Preprocess returns the configured preprocessing.
func (m *Model) Preprocess() preprocess.ModelConfig {
	return m.Config
}

// Predict returns the scripted scores.
func (m *Model) Predict(ctx context.Context, batch []float32) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.PredictFn != nil {
		return m.PredictFn(batch)
	}
	return OneHot(m.Labels, m.Dims.NClasses), nil
}

// LoadWeights records path.
func (m *Model) LoadWeights(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.LoadErr != nil {
		return m.LoadErr
	}
	m.loaded = append(m.loaded, path)
	return nil
}

// Close marks the model closed.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return m.CloseErr
}

// Calls returns the number of Predict calls.
func (m *Model) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Loaded returns the weight paths passed to LoadWeights.
func (m *Model) Loaded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.loaded...)
}

// Closed reports whether Close was called.
func (m *Model) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// OneHot encodes labels as (pixel, class) scores with 1 at the label and 0 elsewhere.
// Labels outside [0, nClasses) produce an all-zero row.
func OneHot(labels []int, nClasses int) []float32 {
	out := make([]float32, len(labels)*nClasses)
	for i, l := range labels {
		if l >= 0 && l < nClasses {
			out[i*nClasses+l] = 1
		}
	}
	return out
}

// Fail returns a PredictFunc that always fails with err.
func Fail(err error) PredictFunc {
	return func([]float32) ([]float32, error) {
		return nil, errors.Wrap(err, "scripted failure")
	}
}
