// Package onnxseg - ONNX Runtime backed segmentation model.
package onnxseg

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/nvr-ai/go-segmentation/inference"
	"github.com/nvr-ai/go-segmentation/inference/providers"
	"github.com/nvr-ai/go-segmentation/models/model"
	"github.com/nvr-ai/go-segmentation/models/model/preprocess"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ErrNotLoaded is returned by Predict before LoadWeights succeeded.
var ErrNotLoaded = errors.New("model weights are not loaded")

// NewModelArgs is the arguments for creating a new ONNX model.
type NewModelArgs struct {
	Name       model.Name             `json:"name"       yaml:"name"`
	Dimensions model.Dimensions       `json:"dimensions" yaml:"dimensions"`
	Preprocess preprocess.ModelConfig `json:"preprocess" yaml:"preprocess"`
	Provider   providers.Config       `json:"provider"   yaml:"provider"`
}

// Model runs an exported segmentation network through ONNX Runtime.
type Model struct {
	args NewModelArgs

	mu      sync.Mutex
	session *inference.Session
}

var _ model.Model = (*Model)(nil)

// NewModel creates an unloaded model.
//
// Arguments:
//   - args: The geometry, preprocessing and execution provider of the model.
//
// Returns:
//   - *Model: The model. LoadWeights must be called before Predict.
//   - error: An error if the geometry is not positive.
func NewModel(args NewModelArgs) (*Model, error) {
	d := args.Dimensions
	if d.NClasses <= 0 {
		return nil, fmt.Errorf("n_classes must be positive, got %d", d.NClasses)
	}
	if d.InputWidth <= 0 || d.InputHeight <= 0 || d.OutputWidth <= 0 || d.OutputHeight <= 0 {
		return nil, fmt.Errorf("invalid model geometry: input %dx%d, output %dx%d",
			d.InputWidth, d.InputHeight, d.OutputWidth, d.OutputHeight)
	}
	if args.Preprocess.InputWidth == 0 && args.Preprocess.InputHeight == 0 {
		args.Preprocess = preprocess.DefaultConfig(d.InputWidth, d.InputHeight)
	}
	return &Model{args: args}, nil
}

// Dimensions returns the input and output geometry.
func (m *Model) Dimensions() model.Dimensions {
	return m.args.Dimensions
}

// Preprocess returns the input preparation of the network.
func (m *Model) Preprocess() preprocess.ModelConfig {
	return m.args.Preprocess
}

// LoadWeights opens the ONNX graph at path and binds it to a new session.
//
// Only the total output size is checked against the declared geometry, so graphs whose
// output is flattened (H*W, C) or laid out (H, W, C) both load.
//
// Arguments:
//   - path: The exported graph.
//
// Returns:
//   - error: An error if the graph cannot be inspected, its sizes disagree with the
//     geometry, or the session cannot be created.
func (m *Model) LoadWeights(path string) error {
	if err := providers.InitializeEnvironment(m.args.Provider.LibraryPath); err != nil {
		return err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return errors.Wrapf(err, "failed to inspect %s", path)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return fmt.Errorf("%s declares %d inputs and %d outputs", path, len(inputs), len(outputs))
	}

	d := m.args.Dimensions
	inputShape, err := resolveShape(inputs[0].Dimensions, int64(d.InputWidth*d.InputHeight*3))
	if err != nil {
		return errors.Wrapf(err, "input %q", inputs[0].Name)
	}
	outputShape, err := resolveShape(outputs[0].Dimensions, int64(d.OutputSize()))
	if err != nil {
		return errors.Wrapf(err, "output %q", outputs[0].Name)
	}

	session, err := inference.NewSession(inference.NewSessionArgs{
		ModelPath:   path,
		InputName:   inputs[0].Name,
		OutputName:  outputs[0].Name,
		InputShape:  inputShape,
		OutputShape: outputShape,
		Provider:    m.args.Provider,
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	old := m.session
	m.session = session
	m.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			log.Printf("failed to close previous session: %v", err)
		}
	}
	return nil
}

// Predict runs one preprocessed image.
//
// Arguments:
//   - ctx: Checked for cancellation before the run.
//   - batch: The preprocessed single-element batch.
//
// Returns:
//   - []float32: OutputHeight*OutputWidth*NClasses scores.
//   - error: ErrNotLoaded, or an error if the run fails.
func (m *Model) Predict(ctx context.Context, batch []float32) ([]float32, error) {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()

	if session == nil {
		return nil, ErrNotLoaded
	}
	return session.Run(ctx, batch)
}

// Metrics returns the statistics of the current session.
func (m *Model) Metrics() inference.Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return inference.Metrics{}
	}
	return m.session.Metrics()
}

// Close releases the session.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil
	}
	err := m.session.Close()
	m.session = nil
	return err
}

// resolveShape replaces dynamic dimensions of declared so that it holds exactly want
// elements. A leading dynamic dimension is the batch and becomes 1; at most one other
// dynamic dimension is inferred.
func resolveShape(declared ort.Shape, want int64) (ort.Shape, error) {
	shape := declared.Clone()
	if len(shape) == 0 {
		return nil, fmt.Errorf("scalar tensors are not supported")
	}
	if shape[0] < 0 {
		shape[0] = 1
	}

	known := int64(1)
	dynamic := -1
	for i, dim := range shape {
		if dim >= 0 {
			known *= dim
			continue
		}
		if dynamic >= 0 {
			return nil, fmt.Errorf("shape %v has more than one dynamic dimension", declared)
		}
		dynamic = i
	}

	if dynamic >= 0 {
		if known == 0 || want%known != 0 {
			return nil, fmt.Errorf("shape %v cannot hold %d elements", declared, want)
		}
		shape[dynamic] = want / known
		return shape, nil
	}
	if known != want {
		return nil, fmt.Errorf("shape %v holds %d elements, model geometry needs %d", declared, known, want)
	}
	return shape, nil
}
