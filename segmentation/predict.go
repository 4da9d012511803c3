package segmentation

import (
	"context"
	"fmt"
	"image"

	"github.com/nvr-ai/go-segmentation/checkpoint"
	"github.com/nvr-ai/go-segmentation/imageio"
	"github.com/nvr-ai/go-segmentation/images"
	"github.com/nvr-ai/go-segmentation/models/model"
	"github.com/nvr-ai/go-segmentation/models/model/preprocess"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

type inputKind int

const (
	inputNone inputKind = iota
	inputImage
	inputPath
	inputTensor
)

// Input is the image a prediction runs on.
type Input struct {
	kind   inputKind
	img    image.Image
	path   string
	tensor tensor.Tensor
}

// FromImage predicts on a decoded image.
func FromImage(img image.Image) Input {
	return Input{kind: inputImage, img: img}
}

// FromPath predicts on the image file at path.
func FromPath(path string) Input {
	return Input{kind: inputPath, path: path}
}

// FromTensor predicts on an H×W×3 or 1×H×W×3 tensor with channels in B, G, R order.
func FromTensor(t tensor.Tensor) Input {
	return Input{kind: inputTensor, tensor: t}
}

// resolve returns the input as an image.
func (in Input) resolve(codec imageio.Codec) (image.Image, error) {
	switch in.kind {
	case inputImage:
		if in.img == nil || in.img.Bounds().Empty() {
			return nil, errors.Wrap(ErrInvalidInput, "image is empty")
		}
		return in.img, nil

	case inputPath:
		if in.path == "" {
			return nil, errors.Wrap(ErrInvalidInput, "path is empty")
		}
		img, err := codec.Decode(in.path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		if img.Bounds().Empty() {
			return nil, errors.Wrapf(ErrInvalidInput, "%s is empty", in.path)
		}
		return img, nil

	case inputTensor:
		if in.tensor == nil {
			return nil, errors.Wrap(ErrInvalidInput, "tensor is nil")
		}
		switch rank := in.tensor.Shape().Dims(); rank {
		case 1, 3, 4:
		default:
			return nil, errors.Wrapf(ErrInvalidInputShape, "image should be h,w,3, got rank %d", rank)
		}
		img, err := images.FromTensor(in.tensor)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInputShape, err)
		}
		return img, nil
	}

	return nil, errors.Wrap(ErrInvalidInput, "input should be an image, a tensor or a file name")
}

// OutputFiles names the files AllVisualisations writes. Empty fields are not written.
type OutputFiles struct {
	OverlayAndLegend string `json:"overlay_and_legend" yaml:"overlay_and_legend"`
	Overlay          string `json:"overlay"            yaml:"overlay"`
	Legend           string `json:"legend"             yaml:"legend"`
	Plain            string `json:"plain"              yaml:"plain"`
}

// Visualizations are the four renderings produced by AllVisualisations.
type Visualizations struct {
	OverlayAndLegend *image.RGBA
	Overlay          *image.RGBA
	Legend           *image.RGBA
	Plain            *image.RGBA
}

// PredictOptions configures PredictSegmentation.
type PredictOptions struct {
	// Model is used when set; otherwise the model is loaded from CheckpointsPath and closed
	// before returning.
	Model             model.Model
	CheckpointsPath   string
	CheckpointOptions []checkpoint.Option

	// OutFile receives the single rendering when AllVisualisations is not set.
	OutFile     string
	OverlayImg  bool
	ShowLegends bool
	ClassNames  []string
	Colors      Palette

	PredictionWidth  int
	PredictionHeight int

	AllVisualisations bool
	OutputFiles       OutputFiles

	// Codec reads path inputs and writes renderings; nil selects imageio.Default.
	Codec imageio.Codec
}

// Prediction is the result of PredictSegmentation.
type Prediction struct {
	// Map is the predicted class map at the model output resolution.
	Map Map
	// Image is the single rendering; nil when AllVisualisations is set.
	Image *image.RGBA
	// Visualizations is set when AllVisualisations is set.
	Visualizations *Visualizations
}

// PredictSegmentation runs the model on one input and renders the result.
//
// Arguments:
//   - ctx: Passed to the model.
//   - input: The image to segment.
//   - opts: The model source, rendering and output options.
//
// Returns:
//   - *Prediction: The class map and its renderings.
//   - error: ErrMissingModel, ErrInvalidInput, ErrInvalidInputShape, ErrMissingPrecondition,
//     or a model or file error.
func PredictSegmentation(ctx context.Context, input Input, opts PredictOptions) (*Prediction, error) {
	if opts.Model == nil && opts.CheckpointsPath == "" {
		return nil, ErrMissingModel
	}
	if opts.Codec == nil {
		opts.Codec = imageio.Default
	}
	if opts.AllVisualisations && opts.ClassNames == nil {
		return nil, errors.Wrap(ErrMissingPrecondition, "legends require class names")
	}

	img, err := input.resolve(opts.Codec)
	if err != nil {
		return nil, err
	}

	m := opts.Model
	if m == nil {
		m, err = checkpoint.ModelFromCheckpointPath(opts.CheckpointsPath, opts.CheckpointOptions...)
		if err != nil {
			return nil, err
		}
		defer m.Close()
	}

	seg, err := predictMap(ctx, m, img)
	if err != nil {
		return nil, err
	}

	cfg := VisualizeConfig{
		NClasses:         m.Dimensions().NClasses,
		Colors:           opts.Colors,
		ClassNames:       opts.ClassNames,
		PredictionWidth:  opts.PredictionWidth,
		PredictionHeight: opts.PredictionHeight,
	}
	result := &Prediction{Map: seg}

	if opts.AllVisualisations {
		vis, err := visualizeAll(seg, img, cfg)
		if err != nil {
			return nil, err
		}
		result.Visualizations = vis

		outputs := []struct {
			path string
			img  *image.RGBA
		}{
			{opts.OutputFiles.OverlayAndLegend, vis.OverlayAndLegend},
			{opts.OutputFiles.Overlay, vis.Overlay},
			{opts.OutputFiles.Legend, vis.Legend},
			{opts.OutputFiles.Plain, vis.Plain},
		}
		for _, out := range outputs {
			if out.path == "" {
				continue
			}
			if err := opts.Codec.Encode(out.path, out.img); err != nil {
				return nil, err
			}
		}
		return result, nil
	}

	cfg.OverlayImg = opts.OverlayImg
	cfg.ShowLegends = opts.ShowLegends
	result.Image, err = VisualizeSegmentation(seg, img, cfg)
	if err != nil {
		return nil, err
	}
	if opts.OutFile != "" {
		if err := opts.Codec.Encode(opts.OutFile, result.Image); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func visualizeAll(seg Map, img image.Image, cfg VisualizeConfig) (*Visualizations, error) {
	var vis Visualizations
	variants := []struct {
		dst     **image.RGBA
		overlay bool
		legend  bool
	}{
		{&vis.OverlayAndLegend, true, true},
		{&vis.Overlay, true, false},
		{&vis.Legend, false, true},
		{&vis.Plain, false, false},
	}
	for _, v := range variants {
		cfg.OverlayImg = v.overlay
		cfg.ShowLegends = v.legend
		out, err := VisualizeSegmentation(seg, img, cfg)
		if err != nil {
			return nil, err
		}
		*v.dst = out
	}
	return &vis, nil
}

// predictMap preprocesses img for m, runs it and reduces the scores to a class map.
func predictMap(ctx context.Context, m model.Model, img image.Image) (Map, error) {
	result, err := preprocess.NewPreprocessor(m.Preprocess()).Preprocess(img)
	if err != nil {
		return Map{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	scores, err := m.Predict(ctx, result.Data)
	if err != nil {
		return Map{}, errors.Wrap(err, "prediction failed")
	}

	return MapFromScores(scores, m.Dimensions())
}
