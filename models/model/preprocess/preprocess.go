package preprocess

import (
	"fmt"
	"image"
	"sync"

	"github.com/nvr-ai/go-segmentation/images"
	"github.com/pkg/errors"
)

// Normalization defines how pixel values are normalized.
type Normalization string

const (
	// NormalizeSubMean subtracts the per-channel ImageNet means and emits channels in RGB order.
	NormalizeSubMean Normalization = "sub_mean"
	// NormalizeSubAndDivide scales pixel values to [-1, 1] and keeps BGR order.
	NormalizeSubAndDivide Normalization = "sub_and_divide"
	// NormalizeDivide scales pixel values to [0, 1] and keeps BGR order.
	NormalizeDivide Normalization = "divide"
)

// ChannelOrder defines the ordering of tensor dimensions.
type ChannelOrder string

const (
	// ChannelOrderHWC is Height-Width-Channel ordering.
	ChannelOrderHWC ChannelOrder = "channels_last"
	// ChannelOrderCHW is Channel-Height-Width ordering.
	ChannelOrderCHW ChannelOrder = "channels_first"
)

// Per-channel means subtracted by NormalizeSubMean, in B, G, R order.
var bgrMeans = [3]float32{103.939, 116.779, 123.68}

// ModelConfig defines preprocessing configuration for a specific model.
type ModelConfig struct {
	// Name of the model for debugging purposes.
	Name string `json:"name" yaml:"name"`
	// InputWidth is the expected width of the model input.
	InputWidth int `json:"input_width" yaml:"input_width"`
	// InputHeight is the expected height of the model input.
	InputHeight int `json:"input_height" yaml:"input_height"`
	// Normalization defines how to normalize pixel values.
	Normalization Normalization `json:"normalization" yaml:"normalization"`
	// ChannelOrder defines the tensor layout.
	ChannelOrder ChannelOrder `json:"channel_order" yaml:"channel_order"`
}

// DefaultConfig returns the configuration most segmentation checkpoints are trained with.
//
// Arguments:
//   - width: The model input width.
//   - height: The model input height.
//
// Returns:
//   - ModelConfig: Bilinear resize, mean subtraction and HWC layout.
func DefaultConfig(width, height int) ModelConfig {
	return ModelConfig{
		InputWidth:    width,
		InputHeight:   height,
		Normalization: NormalizeSubMean,
		ChannelOrder:  ChannelOrderHWC,
	}
}

// PreprocessingResult contains the preprocessed image data and metadata.
type PreprocessingResult struct {
	// Data is the preprocessed float32 tensor data.
	Data []float32
	// OriginalWidth is the original image width before preprocessing.
	OriginalWidth int
	// OriginalHeight is the original image height before preprocessing.
	OriginalHeight int
	// Shape contains the tensor shape [C, H, W] or [H, W, C].
	Shape []int
}

// Preprocessor turns images into model input tensors.
type Preprocessor struct {
	config ModelConfig
}

// NewPreprocessor creates a new preprocessor with the given configuration.
//
// Empty Normalization and ChannelOrder fields fall back to NormalizeSubMean and
// ChannelOrderHWC.
//
// Arguments:
//   - config: The model-specific preprocessing configuration.
//
// Returns:
//   - *Preprocessor: A configured Preprocessor instance.
//
// @example
//
//	preprocessor := NewPreprocessor(DefaultConfig(473, 473))
func NewPreprocessor(config ModelConfig) *Preprocessor {
	if config.Normalization == "" {
		config.Normalization = NormalizeSubMean
	}
	if config.ChannelOrder == "" {
		config.ChannelOrder = ChannelOrderHWC
	}
	return &Preprocessor{config: config}
}

// Config returns the effective configuration.
func (p *Preprocessor) Config() ModelConfig {
	return p.config
}

// Preprocess resizes img to the model input size with bilinear interpolation and converts
// it to a normalized float32 tensor.
//
// Arguments:
//   - img: The input image to preprocess.
//
// Returns:
//   - *PreprocessingResult: The preprocessed tensor and metadata.
//   - error: An error if the image or the configuration is invalid.
func (p *Preprocessor) Preprocess(img image.Image) (*PreprocessingResult, error) {
	if err := p.validateInput(img); err != nil {
		return nil, errors.Wrap(err, "input validation failed")
	}

	bounds := img.Bounds()
	resized := images.Resize(img, p.config.InputWidth, p.config.InputHeight, images.BilinearFilter)

	data, err := p.imageToTensor(resized)
	if err != nil {
		return nil, err
	}

	var shape []int
	if p.config.ChannelOrder == ChannelOrderCHW {
		shape = []int{3, p.config.InputHeight, p.config.InputWidth}
	} else {
		shape = []int{p.config.InputHeight, p.config.InputWidth, 3}
	}

	return &PreprocessingResult{
		Data:           data,
		OriginalWidth:  bounds.Dx(),
		OriginalHeight: bounds.Dy(),
		Shape:          shape,
	}, nil
}

func (p *Preprocessor) validateInput(img image.Image) error {
	if img == nil {
		return errors.New("image is nil")
	}
	if img.Bounds().Empty() {
		return errors.New("image is empty")
	}
	if p.config.InputWidth <= 0 || p.config.InputHeight <= 0 {
		return fmt.Errorf("invalid model input dimensions: %dx%d", p.config.InputWidth, p.config.InputHeight)
	}
	return nil
}

// imageToTensor converts an RGBA image to a normalized float32 tensor.
//
// Arguments:
//   - img: The image to convert, already at the model input size.
//
// Returns:
//   - []float32: The tensor data.
//   - error: An error if the normalization is unknown.
func (p *Preprocessor) imageToTensor(img *image.RGBA) ([]float32, error) {
	width := img.Bounds().Dx()
	height := img.Bounds().Dy()
	plane := width * height
	tensor := make([]float32, plane*3)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			off := img.PixOffset(x, y)
			b := float32(img.Pix[off+2])
			g := float32(img.Pix[off+1])
			r := float32(img.Pix[off])

			var ch0, ch1, ch2 float32
			switch p.config.Normalization {
			case NormalizeSubMean:
				ch0, ch1, ch2 = r-bgrMeans[2], g-bgrMeans[1], b-bgrMeans[0]
			case NormalizeSubAndDivide:
				ch0, ch1, ch2 = b/127.5-1, g/127.5-1, r/127.5-1
			case NormalizeDivide:
				ch0, ch1, ch2 = b/255, g/255, r/255
			default:
				return nil, fmt.Errorf("unknown normalization %q", p.config.Normalization)
			}

			i := y*width + x
			if p.config.ChannelOrder == ChannelOrderCHW {
				tensor[i] = ch0
				tensor[plane+i] = ch1
				tensor[2*plane+i] = ch2
			} else {
				tensor[i*3] = ch0
				tensor[i*3+1] = ch1
				tensor[i*3+2] = ch2
			}
		}
	}

	return tensor, nil
}

// BatchPreprocess processes multiple images in parallel.
//
// Arguments:
//   - imgs: Slice of images to preprocess.
//   - maxConcurrency: Maximum number of images to process concurrently.
//
// Returns:
//   - []*PreprocessingResult: One result per image, in input order.
//   - error: The first preprocessing failure, if any.
func (p *Preprocessor) BatchPreprocess(imgs []image.Image, maxConcurrency int) ([]*PreprocessingResult, error) {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	results := make([]*PreprocessingResult, len(imgs))
	errs := make([]error, len(imgs))

	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup

	for i, img := range imgs {
		wg.Add(1)
		go func(idx int, img image.Image) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			result, err := p.Preprocess(img)
			if err != nil {
				errs[idx] = fmt.Errorf("failed to preprocess image %d: %w", idx, err)
			} else {
				results[idx] = result
			}
		}(i, img)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}
