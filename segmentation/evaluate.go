package segmentation

import (
	"context"
	"fmt"
	"image"
	"log"
	"sync"

	"github.com/nvr-ai/go-segmentation/checkpoint"
	"github.com/nvr-ai/go-segmentation/dataset"
	"github.com/nvr-ai/go-segmentation/imageio"
	"github.com/nvr-ai/go-segmentation/images"
	"github.com/nvr-ai/go-segmentation/models/model"
	"github.com/pkg/errors"
)

// iouEpsilon keeps the IoU of classes absent from both maps at zero instead of NaN.
const iouEpsilon = 1e-12

// EvaluationResult holds intersection-over-union scores.
type EvaluationResult struct {
	FrequencyWeightedIU float64   `json:"frequency_weighted_IU" yaml:"frequency_weighted_IU"`
	MeanIU              float64   `json:"mean_IU"               yaml:"mean_IU"`
	ClassWiseIU         []float64 `json:"class_wise_IU"         yaml:"class_wise_IU"`
}

// Accumulator sums per-class confusion counts over any number of maps.
type Accumulator struct {
	TP     []int64 `json:"tp"`
	FP     []int64 `json:"fp"`
	FN     []int64 `json:"fn"`
	Pixels []int64 `json:"pixels"`
}

// NewAccumulator returns zeroed counters for nClasses classes.
func NewAccumulator(nClasses int) *Accumulator {
	return &Accumulator{
		TP:     make([]int64, nClasses),
		FP:     make([]int64, nClasses),
		FN:     make([]int64, nClasses),
		Pixels: make([]int64, nClasses),
	}
}

// NClasses returns the number of tracked classes.
func (a *Accumulator) NClasses() int {
	return len(a.TP)
}

// Update adds the counts of one predicted map against its ground truth.
//
// Labels outside [0, NClasses) are never counted for any class.
//
// Arguments:
//   - pred: The predicted labels.
//   - gt: The ground truth labels, same length as pred.
//
// Returns:
//   - error: An error if the lengths differ.
func (a *Accumulator) Update(pred, gt []int) error {
	if len(pred) != len(gt) {
		return fmt.Errorf("prediction has %d labels, ground truth has %d", len(pred), len(gt))
	}

	n := a.NClasses()
	for i, p := range pred {
		g := gt[i]
		if g >= 0 && g < n {
			a.Pixels[g]++
		}
		if p == g {
			if p >= 0 && p < n {
				a.TP[p]++
			}
			continue
		}
		if p >= 0 && p < n {
			a.FP[p]++
		}
		if g >= 0 && g < n {
			a.FN[g]++
		}
	}
	return nil
}

// Merge adds the counts of b.
func (a *Accumulator) Merge(b *Accumulator) {
	for c := 0; c < min(a.NClasses(), b.NClasses()); c++ {
		a.TP[c] += b.TP[c]
		a.FP[c] += b.FP[c]
		a.FN[c] += b.FN[c]
		a.Pixels[c] += b.Pixels[c]
	}
}

// Result reduces the counts to IoU scores.
//
// Class IoU is tp/(tp+fp+fn+1e-12). The frequency weighted IoU weights each class by its
// share of ground truth pixels and is 0 when no pixel was counted.
func (a *Accumulator) Result() EvaluationResult {
	n := a.NClasses()
	res := EvaluationResult{ClassWiseIU: make([]float64, n)}

	var total int64
	for _, p := range a.Pixels {
		total += p
	}

	var sum float64
	for c := 0; c < n; c++ {
		iou := float64(a.TP[c]) / (float64(a.TP[c]+a.FP[c]+a.FN[c]) + iouEpsilon)
		res.ClassWiseIU[c] = iou
		sum += iou
		if total > 0 {
			res.FrequencyWeightedIU += iou * float64(a.Pixels[c]) / float64(total)
		}
	}
	if n > 0 {
		res.MeanIU = sum / float64(n)
	}
	return res
}

// EvaluateOptions configures EvaluateSegmentation.
type EvaluateOptions struct {
	// Model is used when set; otherwise the model is loaded from CheckpointsPath and closed
	// before returning.
	Model             model.Model
	CheckpointsPath   string
	CheckpointOptions []checkpoint.Option

	// Images and Annotations are paired by position. When Images is nil, ImagesDir and
	// AnnotationsDir are paired by file stem instead.
	Images            []string
	Annotations       []string
	ImagesDir         string
	AnnotationsDir    string
	IgnoreNonMatching bool

	// Codec reads images and annotations; nil selects imageio.Default.
	Codec imageio.Codec
	// Workers is the number of pairs predicted concurrently. Values below 2 run serially.
	Workers int
}

// EvaluateSegmentation scores a model against annotated images.
//
// Arguments:
//   - ctx: Cancels the evaluation between pairs.
//   - opts: The model source, dataset and concurrency.
//
// Returns:
//   - *EvaluationResult: Class-wise, mean and frequency weighted IoU.
//   - error: ErrMissingModel, ErrMissingPrecondition, or the first pair failure.
func EvaluateSegmentation(ctx context.Context, opts EvaluateOptions) (*EvaluationResult, error) {
	if opts.Model == nil && opts.CheckpointsPath == "" {
		return nil, ErrMissingModel
	}
	if opts.Codec == nil {
		opts.Codec = imageio.Default
	}

	pairs, err := opts.pairs()
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

	acc := NewAccumulator(m.Dimensions().NClasses)
	if opts.Workers > 1 {
		err = evaluateConcurrently(ctx, m, pairs, opts.Codec, opts.Workers, acc)
	} else {
		for _, pair := range pairs {
			if err = evaluatePair(ctx, m, pair, opts.Codec, acc); err != nil {
				break
			}
		}
	}
	if err != nil {
		return nil, err
	}

	log.Printf("evaluated %d images", len(pairs))
	res := acc.Result()
	return &res, nil
}

func (opts EvaluateOptions) pairs() ([]dataset.Pair, error) {
	if opts.Images == nil {
		if opts.ImagesDir == "" || opts.AnnotationsDir == "" {
			return nil, errors.Wrap(ErrMissingPrecondition, "please provide images or the images and annotations directories")
		}
		return dataset.PairsFromPaths(opts.ImagesDir, opts.AnnotationsDir, opts.IgnoreNonMatching)
	}

	if len(opts.Images) != len(opts.Annotations) {
		return nil, errors.Wrapf(ErrMissingPrecondition, "%d images but %d annotations",
			len(opts.Images), len(opts.Annotations))
	}
	pairs := make([]dataset.Pair, len(opts.Images))
	for i := range opts.Images {
		pairs[i] = dataset.Pair{Image: opts.Images[i], Annotation: opts.Annotations[i]}
	}
	return pairs, nil
}

func evaluatePair(ctx context.Context, m model.Model, pair dataset.Pair, codec imageio.Codec, acc *Accumulator) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	img, err := FromPath(pair.Image).resolve(codec)
	if err != nil {
		return err
	}
	pred, err := predictMap(ctx, m, img)
	if err != nil {
		return errors.Wrapf(err, "failed to predict %s", pair.Image)
	}

	dims := m.Dimensions()
	gt, err := LoadGroundTruth(codec, pair.Annotation, dims.OutputWidth, dims.OutputHeight, dims.NClasses)
	if err != nil {
		return err
	}

	return acc.Update(pred.Labels, gt.Labels)
}

func evaluateConcurrently(
	ctx context.Context,
	m model.Model,
	pairs []dataset.Pair,
	codec imageio.Codec,
	workers int,
	acc *Accumulator,
) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan dataset.Pair)
	var (
		mu       sync.Mutex
		firstErr error
		wg       sync.WaitGroup
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pair := range jobs {
				local := NewAccumulator(acc.NClasses())
				err := evaluatePair(ctx, m, pair, codec, local)

				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = err
						cancel()
					}
				} else {
					acc.Merge(local)
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, pair := range pairs {
		select {
		case jobs <- pair:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// LoadGroundTruth reads an annotation image as a class map.
//
// The first channel of the image holds the class index. The map is nearest-neighbor
// resized to width x height, and labels of nClasses or more become class 0.
//
// Arguments:
//   - codec: Reads the file.
//   - path: The annotation image.
//   - width: The output map width.
//   - height: The output map height.
//   - nClasses: The number of classes.
//
// Returns:
//   - Map: The ground truth labels.
//   - error: An error if the file cannot be decoded.
func LoadGroundTruth(codec imageio.Codec, path string, width, height, nClasses int) (Map, error) {
	img, err := codec.Decode(path)
	if err != nil {
		return Map{}, errors.Wrapf(err, "failed to load annotation %s", path)
	}
	return GroundTruthFromImage(img, width, height, nClasses), nil
}

// GroundTruthFromImage converts a decoded annotation image into a class map.
func GroundTruthFromImage(img image.Image, width, height, nClasses int) Map {
	resized := images.ResizeNearestNeighbor(img, width, height)

	gt := NewMap(width, height)
	for i := range gt.Labels {
		c := int(resized.Pix[i*4+firstChannel])
		if c >= nClasses {
			c = 0
		}
		gt.Labels[i] = c
	}
	return gt
}

// firstChannel is the RGBA offset of blue, the first channel of a BGR annotation.
const firstChannel = 2
