package segmentation

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/nvr-ai/go-segmentation/imageio"
	"github.com/nvr-ai/go-segmentation/models/model"
	"github.com/nvr-ai/go-segmentation/models/model/modeltest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulatorResult(t *testing.T) {
	acc := NewAccumulator(2)
	require.NoError(t, acc.Update([]int{0, 0, 0, 0}, []int{0, 0, 0, 1}))

	assert.Equal(t, []int64{3, 0}, acc.TP)
	assert.Equal(t, []int64{1, 0}, acc.FP)
	assert.Equal(t, []int64{0, 1}, acc.FN)
	assert.Equal(t, []int64{3, 1}, acc.Pixels)

	res := acc.Result()
	assert.InDeltaSlice(t, []float64{0.75, 0}, res.ClassWiseIU, 1e-9)
	assert.InDelta(t, 0.375, res.MeanIU, 1e-9)
	assert.InDelta(t, 0.75*0.75, res.FrequencyWeightedIU, 1e-9)
}

func TestAccumulatorIgnoresOutOfRangeLabels(t *testing.T) {
	acc := NewAccumulator(2)
	require.NoError(t, acc.Update([]int{5, 1, -1}, []int{1, 7, -1}))

	assert.Equal(t, []int64{0, 0}, acc.TP)
	assert.Equal(t, []int64{0, 1}, acc.FP)
	assert.Equal(t, []int64{0, 1}, acc.FN)
	assert.Equal(t, []int64{0, 1}, acc.Pixels)
}

func TestAccumulatorUpdateLengthMismatch(t *testing.T) {
	assert.Error(t, NewAccumulator(2).Update([]int{0}, []int{0, 1}))
}

func TestAccumulatorMergeIsSum(t *testing.T) {
	a := NewAccumulator(3)
	b := NewAccumulator(3)
	whole := NewAccumulator(3)
	pred1, gt1 := []int{0, 1, 2, 2}, []int{0, 2, 2, 1}
	pred2, gt2 := []int{1, 1, 0}, []int{1, 0, 0}

	require.NoError(t, a.Update(pred1, gt1))
	require.NoError(t, b.Update(pred2, gt2))
	require.NoError(t, whole.Update(append(pred1, pred2...), append(gt1, gt2...)))
	a.Merge(b)

	assert.Equal(t, whole, a)
}

func TestAccumulatorEmpty(t *testing.T) {
	res := NewAccumulator(2).Result()

	assert.Equal(t, []float64{0, 0}, res.ClassWiseIU)
	assert.Zero(t, res.MeanIU)
	assert.Zero(t, res.FrequencyWeightedIU)
}

func TestEvaluationResultJSON(t *testing.T) {
	data, err := json.Marshal(EvaluationResult{FrequencyWeightedIU: 0.5, MeanIU: 0.25, ClassWiseIU: []float64{0.5, 0}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"frequency_weighted_IU": 0.5, "mean_IU": 0.25, "class_wise_IU": [0.5, 0]}`, string(data))
}

// labelImage writes a grayscale-looking annotation whose pixels hold labels.
func labelImage(t *testing.T, path string, w, h int, labels []uint8) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, l := range labels {
		img.SetRGBA(i%w, i/w, color.RGBA{R: l, G: l, B: l, A: 255})
	}
	require.NoError(t, imageio.Default.Encode(path, img))
}

func writeDataset(t *testing.T, n int) (string, string) {
	t.Helper()
	imgs := t.TempDir()
	anns := t.TempDir()
	for i := 0; i < n; i++ {
		name := string(rune('a'+i)) + ".png"
		require.NoError(t, imageio.Default.Encode(filepath.Join(imgs, name), solid(4, 4, red)))
		// 4x4 annotation; the nearest 2x2 reduction samples (0,0), (2,0), (0,2) and (2,2).
		labelImage(t, filepath.Join(anns, name), 4, 4, []uint8{
			0, 0, 0, 0,
			0, 0, 0, 0,
			0, 0, 1, 1,
			0, 0, 1, 1,
		})
	}
	return imgs, anns
}

func evalModel() *modeltest.Model {
	return modeltest.New(model.Dimensions{InputWidth: 4, InputHeight: 4, OutputWidth: 2, OutputHeight: 2, NClasses: 2}, []int{0, 0, 0, 0})
}

func TestEvaluateSegmentationFromDirectories(t *testing.T) {
	imgs, anns := writeDataset(t, 1)

	res, err := EvaluateSegmentation(context.Background(), EvaluateOptions{
		Model:          evalModel(),
		ImagesDir:      imgs,
		AnnotationsDir: anns,
	})
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{0.75, 0}, res.ClassWiseIU, 1e-9)
	assert.InDelta(t, 0.375, res.MeanIU, 1e-9)
	assert.InDelta(t, 0.5625, res.FrequencyWeightedIU, 1e-9)
}

func TestEvaluateSegmentationWorkersMatchSerial(t *testing.T) {
	imgs, anns := writeDataset(t, 5)

	serial, err := EvaluateSegmentation(context.Background(), EvaluateOptions{
		Model: evalModel(), ImagesDir: imgs, AnnotationsDir: anns,
	})
	require.NoError(t, err)

	m := evalModel()
	concurrent, err := EvaluateSegmentation(context.Background(), EvaluateOptions{
		Model: m, ImagesDir: imgs, AnnotationsDir: anns, Workers: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, serial, concurrent)
	assert.Equal(t, 5, m.Calls())
}

func TestEvaluateSegmentationExplicitLists(t *testing.T) {
	imgs, anns := writeDataset(t, 2)

	res, err := EvaluateSegmentation(context.Background(), EvaluateOptions{
		Model:       evalModel(),
		Images:      []string{filepath.Join(imgs, "a.png"), filepath.Join(imgs, "b.png")},
		Annotations: []string{filepath.Join(anns, "a.png"), filepath.Join(anns, "b.png")},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.375, res.MeanIU, 1e-9)
}

func TestEvaluateSegmentationLabelsBeyondClassCount(t *testing.T) {
	imgs := t.TempDir()
	anns := t.TempDir()
	require.NoError(t, imageio.Default.Encode(filepath.Join(imgs, "x.png"), solid(2, 2, red)))
	labelImage(t, filepath.Join(anns, "x.png"), 2, 2, []uint8{9, 9, 9, 9})

	res, err := EvaluateSegmentation(context.Background(), EvaluateOptions{
		Model: evalModel(), ImagesDir: imgs, AnnotationsDir: anns,
	})
	require.NoError(t, err)

	// Label 9 counts as class 0, so every prediction is a hit.
	assert.InDeltaSlice(t, []float64{1, 0}, res.ClassWiseIU, 1e-9)
	assert.InDelta(t, 1, res.FrequencyWeightedIU, 1e-9)
}

func TestEvaluateSegmentationErrors(t *testing.T) {
	imgs, anns := writeDataset(t, 1)

	_, err := EvaluateSegmentation(context.Background(), EvaluateOptions{ImagesDir: imgs, AnnotationsDir: anns})
	assert.ErrorIs(t, err, ErrMissingModel)

	_, err = EvaluateSegmentation(context.Background(), EvaluateOptions{Model: evalModel(), ImagesDir: imgs})
	assert.ErrorIs(t, err, ErrMissingPrecondition)

	_, err = EvaluateSegmentation(context.Background(), EvaluateOptions{
		Model: evalModel(), Images: []string{"a.png"}, Annotations: nil,
	})
	assert.ErrorIs(t, err, ErrMissingPrecondition)

	_, err = EvaluateSegmentation(context.Background(), EvaluateOptions{
		Model:       evalModel(),
		Images:      []string{filepath.Join(imgs, "a.png")},
		Annotations: []string{filepath.Join(anns, "missing.png")},
		Workers:     2,
	})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = EvaluateSegmentation(ctx, EvaluateOptions{Model: evalModel(), ImagesDir: imgs, AnnotationsDir: anns})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGroundTruthFromImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 9, G: 9, B: 1, A: 255})
	img.SetRGBA(1, 0, color.RGBA{R: 0, G: 0, B: 4, A: 255})

	gt := GroundTruthFromImage(img, 2, 1, 3)

	assert.Equal(t, []int{1, 0}, gt.Labels)
}
