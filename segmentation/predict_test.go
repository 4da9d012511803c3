package segmentation

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvr-ai/go-segmentation/checkpoint"
	"github.com/nvr-ai/go-segmentation/imageio"
	"github.com/nvr-ai/go-segmentation/models"
	"github.com/nvr-ai/go-segmentation/models/model"
	"github.com/nvr-ai/go-segmentation/models/model/modeltest"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

var testDims = model.Dimensions{InputWidth: 4, InputHeight: 4, OutputWidth: 2, OutputHeight: 2, NClasses: 3}

func newTestModel() *modeltest.Model {
	return modeltest.New(testDims, []int{0, 1, 2, 1})
}

func TestPredictSegmentationFromImage(t *testing.T) {
	m := newTestModel()
	src := solid(6, 6, color.RGBA{R: 120, G: 60, B: 30, A: 255})

	pred, err := PredictSegmentation(context.Background(), FromImage(src), PredictOptions{
		Model:  m,
		Colors: Palette{red, green, white},
	})
	require.NoError(t, err)

	assert.Equal(t, Map{Width: 2, Height: 2, Labels: []int{0, 1, 2, 1}}, pred.Map)
	require.NotNil(t, pred.Image)
	assert.Equal(t, image.Rect(0, 0, 6, 6), pred.Image.Bounds())
	assert.Equal(t, red, pred.Image.RGBAAt(0, 0))
	assert.Equal(t, white, pred.Image.RGBAAt(0, 5))
	assert.Nil(t, pred.Visualizations)
	assert.Equal(t, 1, m.Calls())
	assert.False(t, m.Closed())
}

func TestPredictSegmentationWritesOutFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out", "seg.png")

	_, err := PredictSegmentation(context.Background(), FromImage(solid(4, 4, red)), PredictOptions{
		Model:      newTestModel(),
		OutFile:    out,
		OverlayImg: true,
	})
	require.NoError(t, err)

	img, err := imageio.Default.Decode(out)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 4), img.Bounds())
}

func TestPredictSegmentationAllVisualisations(t *testing.T) {
	dir := t.TempDir()
	files := OutputFiles{
		OverlayAndLegend: filepath.Join(dir, "overlay_legend.png"),
		Overlay:          filepath.Join(dir, "overlay.png"),
		Plain:            filepath.Join(dir, "plain.png"),
	}

	pred, err := PredictSegmentation(context.Background(), FromImage(solid(8, 8, green)), PredictOptions{
		Model:             newTestModel(),
		ClassNames:        []string{"a", "b", "c"},
		AllVisualisations: true,
		OutputFiles:       files,
	})
	require.NoError(t, err)

	vis := pred.Visualizations
	require.NotNil(t, vis)
	assert.Nil(t, pred.Image)
	assert.Equal(t, image.Rect(0, 0, LegendWidth+8, 100), vis.OverlayAndLegend.Bounds())
	assert.Equal(t, image.Rect(0, 0, 8, 8), vis.Overlay.Bounds())
	assert.Equal(t, image.Rect(0, 0, LegendWidth+8, 100), vis.Legend.Bounds())
	assert.Equal(t, image.Rect(0, 0, 8, 8), vis.Plain.Bounds())

	for _, path := range []string{files.OverlayAndLegend, files.Overlay, files.Plain} {
		assert.FileExists(t, path)
	}
	assert.NoFileExists(t, filepath.Join(dir, "legend.png"))
}

func TestPredictSegmentationAllVisualisationsNeedsClassNames(t *testing.T) {
	_, err := PredictSegmentation(context.Background(), FromImage(solid(2, 2, red)), PredictOptions{
		Model:             newTestModel(),
		AllVisualisations: true,
	})
	assert.ErrorIs(t, err, ErrMissingPrecondition)
}

func TestPredictSegmentationFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.png")
	require.NoError(t, imageio.Default.Encode(path, solid(5, 3, red)))

	pred, err := PredictSegmentation(context.Background(), FromPath(path), PredictOptions{Model: newTestModel()})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 5, 3), pred.Image.Bounds())

	_, err = PredictSegmentation(context.Background(), FromPath(filepath.Join(t.TempDir(), "missing.png")), PredictOptions{Model: newTestModel()})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPredictSegmentationFromTensor(t *testing.T) {
	m := newTestModel()
	hwc := tensor.New(tensor.WithShape(1, 3, 5, 3), tensor.WithBacking(make([]uint8, 45)))

	pred, err := PredictSegmentation(context.Background(), FromTensor(hwc), PredictOptions{Model: m})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 5, 3), pred.Image.Bounds())

	flat := tensor.New(tensor.WithShape(2, 6), tensor.WithBacking(make([]uint8, 12)))
	_, err = PredictSegmentation(context.Background(), FromTensor(flat), PredictOptions{Model: m})
	assert.ErrorIs(t, err, ErrInvalidInputShape)

	vec := tensor.New(tensor.WithShape(12), tensor.WithBacking(make([]uint8, 12)))
	_, err = PredictSegmentation(context.Background(), FromTensor(vec), PredictOptions{Model: m})
	assert.ErrorIs(t, err, ErrInvalidInputShape)

	assert.Equal(t, 1, m.Calls())
}

func TestPredictSegmentationInvalidInputs(t *testing.T) {
	m := newTestModel()

	tests := []struct {
		name  string
		input Input
	}{
		{name: "zero input", input: Input{}},
		{name: "nil image", input: FromImage(nil)},
		{name: "empty image", input: FromImage(image.NewRGBA(image.Rect(0, 0, 0, 0)))},
		{name: "empty path", input: FromPath("")},
		{name: "nil tensor", input: FromTensor(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PredictSegmentation(context.Background(), tt.input, PredictOptions{Model: m})
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	assert.Zero(t, m.Calls())
}

func TestPredictSegmentationMissingModel(t *testing.T) {
	_, err := PredictSegmentation(context.Background(), FromImage(solid(2, 2, red)), PredictOptions{})
	assert.ErrorIs(t, err, ErrMissingModel)
}

func TestPredictSegmentationModelFailure(t *testing.T) {
	m := newTestModel()
	boom := errors.New("device lost")
	m.PredictFn = modeltest.Fail(boom)

	_, err := PredictSegmentation(context.Background(), FromImage(solid(2, 2, red)), PredictOptions{Model: m})
	assert.ErrorIs(t, err, boom)

	m.PredictFn = func([]float32) ([]float32, error) { return make([]float32, 5), nil }
	_, err = PredictSegmentation(context.Background(), FromImage(solid(2, 2, red)), PredictOptions{Model: m})
	assert.Error(t, err)
}

func TestPredictSegmentationFromCheckpoint(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ckpt")
	require.NoError(t, os.WriteFile(path+checkpoint.ConfigSuffix,
		[]byte(`{"model_class": "toy", "n_classes": 3, "input_height": 4, "input_width": 4}`), 0o644))
	require.NoError(t, os.WriteFile(path+".3", []byte("w"), 0o644))

	var built *modeltest.Model
	registry := models.NewRegistry()
	registry.Register("toy", models.Architecture{OutputStride: 2}, func(args model.NewModelArgs, arch models.Architecture) (model.Model, error) {
		built = modeltest.New(arch.Dimensions(args), []int{2, 2, 2, 2})
		return built, nil
	})

	pred, err := PredictSegmentation(context.Background(), FromImage(solid(4, 4, red)), PredictOptions{
		CheckpointsPath:   path,
		CheckpointOptions: []checkpoint.Option{checkpoint.WithRegistry(registry)},
	})
	require.NoError(t, err)

	assert.Equal(t, []int{2, 2, 2, 2}, pred.Map.Labels)
	assert.Equal(t, []string{path + ".3"}, built.Loaded())
	assert.True(t, built.Closed())
}
