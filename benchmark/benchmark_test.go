package benchmark

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvr-ai/go-segmentation/imageio"
	"github.com/nvr-ai/go-segmentation/models/model"
	"github.com/nvr-ai/go-segmentation/models/model/modeltest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var benchDims = model.Dimensions{
	InputWidth:   8,
	InputHeight:  8,
	OutputWidth:  4,
	OutputHeight: 4,
	NClasses:     3,
}

func testImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 16, 12))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	img.Set(3, 3, color.RGBA{255, 0, 0, 255})
	return img
}

func newModel() *modeltest.Model {
	return modeltest.New(benchDims, make([]int, 16))
}

func TestRunScenario(t *testing.T) {
	m := newModel()
	suite := NewSuite(m, "fake", "")
	suite.AddImages(testImage())

	metrics, err := suite.RunScenario(context.Background(), Scenario{Name: "s", Iterations: 5, WarmupRuns: 2})
	require.NoError(t, err)

	assert.Equal(t, 7, m.Calls())
	assert.Equal(t, "fake", metrics.Model)
	assert.Equal(t, int64(5*16), metrics.PixelsClassified)
	assert.Zero(t, metrics.ErrorRate)
	assert.Greater(t, metrics.FramesPerSecond, 0.0)
	assert.False(t, m.Closed())
}

func TestRunScenarioErrors(t *testing.T) {
	t.Run("no images", func(t *testing.T) {
		_, err := NewSuite(newModel(), "fake", "").RunScenario(context.Background(), Scenario{Iterations: 1})
		assert.Error(t, err)
	})

	t.Run("no iterations", func(t *testing.T) {
		suite := NewSuite(newModel(), "fake", "")
		suite.AddImages(testImage())
		_, err := suite.RunScenario(context.Background(), Scenario{Name: "empty"})
		assert.Error(t, err)
	})

	t.Run("failing model", func(t *testing.T) {
		m := newModel()
		m.PredictFn = modeltest.Fail(errors.New("boom"))
		suite := NewSuite(m, "fake", "")
		suite.AddImages(testImage())

		metrics, err := suite.RunScenario(context.Background(), Scenario{Iterations: 4})
		require.NoError(t, err)
		assert.Equal(t, 1.0, metrics.ErrorRate)
		assert.Zero(t, metrics.FramesPerSecond)
	})

	t.Run("cancelled", func(t *testing.T) {
		suite := NewSuite(newModel(), "fake", "")
		suite.AddImages(testImage())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := suite.RunScenario(ctx, Scenario{Iterations: 3})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestLoadImages(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, imageio.Default.Encode(filepath.Join(dir, "a.png"), testImage()))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	suite := NewSuite(newModel(), "fake", "")
	require.NoError(t, suite.LoadImages(imageio.Default, dir))
	assert.Len(t, suite.images, 1)

	assert.Error(t, suite.LoadImages(imageio.Default, filepath.Join(dir, "notes.txt")))
	assert.Error(t, suite.LoadImages(imageio.Default, filepath.Join(dir, "missing")))
}

func TestRunAllScenariosSavesResults(t *testing.T) {
	out := t.TempDir()
	suite := NewSuite(newModel(), "fake", out)
	suite.AddImages(testImage())
	suite.AddScenario(Scenario{Name: "quick", Iterations: 2})
	suite.AddScenario(Scenario{Name: "broken"})

	require.NoError(t, suite.RunAllScenarios(context.Background()))
	require.Len(t, suite.Results(), 1)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var csvFile string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".csv") {
			csvFile = filepath.Join(out, e.Name())
		}
	}
	require.NotEmpty(t, csvFile)

	data, err := os.ReadFile(csvFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "quick,fake,"))
}
