package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
}

func TestPairsFromPaths(t *testing.T) {
	imgs := t.TempDir()
	anns := t.TempDir()
	touch(t, imgs, "b.jpg", "a.png", "c.JPEG", "notes.txt")
	touch(t, anns, "a.png", "b.bmp", "c.png", "a.jpg")
	require.NoError(t, os.Mkdir(filepath.Join(imgs, "d.png"), 0o755))

	pairs, err := PairsFromPaths(imgs, anns, false)
	require.NoError(t, err)

	assert.Equal(t, []Pair{
		{Image: filepath.Join(imgs, "a.png"), Annotation: filepath.Join(anns, "a.png")},
		{Image: filepath.Join(imgs, "b.jpg"), Annotation: filepath.Join(anns, "b.bmp")},
		{Image: filepath.Join(imgs, "c.JPEG"), Annotation: filepath.Join(anns, "c.png")},
	}, pairs)
}

func TestPairsFromPathsMissingAnnotation(t *testing.T) {
	imgs := t.TempDir()
	anns := t.TempDir()
	touch(t, imgs, "a.png", "b.png")
	touch(t, anns, "a.png")

	_, err := PairsFromPaths(imgs, anns, false)
	assert.ErrorIs(t, err, ErrMissingAnnotation)

	pairs, err := PairsFromPaths(imgs, anns, true)
	require.NoError(t, err)
	assert.Len(t, pairs, 1)
}

func TestPairsFromPathsDuplicateAnnotation(t *testing.T) {
	imgs := t.TempDir()
	anns := t.TempDir()
	touch(t, imgs, "a.png")
	touch(t, anns, "a.png", "a.bmp")

	_, err := PairsFromPaths(imgs, anns, true)
	assert.ErrorIs(t, err, ErrDuplicateAnnotation)
}

func TestPairsFromPathsMissingDirectory(t *testing.T) {
	_, err := PairsFromPaths(t.TempDir(), filepath.Join(t.TempDir(), "nope"), false)
	assert.Error(t, err)
}
