// Package dataset - Image and annotation file discovery.
package dataset

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrDuplicateAnnotation is returned when two annotation files share a stem.
	ErrDuplicateAnnotation = errors.New("duplicate annotation file")
	// ErrMissingAnnotation is returned when an image has no annotation with the same stem.
	ErrMissingAnnotation = errors.New("no annotation found for image")
)

// ImageExtensions are the accepted input image extensions.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp"}

// AnnotationExtensions are the accepted annotation extensions.
var AnnotationExtensions = []string{".png", ".bmp"}

// Pair is an input image and its ground truth annotation.
type Pair struct {
	Image      string `json:"image"      yaml:"image"`
	Annotation string `json:"annotation" yaml:"annotation"`
}

// PairsFromPaths matches the images in imagesDir to the annotations in annotationsDir by
// file stem.
//
// Arguments:
//   - imagesDir: Directory holding input images.
//   - annotationsDir: Directory holding single-channel class index images.
//   - ignoreNonMatching: Skip images without an annotation instead of failing.
//
// Returns:
//   - []Pair: The matched pairs, sorted by image path.
//   - error: ErrDuplicateAnnotation, ErrMissingAnnotation, or a directory read error.
func PairsFromPaths(imagesDir, annotationsDir string, ignoreNonMatching bool) ([]Pair, error) {
	annotations, err := listFiles(annotationsDir, AnnotationExtensions)
	if err != nil {
		return nil, err
	}

	byStem := make(map[string]string, len(annotations))
	for _, path := range annotations {
		stem := stemOf(path)
		if prev, ok := byStem[stem]; ok {
			return nil, errors.Wrapf(ErrDuplicateAnnotation, "%s and %s", prev, path)
		}
		byStem[stem] = path
	}

	imgs, err := listFiles(imagesDir, ImageExtensions)
	if err != nil {
		return nil, err
	}

	pairs := make([]Pair, 0, len(imgs))
	for _, path := range imgs {
		ann, ok := byStem[stemOf(path)]
		if !ok {
			if ignoreNonMatching {
				continue
			}
			return nil, errors.Wrapf(ErrMissingAnnotation, "%s", path)
		}
		pairs = append(pairs, Pair{Image: path, Annotation: ann})
	}

	return pairs, nil
}

// listFiles returns the regular files of dir whose extension is in exts, sorted by path.
func listFiles(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", dir)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		for _, want := range exts {
			if ext == want {
				files = append(files, filepath.Join(dir, entry.Name()))
				break
			}
		}
	}

	sort.Strings(files)
	return files, nil
}

func stemOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
