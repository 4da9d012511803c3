// Package benchmark - Latency benchmarks for segmentation models.
package benchmark

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/nvr-ai/go-segmentation/imageio"
	"github.com/nvr-ai/go-segmentation/models/model"
	"github.com/nvr-ai/go-segmentation/models/model/preprocess"
	"github.com/nvr-ai/go-segmentation/segmentation"
	"github.com/pkg/errors"
)

// Scenario defines one benchmark run.
type Scenario struct {
	Name       string `json:"name"        yaml:"name"`
	Iterations int    `json:"iterations"  yaml:"iterations"`
	WarmupRuns int    `json:"warmup_runs" yaml:"warmup_runs"`
}

// PerformanceMetrics captures the timings of one scenario.
//
// Stage durations are totals over the successful iterations.
type PerformanceMetrics struct {
	Scenario            Scenario      `json:"scenario"`
	Model               string        `json:"model"`
	Timestamp           time.Time     `json:"timestamp"`
	TotalDuration       time.Duration `json:"total_duration"`
	PreprocessDuration  time.Duration `json:"preprocess_duration"`
	InferenceDuration   time.Duration `json:"inference_duration"`
	PostProcessDuration time.Duration `json:"post_process_duration"`
	FramesPerSecond     float64       `json:"frames_per_second"`
	MemoryStats         MemoryMetrics `json:"memory_stats"`
	NumCPU              int           `json:"num_cpu"`
	PixelsClassified    int64         `json:"pixels_classified"`
	ErrorRate           float64       `json:"error_rate"`
}

// MemoryMetrics captures memory usage statistics.
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
	HeapSysBytes    uint64 `json:"heap_sys_bytes"`
}

// Suite runs scenarios against one model and a fixed set of images.
type Suite struct {
	model     model.Model
	name      string
	outputDir string

	mu        sync.RWMutex
	images    []image.Image
	scenarios []Scenario
	results   []PerformanceMetrics
}

// NewSuite creates a benchmark suite.
//
// Arguments:
//   - m: The model to time. The suite does not close it.
//   - name: The model name written to the results.
//   - outputDir: Where RunAllScenarios saves results; empty disables saving.
//
// Returns:
//   - *Suite: The suite.
func NewSuite(m model.Model, name, outputDir string) *Suite {
	return &Suite{model: m, name: name, outputDir: outputDir}
}

// AddScenario adds a scenario to the suite.
func (s *Suite) AddScenario(scenario Scenario) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenarios = append(s.scenarios, scenario)
}

// AddImages appends decoded images to the test set.
func (s *Suite) AddImages(imgs ...image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images = append(s.images, imgs...)
}

// LoadImages decodes an image file, or every decodable file of a directory, into the test set.
//
// Arguments:
//   - codec: Decodes the files.
//   - path: A file or a directory.
//
// Returns:
//   - error: An error if path cannot be read or yields no image.
func (s *Suite) LoadImages(codec imageio.Codec, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrap(err, "failed to stat image path")
	}

	files := []string{path}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return errors.Wrap(err, "failed to read directory")
		}
		files = files[:0]
		for _, e := range entries {
			if !e.IsDir() {
				files = append(files, filepath.Join(path, e.Name()))
			}
		}
	}

	var loaded []image.Image
	for _, f := range files {
		img, err := codec.Decode(f)
		if err != nil {
			continue // Skip files that can't be decoded
		}
		loaded = append(loaded, img)
	}
	if len(loaded) == 0 {
		return errors.Errorf("no valid images found in %s", path)
	}

	s.AddImages(loaded...)
	return nil
}

// RunScenario executes a single scenario.
//
// Arguments:
//   - ctx: Stops the run between iterations.
//   - scenario: The iteration counts.
//
// Returns:
//   - *PerformanceMetrics: The timings.
//   - error: An error if there are no images, no iterations, or ctx is done.
func (s *Suite) RunScenario(ctx context.Context, scenario Scenario) (*PerformanceMetrics, error) {
	s.mu.RLock()
	imgs := s.images
	s.mu.RUnlock()

	if len(imgs) == 0 {
		return nil, errors.New("no test images loaded")
	}
	if scenario.Iterations <= 0 {
		return nil, errors.Errorf("scenario %s has no iterations", scenario.Name)
	}

	pre := preprocess.NewPreprocessor(s.model.Preprocess())
	dims := s.model.Dimensions()

	for i := 0; i < scenario.WarmupRuns; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// Warmup failures show up again in the timed runs.
		_, _ = s.processImage(ctx, pre, dims, imgs[i%len(imgs)])
	}

	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	metrics := &PerformanceMetrics{
		Scenario:  scenario,
		Model:     s.name,
		Timestamp: time.Now(),
		NumCPU:    runtime.NumCPU(),
	}

	failures := 0
	start := time.Now()
	for i := 0; i < scenario.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := s.processImage(ctx, pre, dims, imgs[i%len(imgs)])
		if err != nil {
			failures++
			continue
		}
		metrics.PreprocessDuration += t.preprocess
		metrics.InferenceDuration += t.inference
		metrics.PostProcessDuration += t.postprocess
		metrics.PixelsClassified += int64(dims.OutputWidth * dims.OutputHeight)
	}
	metrics.TotalDuration = time.Since(start)

	var endMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&endMem)

	if secs := metrics.TotalDuration.Seconds(); secs > 0 {
		metrics.FramesPerSecond = float64(scenario.Iterations-failures) / secs
	}
	metrics.ErrorRate = float64(failures) / float64(scenario.Iterations)
	metrics.MemoryStats = MemoryMetrics{
		AllocBytes:      endMem.Alloc,
		TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
		SysBytes:        endMem.Sys,
		NumGC:           endMem.NumGC - startMem.NumGC,
		HeapAllocBytes:  endMem.HeapAlloc,
		HeapSysBytes:    endMem.HeapSys,
	}

	return metrics, nil
}

type stageTimes struct {
	preprocess  time.Duration
	inference   time.Duration
	postprocess time.Duration
}

func (s *Suite) processImage(
	ctx context.Context,
	pre *preprocess.Preprocessor,
	dims model.Dimensions,
	img image.Image,
) (stageTimes, error) {
	var t stageTimes

	start := time.Now()
	input, err := pre.Preprocess(img)
	if err != nil {
		return t, errors.Wrap(err, "preprocessing failed")
	}
	t.preprocess = time.Since(start)

	start = time.Now()
	scores, err := s.model.Predict(ctx, input.Data)
	if err != nil {
		return t, errors.Wrap(err, "inference failed")
	}
	t.inference = time.Since(start)

	start = time.Now()
	if _, err := segmentation.MapFromScores(scores, dims); err != nil {
		return t, err
	}
	t.postprocess = time.Since(start)

	return t, nil
}

// RunAllScenarios executes all scenarios and saves the results when an output directory is set.
func (s *Suite) RunAllScenarios(ctx context.Context) error {
	s.mu.RLock()
	scenarios := append([]Scenario(nil), s.scenarios...)
	s.mu.RUnlock()

	for _, scenario := range scenarios {
		metrics, err := s.RunScenario(ctx, scenario)
		if err != nil {
			fmt.Printf("Scenario %s failed: %v\n", scenario.Name, err)
			continue
		}

		s.mu.Lock()
		s.results = append(s.results, *metrics)
		s.mu.Unlock()

		fmt.Printf("Scenario %s completed: %.2f FPS\n", scenario.Name, metrics.FramesPerSecond)
	}

	if s.outputDir == "" {
		return nil
	}
	return s.SaveResults()
}

// SaveResults writes the results as JSON and a CSV summary into the output directory.
func (s *Suite) SaveResults() error {
	results := s.Results()

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	resultsFile := filepath.Join(s.outputDir, fmt.Sprintf("benchmark_results_%s.json", timestamp))

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal results")
	}
	if err := os.WriteFile(resultsFile, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write results file")
	}

	summaryFile := filepath.Join(s.outputDir, fmt.Sprintf("benchmark_summary_%s.csv", timestamp))
	if err := saveSummaryCSV(summaryFile, results); err != nil {
		return errors.Wrap(err, "failed to save summary CSV")
	}

	fmt.Printf("Results saved to: %s\n", resultsFile)
	fmt.Printf("Summary saved to: %s\n", summaryFile)
	return nil
}

func saveSummaryCSV(filename string, results []PerformanceMetrics) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	rows := [][]string{{
		"Scenario", "Model", "FPS", "Total_Duration_ms", "Preprocess_ms", "Inference_ms",
		"PostProcess_ms", "Alloc_MB", "Error_Rate",
	}}
	for _, r := range results {
		rows = append(rows, []string{
			r.Scenario.Name,
			r.Model,
			strconv.FormatFloat(r.FramesPerSecond, 'f', 2, 64),
			millis(r.TotalDuration),
			millis(r.PreprocessDuration),
			millis(r.InferenceDuration),
			millis(r.PostProcessDuration),
			strconv.FormatFloat(float64(r.MemoryStats.AllocBytes)/(1024*1024), 'f', 2, 64),
			strconv.FormatFloat(r.ErrorRate, 'f', 4, 64),
		})
	}
	return csv.NewWriter(file).WriteAll(rows)
}

func millis(d time.Duration) string {
	return strconv.FormatFloat(float64(d.Nanoseconds())/1e6, 'f', 2, 64)
}

// Results returns a copy of the collected results.
func (s *Suite) Results() []PerformanceMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]PerformanceMetrics(nil), s.results...)
}
