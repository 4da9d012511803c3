// Command segment runs segmentation checkpoints on images and scores them against
// annotations.
//
//	segment predict -checkpoint weights/vgg_unet -input street.jpg -output street_seg.png -overlay
//	segment evaluate -checkpoint weights/vgg_unet -images-dir val/images -annotations-dir val/annotations
//	segment bench -checkpoint weights/vgg_unet -images val/images -iterations 100
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/nvr-ai/go-segmentation/benchmark"
	"github.com/nvr-ai/go-segmentation/checkpoint"
	"github.com/nvr-ai/go-segmentation/inference/providers"
	"github.com/nvr-ai/go-segmentation/segmentation"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "predict":
		err = runPredict(os.Args[2:])
	case "evaluate":
		err = runEvaluate(os.Args[2:])
	case "bench":
		err = runBench(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: segment predict|evaluate|bench [flags]")
}

// commonFlags are shared by both subcommands.
type commonFlags struct {
	checkpoint string
	configPath string
	codec      string
	provider   string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.checkpoint, "checkpoint", "", "Checkpoint path prefix (weights are <prefix>.<epoch>)")
	fs.StringVar(&c.configPath, "config", "", "YAML run config with class_names, colors and provider")
	fs.StringVar(&c.codec, "codec", "std", "Image codec: std, cv or vips")
	fs.StringVar(&c.provider, "provider", "", "Execution provider: cpu, cuda, coreml or openvino")
}

func (c *commonFlags) load() (RunConfig, []checkpoint.Option, error) {
	cfg, err := LoadRunConfig(c.configPath)
	if err != nil {
		return cfg, nil, err
	}
	if c.provider != "" {
		cfg.Provider.Backend = providers.ProviderBackend(c.provider)
	}
	return cfg, []checkpoint.Option{checkpoint.WithProvider(cfg.Provider)}, nil
}

func runPredict(args []string) error {
	var (
		common  commonFlags
		input   string
		output  string
		outDir  string
		overlay bool
		legend  bool
		all     bool
		width   int
		height  int
	)
	fs := flag.NewFlagSet("predict", flag.ExitOnError)
	common.register(fs)
	fs.StringVar(&input, "input", "", "Input image path")
	fs.StringVar(&output, "output", "", "Output image path")
	fs.StringVar(&outDir, "out-dir", "", "Output directory for -all")
	fs.BoolVar(&overlay, "overlay", false, "Blend the segmentation over the input")
	fs.BoolVar(&legend, "legend", false, "Add a class legend (needs class_names in -config)")
	fs.BoolVar(&all, "all", false, "Write overlay+legend, overlay, legend and plain renderings to -out-dir")
	fs.IntVar(&width, "width", 0, "Output width (with -height)")
	fs.IntVar(&height, "height", 0, "Output height (with -width)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, ckptOpts, err := common.load()
	if err != nil {
		return err
	}
	codec, err := codecByName(common.codec)
	if err != nil {
		return err
	}

	opts := segmentation.PredictOptions{
		CheckpointsPath:   common.checkpoint,
		CheckpointOptions: ckptOpts,
		OutFile:           output,
		OverlayImg:        overlay,
		ShowLegends:       legend,
		ClassNames:        cfg.ClassNames,
		Colors:            cfg.Palette(),
		PredictionWidth:   width,
		PredictionHeight:  height,
		AllVisualisations: all,
		Codec:             codec,
	}
	if all {
		if outDir == "" {
			return fmt.Errorf("-all requires -out-dir")
		}
		opts.OutputFiles = segmentation.OutputFiles{
			OverlayAndLegend: filepath.Join(outDir, "overlay_legend.png"),
			Overlay:          filepath.Join(outDir, "overlay.png"),
			Legend:           filepath.Join(outDir, "legend.png"),
			Plain:            filepath.Join(outDir, "plain.png"),
		}
	}

	pred, err := segmentation.PredictSegmentation(context.Background(), segmentation.FromPath(input), opts)
	if err != nil {
		return err
	}
	log.Printf("predicted %dx%d map for %s", pred.Map.Width, pred.Map.Height, input)
	return nil
}

func runEvaluate(args []string) error {
	var (
		common            commonFlags
		imagesDir         string
		annotationsDir    string
		ignoreNonMatching bool
		workers           int
	)
	fs := flag.NewFlagSet("evaluate", flag.ExitOnError)
	common.register(fs)
	fs.StringVar(&imagesDir, "images-dir", "", "Directory of input images")
	fs.StringVar(&annotationsDir, "annotations-dir", "", "Directory of annotation images")
	fs.BoolVar(&ignoreNonMatching, "ignore-non-matching", false, "Skip images without an annotation")
	fs.IntVar(&workers, "workers", 1, "Images predicted concurrently")
	if err := fs.Parse(args); err != nil {
		return err
	}

	_, ckptOpts, err := common.load()
	if err != nil {
		return err
	}
	codec, err := codecByName(common.codec)
	if err != nil {
		return err
	}

	res, err := segmentation.EvaluateSegmentation(context.Background(), segmentation.EvaluateOptions{
		CheckpointsPath:   common.checkpoint,
		CheckpointOptions: ckptOpts,
		ImagesDir:         imagesDir,
		AnnotationsDir:    annotationsDir,
		IgnoreNonMatching: ignoreNonMatching,
		Codec:             codec,
		Workers:           workers,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func runBench(args []string) error {
	var (
		common     commonFlags
		imagesPath string
		outDir     string
		iterations int
		warmup     int
	)
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	common.register(fs)
	fs.StringVar(&imagesPath, "images", "", "Image file or directory to benchmark on")
	fs.StringVar(&outDir, "out-dir", "", "Directory for the JSON and CSV results")
	fs.IntVar(&iterations, "iterations", 100, "Timed iterations")
	fs.IntVar(&warmup, "warmup", 5, "Untimed warmup iterations")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, ckptOpts, err := common.load()
	if err != nil {
		return err
	}
	codec, err := codecByName(common.codec)
	if err != nil {
		return err
	}

	m, err := checkpoint.ModelFromCheckpointPath(common.checkpoint, ckptOpts...)
	if err != nil {
		return err
	}
	defer m.Close()

	suite := benchmark.NewSuite(m, filepath.Base(common.checkpoint), outDir)
	if err := suite.LoadImages(codec, imagesPath); err != nil {
		return err
	}
	suite.AddScenario(benchmark.Scenario{
		Name:       fmt.Sprintf("%s_%d", cfg.Provider.Backend, iterations),
		Iterations: iterations,
		WarmupRuns: warmup,
	})
	return suite.RunAllScenarios(context.Background())
}
