package main

import (
	"os"

	"github.com/nvr-ai/go-segmentation/imageio"
	"github.com/nvr-ai/go-segmentation/imageio/cv"
	"github.com/nvr-ai/go-segmentation/imageio/vips"
	"github.com/nvr-ai/go-segmentation/inference/providers"
	"github.com/nvr-ai/go-segmentation/segmentation"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// RunConfig holds the options that do not fit on a command line.
type RunConfig struct {
	ClassNames []string         `json:"class_names" yaml:"class_names"`
	Colors     [][3]uint8       `json:"colors"      yaml:"colors"`
	Provider   providers.Config `json:"provider"    yaml:"provider"`
}

// DefaultRunConfig returns a config using the default palette on the CPU.
func DefaultRunConfig() RunConfig {
	return RunConfig{Provider: providers.DefaultConfig()}
}

// LoadRunConfig reads a YAML run config. An empty path returns DefaultRunConfig.
func LoadRunConfig(path string) (RunConfig, error) {
	cfg := DefaultRunConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "failed to read run config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "failed to parse run config %s", path)
	}
	return cfg, nil
}

// Palette returns the configured colors, or nil for the default palette.
func (c RunConfig) Palette() segmentation.Palette {
	if len(c.Colors) == 0 {
		return nil
	}
	return segmentation.NewPalette(c.Colors)
}

// codecByName maps the -codec flag to an image codec.
func codecByName(name string) (imageio.Codec, error) {
	switch name {
	case "", "std":
		return imageio.Default, nil
	case "cv":
		return cv.Codec{}, nil
	case "vips":
		return vips.Codec{}, nil
	default:
		return nil, errors.Errorf("unknown codec %q", name)
	}
}
