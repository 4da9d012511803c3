// Package checkpoint - Discovery and loading of trained model checkpoints.
//
// A checkpoint is a set of weight files named <path>.<epoch> (optionally with a trailing
// .index) next to a <path>_config.json file describing the architecture.
package checkpoint

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/nvr-ai/go-segmentation/inference/providers"
	"github.com/nvr-ai/go-segmentation/models"
	"github.com/nvr-ai/go-segmentation/models/model"
	"github.com/pkg/errors"
)

var (
	// ErrConfigNotFound is returned when <path>_config.json does not exist.
	ErrConfigNotFound = errors.New("checkpoint config isn't found")
	// ErrWeightsNotFound is returned when no <path>.<epoch> weights exist.
	ErrWeightsNotFound = errors.New("checkpoint weights aren't found")
)

// ConfigSuffix is appended to the checkpoint path to locate its config.
const ConfigSuffix = "_config.json"

// Config is the architecture record stored next to the weights.
type Config struct {
	ModelClass  model.Name `json:"model_class"  yaml:"model_class"`
	NClasses    int        `json:"n_classes"    yaml:"n_classes"`
	InputHeight int        `json:"input_height" yaml:"input_height"`
	InputWidth  int        `json:"input_width"  yaml:"input_width"`
}

// ModelArgs converts the record into registry arguments.
func (c Config) ModelArgs() model.NewModelArgs {
	return model.NewModelArgs{
		Name:        c.ModelClass,
		NClasses:    c.NClasses,
		InputHeight: c.InputHeight,
		InputWidth:  c.InputWidth,
	}
}

// LoadConfig reads <path>_config.json.
//
// Arguments:
//   - path: The checkpoint path prefix.
//
// Returns:
//   - Config: The decoded record.
//   - error: ErrConfigNotFound when the file is missing, or the decode error.
func LoadConfig(path string) (Config, error) {
	configPath := path + ConfigSuffix

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, errors.Wrapf(ErrConfigNotFound, "%s", configPath)
		}
		return Config{}, errors.Wrapf(err, "failed to read %s", configPath)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "failed to decode %s", configPath)
	}
	return cfg, nil
}

// FindLatestCheckpoint returns the weights file with the highest epoch.
//
// Candidates are matched by the glob <path>.* and, when that finds nothing, <path>*.*.
// Every ".index" is removed from a candidate, and the candidate is kept only if what
// remains after removing the cleaned path and trimming dots is a decimal number.
//
// Arguments:
//   - path: The checkpoint path prefix.
//   - failSafe: Return an empty path instead of an error when nothing matches.
//
// Returns:
//   - string: The latest weights path, or "" when failSafe and nothing matched.
//   - error: ErrWeightsNotFound when nothing matched and failSafe is false.
//
// @example
//
//	// ckpt.1, ckpt.5, ckpt.10 and ckpt.bak exist.
//	latest, _ := FindLatestCheckpoint("ckpt", true) // "ckpt.10"
func FindLatestCheckpoint(path string, failSafe bool) (string, error) {
	files, err := filepath.Glob(path + ".*")
	if err != nil {
		return "", errors.Wrapf(err, "invalid checkpoint path %s", path)
	}
	if len(files) == 0 {
		if files, err = filepath.Glob(path + "*.*"); err != nil {
			return "", errors.Wrapf(err, "invalid checkpoint path %s", path)
		}
	}

	prefix := filepath.Clean(path)
	latest, latestEpoch := "", ""
	for _, f := range files {
		f = strings.ReplaceAll(filepath.Clean(f), ".index", "")
		epoch := strings.Trim(strings.ReplaceAll(f, prefix, ""), ".")
		if !isDigits(epoch) {
			continue
		}
		if latest == "" || compareEpochs(epoch, latestEpoch) > 0 {
			latest, latestEpoch = f, epoch
		}
	}

	if latest == "" {
		if failSafe {
			return "", nil
		}
		return "", errors.Wrapf(ErrWeightsNotFound, "checkpoint path %s invalid", path)
	}
	return latest, nil
}

// Option configures ModelFromCheckpointPath.
type Option func(*options)

type options struct {
	registry *models.Registry
	provider providers.Config
}

// WithRegistry resolves architectures through r instead of models.DefaultRegistry.
func WithRegistry(r *models.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithProvider selects the execution provider for the loaded model.
func WithProvider(cfg providers.Config) Option {
	return func(o *options) {
		o.provider = cfg
	}
}

// ModelFromCheckpointPath builds the architecture recorded at path and loads its latest
// weights.
//
// Arguments:
//   - path: The checkpoint path prefix.
//   - opts: Registry and provider overrides.
//
// Returns:
//   - model.Model: The loaded model. The caller owns it and must Close it.
//   - error: ErrConfigNotFound, ErrWeightsNotFound, models.ErrUnknownArchitecture, or the
//     weight loading error.
func ModelFromCheckpointPath(path string, opts ...Option) (model.Model, error) {
	o := options{provider: providers.DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = models.DefaultRegistry()
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	weights, err := FindLatestCheckpoint(path, false)
	if err != nil {
		return nil, err
	}

	args := cfg.ModelArgs()
	args.Provider = o.provider

	m, err := o.registry.New(args)
	if err != nil {
		return nil, err
	}

	log.Printf("loaded weights %s", weights)
	if err := m.LoadWeights(weights); err != nil {
		m.Close()
		return nil, errors.Wrapf(err, "failed to load weights %s", weights)
	}
	return m, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// compareEpochs compares two decimal strings numerically without overflowing.
func compareEpochs(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
