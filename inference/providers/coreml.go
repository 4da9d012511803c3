// Package providers - CoreML based execution provider.
package providers

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	// CoreMLProviderBackend uses Apple CoreML for macOS/iOS acceleration.
	CoreMLProviderBackend ProviderBackend = "coreml"
)

// CoreMLProvider implements the ExecutionProvider interface.
type CoreMLProvider struct {
	options CoreMLOptions
}

// CoreMLOptions contains arguments for the CoreML provider.
// See: https://onnxruntime.ai/docs/execution-providers/CoreML-ExecutionProvider.html
type CoreMLOptions struct {
	// ModelFormat is MLProgram or NeuralNetwork.
	ModelFormat string `json:"model_format" yaml:"model_format"`
	// MLComputeUnits is CPUOnly, CPUAndNeuralEngine, CPUAndGPU or ALL.
	MLComputeUnits string `json:"ml_compute_units" yaml:"ml_compute_units"`
	// RequireStaticInputShapes restricts CoreML to nodes with static input shapes.
	RequireStaticInputShapes bool `json:"require_static_input_shapes" yaml:"require_static_input_shapes"`
	// ModelCacheDirectory keeps compiled CoreML graphs between runs when set.
	ModelCacheDirectory string `json:"model_cache_directory" yaml:"model_cache_directory"`
}

// DefaultCoreMLOptions returns options that let CoreML pick any compute unit.
func DefaultCoreMLOptions() CoreMLOptions {
	return CoreMLOptions{
		ModelFormat:    "NeuralNetwork",
		MLComputeUnits: "ALL",
	}
}

func (CoreMLOptions) isProviderOptions() {}

// Backend returns the backend of the CoreML provider.
func (p *CoreMLProvider) Backend() ProviderBackend {
	return CoreMLProviderBackend
}

// Options returns the options of the CoreML provider.
func (p *CoreMLProvider) Options() ProviderOptions {
	return p.options
}

// Apply registers CoreML on the session options.
func (p *CoreMLProvider) Apply(options *ort.SessionOptions) error {
	settings := map[string]string{
		"ModelFormat":              p.options.ModelFormat,
		"MLComputeUnits":           p.options.MLComputeUnits,
		"RequireStaticInputShapes": boolFlag(p.options.RequireStaticInputShapes),
	}
	if p.options.ModelCacheDirectory != "" {
		settings["ModelCacheDirectory"] = p.options.ModelCacheDirectory
	}
	if err := options.AppendExecutionProviderCoreMLV2(settings); err != nil {
		return fmt.Errorf("error enabling CoreML: %w", err)
	}
	return nil
}

// NewCoreMLProvider creates a new CoreML provider.
func NewCoreMLProvider(options CoreMLOptions) *CoreMLProvider {
	return &CoreMLProvider{
		options: options,
	}
}
