// Package providers - Execution providers for segmentation model sessions.
package providers

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// ProviderBackend represents different ONNX Runtime execution providers.
type ProviderBackend string

const (
	// CPUProviderBackend runs the model on the default CPU execution provider.
	CPUProviderBackend ProviderBackend = "cpu"
)

// ProviderOptions is a marker interface for provider-specific config.
type ProviderOptions interface {
	isProviderOptions()
}

// ExecutionProvider represents the contract that all execution providers must implement.
type ExecutionProvider interface {
	Backend() ProviderBackend
	Options() ProviderOptions
	// Apply registers the provider on the session options before a session is created.
	Apply(options *ort.SessionOptions) error
}

// Config selects the execution provider and the runtime knobs shared by every backend.
//
// Only the options block matching Backend is read.
type Config struct {
	// Backend specifies the backend to use.
	Backend ProviderBackend `json:"backend" yaml:"backend"`
	// LibraryPath overrides the onnxruntime shared library location.
	LibraryPath string `json:"library_path" yaml:"library_path"`
	// IntraOpNumThreads parallelizes execution within graph nodes. 0 uses the runtime default.
	IntraOpNumThreads int `json:"intra_op_num_threads" yaml:"intra_op_num_threads"`
	// InterOpNumThreads parallelizes execution across graph nodes. 0 uses the runtime default.
	InterOpNumThreads int `json:"inter_op_num_threads" yaml:"inter_op_num_threads"`

	CUDA     *CUDAOptions     `json:"cuda,omitempty" yaml:"cuda,omitempty"`
	CoreML   *CoreMLOptions   `json:"coreml,omitempty" yaml:"coreml,omitempty"`
	OpenVINO *OpenVINOOptions `json:"openvino,omitempty" yaml:"openvino,omitempty"`
}

// DefaultConfig returns a CPU configuration using the platform library path.
//
// Returns:
//   - Config: The default configuration.
func DefaultConfig() Config {
	return Config{
		Backend:     CPUProviderBackend,
		LibraryPath: GetSharedLibPath(),
	}
}

// NewProvider creates a new provider based on the required backend.
//
// Arguments:
//   - config: The provider configuration.
//
// Returns:
//   - ExecutionProvider: The new provider.
//   - error: An error if the backend is not supported.
func NewProvider(config Config) (ExecutionProvider, error) {
	switch config.Backend {
	case "", CPUProviderBackend:
		return NewCPUProvider(), nil
	case CUDAProviderBackend:
		opts := CUDAOptions{}
		if config.CUDA != nil {
			opts = *config.CUDA
		}
		return NewCUDAProvider(opts), nil
	case CoreMLProviderBackend:
		opts := DefaultCoreMLOptions()
		if config.CoreML != nil {
			opts = *config.CoreML
		}
		return NewCoreMLProvider(opts), nil
	case OpenVINOProviderBackend:
		opts := DefaultOpenVINOOptions()
		if config.OpenVINO != nil {
			opts = *config.OpenVINO
		}
		return NewOpenVINOProvider(opts), nil
	default:
		return nil, fmt.Errorf("unsupported provider backend: %s", config.Backend)
	}
}

// NewSessionOptions builds session options for the configured provider.
//
// The caller owns the returned options and must Destroy them.
//
// Arguments:
//   - config: The provider configuration.
//
// Returns:
//   - *ort.SessionOptions: Options with threading, graph optimization and the provider applied.
//   - error: An error if any option is rejected by the runtime.
func NewSessionOptions(config Config) (*ort.SessionOptions, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating ORT session options: %w", err)
	}

	if err := options.SetIntraOpNumThreads(config.IntraOpNumThreads); err != nil {
		options.Destroy()
		return nil, fmt.Errorf("error setting intra-op threads: %w", err)
	}
	if err := options.SetInterOpNumThreads(config.InterOpNumThreads); err != nil {
		options.Destroy()
		return nil, fmt.Errorf("error setting inter-op threads: %w", err)
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		options.Destroy()
		return nil, fmt.Errorf("error setting graph optimization level: %w", err)
	}

	if err := provider.Apply(options); err != nil {
		options.Destroy()
		return nil, err
	}

	return options, nil
}
