// Package providers - CUDA based execution provider.
package providers

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	// CUDAProviderBackend uses NVIDIA CUDA for inference optimization.
	CUDAProviderBackend ProviderBackend = "cuda"
)

// CUDAProvider implements the ExecutionProvider interface.
type CUDAProvider struct {
	options CUDAOptions
}

// CUDAOptions contains arguments for the CUDA provider. Keys follow the runtime's
// CUDA provider option names.
// See:
// https://onnxruntime.ai/docs/execution-providers/CUDA-ExecutionProvider.html#configuration-options
type CUDAOptions struct {
	DeviceID                int  `json:"device_id"                   yaml:"device_id"`
	DoCopyInDefaultStream   bool `json:"do_copy_in_default_stream"   yaml:"do_copy_in_default_stream"`
	UseEPLevelUnifiedStream bool `json:"use_ep_level_unified_stream" yaml:"use_ep_level_unified_stream"`
	// GPUMemLimit caps the provider's arena in bytes. 0 leaves the runtime default.
	GPUMemLimit int64 `json:"gpu_mem_limit" yaml:"gpu_mem_limit"`
	// ArenaExtendStrategy is 0 for kNextPowerOfTwo, 1 for kSameAsRequested.
	ArenaExtendStrategy int `json:"arena_extend_strategy" yaml:"arena_extend_strategy"`
	// CudnnConvAlgoSearch is 0 EXHAUSTIVE, 1 HEURISTIC, 2 DEFAULT.
	CudnnConvAlgoSearch           int `json:"cudnn_conv_algo_search"             yaml:"cudnn_conv_algo_search"`
	CudnnConvUseMaxWorkspace      int `json:"cudnn_conv_use_max_workspace"       yaml:"cudnn_conv_use_max_workspace"`
	CudnnConv1dPadToNC1d          int `json:"cudnn_conv1d_pad_to_nc1d"           yaml:"cudnn_conv1d_pad_to_nc1d"`
	EnableCudaGraph               int `json:"enable_cuda_graph"                  yaml:"enable_cuda_graph"`
	EnableSkipLayerNormStrictMode int `json:"enable_skip_layer_norm_strict_mode" yaml:"enable_skip_layer_norm_strict_mode"`
	UseTF32                       int `json:"use_tf32"                           yaml:"use_tf32"`
	PreferNHWC                    int `json:"prefer_nhwc"                        yaml:"prefer_nhwc"`
}

// ToNativeProviderOptions converts the options into native CUDA provider options.
// The caller must Destroy the result.
func (o *CUDAOptions) ToNativeProviderOptions() (*ort.CUDAProviderOptions, error) {
	opts, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return nil, err
	}

	settings := map[string]string{
		"device_id":                          fmt.Sprintf("%d", o.DeviceID),
		"do_copy_in_default_stream":          boolFlag(o.DoCopyInDefaultStream),
		"use_ep_level_unified_stream":        boolFlag(o.UseEPLevelUnifiedStream),
		"arena_extend_strategy":              arenaStrategy(o.ArenaExtendStrategy),
		"cudnn_conv_use_max_workspace":       fmt.Sprintf("%d", o.CudnnConvUseMaxWorkspace),
		"cudnn_conv1d_pad_to_nc1d":           fmt.Sprintf("%d", o.CudnnConv1dPadToNC1d),
		"enable_cuda_graph":                  fmt.Sprintf("%d", o.EnableCudaGraph),
		"enable_skip_layer_norm_strict_mode": fmt.Sprintf("%d", o.EnableSkipLayerNormStrictMode),
		"use_tf32":                           fmt.Sprintf("%d", o.UseTF32),
		"prefer_nhwc":                        fmt.Sprintf("%d", o.PreferNHWC),
	}
	if o.GPUMemLimit > 0 {
		settings["gpu_mem_limit"] = fmt.Sprintf("%d", o.GPUMemLimit)
	}
	if algo, ok := cudnnSearch[o.CudnnConvAlgoSearch]; ok {
		settings["cudnn_conv_algo_search"] = algo
	}

	if err := opts.Update(settings); err != nil {
		opts.Destroy()
		return nil, err
	}

	return opts, nil
}

// isProviderOptions is a marker function to ensure the options are valid.
func (CUDAOptions) isProviderOptions() {}

// Backend returns the backend of the CUDA provider.
func (p *CUDAProvider) Backend() ProviderBackend {
	return CUDAProviderBackend
}

// Options returns the options of the CUDA provider.
func (p *CUDAProvider) Options() ProviderOptions {
	return p.options
}

// Apply registers CUDA on the session options.
func (p *CUDAProvider) Apply(options *ort.SessionOptions) error {
	cuda, err := p.options.ToNativeProviderOptions()
	if err != nil {
		return fmt.Errorf("error converting CUDA options: %w", err)
	}
	defer cuda.Destroy()

	if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
		return fmt.Errorf("error enabling CUDA: %w", err)
	}
	return nil
}

// NewCUDAProvider creates a new CUDA provider.
func NewCUDAProvider(args CUDAOptions) *CUDAProvider {
	return &CUDAProvider{
		options: args,
	}
}

var cudnnSearch = map[int]string{
	0: "EXHAUSTIVE",
	1: "HEURISTIC",
	2: "DEFAULT",
}

func arenaStrategy(v int) string {
	if v == 1 {
		return "kSameAsRequested"
	}
	return "kNextPowerOfTwo"
}

func boolFlag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
