// Package providers - OpenVINO based execution provider.
package providers

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	// OpenVINOProviderBackend uses Intel OpenVINO for inference optimization.
	OpenVINOProviderBackend ProviderBackend = "openvino"
)

// OpenVINOProvider implements the ExecutionProvider interface.
type OpenVINOProvider struct {
	options OpenVINOOptions
}

// OpenVINOOptions contains arguments for the OpenVINO provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
type OpenVINOOptions struct {
	DeviceID string `json:"device_id" yaml:"device_id"`
	// DeviceType is CPU, GPU or NPU.
	DeviceType string `json:"device_type" yaml:"device_type"`
	// Precision is FP32, FP16 or ACCURACY.
	Precision    string `json:"precision"      yaml:"precision"`
	NumOfThreads int    `json:"num_of_threads" yaml:"num_of_threads"`
	// DisableDynamicShapes rewrites dynamic shaped models to static shapes at runtime.
	DisableDynamicShapes bool `json:"disable_dynamic_shapes" yaml:"disable_dynamic_shapes"`
}

// DefaultOpenVINOOptions returns FP32 CPU options.
func DefaultOpenVINOOptions() OpenVINOOptions {
	return OpenVINOOptions{
		DeviceID:     "0",
		DeviceType:   "CPU",
		Precision:    "FP32",
		NumOfThreads: 4,
	}
}

// isProviderOptions is a marker function to ensure the options are valid.
func (OpenVINOOptions) isProviderOptions() {}

// Backend returns the backend of the OpenVINO provider.
func (p *OpenVINOProvider) Backend() ProviderBackend {
	return OpenVINOProviderBackend
}

// Options returns the options of the OpenVINO provider.
func (p *OpenVINOProvider) Options() ProviderOptions {
	return p.options
}

// Apply registers OpenVINO on the session options.
func (p *OpenVINOProvider) Apply(options *ort.SessionOptions) error {
	err := options.AppendExecutionProviderOpenVINO(map[string]string{
		"device_id":              p.options.DeviceID,
		"device_type":            p.options.DeviceType,
		"precision":              p.options.Precision,
		"num_of_threads":         fmt.Sprintf("%d", p.options.NumOfThreads),
		"disable_dynamic_shapes": fmt.Sprintf("%t", p.options.DisableDynamicShapes),
	})
	if err != nil {
		return fmt.Errorf("error enabling OpenVINO: %w", err)
	}
	return nil
}

// NewOpenVINOProvider creates a new OpenVINO provider.
func NewOpenVINOProvider(args OpenVINOOptions) *OpenVINOProvider {
	return &OpenVINOProvider{
		options: args,
	}
}
