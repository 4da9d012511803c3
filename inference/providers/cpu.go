// Package providers - CPU based execution provider.
package providers

import ort "github.com/yalue/onnxruntime_go"

// CPUProvider implements the ExecutionProvider interface.
type CPUProvider struct {
	options CPUOptions
}

// CPUOptions carries no settings; the CPU provider is always registered by the runtime.
type CPUOptions struct{}

func (CPUOptions) isProviderOptions() {}

// Backend returns the backend of the CPU provider.
func (p *CPUProvider) Backend() ProviderBackend {
	return CPUProviderBackend
}

// Options returns the options of the CPU provider.
func (p *CPUProvider) Options() ProviderOptions {
	return p.options
}

// Apply is a no-op for the CPU provider.
func (p *CPUProvider) Apply(_ *ort.SessionOptions) error {
	return nil
}

// NewCPUProvider creates a new CPU provider.
func NewCPUProvider() *CPUProvider {
	return &CPUProvider{}
}
