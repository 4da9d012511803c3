// Package models - registry for segmentation architectures.
package models

import (
	"sort"
	"sync"

	"github.com/nvr-ai/go-segmentation/models/model"
	"github.com/nvr-ai/go-segmentation/models/model/preprocess"
	"github.com/nvr-ai/go-segmentation/models/onnxseg"
	"github.com/pkg/errors"
)

// ErrUnknownArchitecture is returned for model names missing from a registry.
var ErrUnknownArchitecture = errors.New("unknown model architecture")

// Architecture is the fixed, name-derived geometry and input preparation of a network.
type Architecture struct {
	// OutputStride is the ratio between input and output resolution.
	OutputStride int `json:"output_stride" yaml:"output_stride"`
	// Normalization is the pixel normalization the network was trained with.
	Normalization preprocess.Normalization `json:"normalization" yaml:"normalization"`
	// Layout is the tensor layout the network consumes.
	Layout preprocess.ChannelOrder `json:"layout" yaml:"layout"`
}

// Dimensions derives the model geometry for the given arguments.
func (a Architecture) Dimensions(args model.NewModelArgs) model.Dimensions {
	stride := a.OutputStride
	if stride <= 0 {
		stride = 1
	}
	return model.Dimensions{
		InputWidth:   args.InputWidth,
		InputHeight:  args.InputHeight,
		OutputWidth:  args.InputWidth / stride,
		OutputHeight: args.InputHeight / stride,
		NClasses:     args.NClasses,
	}
}

// Preprocess returns the preprocessing configuration for the given arguments.
func (a Architecture) Preprocess(args model.NewModelArgs) preprocess.ModelConfig {
	return preprocess.ModelConfig{
		Name:          string(args.Name),
		InputWidth:    args.InputWidth,
		InputHeight:   args.InputHeight,
		Normalization: a.Normalization,
		ChannelOrder:  a.Layout,
	}
}

// Constructor builds an unloaded model for an architecture.
type Constructor func(args model.NewModelArgs, arch Architecture) (model.Model, error)

type entry struct {
	arch Architecture
	ctor Constructor
}

// Registry maps architecture names to constructors.
type Registry struct {
	mu      sync.RWMutex
	entries map[model.Name]entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[model.Name]entry)}
}

// Register binds name to arch and ctor, replacing any previous binding.
func (r *Registry) Register(name model.Name, arch Architecture, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = entry{arch: arch, ctor: ctor}
}

// Lookup returns the architecture registered under name.
func (r *Registry) Lookup(name model.Name) (Architecture, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return Architecture{}, errors.Wrapf(ErrUnknownArchitecture, "%q", name)
	}
	return e.arch, nil
}

// Names returns the registered names in lexical order.
func (r *Registry) Names() []model.Name {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]model.Name, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// New creates a new segmentation model instance based on args.Name.
//
// Arguments:
//   - args: The architecture name, class count and input geometry.
//
// Returns:
//   - model.Model: The constructed model. Weights are not loaded yet.
//   - error: ErrUnknownArchitecture for unregistered names, or the constructor's error.
//
// Example:
//
//	m, err := models.DefaultRegistry().New(model.NewModelArgs{
//	    Name:        model.ModelNameVGGUNet,
//	    NClasses:    51,
//	    InputHeight: 416,
//	    InputWidth:  608,
//	})
func (r *Registry) New(args model.NewModelArgs) (model.Model, error) {
	r.mu.RLock()
	e, ok := r.entries[args.Name]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.Wrapf(ErrUnknownArchitecture, "%q", args.Name)
	}
	m, err := e.ctor(args, e.arch)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %s model", args.Name)
	}
	return m, nil
}

// Architectures lists every known network. Encoder-decoder networks that stop one
// upsampling short of the input resolution have an output stride of 2.
var Architectures = map[model.Name]Architecture{
	model.ModelNameFCN8:            fullResolution,
	model.ModelNameFCN32:           fullResolution,
	model.ModelNameFCN8VGG:         fullResolution,
	model.ModelNameFCN32VGG:        fullResolution,
	model.ModelNameFCN8ResNet50:    fullResolution,
	model.ModelNameFCN32ResNet50:   fullResolution,
	model.ModelNameFCN8MobileNet:   fullResolution,
	model.ModelNameFCN32MobileNet:  fullResolution,
	model.ModelNamePSPNet:          fullResolution,
	model.ModelNameVGGPSPNet:       fullResolution,
	model.ModelNameResNet50PSPNet:  fullResolution,
	model.ModelNameUNetMini:        fullResolution,
	model.ModelNameUNet:            halfResolution,
	model.ModelNameVGGUNet:         halfResolution,
	model.ModelNameResNet50UNet:    halfResolution,
	model.ModelNameMobileNetUNet:   halfResolution,
	model.ModelNameSegNet:          halfResolution,
	model.ModelNameVGGSegNet:       halfResolution,
	model.ModelNameResNet50SegNet:  halfResolution,
	model.ModelNameMobileNetSegNet: halfResolution,
}

var (
	fullResolution = Architecture{
		OutputStride:  1,
		Normalization: preprocess.NormalizeSubMean,
		Layout:        preprocess.ChannelOrderHWC,
	}
	halfResolution = Architecture{
		OutputStride:  2,
		Normalization: preprocess.NormalizeSubMean,
		Layout:        preprocess.ChannelOrderHWC,
	}
)

// NewONNXModel is the Constructor for ONNX Runtime backed models.
func NewONNXModel(args model.NewModelArgs, arch Architecture) (model.Model, error) {
	return onnxseg.NewModel(onnxseg.NewModelArgs{
		Name:       args.Name,
		Dimensions: arch.Dimensions(args),
		Preprocess: arch.Preprocess(args),
		Provider:   args.Provider,
	})
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the process-wide registry binding every name in Architectures to
// NewONNXModel.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
		for name, arch := range Architectures {
			defaultRegistry.Register(name, arch, NewONNXModel)
		}
	})
	return defaultRegistry
}

// NewModel creates a model through the default registry.
func NewModel(args model.NewModelArgs) (model.Model, error) {
	return DefaultRegistry().New(args)
}
