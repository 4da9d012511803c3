// Package model - Definitions shared by segmentation model backends.
package model

import (
	"context"

	"github.com/nvr-ai/go-segmentation/inference/providers"
	"github.com/nvr-ai/go-segmentation/models/model/preprocess"
)

// Name is the unique identifier of a model architecture.
type Name string

const (
	// ModelNameFCN8 is the FCN-8 architecture on its own encoder.
	ModelNameFCN8 Name = "fcn_8"
	// ModelNameFCN32 is the FCN-32 architecture on its own encoder.
	ModelNameFCN32 Name = "fcn_32"
	// ModelNameFCN8VGG is FCN-8 on a VGG16 encoder.
	ModelNameFCN8VGG Name = "fcn_8_vgg"
	// ModelNameFCN32VGG is FCN-32 on a VGG16 encoder.
	ModelNameFCN32VGG Name = "fcn_32_vgg"
	// ModelNameFCN8ResNet50 is FCN-8 on a ResNet-50 encoder.
	ModelNameFCN8ResNet50 Name = "fcn_8_resnet50"
	// ModelNameFCN32ResNet50 is FCN-32 on a ResNet-50 encoder.
	ModelNameFCN32ResNet50 Name = "fcn_32_resnet50"
	// ModelNameFCN8MobileNet is FCN-8 on a MobileNet encoder.
	ModelNameFCN8MobileNet Name = "fcn_8_mobilenet"
	// ModelNameFCN32MobileNet is FCN-32 on a MobileNet encoder.
	ModelNameFCN32MobileNet Name = "fcn_32_mobilenet"
	// ModelNamePSPNet is PSPNet on its own encoder.
	ModelNamePSPNet Name = "pspnet"
	// ModelNameVGGPSPNet is PSPNet on a VGG16 encoder.
	ModelNameVGGPSPNet Name = "vgg_pspnet"
	// ModelNameResNet50PSPNet is PSPNet on a ResNet-50 encoder.
	ModelNameResNet50PSPNet Name = "resnet50_pspnet"
	// ModelNameUNetMini is the small U-Net.
	ModelNameUNetMini Name = "unet_mini"
	// ModelNameUNet is U-Net on its own encoder.
	ModelNameUNet Name = "unet"
	// ModelNameVGGUNet is U-Net on a VGG16 encoder.
	ModelNameVGGUNet Name = "vgg_unet"
	// ModelNameResNet50UNet is U-Net on a ResNet-50 encoder.
	ModelNameResNet50UNet Name = "resnet50_unet"
	// ModelNameMobileNetUNet is U-Net on a MobileNet encoder.
	ModelNameMobileNetUNet Name = "mobilenet_unet"
	// ModelNameSegNet is SegNet on its own encoder.
	ModelNameSegNet Name = "segnet"
	// ModelNameVGGSegNet is SegNet on a VGG16 encoder.
	ModelNameVGGSegNet Name = "vgg_segnet"
	// ModelNameResNet50SegNet is SegNet on a ResNet-50 encoder.
	ModelNameResNet50SegNet Name = "resnet50_segnet"
	// ModelNameMobileNetSegNet is SegNet on a MobileNet encoder.
	ModelNameMobileNetSegNet Name = "mobilenet_segnet"
)

// Dimensions are the fixed geometry of a model.
type Dimensions struct {
	InputWidth   int `json:"input_width"   yaml:"input_width"`
	InputHeight  int `json:"input_height"  yaml:"input_height"`
	OutputWidth  int `json:"output_width"  yaml:"output_width"`
	OutputHeight int `json:"output_height" yaml:"output_height"`
	NClasses     int `json:"n_classes"     yaml:"n_classes"`
}

// OutputSize returns the number of scores a single prediction holds.
func (d Dimensions) OutputSize() int {
	return d.OutputHeight * d.OutputWidth * d.NClasses
}

// Model is an opaque, loaded segmentation network.
type Model interface {
	// Dimensions returns the input and output geometry.
	Dimensions() Dimensions
	// Preprocess returns the input preparation the network was trained with.
	Preprocess() preprocess.ModelConfig
	// Predict runs a single-element batch and returns OutputHeight*OutputWidth*NClasses scores
	// laid out as (row, column, class).
	Predict(ctx context.Context, batch []float32) ([]float32, error)
	// LoadWeights restores the weights stored at path.
	LoadWeights(path string) error
	// Close releases the resources held by the model.
	Close() error
}

// NewModelArgs is the arguments for creating a new model.
type NewModelArgs struct {
	Name        Name             `json:"model_class"  yaml:"model_class"`
	NClasses    int              `json:"n_classes"    yaml:"n_classes"`
	InputHeight int              `json:"input_height" yaml:"input_height"`
	InputWidth  int              `json:"input_width"  yaml:"input_width"`
	Provider    providers.Config `json:"provider"     yaml:"provider"`
}
