package segmentation

import "github.com/pkg/errors"

var (
	// ErrInvalidInput is returned when the prediction input is missing, empty or unreadable.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidInputShape is returned for tensors that cannot be read as an H×W×3 image.
	ErrInvalidInputShape = errors.New("invalid input shape")
	// ErrMissingPrecondition is returned when an option requires data that was not supplied.
	ErrMissingPrecondition = errors.New("missing precondition")
	// ErrMissingModel is returned when neither a model nor a checkpoint path is given.
	ErrMissingModel = errors.New("please provide the model or the checkpoints path")
)
