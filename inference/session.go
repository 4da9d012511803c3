// Package inference - Inference sessions.
package inference

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nvr-ai/go-segmentation/inference/providers"
	ort "github.com/yalue/onnxruntime_go"
)

// NewSessionArgs represents the arguments for creating a new session.
type NewSessionArgs struct {
	// The path to the ONNX model file.
	ModelPath string
	// InputName and OutputName are the graph node names bound to the tensors.
	InputName  string
	OutputName string
	// InputShape and OutputShape are the fixed shapes of the bound tensors.
	InputShape  ort.Shape
	OutputShape ort.Shape
	// Provider selects the execution provider.
	Provider providers.Config
}

// Metrics summarizes the runs executed by a session.
type Metrics struct {
	InferenceCount int64         `json:"inference_count"`
	TotalTime      time.Duration `json:"total_time"`
	AverageTime    time.Duration `json:"average_time"`
}

// Session represents a model session from the onnxruntime with preallocated tensors.
//
// Run is serialized; the bound tensors are shared between calls.
type Session struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]

	mu             sync.Mutex
	inferenceCount int64
	totalTime      time.Duration
}

// NewSession creates a new session bound to one float32 input and one float32 output.
//
// Order of operations:
//  1. Environment setup: loads the native runtime once per process.
//  2. Tensor allocation: fixed-shape buffers for input/output data.
//  3. Session options: threading, graph optimization and the execution provider.
//  4. Session creation: loads the model and binds the tensors.
//
// Arguments:
//   - args: The arguments for the session.
//
// Returns:
//   - *Session: The session. Close must be called to release native resources.
//   - error: An error if the session creation fails.
func NewSession(args NewSessionArgs) (*Session, error) {
	if err := providers.InitializeEnvironment(args.Provider.LibraryPath); err != nil {
		return nil, err
	}

	input, err := ort.NewEmptyTensor[float32](args.InputShape)
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}

	output, err := ort.NewEmptyTensor[float32](args.OutputShape)
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}

	options, err := providers.NewSessionOptions(args.Provider)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewAdvancedSession(
		args.ModelPath,
		[]string{args.InputName},
		[]string{args.OutputName},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("error creating ORT session: %w", err)
	}

	return &Session{
		session: session,
		input:   input,
		output:  output,
	}, nil
}

// Run copies data into the input tensor, executes the model and returns a copy of the output.
//
// Arguments:
//   - ctx: Checked for cancellation before the run starts.
//   - data: The input values; must match the input tensor size exactly.
//
// Returns:
//   - []float32: The output values.
//   - error: An error if the input size is wrong or the run fails.
func (s *Session) Run(ctx context.Context, data []float32) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, fmt.Errorf("session is closed")
	}

	dst := s.input.GetData()
	if len(data) != len(dst) {
		return nil, fmt.Errorf("input holds %d values, tensor expects %d", len(data), len(dst))
	}
	copy(dst, data)

	start := time.Now()
	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("failed to run inference: %w", err)
	}
	s.inferenceCount++
	s.totalTime += time.Since(start)

	src := s.output.GetData()
	out := make([]float32, len(src))
	copy(out, src)
	return out, nil
}

// Metrics returns the run statistics collected so far.
func (s *Session) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := Metrics{InferenceCount: s.inferenceCount, TotalTime: s.totalTime}
	if s.inferenceCount > 0 {
		m.AverageTime = s.totalTime / time.Duration(s.inferenceCount)
	}
	return m
}

// Close releases the resources associated with the Session.
//
// Returns:
//   - error: An error if the native session fails to be destroyed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.input != nil {
		s.input.Destroy()
		s.input = nil
	}
	if s.output != nil {
		s.output.Destroy()
		s.output = nil
	}
	if s.session != nil {
		err := s.session.Destroy()
		s.session = nil
		if err != nil {
			return fmt.Errorf("error destroying ORT session: %w", err)
		}
	}
	return nil
}
