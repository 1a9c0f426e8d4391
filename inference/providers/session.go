// Package providers - Inference sessions.
package providers

import (
	"fmt"
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ErrSessionClosed is returned by Run after Close.
var ErrSessionClosed = errors.New("session is closed")

// environmentMu serializes the process-wide runtime initialization.
var environmentMu sync.Mutex

// Session represents a model session from the onnxruntime with a single
// preallocated input and output tensor. Run calls are serialized.
type Session struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// NewSessionArgs represents the arguments for creating a new ONNX session.
type NewSessionArgs struct {
	// The path to the ONNX model file.
	ModelPath string
	// The path to the ONNX Runtime shared library; empty selects the platform default.
	LibraryPath string
	// Input and output tensor names.
	InputName  string
	OutputName string
	// Input and output tensor shapes, including the batch dimension.
	InputShape  []int64
	OutputShape []int64
	// Thread counts; 0 uses the runtime default.
	IntraOpNumThreads int
	InterOpNumThreads int
}

// NewSession creates a new ONNX Runtime session with preallocated input and output
// tensors and the given execution provider.
//
// Order of operations:
//  1. Library path check: Ensures native runtime is accessible.
//  2. Environment setup: Required once per process.
//  3. Tensor allocation: Prepares fixed-shape buffers for input/output data.
//  4. Session options: threading, optimization level, execution provider.
//  5. Session creation: Loads model and binds the tensors.
//
// Arguments:
//   - provider: The execution provider for the session.
//   - args: The arguments for the session.
//
// Returns:
//   - *Session: The session. The caller closes it.
//   - error: An error if the session creation fails.
func NewSession(provider ExecutionProvider, args NewSessionArgs) (*Session, error) {
	if provider == nil {
		provider = NewCPUProvider()
	}
	if len(args.InputShape) == 0 || len(args.OutputShape) == 0 {
		return nil, errors.New("input and output shapes are required")
	}
	if _, err := os.Stat(args.ModelPath); err != nil {
		return nil, errors.Wrapf(err, "model not found at %s", args.ModelPath)
	}

	if err := initializeEnvironment(GetSharedLibPath(args.LibraryPath)); err != nil {
		return nil, err
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(args.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(args.OutputShape...))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}

	session, err := newAdvancedSession(provider, args, input, output)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, err
	}

	return &Session{
		session: session,
		input:   input,
		output:  output,
	}, nil
}

func newAdvancedSession(
	provider ExecutionProvider,
	args NewSessionArgs,
	input, output *ort.Tensor[float32],
) (*ort.AdvancedSession, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating ORT session options: %w", err)
	}
	defer options.Destroy()

	if err := options.SetIntraOpNumThreads(args.IntraOpNumThreads); err != nil {
		return nil, fmt.Errorf("error setting intra-op threads: %w", err)
	}
	if err := options.SetInterOpNumThreads(args.InterOpNumThreads); err != nil {
		return nil, fmt.Errorf("error setting inter-op threads: %w", err)
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		return nil, fmt.Errorf("error setting graph optimization level: %w", err)
	}
	if err := provider.Append(options); err != nil {
		return nil, err
	}

	session, err := ort.NewAdvancedSession(
		args.ModelPath,
		[]string{args.InputName},
		[]string{args.OutputName},
		[]ort.Value{input},
		[]ort.Value{output},
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("error creating ORT session: %w", err)
	}
	return session, nil
}

func initializeEnvironment(libPath string) error {
	environmentMu.Lock()
	defer environmentMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if _, err := os.Stat(libPath); err != nil {
		return errors.Wrapf(err, "ONNX Runtime library not found at %s", libPath)
	}

	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("error initializing ORT environment: %w", err)
	}
	return nil
}

// InputSize returns the number of values Run expects.
func (s *Session) InputSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.input == nil {
		return 0
	}
	return len(s.input.GetData())
}

// Run copies input into the session's input tensor, runs the model and returns a
// copy of the output tensor.
//
// Arguments:
//   - input: The flattened input tensor.
//
// Returns:
//   - []float32: The flattened output tensor.
//   - error: ErrSessionClosed, a size mismatch or a runtime error.
func (s *Session) Run(input []float32) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, ErrSessionClosed
	}

	dst := s.input.GetData()
	if len(input) != len(dst) {
		return nil, errors.Errorf("expected %d input values, got %d", len(dst), len(input))
	}
	copy(dst, input)

	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("failed to run inference: %w", err)
	}

	out := s.output.GetData()
	result := make([]float32, len(out))
	copy(result, out)
	return result, nil
}

// Close releases the resources associated with the Session. It is safe to call
// more than once.
//
// Returns:
//   - error: An error if the native session could not be destroyed.
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
