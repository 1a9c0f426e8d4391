// Package providers - ONNX Runtime execution providers and sessions.
package providers

import (
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ProviderBackend represents different ONNX Runtime execution providers.
type ProviderBackend string

// ErrUnsupportedBackend is returned for a backend with no registered provider.
var ErrUnsupportedBackend = errors.New("unsupported provider backend")

// ProviderOptions is a marker interface for provider-specific config.
type ProviderOptions interface {
	isProviderOptions()
}

// ExecutionProvider represents the contract that all execution providers must implement.
type ExecutionProvider interface {
	// Backend identifies the provider.
	Backend() ProviderBackend
	// Options returns the provider-specific options.
	Options() ProviderOptions
	// Append registers the provider on the session options. The CPU provider is
	// always available and appends nothing.
	Append(options *ort.SessionOptions) error
}

// NewProvider creates a new provider based on the required backend.
//
// Arguments:
//   - config: The provider configuration. Only the options of the selected backend are used.
//
// Returns:
//   - ExecutionProvider: The new provider.
//   - error: ErrUnsupportedBackend if the backend is unknown.
func NewProvider(config Config) (ExecutionProvider, error) {
	switch config.Backend {
	case "", CPUProviderBackend:
		return NewCPUProvider(), nil
	case CUDAProviderBackend:
		return NewCUDAProvider(config.CUDA), nil
	case CoreMLProviderBackend:
		return NewCoreMLProvider(config.CoreML), nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedBackend, "%q", config.Backend)
	}
}
