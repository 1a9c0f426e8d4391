package providers

import (
	"github.com/pkg/errors"
)

// Config selects the execution provider and the session-wide runtime settings.
type Config struct {
	// Backend specifies the backend to use: cpu, cuda or coreml.
	Backend ProviderBackend `json:"backend" yaml:"backend" koanf:"backend"`
	// LibraryPath points at the ONNX Runtime shared library. Empty selects the
	// platform default, see GetSharedLibPath.
	LibraryPath string `json:"libraryPath" yaml:"libraryPath" koanf:"librarypath"`
	// IntraOpNumThreads parallelizes execution within graph nodes. 0 uses the runtime default.
	IntraOpNumThreads int `json:"intraOpNumThreads" yaml:"intraOpNumThreads" koanf:"intraopnumthreads"`
	// InterOpNumThreads parallelizes execution across graph nodes. 0 uses the runtime default.
	InterOpNumThreads int `json:"interOpNumThreads" yaml:"interOpNumThreads" koanf:"interopnumthreads"`
	// CUDA options, used when Backend is cuda.
	CUDA CUDAOptions `json:"cuda" yaml:"cuda" koanf:"cuda"`
	// CoreML options, used when Backend is coreml.
	CoreML CoreMLOptions `json:"coreml" yaml:"coreml" koanf:"coreml"`
}

// DefaultConfig returns a CPU configuration with runtime-chosen thread counts.
func DefaultConfig() Config {
	return Config{Backend: CPUProviderBackend}
}

// Validate checks the backend name and thread counts.
func (c Config) Validate() error {
	switch c.Backend {
	case "", CPUProviderBackend, CUDAProviderBackend, CoreMLProviderBackend:
	default:
		return errors.Wrapf(ErrUnsupportedBackend, "%q", c.Backend)
	}
	if c.IntraOpNumThreads < 0 || c.InterOpNumThreads < 0 {
		return errors.Errorf("thread counts must not be negative, got intra=%d inter=%d",
			c.IntraOpNumThreads, c.InterOpNumThreads)
	}
	return nil
}
