// Package providers - CoreML based execution provider.
package providers

import (
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	// CoreMLProviderBackend uses Apple CoreML for macOS/iOS acceleration.
	CoreMLProviderBackend ProviderBackend = "coreml"
)

// CoreML provider flags, as defined by coreml_provider_factory.h.
const (
	coreMLFlagUseCPUOnly                 uint32 = 0x001
	coreMLFlagEnableOnSubgraph           uint32 = 0x002
	coreMLFlagOnlyEnableDeviceWithANE    uint32 = 0x004
	coreMLFlagOnlyAllowStaticInputShapes uint32 = 0x008
	coreMLFlagCreateMLProgram            uint32 = 0x010
)

// CoreMLOptions contains arguments for the CoreML provider.
// See: https://onnxruntime.ai/docs/execution-providers/CoreML-ExecutionProvider.html
type CoreMLOptions struct {
	// Limit CoreML to running on CPU only.
	CPUOnly bool `json:"cpuOnly" yaml:"cpuOnly" koanf:"cpuonly"`
	// Enable CoreML on subgraphs in the body of control flow operators.
	EnableOnSubgraphs bool `json:"enableOnSubgraphs" yaml:"enableOnSubgraphs" koanf:"enableonsubgraphs"`
	// Only enable CoreML on devices with an Apple Neural Engine.
	OnlyEnableDeviceWithANE bool `json:"onlyEnableDeviceWithANE" yaml:"onlyEnableDeviceWithANE" koanf:"onlyenabledevicewithane"`
	// Only allow nodes whose inputs have static shapes.
	RequireStaticInputShapes bool `json:"requireStaticInputShapes" yaml:"requireStaticInputShapes" koanf:"requirestaticinputshapes"`
	// Create an MLProgram format model instead of a NeuralNetwork.
	MLProgram bool `json:"mlProgram" yaml:"mlProgram" koanf:"mlprogram"`
}

func (CoreMLOptions) isProviderOptions() {}

// Flags packs the options into the CoreML provider flag word.
func (o CoreMLOptions) Flags() uint32 {
	var flags uint32
	if o.CPUOnly {
		flags |= coreMLFlagUseCPUOnly
	}
	if o.EnableOnSubgraphs {
		flags |= coreMLFlagEnableOnSubgraph
	}
	if o.OnlyEnableDeviceWithANE {
		flags |= coreMLFlagOnlyEnableDeviceWithANE
	}
	if o.RequireStaticInputShapes {
		flags |= coreMLFlagOnlyAllowStaticInputShapes
	}
	if o.MLProgram {
		flags |= coreMLFlagCreateMLProgram
	}
	return flags
}

// CoreMLProvider implements the ExecutionProvider interface.
type CoreMLProvider struct {
	options CoreMLOptions
}

// NewCoreMLProvider creates a new CoreML provider.
func NewCoreMLProvider(options CoreMLOptions) *CoreMLProvider {
	return &CoreMLProvider{options: options}
}

// Backend returns the backend of the CoreML provider.
func (p *CoreMLProvider) Backend() ProviderBackend {
	return CoreMLProviderBackend
}

// Options returns the options of the CoreML provider.
func (p *CoreMLProvider) Options() ProviderOptions {
	return p.options
}

// Append enables CoreML on the session options.
func (p *CoreMLProvider) Append(options *ort.SessionOptions) error {
	if err := options.AppendExecutionProviderCoreML(p.options.Flags()); err != nil {
		return errors.Wrap(err, "error enabling CoreML")
	}
	return nil
}
