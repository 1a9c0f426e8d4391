package inference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nvr-ai/go-tinyyolo/inference/providers"
	"github.com/nvr-ai/go-tinyyolo/models"
	"github.com/nvr-ai/go-tinyyolo/models/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineBuilder_Errors(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		e, err := NewEngineBuilder().Build()
		require.Error(t, err)
		assert.Nil(t, e)
	})

	t.Run("unsupported backend", func(t *testing.T) {
		b := NewEngineBuilder().WithProvider(providers.Config{Backend: "tpu"})
		assert.True(t, b.HasError())
		_, err := b.WithModel(model.NewModelArgs{Name: model.ModelNameTinyYOLOv2}).WithDetector().Build()
		assert.ErrorIs(t, err, providers.ErrUnsupportedBackend)
	})

	t.Run("model without provider", func(t *testing.T) {
		_, err := NewEngineBuilder().WithModel(model.NewModelArgs{Name: model.ModelNameTinyYOLOv2}).Build()
		assert.EqualError(t, err, "provider not configured")
	})

	t.Run("unsupported model", func(t *testing.T) {
		_, err := NewEngineBuilder().
			WithProvider(providers.DefaultConfig()).
			WithModel(model.NewModelArgs{Name: "yolov4"}).
			WithDetector().
			Build()
		assert.ErrorIs(t, err, models.ErrUnsupportedModel)
	})

	t.Run("missing model file", func(t *testing.T) {
		_, err := NewEngineBuilder().
			WithProvider(providers.DefaultConfig()).
			WithModel(model.NewModelArgs{
				Name: model.ModelNameTinyYOLOv2,
				Path: filepath.Join(t.TempDir(), "missing.onnx"),
			}).
			WithDetector().
			Build()
		require.Error(t, err)
	})

	t.Run("detector without model", func(t *testing.T) {
		_, err := NewEngineBuilder().WithProvider(providers.DefaultConfig()).WithDetector().Build()
		assert.EqualError(t, err, "model not configured")
	})
}

// TestEngine_Detect needs the native runtime and the model:
// TINYYOLO_TEST_ORT_LIB and TINYYOLO_TEST_MODEL.
func TestEngine_Detect(t *testing.T) {
	lib := os.Getenv("TINYYOLO_TEST_ORT_LIB")
	path := os.Getenv("TINYYOLO_TEST_MODEL")
	if lib == "" || path == "" {
		t.Skip("TINYYOLO_TEST_ORT_LIB and TINYYOLO_TEST_MODEL not set")
	}

	e, err := NewEngineBuilder().
		WithProvider(providers.Config{Backend: providers.CPUProviderBackend, LibraryPath: lib}).
		WithModel(model.NewModelArgs{Name: model.ModelNameTinyYOLOv2, Path: path}).
		WithDetector().
		Build()
	require.NoError(t, err)
	defer e.Close()
}
