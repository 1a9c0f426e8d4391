// Package config loads the application configuration from defaults, an optional
// YAML file and TINYYOLO_ environment variables, in that order of precedence.
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/nvr-ai/go-tinyyolo/inference/providers"
	"github.com/nvr-ai/go-tinyyolo/models/model"
	"github.com/nvr-ai/go-tinyyolo/models/postprocess"
	"github.com/pkg/errors"
)

// EnvPrefix prefixes every environment override. TINYYOLO_DETECTOR_LIMIT sets
// detector.limit.
const EnvPrefix = "TINYYOLO_"

// ModelConfig related to the model file and the runtime that executes it.
type ModelConfig struct {
	Name model.Name `koanf:"name"`
	// Path of the app-writable model copy the session loads.
	Path string `koanf:"path"`
	// AssetSource is the bundled model copied to Path when Path does not exist yet.
	AssetSource string           `koanf:"assetsource"`
	Provider    providers.Config `koanf:"provider"`
}

// DetectorConfig related to decoding and suppression.
type DetectorConfig struct {
	ScoreThreshold float32 `koanf:"scorethreshold"`
	Limit          int     `koanf:"limit"`
	IoUThreshold   float32 `koanf:"iouthreshold"`
	Strict         bool    `koanf:"strict"`
}

// CameraConfig related to live capture.
type CameraConfig struct {
	Device   int           `koanf:"device"`
	Interval time.Duration `koanf:"interval"`
	Window   bool          `koanf:"window"`
}

// SnapshotsConfig related to batch detection.
type SnapshotsConfig struct {
	Dir string `koanf:"dir"`
}

// LogConfig related to logging.
type LogConfig struct {
	Debug bool `koanf:"debug"`
}

// AppConfig defines the whole configuration.
type AppConfig struct {
	Model     ModelConfig     `koanf:"model"`
	Detector  DetectorConfig  `koanf:"detector"`
	Camera    CameraConfig    `koanf:"camera"`
	Snapshots SnapshotsConfig `koanf:"snapshots"`
	Log       LogConfig       `koanf:"log"`
}

var defaults = map[string]any{
	"model.name":              string(model.ModelNameTinyYOLOv2),
	"model.path":              "models/TinyYolo2_model.onnx",
	"model.assetsource":       "assets/TinyYolo2_model.onnx",
	"model.provider.backend":  string(providers.CPUProviderBackend),
	"detector.scorethreshold": 0.3,
	"detector.limit":          postprocess.DefaultLimit,
	"detector.iouthreshold":   postprocess.DefaultIoUThreshold,
	"detector.strict":         false,
	"camera.device":           0,
	"camera.interval":         "1s",
	"camera.window":           true,
	"snapshots.dir":           "snapshots",
	"log.debug":               false,
}

// Load builds the configuration.
//
// Arguments:
//   - filePath: A YAML file; empty skips the file layer.
//
// Returns:
//   - *AppConfig: The validated configuration.
//   - error: If a layer fails to load or the result is invalid.
func Load(filePath string) (*AppConfig, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load defaults")
	}

	if filePath != "" {
		if err := k.Load(file.Provider(filePath), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load %s", filePath)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(s string, v string) (string, any) {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
		return key, v
	}), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load environment")
	}

	var c AppConfig
	if err := k.Unmarshal("", &c); err != nil {
		return nil, errors.Wrap(err, "failed to decode configuration")
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate enforces the ranges the detector and scheduler need.
func (c *AppConfig) Validate() error {
	if c.Model.Path == "" {
		return errors.New("model.path is required")
	}
	if err := c.Model.Provider.Validate(); err != nil {
		return errors.Wrap(err, "model.provider")
	}
	if !postprocess.InUnitInterval(c.Detector.ScoreThreshold) {
		return errors.Wrapf(postprocess.ErrInvalidArgument,
			"detector.scorethreshold must be in [0, 1], got %v", c.Detector.ScoreThreshold)
	}
	if err := c.NMS().Validate(); err != nil {
		return errors.Wrap(err, "detector")
	}
	if c.Camera.Interval <= 0 {
		return errors.Errorf("camera.interval must be positive, got %s", c.Camera.Interval)
	}
	return nil
}

// NMS returns the suppression settings.
func (c *AppConfig) NMS() postprocess.NMSConfig {
	return postprocess.NMSConfig{
		Limit:        c.Detector.Limit,
		IoUThreshold: c.Detector.IoUThreshold,
	}
}

// ModelArgs returns the arguments for models.NewModel.
func (c *AppConfig) ModelArgs() model.NewModelArgs {
	threshold := c.Detector.ScoreThreshold
	nms := c.NMS()
	return model.NewModelArgs{
		Name:           c.Model.Name,
		Path:           c.Model.Path,
		ScoreThreshold: &threshold,
		NMS:            &nms,
		Strict:         c.Detector.Strict,
	}
}
