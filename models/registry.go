// Package models - registry for models.
package models

import (
	"github.com/nvr-ai/go-tinyyolo/models/model"
	"github.com/nvr-ai/go-tinyyolo/models/postprocess"
	"github.com/nvr-ai/go-tinyyolo/models/tinyyolov2"
	"github.com/pkg/errors"
)

// ErrUnsupportedModel is returned when no constructor is registered for a model name.
var ErrUnsupportedModel = errors.New("unsupported model")

// NewModel creates a new detection model instance based on the specified model name.
//
// Arguments:
//   - args: Configuration parameters specifying the model name, location and thresholds.
//
// Returns:
//   - model.Model: A fully configured model instance implementing the Model interface.
//   - error: ErrUnsupportedModel for an unknown name, or the constructor's validation error.
//
// Example:
//
// ```go
//
//	m, err := models.NewModel(model.NewModelArgs{
//	    Name: model.ModelNameTinyYOLOv2,
//	    Path: "assets/TinyYolo2_model.onnx",
//	})
//	if err != nil {
//	    log.Fatalf("Failed to create detection model: %v", err)
//	}
//
// ```
func NewModel(args model.NewModelArgs) (model.Model, error) {
	switch args.Name {
	case model.ModelNameTinyYOLOv2:
		m, err := tinyyolov2.NewModel(args)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedModel, "%q", args.Name)
	}
}

// Names lists the model names NewModel accepts.
func Names() []model.Name {
	return []model.Name{model.ModelNameTinyYOLOv2}
}

// DefaultNMS returns the NMS settings a model is created with when none are given.
func DefaultNMS() postprocess.NMSConfig {
	return postprocess.DefaultNMSConfig()
}
