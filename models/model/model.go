// Package model - Definitions shared by all detection models.
package model

import (
	"github.com/nvr-ai/go-tinyyolo/models/postprocess"
)

// Family is the family of models.
type Family string

const (
	// ModelFamilyYOLO is the YOLO model family.
	ModelFamilyYOLO Family = "yolo"
)

// Name is the unique identifier of a model.
type Name string

const (
	// ModelNameTinyYOLOv2 is the name of the Tiny-YOLOv2 model.
	ModelNameTinyYOLOv2 Name = "tinyyolov2"
)

// Options describes how a model is loaded and how its outputs are post-processed.
type Options struct {
	Name   Name   `json:"name"   yaml:"name"`
	Family Family `json:"family" yaml:"family"`
	Path   string `json:"path"   yaml:"path"`
	// Input and output tensor names.
	Inputs  []string `json:"inputs"  yaml:"inputs"`
	Outputs []string `json:"outputs" yaml:"outputs"`
	// Input and output tensor shapes, including the batch dimension.
	InputShape  []int64 `json:"inputShape"  yaml:"inputShape"`
	OutputShape []int64 `json:"outputShape" yaml:"outputShape"`
	// Minimum score a candidate must reach to be kept.
	ScoreThreshold float32               `json:"scoreThreshold" yaml:"scoreThreshold"`
	NMS            postprocess.NMSConfig `json:"nms"            yaml:"nms"`
	// Fail on non-finite outputs instead of skipping the affected candidates.
	Strict bool `json:"strict" yaml:"strict"`
}

// Model is a detection model whose raw outputs can be decoded into results.
type Model interface {
	Options() Options
	PostProcess(output []float32) ([]postprocess.Result, error)
}

// NewModelArgs is the arguments for creating a new model.
type NewModelArgs struct {
	Name Name   `json:"name" yaml:"name"`
	Path string `json:"path" yaml:"path"`
	// Nil values select the model defaults.
	ScoreThreshold *float32               `json:"scoreThreshold" yaml:"scoreThreshold"`
	NMS            *postprocess.NMSConfig `json:"nms"            yaml:"nms"`
	Strict         bool                   `json:"strict"         yaml:"strict"`
}
