package onnx

import (
	"github.com/freeeve/chaturaji/internal/eval"
)

// Built-in engine names accepted by Open in place of a model path.
const (
	EngineMaterial = "material"
	EngineUniform  = "uniform"
)

// Open returns the engine named by model: one of the built-in heuristic
// engines, or an ONNX session over the model file. The returned close
// function is never nil.
func Open(model string, cfg Config) (eval.Engine, func(), error) {
	switch model {
	case EngineMaterial:
		return eval.MaterialEngine{}, func() {}, nil
	case EngineUniform:
		return eval.UniformEngine{}, func() {}, nil
	}
	cfg.ModelPath = model
	e, err := New(cfg)
	if err != nil {
		return nil, func() {}, err
	}
	return e, e.Close, nil
}
