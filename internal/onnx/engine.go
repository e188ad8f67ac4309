// Package onnx runs the policy/value network through ONNX Runtime.
package onnx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/freeeve/chaturaji/internal/board"
	"github.com/freeeve/chaturaji/internal/eval"
)

// Tensor names the exported network is expected to use.
const (
	InputName  = "input"
	PolicyName = "policy"
	ValueName  = "value"
)

// Config configures an Engine.
type Config struct {
	ModelPath string // .onnx file (required)
	LibPath   string // onnxruntime shared library; empty uses the ORT_LIB env var, then the library default
	MaxBatch  int    // Rows per session run (default 1024)
	UseCUDA   bool   // Try the CUDA provider before falling back to CPU
	Logger    zerolog.Logger
}

var envMu sync.Mutex

func initEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if ort.IsInitialized() {
		return nil
	}
	if libPath == "" {
		libPath = os.Getenv("ORT_LIB")
	}
	if libPath != "" {
		abs, err := filepath.Abs(libPath)
		if err != nil {
			return fmt.Errorf("resolve onnxruntime library: %w", err)
		}
		ort.SetSharedLibraryPath(abs)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnxruntime: %w", err)
	}
	return nil
}

// Engine is an eval.Engine backed by one ONNX Runtime session with
// persistent input and output tensors sized for MaxBatch rows. Calls are
// serialized; larger batches are run in MaxBatch-sized chunks.
type Engine struct {
	cfg Config
	log zerolog.Logger

	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	policy  *ort.Tensor[float32]
	value   *ort.Tensor[float32]

	runs  int64
	items int64
}

var _ eval.Engine = (*Engine)(nil)

// New loads the model and prepares a session.
func New(cfg Config) (*Engine, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("onnx: model path required")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("onnx: model: %w", err)
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = 1024
	}
	if err := initEnvironment(cfg.LibPath); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg: cfg,
		log: cfg.Logger.With().Str("component", "onnx").Logger(),
	}
	batch := int64(cfg.MaxBatch)
	var err error
	e.input, err = ort.NewEmptyTensor[float32](ort.NewShape(batch, board.NumPlanes, board.BoardSize, board.BoardSize))
	if err != nil {
		return nil, fmt.Errorf("onnx: input tensor: %w", err)
	}
	e.policy, err = ort.NewEmptyTensor[float32](ort.NewShape(batch, board.PolicySize))
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("onnx: policy tensor: %w", err)
	}
	e.value, err = ort.NewEmptyTensor[float32](ort.NewShape(batch, board.NumPlayers))
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("onnx: value tensor: %w", err)
	}

	providers := []struct {
		name  string
		setup func(*ort.SessionOptions) error
	}{
		{"cuda", func(so *ort.SessionOptions) error {
			opts, err := ort.NewCUDAProviderOptions()
			if err != nil {
				return err
			}
			defer opts.Destroy()
			return so.AppendExecutionProviderCUDA(opts)
		}},
		{"cpu", func(so *ort.SessionOptions) error { return nil }},
	}
	if !cfg.UseCUDA {
		providers = providers[1:]
	}

	var lastErr error
	for _, p := range providers {
		so, err := ort.NewSessionOptions()
		if err != nil {
			lastErr = err
			continue
		}
		if err := p.setup(so); err != nil {
			e.log.Warn().Err(err).Str("provider", p.name).Msg("provider setup failed")
			so.Destroy()
			lastErr = err
			continue
		}
		s, err := ort.NewAdvancedSession(cfg.ModelPath,
			[]string{InputName}, []string{PolicyName, ValueName},
			[]ort.Value{e.input}, []ort.Value{e.policy, e.value}, so)
		so.Destroy()
		if err != nil {
			e.log.Warn().Err(err).Str("provider", p.name).Msg("session creation failed")
			lastErr = err
			continue
		}
		e.session = s
		e.log.Info().Str("provider", p.name).Str("model", cfg.ModelPath).Int("max_batch", cfg.MaxBatch).Msg("onnx session ready")
		break
	}
	if e.session == nil {
		e.Close()
		return nil, fmt.Errorf("onnx: no execution provider: %w", lastErr)
	}
	return e, nil
}

// Infer implements eval.Engine.
func (e *Engine) Infer(ctx context.Context, states [][]float32) ([]eval.Output, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil, errors.New("onnx: engine closed")
	}
	out := make([]eval.Output, 0, len(states))
	for start := 0; start < len(states); start += e.cfg.MaxBatch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+e.cfg.MaxBatch, len(states))
		chunk, err := e.run(states[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
	return out, nil
}

func (e *Engine) run(states [][]float32) ([]eval.Output, error) {
	in := e.input.GetData()
	for i, s := range states {
		if len(s) != board.EncodedSize {
			return nil, fmt.Errorf("onnx: state %d has %d floats, want %d", i, len(s), board.EncodedSize)
		}
		copy(in[i*board.EncodedSize:], s)
	}
	// Unused rows are zeroed so stale states never leak into the batch.
	tail := in[len(states)*board.EncodedSize:]
	for i := range tail {
		tail[i] = 0
	}

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("onnx: run: %w", err)
	}
	e.runs++
	e.items += int64(len(states))

	policy := e.policy.GetData()
	value := e.value.GetData()
	out := make([]eval.Output, len(states))
	for i := range states {
		p := make([]float32, board.PolicySize)
		copy(p, policy[i*board.PolicySize:(i+1)*board.PolicySize])
		out[i].Policy = p
		copy(out[i].Value[:], value[i*board.NumPlayers:(i+1)*board.NumPlayers])
	}
	if e.runs%500 == 0 {
		e.log.Debug().Int64("runs", e.runs).Float64("avg_batch", float64(e.items)/float64(e.runs)).Msg("onnx stats")
	}
	return out, nil
}

// Close releases the session and tensors.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	for _, t := range []*ort.Tensor[float32]{e.input, e.policy, e.value} {
		if t != nil {
			t.Destroy()
		}
	}
	e.input, e.policy, e.value = nil, nil, nil
}
