//go:build onnx
// +build onnx

package wakeword

import (
	"fmt"
	"sync"

	onnx "github.com/yalue/onnxruntime_go"
	"go.uber.org/multierr"
)

// ONNXEmbedder runs the wake-word embedding network. The session and its
// tensors are created once and reused for every window.
type ONNXEmbedder struct {
	mu      sync.Mutex
	session *onnx.AdvancedSession
	input   *onnx.Tensor[float32]
	output  *onnx.Tensor[float32]
}

func NewONNXEmbedder(libraryPath, modelPath string) (e *ONNXEmbedder, err error) {
	if libraryPath != "" {
		onnx.SetSharedLibraryPath(libraryPath)
	}
	if err := onnx.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initializing onnx runtime: %w", err)
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, onnx.DestroyEnvironment())
		}
	}()

	inputs, outputs, err := onnx.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("reading model info %s: %w", modelPath, err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("model %s has no inputs or outputs", modelPath)
	}

	input, err := onnx.NewEmptyTensor[float32](inputs[0].Dimensions)
	if err != nil {
		return nil, fmt.Errorf("creating input tensor: %w", err)
	}
	output, err := onnx.NewEmptyTensor[float32](outputs[0].Dimensions)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("creating output tensor: %w", err), input.Destroy())
	}

	session, err := onnx.NewAdvancedSession(
		modelPath,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		[]onnx.ArbitraryTensor{input},
		[]onnx.ArbitraryTensor{output},
		nil,
	)
	if err != nil {
		return nil, multierr.Combine(fmt.Errorf("creating session: %w", err), input.Destroy(), output.Destroy())
	}

	return &ONNXEmbedder{session: session, input: input, output: output}, nil
}

func (e *ONNXEmbedder) Embed(features []float32) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	dst := e.input.GetData()
	if len(features) != len(dst) {
		return nil, fmt.Errorf("feature size %d does not match model input %d", len(features), len(dst))
	}
	copy(dst, features)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("running embedding network: %w", err)
	}

	out := make([]float32, len(e.output.GetData()))
	copy(out, e.output.GetData())
	return out, nil
}

func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return multierr.Combine(
		e.session.Destroy(),
		e.input.Destroy(),
		e.output.Destroy(),
		onnx.DestroyEnvironment(),
	)
}
