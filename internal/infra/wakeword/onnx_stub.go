//go:build !onnx
// +build !onnx

package wakeword

import "fmt"

// ONNXEmbedder stub when onnxruntime is not available
type ONNXEmbedder struct{}

func NewONNXEmbedder(_, _ string) (*ONNXEmbedder, error) {
	return nil, fmt.Errorf("wake word engine not available: rebuild with -tags onnx")
}

func (e *ONNXEmbedder) Embed(_ []float32) ([]float32, error) {
	return nil, fmt.Errorf("wake word engine not available")
}

func (e *ONNXEmbedder) Close() error {
	return nil
}
