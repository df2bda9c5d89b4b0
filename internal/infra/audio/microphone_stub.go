//go:build !portaudio
// +build !portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Microphone stub when portaudio is not available
type Microphone struct {
	logger *slog.Logger
}

func NewMicrophone(_, _ int, logger *slog.Logger) *Microphone {
	return &Microphone{logger: logger}
}

func (m *Microphone) Start(_ context.Context) error {
	return fmt.Errorf("microphone not available: rebuild with -tags portaudio")
}

func (m *Microphone) Stop() error {
	return nil
}

func (m *Microphone) ReadFrame(_ context.Context) ([]int16, error) {
	return nil, fmt.Errorf("microphone not available")
}

func (m *Microphone) Record(_ context.Context, _ time.Duration) ([]byte, error) {
	return nil, fmt.Errorf("microphone not available")
}
