//go:build portaudio
// +build portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/multierr"
)

// Microphone keeps one input stream open for the agent's lifetime. Frame
// reads and recordings share it, so they are serialized.
type Microphone struct {
	sampleRate  int
	frameLength int
	logger      *slog.Logger

	mu     sync.Mutex
	stream *portaudio.Stream
	buf    []int16
}

func NewMicrophone(sampleRate, frameLength int, logger *slog.Logger) *Microphone {
	return &Microphone{
		sampleRate:  sampleRate,
		frameLength: frameLength,
		logger:      logger,
		buf:         make([]int16, frameLength),
	}
}

func (m *Microphone) Start(_ context.Context) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), len(m.buf), m.buf)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("opening stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("starting stream: %w", err)
	}

	m.stream = stream
	m.logger.Info("microphone started", "sample_rate", m.sampleRate, "frame_length", m.frameLength)
	return nil
}

func (m *Microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if m.stream != nil {
		err = multierr.Combine(m.stream.Stop(), m.stream.Close())
		m.stream = nil
	}
	return multierr.Append(err, portaudio.Terminate())
}

// ReadFrame blocks for one frame of frameLength samples.
func (m *Microphone) ReadFrame(ctx context.Context) ([]int16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.readLocked()
}

func (m *Microphone) readLocked() ([]int16, error) {
	if m.stream == nil {
		return nil, fmt.Errorf("microphone not started")
	}
	if err := m.stream.Read(); err != nil {
		return nil, fmt.Errorf("reading from stream: %w", err)
	}
	frame := make([]int16, len(m.buf))
	copy(frame, m.buf)
	return frame, nil
}

// Record reads frames until d of audio is covered and returns it as WAV.
func (m *Microphone) Record(ctx context.Context, d time.Duration) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	want := int(float64(m.sampleRate) * d.Seconds())
	samples := make([]int16, 0, want+m.frameLength)

	for len(samples) < want {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame, err := m.readLocked()
		if err != nil {
			return nil, err
		}
		samples = append(samples, frame...)
	}

	m.logger.Debug("recorded utterance", "samples", len(samples))
	return EncodeWAV(samples[:want], m.sampleRate)
}
