package wakeword

import (
	"fmt"
	"log/slog"
	"time"
)

// Embedder maps log-mel features to an embedding vector.
type Embedder interface {
	Embed(features []float32) ([]float32, error)
	Close() error
}

const (
	windowDuration = 1500 * time.Millisecond
	hopDuration    = 750 * time.Millisecond
)

// Detector keeps a rolling window of audio and scores it against each
// keyword every hop.
type Detector struct {
	embedder    Embedder
	keywords    []Keyword
	sensitivity float32
	mel         *MelSpectrogram
	logger      *slog.Logger

	windowSize int
	hopSize    int
	window     []float32
	sinceEval  int
}

func NewDetector(embedder Embedder, keywords []Keyword, sampleRate int, sensitivity float32, logger *slog.Logger) (*Detector, error) {
	if len(keywords) == 0 {
		return nil, fmt.Errorf("no wake word keywords configured")
	}
	return &Detector{
		embedder:    embedder,
		keywords:    keywords,
		sensitivity: sensitivity,
		mel:         NewMelSpectrogram(sampleRate),
		logger:      logger,
		windowSize:  int(windowDuration.Seconds() * float64(sampleRate)),
		hopSize:     int(hopDuration.Seconds() * float64(sampleRate)),
	}, nil
}

// Detect appends frame to the window. It returns the index of the first
// keyword scoring at or above the sensitivity, or -1.
func (d *Detector) Detect(frame []int16) (int, error) {
	for _, s := range frame {
		d.window = append(d.window, float32(s)/32768)
	}
	if over := len(d.window) - d.windowSize; over > 0 {
		d.window = append(d.window[:0], d.window[over:]...)
	}
	d.sinceEval += len(frame)

	if len(d.window) < d.windowSize || d.sinceEval < d.hopSize {
		return -1, nil
	}
	d.sinceEval = 0

	features, err := d.mel.Features(d.window)
	if err != nil {
		return -1, fmt.Errorf("computing features: %w", err)
	}
	vec, err := d.embedder.Embed(features)
	if err != nil {
		return -1, fmt.Errorf("embedding window: %w", err)
	}

	for i, kw := range d.keywords {
		score := Score(vec, kw.Embeddings)
		if score >= d.sensitivity {
			d.logger.Debug("wake word scored", "keyword", kw.Name, "score", score)
			d.Reset()
			return i, nil
		}
	}
	return -1, nil
}

// Reset drops buffered audio so stale frames cannot re-trigger.
func (d *Detector) Reset() {
	d.window = d.window[:0]
	d.sinceEval = 0
}

func (d *Detector) Keyword(i int) string {
	if i < 0 || i >= len(d.keywords) {
		return ""
	}
	return d.keywords[i].Name
}

func (d *Detector) Close() error {
	return d.embedder.Close()
}
