package tts

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// Synthesizer plays one utterance to completion.
type Synthesizer interface {
	Say(ctx context.Context, text string) error
}

type utterance struct {
	text string
	done chan error
}

// Serializer owns the speaker. A single worker plays queued utterances one
// at a time, so output never overlaps. The queue is unbounded: every
// accepted utterance is played exactly once, in submission order.
type Serializer struct {
	synth  Synthesizer
	logger *slog.Logger

	mu    sync.Mutex
	queue []utterance
	wake  chan struct{}
}

// NewSerializer returns a serializer whose queue starts with room for size
// utterances and grows as needed.
func NewSerializer(synth Synthesizer, size int, logger *slog.Logger) *Serializer {
	if size < 1 {
		size = 16
	}
	return &Serializer{
		synth:  synth,
		logger: logger,
		queue:  make([]utterance, 0, size),
		wake:   make(chan struct{}, 1),
	}
}

// Enqueue schedules text without waiting. Empty text is ignored.
func (s *Serializer) Enqueue(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	s.push(utterance{text: text})
}

// Speak waits until text has been played, after anything queued before it.
// If ctx ends first the utterance stays queued and is still played once.
func (s *Serializer) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	u := utterance{text: text, done: make(chan error, 1)}
	s.push(u)

	select {
	case err := <-u.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending reports how many utterances are waiting to be played.
func (s *Serializer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Serializer) push(u utterance) {
	s.mu.Lock()
	s.queue = append(s.queue, u)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Serializer) pop() (utterance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return utterance{}, false
	}
	u := s.queue[0]
	s.queue[0] = utterance{}
	s.queue = s.queue[1:]
	return u, true
}

// Run plays utterances until ctx is cancelled.
func (s *Serializer) Run(ctx context.Context) error {
	s.logger.Info("speech worker started")
	for {
		if ctx.Err() != nil {
			return nil
		}
		u, ok := s.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-s.wake:
			}
			continue
		}

		err := s.synth.Say(ctx, u.text)
		if err != nil {
			s.logger.Error("speaking", "text", u.text, "error", err)
		}
		if u.done != nil {
			u.done <- err
		}
	}
}
