package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"smart-mirror/internal/domain"
)

const (
	promptListening = "Yes?"
	promptRetry     = "Please try again."
	promptBackend   = "There was a problem talking to the mirror brain."
)

// FrameSource yields fixed-size PCM frames for wake-word detection.
type FrameSource interface {
	ReadFrame(ctx context.Context) ([]int16, error)
}

// Detector scores frames and returns the index of the detected keyword, or a
// negative value when nothing was heard.
type Detector interface {
	Detect(frame []int16) (int, error)
	Reset()
}

// Recorder captures a fixed-length utterance as WAV bytes.
type Recorder interface {
	Record(ctx context.Context, d time.Duration) ([]byte, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

type IntentClient interface {
	Submit(ctx context.Context, text string) (domain.Payload, error)
}

type Speaker interface {
	Speak(ctx context.Context, text string) error
	Enqueue(text string)
}

type Cue interface {
	Play(ctx context.Context) error
}

type Config struct {
	RecordDuration       time.Duration
	TranscriptionTimeout time.Duration
	RequestTimeout       time.Duration
	Cooldown             time.Duration
}

// Agent is the long-lived listener: wake word, record, transcribe, submit.
type Agent struct {
	frames      FrameSource
	detector    Detector
	recorder    Recorder
	transcriber Transcriber
	client      IntentClient
	speaker     Speaker
	cue         Cue
	cfg         Config
	logger      *slog.Logger
}

func New(
	frames FrameSource,
	detector Detector,
	recorder Recorder,
	transcriber Transcriber,
	client IntentClient,
	speaker Speaker,
	cue Cue,
	cfg Config,
	logger *slog.Logger,
) *Agent {
	return &Agent{
		frames:      frames,
		detector:    detector,
		recorder:    recorder,
		transcriber: transcriber,
		client:      client,
		speaker:     speaker,
		cue:         cue,
		cfg:         cfg,
		logger:      logger,
	}
}

// Run listens until ctx is cancelled. Per-turn failures are logged and the
// loop keeps going.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("agent listening")

	for {
		if ctx.Err() != nil {
			return nil
		}

		frame, err := a.frames.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			a.logger.Warn("reading frame", "error", err)
			continue
		}

		keyword, err := a.detector.Detect(frame)
		if err != nil {
			a.logger.Warn("detecting wake word", "error", err)
			continue
		}
		if keyword < 0 {
			continue
		}

		a.logger.Info("wake word detected", "keyword", keyword)
		a.turn(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(a.cfg.Cooldown):
		}
		a.detector.Reset()
	}
}

func (a *Agent) turn(ctx context.Context) {
	if a.cue != nil {
		if err := a.cue.Play(ctx); err != nil {
			a.logger.Debug("playing cue", "error", err)
		}
	}
	if err := a.speaker.Speak(ctx, promptListening); err != nil {
		a.logger.Warn("speaking prompt", "error", err)
	}

	wav, err := a.record(ctx)
	if err != nil {
		a.logger.Error("recording", "error", err)
		a.speaker.Enqueue(promptRetry)
		return
	}

	text := a.transcribe(ctx, wav)
	if text == "" {
		a.logger.Info("empty transcription")
		a.speaker.Enqueue(promptRetry)
		return
	}
	a.logger.Info("transcribed", "text", text)

	reqCtx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout)
	defer cancel()

	payload, err := a.client.Submit(reqCtx, text)
	if err != nil {
		a.logger.Error("submitting intent", "error", err)
		a.speaker.Enqueue(promptBackend)
		return
	}
	a.logger.Info("intent handled", "type", payload.Type, "say", payload.Say)
}

func (a *Agent) record(ctx context.Context) ([]byte, error) {
	recCtx, cancel := context.WithTimeout(ctx, a.cfg.RecordDuration+2*time.Second)
	defer cancel()

	wav, err := a.recorder.Record(recCtx, a.cfg.RecordDuration)
	if err != nil {
		return nil, fmt.Errorf("recording utterance: %w", err)
	}
	return wav, nil
}

// transcribe maps every failure, including a timeout, to empty text.
func (a *Agent) transcribe(ctx context.Context, wav []byte) string {
	tctx, cancel := context.WithTimeout(ctx, a.cfg.TranscriptionTimeout)
	defer cancel()

	text, err := a.transcriber.Transcribe(tctx, wav)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			a.logger.Warn("transcription timed out", "timeout", a.cfg.TranscriptionTimeout)
		} else {
			a.logger.Warn("transcribing", "error", err)
		}
		return ""
	}
	return strings.TrimSpace(text)
}
