package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"smart-mirror/config"
	"smart-mirror/internal/agent"
	"smart-mirror/internal/infra/audio"
	"smart-mirror/internal/infra/tts"
	"smart-mirror/internal/infra/wakeword"
	"smart-mirror/internal/infra/whisper"
)

// audioInput is a frame source that can also record an utterance.
type audioInput interface {
	agent.FrameSource
	agent.Recorder
	Start(ctx context.Context) error
	Stop() error
}

func newAgentCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "agent",
		Short: "Listen for the wake word and send transcribed requests to the mirror",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runAgent(ctx, cfg, logger)
		},
	}
}

func runAgent(ctx context.Context, cfg *config.Config, logger *slog.Logger) (err error) {
	ac := cfg.Agent

	keywords, err := wakeword.LoadKeywords(ac.WakeWord.Keywords)
	if err != nil {
		return err
	}
	embedder, err := wakeword.NewONNXEmbedder(ac.WakeWord.LibraryPath, ac.WakeWord.ModelPath)
	if err != nil {
		return fmt.Errorf("initializing wake word engine: %w", err)
	}
	detector, err := wakeword.NewDetector(embedder, keywords, ac.SampleRate, ac.WakeWord.Sensitivity, logger)
	if err != nil {
		embedder.Close()
		return err
	}
	defer func() {
		err = multierr.Append(err, detector.Close())
	}()

	input := newAudioInput(ac, logger)
	if err := input.Start(ctx); err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, input.Stop())
	}()

	speech := tts.NewSerializer(newSynthesizer(cfg.Speech, logger), 8, logger)

	a := agent.New(
		input,
		detector,
		input,
		newTranscriber(ac, logger),
		agent.NewHTTPClient(ac.ServerURL, ac.RequestTimeout),
		speech,
		audio.NewCue(ac.CueFile),
		agent.Config{
			RecordDuration:       ac.RecordDuration,
			TranscriptionTimeout: ac.TranscriptionTimeout,
			RequestTimeout:       ac.RequestTimeout,
			Cooldown:             ac.Cooldown,
		},
		logger,
	)

	logger.Info("starting agent",
		"source", ac.Source,
		"server", ac.ServerURL,
		"keywords", len(keywords),
		"transcriber", ac.Transcriber,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return speech.Run(ctx)
	})
	g.Go(func() error {
		return a.Run(ctx)
	})
	return g.Wait()
}

func newAudioInput(cfg config.AgentConfig, logger *slog.Logger) audioInput {
	switch cfg.Source {
	case "file":
		return audio.NewFileFrames(cfg.FileDir, cfg.FrameLength, logger)
	case "microphone":
		return audio.NewMicrophone(cfg.SampleRate, cfg.FrameLength, logger)
	default:
		logger.Warn("unknown audio source, using microphone", "source", cfg.Source)
		return audio.NewMicrophone(cfg.SampleRate, cfg.FrameLength, logger)
	}
}

func newTranscriber(cfg config.AgentConfig, logger *slog.Logger) agent.Transcriber {
	if cfg.Transcriber == "api" {
		return whisper.NewAPI(cfg.OpenAIKey, cfg.WhisperLanguage)
	}
	return whisper.NewCLI(cfg.WhisperBin, cfg.WhisperModel, cfg.WhisperLanguage, logger)
}

