package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"smart-mirror/config"
	"smart-mirror/internal/application"
	"smart-mirror/internal/infra/camera"
	"smart-mirror/internal/infra/events"
	"smart-mirror/internal/infra/httpapi"
	"smart-mirror/internal/infra/llm"
	"smart-mirror/internal/infra/metrics"
	"smart-mirror/internal/infra/photos"
	"smart-mirror/internal/infra/qr"
	"smart-mirror/internal/infra/tts"
	"smart-mirror/internal/infra/weather"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the mirror backend: HTTP API, event bus, camera and speech",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	store, err := photos.NewStore(cfg.Captures.Dir, cfg.Captures.Expiry, logger)
	if err != nil {
		return err
	}

	hub := events.NewHub(m.WSClients, logger)
	bus := events.Multi{hub}
	if cfg.Events.NATSURL != "" {
		nc, err := events.ConnectNATS(ctx, cfg.Events.NATSURL, cfg.Events.NATSSubject, logger)
		if err != nil {
			return err
		}
		defer nc.Close()
		bus = append(bus, nc)
	}

	httpClient, err := llm.NewHTTPClient(cfg.Classifier.Proxy, cfg.Classifier.Timeout)
	if err != nil {
		return err
	}

	speech := tts.NewSerializer(newSynthesizer(cfg.Speech, logger), 16, logger)

	var cam application.Camera
	if cfg.Camera.Backend == "ffmpeg" {
		guard := camera.NewGuard(
			camera.OpenFFmpeg(camera.FFmpegConfig{
				Binary:      cfg.Camera.FFmpegPath,
				InputFormat: cfg.Camera.InputFormat,
				Device:      cfg.Camera.Device,
				Width:       cfg.Camera.Width,
				Height:      cfg.Camera.Height,
			}, logger),
			store,
			camera.GuardConfig{WarmupFrames: cfg.Camera.WarmupFrames, FrameRetries: cfg.Camera.FrameRetries},
			m,
			logger,
		)
		defer guard.Close()
		cam = guard
	}

	var advisor application.OutfitAdvisor
	if cfg.Vision.Enabled && cfg.Vision.APIKey != "" {
		advisor = llm.NewVision(llm.OpenAIConfig{
			APIKey:  cfg.Vision.APIKey,
			Model:   cfg.Vision.Model,
			Timeout: cfg.Classifier.Timeout,
		}, httpClient)
	}

	weatherClient := weather.NewClient(weather.Config{
		APIKey:  cfg.Weather.APIKey,
		Lat:     cfg.Weather.Lat,
		Lon:     cfg.Weather.Lon,
		City:    cfg.Weather.City,
		Timeout: cfg.Weather.Timeout,
	}, nil, logger)

	linker := qr.NewLinker(cfg.Server.PublicURL, cfg.Server.Addr)

	orch := application.NewOrchestrator(
		newClassifier(cfg.Classifier, httpClient, logger),
		bus,
		application.Collaborators{
			Speaker: speech,
			Camera:  cam,
			Photos:  store,
			Weather: weatherClient,
			Advisor: advisor,
			Linker:  linker,
		},
		logger,
	)
	hub.OnConfirm(func(ctx context.Context, confirm bool) {
		if confirm {
			orch.Confirm(ctx)
		} else {
			orch.Decline(ctx)
		}
	})

	router := httpapi.NewRouter(httpapi.Deps{
		Orchestrator: orch,
		Photos:       store,
		Linker:       linker,
		Weather:      weatherClient,
		Events:       hub,
		Metrics:      m,
		Gatherer:     reg,
		RateLimit:    cfg.Server.RateLimit,
		TrustProxy:   cfg.Server.TrustProxy,
		Logger:       logger,
	})
	srv := httpapi.NewServer(cfg.Server.Addr, router, logger)
	if err := srv.Start(ctx); err != nil {
		return err
	}

	store.StartSweeper(ctx, cfg.Captures.SweepInterval, func(removed int) {
		m.SweptPhotos.Add(float64(removed))
	})

	logger.Info("smart mirror running",
		"addr", cfg.Server.Addr,
		"classifier", cfg.Classifier.Provider,
		"camera", cfg.Camera.Backend,
		"gallery", linker.GalleryURL(),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return speech.Run(ctx)
	})
	g.Go(func() error {
		if err := srv.Wait(); err != nil {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		hub.Close()
		return srv.Stop()
	})
	return g.Wait()
}

func newClassifier(cfg config.ClassifierConfig, httpClient *http.Client, logger *slog.Logger) application.Classifier {
	if cfg.Provider == "rules" {
		return application.RulesOnly{}
	}
	if cfg.APIKey == "" {
		logger.Warn("no classifier api key, using offline rules", "provider", cfg.Provider)
		return application.RulesOnly{}
	}

	var completer llm.Completer
	switch cfg.Provider {
	case "anthropic":
		if cfg.BaseURL != "" {
			completer = llm.NewAnthropicWithURL(cfg.APIKey, cfg.Model, cfg.BaseURL, httpClient)
		} else {
			completer = llm.NewAnthropic(cfg.APIKey, cfg.Model, httpClient)
		}
	case "gemini":
		if cfg.BaseURL != "" {
			completer = llm.NewGeminiWithURL(cfg.APIKey, cfg.Model, cfg.Temperature, cfg.BaseURL, httpClient)
		} else {
			completer = llm.NewGemini(cfg.APIKey, cfg.Model, cfg.Temperature, httpClient)
		}
	case "openai":
		completer = llm.NewOpenAI(llm.OpenAIConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, httpClient)
	default:
		logger.Warn("unknown classifier provider, using offline rules", "provider", cfg.Provider)
		return application.RulesOnly{}
	}

	return llm.NewClassifier(llm.NewBreaker(cfg.Provider, completer, logger), logger)
}

func newSynthesizer(cfg config.SpeechConfig, logger *slog.Logger) tts.Synthesizer {
	if !cfg.Enabled {
		return tts.NewSilent(logger)
	}
	return tts.NewEspeak(cfg.Binary, cfg.Voice, cfg.Rate)
}
