package tts

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
)

type Espeak struct {
	binary string
	voice  string
	rate   int
}

func NewEspeak(binary, voice string, rate int) *Espeak {
	return &Espeak{binary: binary, voice: voice, rate: rate}
}

func (e *Espeak) args(text string) []string {
	var args []string
	if e.rate > 0 {
		args = append(args, "-s", strconv.Itoa(e.rate))
	}
	if e.voice != "" {
		args = append(args, "-v", e.voice)
	}
	return append(args, "--", text)
}

func (e *Espeak) Say(ctx context.Context, text string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.binary, e.args(text)...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("running %s: %w", e.binary, ctx.Err())
		}
		return fmt.Errorf("running %s: %w: %s", e.binary, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Silent logs utterances instead of playing them.
type Silent struct {
	logger *slog.Logger
}

func NewSilent(logger *slog.Logger) *Silent {
	return &Silent{logger: logger}
}

func (s *Silent) Say(_ context.Context, text string) error {
	s.logger.Info("say", "text", text)
	return nil
}
