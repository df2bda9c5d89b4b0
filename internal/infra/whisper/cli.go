package whisper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// CLI transcribes by running a local whisper.cpp binary on a temp WAV file.
type CLI struct {
	binary   string
	model    string
	language string
	logger   *slog.Logger
}

func NewCLI(binary, model, language string, logger *slog.Logger) *CLI {
	return &CLI{binary: binary, model: model, language: language, logger: logger}
}

// Transcribe returns the trimmed transcript. The caller's deadline bounds the
// subprocess; a timeout or a nonzero exit is returned as an error.
func (c *CLI) Transcribe(ctx context.Context, wav []byte) (string, error) {
	f, err := os.CreateTemp("", "utterance-*.wav")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(wav); err != nil {
		f.Close()
		return "", fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing temp file: %w", err)
	}

	args := []string{"-m", c.model, "-f", path, "-nt", "-np"}
	if c.language != "" {
		args = append(args, "-l", c.language)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("running %s: %w", c.binary, ctxErr)
		}
		return "", fmt.Errorf("running %s: %w: %s", c.binary, err, strings.TrimSpace(stderr.String()))
	}

	text := strings.Join(strings.Fields(stdout.String()), " ")
	c.logger.Debug("whisper transcript", "text", text)
	return text, nil
}
