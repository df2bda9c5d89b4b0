package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"smart-mirror/internal/domain"
	"smart-mirror/internal/infra"
)

// Device is an open camera producing JPEG frames.
type Device interface {
	ReadFrame(ctx context.Context) ([]byte, error)
	Close() error
}

type Opener func(ctx context.Context) (Device, error)

type Saver interface {
	Save(prefix, ext string, data []byte) (domain.CapturedPhoto, error)
}

type Observer interface {
	ObserveCapture(result string)
}

type GuardConfig struct {
	WarmupFrames int
	FrameRetries int
}

// Guard serializes all access to the camera. A capture holds the lock from
// opening the device until the photo is on disk.
type Guard struct {
	open     Opener
	store    Saver
	cfg      GuardConfig
	observer Observer
	logger   *slog.Logger

	mu     sync.Mutex
	device Device
}

func NewGuard(open Opener, store Saver, cfg GuardConfig, observer Observer, logger *slog.Logger) *Guard {
	if cfg.FrameRetries < 1 {
		cfg.FrameRetries = 1
	}
	return &Guard{open: open, store: store, cfg: cfg, observer: observer, logger: logger}
}

func (g *Guard) Capture(ctx context.Context, prefix string) (domain.CapturedPhoto, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	photo, err := g.captureLocked(ctx, prefix)
	switch {
	case err == nil:
		g.observe("ok")
	case errors.Is(err, domain.ErrCameraUnavailable):
		g.observe("unavailable")
	default:
		g.observe("failed")
	}
	return photo, err
}

func (g *Guard) captureLocked(ctx context.Context, prefix string) (domain.CapturedPhoto, error) {
	if g.device == nil {
		dev, err := g.open(ctx)
		if err != nil {
			g.logger.Error("opening camera", "error", err)
			return domain.CapturedPhoto{}, fmt.Errorf("%w: %v", domain.ErrCameraUnavailable, err)
		}
		g.device = dev
	}

	for i := 0; i < g.cfg.WarmupFrames; i++ {
		if _, err := g.device.ReadFrame(ctx); err != nil {
			g.logger.Debug("warm-up frame failed", "frame", i, "error", err)
		}
	}

	var frame []byte
	retry := infra.FrameRetryConfig(g.cfg.FrameRetries)
	retry.OnRetry = func(attempt int, err error) {
		g.logger.Debug("retrying frame read", "attempt", attempt, "error", err)
	}
	err := infra.WithRetry(ctx, retry, func() error {
		f, err := g.device.ReadFrame(ctx)
		if err != nil {
			if errors.Is(err, ErrStreamClosed) || ctx.Err() != nil {
				return infra.Permanent(err)
			}
			return err
		}
		if len(f) == 0 {
			return errors.New("empty frame")
		}
		frame = f
		return nil
	})
	if err != nil {
		g.logger.Error("capturing frame", "error", err)
		g.resetLocked()
		return domain.CapturedPhoto{}, fmt.Errorf("%w: %v", domain.ErrCaptureFailed, err)
	}

	photo, err := g.store.Save(prefix, ".jpg", frame)
	if err != nil {
		return domain.CapturedPhoto{}, fmt.Errorf("%w: saving: %v", domain.ErrCaptureFailed, err)
	}
	return photo, nil
}

// Close releases the device if it is open.
func (g *Guard) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.device == nil {
		return nil
	}
	err := g.device.Close()
	g.device = nil
	return err
}

func (g *Guard) resetLocked() {
	if g.device == nil {
		return
	}
	if err := g.device.Close(); err != nil {
		g.logger.Warn("closing camera", "error", err)
	}
	g.device = nil
}

func (g *Guard) observe(result string) {
	if g.observer != nil {
		g.observer.ObserveCapture(result)
	}
}
