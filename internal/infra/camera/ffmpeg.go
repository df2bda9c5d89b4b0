package camera

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"go.uber.org/multierr"
)

// ErrStreamClosed is returned once the ffmpeg process has stopped producing
// frames. The device must be reopened.
var ErrStreamClosed = errors.New("camera stream ended")

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

type FFmpegConfig struct {
	Binary      string
	InputFormat string
	Device      string
	Width       int
	Height      int
	// FrameTimeout bounds a single ReadFrame.
	FrameTimeout time.Duration
}

// FFmpeg streams MJPEG frames from a long-lived ffmpeg process. Only the
// newest frame is kept.
type FFmpeg struct {
	cmd     *exec.Cmd
	frames  chan []byte
	timeout time.Duration
	logger  *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
	readErr   error
}

func ffmpegArgs(cfg FFmpegConfig) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-f", cfg.InputFormat}
	if cfg.Width > 0 && cfg.Height > 0 {
		args = append(args, "-video_size", strconv.Itoa(cfg.Width)+"x"+strconv.Itoa(cfg.Height))
	}
	return append(args, "-i", cfg.Device, "-f", "image2pipe", "-vcodec", "mjpeg", "-q:v", "3", "-")
}

// OpenFFmpeg returns an Opener that starts ffmpeg on each open.
func OpenFFmpeg(cfg FFmpegConfig, logger *slog.Logger) Opener {
	return func(_ context.Context) (Device, error) {
		return StartFFmpeg(cfg, logger)
	}
}

func StartFFmpeg(cfg FFmpegConfig, logger *slog.Logger) (*FFmpeg, error) {
	if cfg.FrameTimeout == 0 {
		cfg.FrameTimeout = 3 * time.Second
	}

	// The process outlives the request that opened it, so it is not bound
	// to a request context.
	cmd := exec.Command(cfg.Binary, ffmpegArgs(cfg)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("opening ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting ffmpeg: %w", err)
	}

	f := &FFmpeg{
		cmd:     cmd,
		frames:  make(chan []byte, 1),
		timeout: cfg.FrameTimeout,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go f.pump(stdout)

	logger.Info("camera started", "device", cfg.Device, "format", cfg.InputFormat)
	return f, nil
}

func (f *FFmpeg) pump(r io.Reader) {
	defer close(f.done)

	err := SplitJPEG(bufio.NewReaderSize(r, 1<<16), func(frame []byte) {
		select {
		case <-f.frames:
		default:
		}
		f.frames <- frame
	})
	f.readErr = err
}

func (f *FFmpeg) ReadFrame(ctx context.Context) ([]byte, error) {
	timer := time.NewTimer(f.timeout)
	defer timer.Stop()

	select {
	case frame := <-f.frames:
		return frame, nil
	case <-f.done:
		if f.readErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrStreamClosed, f.readErr)
		}
		return nil, ErrStreamClosed
	case <-timer.C:
		return nil, errors.New("timed out waiting for frame")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *FFmpeg) Close() error {
	var err error
	f.closeOnce.Do(func() {
		if f.cmd.Process != nil {
			err = f.cmd.Process.Kill()
		}
		// Wait reports the kill signal; only a failure to reap matters.
		var exitErr *exec.ExitError
		if werr := f.cmd.Wait(); werr != nil && !errors.As(werr, &exitErr) {
			err = multierr.Append(err, werr)
		}
	})
	return err
}

// SplitJPEG reads concatenated JPEG images from r and calls emit with each
// complete image. It returns nil at a clean EOF.
func SplitJPEG(r io.Reader, emit func([]byte)) error {
	var buf []byte
	chunk := make([]byte, 32*1024)

	for {
		n, err := r.Read(chunk)
		buf = append(buf, chunk[:n]...)

		for {
			start := bytes.Index(buf, jpegSOI)
			if start < 0 {
				// Keep a trailing 0xFF that may begin the next marker.
				if len(buf) > 0 && buf[len(buf)-1] == 0xFF {
					buf = buf[len(buf)-1:]
				} else {
					buf = buf[:0]
				}
				break
			}
			end := bytes.Index(buf[start+2:], jpegEOI)
			if end < 0 {
				buf = buf[start:]
				break
			}
			stop := start + 2 + end + 2
			frame := make([]byte, stop-start)
			copy(frame, buf[start:stop])
			emit(frame)
			buf = buf[stop:]
		}

		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
