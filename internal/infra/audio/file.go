package audio

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileFrames replays WAV files dropped into a directory. Each file is
// consumed once and renamed with a .processed suffix. ReadFrame streams the
// samples of one file as frames; Record returns the next file whole, which
// lets a headless agent run "wake word file, then utterance file".
type FileFrames struct {
	dir          string
	frameLength  int
	pollInterval time.Duration
	logger       *slog.Logger

	mu        sync.Mutex
	pending   []int16
	processed map[string]bool
}

func NewFileFrames(dir string, frameLength int, logger *slog.Logger) *FileFrames {
	return &FileFrames{
		dir:          dir,
		frameLength:  frameLength,
		pollInterval: 500 * time.Millisecond,
		logger:       logger,
		processed:    make(map[string]bool),
	}
}

func (f *FileFrames) Start(_ context.Context) error {
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return fmt.Errorf("creating audio dir: %w", err)
	}
	return nil
}

func (f *FileFrames) Stop() error {
	return nil
}

func (f *FileFrames) ReadFrame(ctx context.Context) ([]int16, error) {
	f.mu.Lock()
	if len(f.pending) > 0 {
		frame := f.takeFrame()
		f.mu.Unlock()
		return frame, nil
	}
	f.mu.Unlock()

	data, err := f.next(ctx)
	if err != nil {
		return nil, err
	}
	samples, _, err := DecodeWAV(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding frames: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = samples
	return f.takeFrame(), nil
}

// takeFrame pops one zero-padded frame. Caller holds mu.
func (f *FileFrames) takeFrame() []int16 {
	frame := make([]int16, f.frameLength)
	n := copy(frame, f.pending)
	f.pending = f.pending[n:]
	return frame
}

// Record drops any buffered frames and returns the next WAV file.
func (f *FileFrames) Record(ctx context.Context, _ time.Duration) ([]byte, error) {
	f.mu.Lock()
	f.pending = nil
	f.mu.Unlock()

	return f.next(ctx)
}

func (f *FileFrames) next(ctx context.Context) ([]byte, error) {
	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()

	for {
		data, err := f.checkForNewFile()
		if err != nil {
			return nil, err
		}
		if data != nil {
			return data, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (f *FileFrames) checkForNewFile() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("reading dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".wav" || f.processed[entry.Name()] {
			continue
		}
		names = append(names, entry.Name())
	}
	if len(names) == 0 {
		return nil, nil
	}
	sort.Strings(names)

	path := filepath.Join(f.dir, names[0])
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}

	f.processed[names[0]] = true
	if err := os.Rename(path, path+".processed"); err != nil {
		f.logger.Warn("marking audio file processed", "file", path, "error", err)
	}
	f.logger.Debug("replaying audio file", "file", names[0])
	return data, nil
}
