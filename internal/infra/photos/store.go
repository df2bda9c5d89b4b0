package photos

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"smart-mirror/internal/domain"
)

var ErrInvalidName = errors.New("invalid photo name")

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// Store keeps captured photos as flat files in one directory.
type Store struct {
	dir    string
	expiry time.Duration
	now    func() time.Time
	logger *slog.Logger
}

func NewStore(dir string, expiry time.Duration, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating captures dir: %w", err)
	}
	return &Store{dir: dir, expiry: expiry, now: time.Now, logger: logger}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Save writes data as {prefix}_{unixmillis}{ext}. A name collision within
// the same millisecond gets a numeric suffix.
func (s *Store) Save(prefix, ext string, data []byte) (domain.CapturedPhoto, error) {
	if ext == "" {
		ext = ".jpg"
	}
	created := s.now()
	base := fmt.Sprintf("%s_%d", prefix, created.UnixMilli())

	for i := 0; i < 100; i++ {
		name := base + ext
		if i > 0 {
			name = fmt.Sprintf("%s_%d%s", base, i, ext)
		}

		f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return domain.CapturedPhoto{}, fmt.Errorf("creating photo: %w", err)
		}

		_, werr := f.Write(data)
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			os.Remove(f.Name())
			return domain.CapturedPhoto{}, fmt.Errorf("writing photo: %w", werr)
		}

		s.logger.Info("photo saved", "file", name, "bytes", len(data))
		return domain.CapturedPhoto{Filename: name, CreatedAt: created}, nil
	}
	return domain.CapturedPhoto{}, fmt.Errorf("no free name for %s", base)
}

type entry struct {
	name string
	mod  time.Time
}

func (s *Store) entries() ([]entry, error) {
	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading captures dir: %w", err)
	}

	var out []entry
	for _, d := range dirents {
		if d.IsDir() || !imageExts[strings.ToLower(filepath.Ext(d.Name()))] {
			continue
		}
		info, err := d.Info()
		if err != nil {
			continue
		}
		out = append(out, entry{name: d.Name(), mod: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].mod.Equal(out[j].mod) {
			return out[i].name < out[j].name
		}
		return out[i].mod.Before(out[j].mod)
	})
	return out, nil
}

// List returns photo names oldest first.
func (s *Store) List() ([]string, error) {
	entries, err := s.entries()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.name)
	}
	return names, nil
}

func (s *Store) Latest() (string, bool, error) {
	entries, err := s.entries()
	if err != nil {
		return "", false, err
	}
	if len(entries) == 0 {
		return "", false, nil
	}
	return entries[len(entries)-1].name, true, nil
}

// Path resolves a photo name inside the store directory.
func (s *Store) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if !imageExts[strings.ToLower(filepath.Ext(name))] {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.dir, name), nil
}

// Sweep deletes photos last modified before now minus the expiry window and
// returns how many were removed.
func (s *Store) Sweep(now time.Time) int {
	entries, err := s.entries()
	if err != nil {
		s.logger.Error("listing captures for sweep", "error", err)
		return 0
	}

	cutoff := now.Add(-s.expiry)
	removed := 0
	for _, e := range entries {
		if !e.mod.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.name)); err != nil {
			s.logger.Warn("deleting expired photo", "file", e.name, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("expired photos removed", "count", removed)
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is done. onSweep, when
// set, receives the number of photos removed by each pass.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := s.Sweep(s.now())
				if onSweep != nil {
					onSweep(removed)
				}
			}
		}
	}()
}
