package application

import (
	"context"

	"smart-mirror/internal/domain"
)

// Camera captures and persists one frame. Implementations serialize callers.
type Camera interface {
	Capture(ctx context.Context, prefix string) (domain.CapturedPhoto, error)
}

type PhotoStore interface {
	Save(prefix, ext string, data []byte) (domain.CapturedPhoto, error)
	List() ([]string, error)
	Latest() (string, bool, error)
}

type GalleryLinker interface {
	GalleryURL() string
	GalleryQR() (string, error)
	PhotoURL(file string) string
}
