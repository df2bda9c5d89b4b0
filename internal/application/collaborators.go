package application

import (
	"context"
	"time"

	"smart-mirror/internal/domain"
)

type WeatherProvider interface {
	Current(ctx context.Context) (domain.WeatherReport, error)
}

type OutfitAdvice struct {
	Description string
	Suggestion  string
}

type OutfitAdvisor interface {
	Advise(ctx context.Context, imageDataURL string) (OutfitAdvice, error)
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
