package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"smart-mirror/internal/domain"
)

// Breaker stops calling a failing model for a while. While open, calls fail
// fast with ErrClassifierUnavailable, which the orchestrator answers with an
// "Internal error." turn instead of waiting for timeouts.
type Breaker struct {
	next Completer
	cb   *gobreaker.CircuitBreaker
}

func NewBreaker(name string, next Completer, logger *slog.Logger) *Breaker {
	return &Breaker{
		next: next,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

func (b *Breaker) Complete(ctx context.Context, system, user string) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Complete(ctx, system, user)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %w", domain.ErrClassifierUnavailable, err)
	}
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
