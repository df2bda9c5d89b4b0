package infra_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"smart-mirror/internal/infra"
)

func TestWithRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	retried := 0
	cfg := infra.FrameRetryConfig(5)
	cfg.InitialDelay = time.Millisecond
	cfg.OnRetry = func(int, error) { retried++ }

	err := infra.WithRetry(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return errors.New("empty frame")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
	if retried != 2 {
		t.Errorf("retries: got %d, want 2", retried)
	}
}

func TestWithRetry_Exhausted(t *testing.T) {
	calls := 0
	cfg := infra.FrameRetryConfig(4)
	cfg.InitialDelay = time.Millisecond

	err := infra.WithRetry(context.Background(), cfg, func() error {
		calls++
		return errors.New("empty frame")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 4 {
		t.Errorf("calls: got %d, want 4", calls)
	}
}

func TestWithRetry_Permanent(t *testing.T) {
	sentinel := errors.New("device gone")
	calls := 0

	err := infra.WithRetry(context.Background(), infra.DefaultRetryConfig(), func() error {
		calls++
		return infra.Permanent(sentinel)
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("got %v, want %v", err, sentinel)
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
}

func TestWithRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := infra.WithRetry(ctx, infra.DefaultRetryConfig(), func() error {
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}
