package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type slowSynth struct {
	mu      sync.Mutex
	said    []string
	active  int32
	overlap bool
	err     error
}

func (s *slowSynth) Say(_ context.Context, text string) error {
	if atomic.AddInt32(&s.active, 1) > 1 {
		s.mu.Lock()
		s.overlap = true
		s.mu.Unlock()
	}
	time.Sleep(5 * time.Millisecond)
	atomic.AddInt32(&s.active, -1)

	s.mu.Lock()
	s.said = append(s.said, text)
	s.mu.Unlock()
	return s.err
}

func (s *slowSynth) spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.said...)
}

func startSerializer(t *testing.T, synth Synthesizer, size int) *Serializer {
	t.Helper()
	s := NewSerializer(synth, size, discardLogger())
	runSerializer(t, s)
	return s
}

func runSerializer(t *testing.T, s *Serializer) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestSerializer_NoOverlapInOrder(t *testing.T) {
	synth := &slowSynth{}
	s := startSerializer(t, synth, 16)

	s.Enqueue("one")
	s.Enqueue("  ")
	s.Enqueue("two")
	if err := s.Speak(context.Background(), "three"); err != nil {
		t.Fatalf("Speak: %v", err)
	}

	got := synth.spoken()
	if strings.Join(got, ",") != "one,two,three" {
		t.Errorf("spoken: got %v", got)
	}
	if synth.overlap {
		t.Error("utterances overlapped")
	}
}

func TestSerializer_ConcurrentSpeakers(t *testing.T) {
	synth := &slowSynth{}
	s := startSerializer(t, synth, 16)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Speak(context.Background(), "hello")
		}()
	}
	wg.Wait()

	if n := len(synth.spoken()); n != 6 {
		t.Errorf("spoken: got %d, want 6", n)
	}
	if synth.overlap {
		t.Error("utterances overlapped")
	}
}

func TestSerializer_SpeakReturnsSynthError(t *testing.T) {
	synth := &slowSynth{err: errors.New("no audio device")}
	s := startSerializer(t, synth, 4)

	if err := s.Speak(context.Background(), "hi"); err == nil {
		t.Fatal("expected error")
	}
}

func TestSerializer_EnqueueBeyondCapacityPlaysEverything(t *testing.T) {
	synth := &slowSynth{}
	s := NewSerializer(synth, 1, discardLogger())

	var want []string
	for i := 0; i < 20; i++ {
		text := fmt.Sprintf("reply %d", i)
		want = append(want, text)
		s.Enqueue(text)
	}
	if n := s.Pending(); n != 20 {
		t.Fatalf("pending: got %d, want 20", n)
	}

	runSerializer(t, s)
	if err := s.Speak(context.Background(), "last"); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	want = append(want, "last")

	if got := synth.spoken(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("spoken: got %v, want %v", got, want)
	}
	if synth.overlap {
		t.Error("utterances overlapped")
	}
}

func TestSerializer_SpeakHonorsContext(t *testing.T) {
	s := NewSerializer(&slowSynth{}, 1, discardLogger())
	s.Enqueue("ahead in line")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := s.Speak(ctx, "still queued"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want deadline exceeded", err)
	}
	if n := s.Pending(); n != 2 {
		t.Errorf("pending: got %d, want 2", n)
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "espeak")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEspeak_Args(t *testing.T) {
	out := filepath.Join(t.TempDir(), "args")
	bin := writeScript(t, `echo "$@" > `+out+"\n")

	e := NewEspeak(bin, "en-us", 160)
	if err := e.Say(context.Background(), "-hello"); err != nil {
		t.Fatalf("Say: %v", err)
	}

	data, _ := os.ReadFile(out)
	if got := strings.TrimSpace(string(data)); got != "-s 160 -v en-us -- -hello" {
		t.Errorf("args: got %q", got)
	}
}

func TestEspeak_Failure(t *testing.T) {
	bin := writeScript(t, "echo 'no voice' >&2\nexit 1\n")

	err := NewEspeak(bin, "", 0).Say(context.Background(), "hi")
	if err == nil || !strings.Contains(err.Error(), "no voice") {
		t.Fatalf("got %v, want stderr in error", err)
	}
}
