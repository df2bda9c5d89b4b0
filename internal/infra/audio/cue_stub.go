//go:build !portaudio
// +build !portaudio

package audio

import "context"

// Cue stub when built without audio output support
type Cue struct{}

func NewCue(_ string) *Cue {
	return &Cue{}
}

func (c *Cue) Play(_ context.Context) error {
	return nil
}
