package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"go.uber.org/multierr"
)

// WriteWAV writes mono 16-bit PCM samples to path.
func WriteWAV(path string, samples []int16, sampleRate int) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating wav: %w", err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		buf.Data[i] = int(s)
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encoding wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalizing wav: %w", err)
	}
	return nil
}

// EncodeWAV returns samples as an in-memory WAV file. The encoder needs a
// seekable writer, so the bytes round-trip through a temp file.
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	f, err := os.CreateTemp("", "mirror-*.wav")
	if err != nil {
		return nil, fmt.Errorf("creating temp wav: %w", err)
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	if err := WriteWAV(path, samples, sampleRate); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// DecodeWAV reads a mono or interleaved WAV and returns its first channel
// as 16-bit samples along with the sample rate.
func DecodeWAV(r io.ReadSeeker) ([]int16, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, errors.New("invalid wav")
	}

	pb, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decoding wav: %w", err)
	}
	if pb == nil || len(pb.Data) == 0 {
		return nil, 0, errors.New("empty wav")
	}

	channels := 1
	rate := int(dec.SampleRate)
	if pb.Format != nil {
		if pb.Format.NumChannels > 0 {
			channels = pb.Format.NumChannels
		}
		if pb.Format.SampleRate > 0 {
			rate = pb.Format.SampleRate
		}
	}

	shift := 0
	if bd := int(dec.BitDepth); bd > 16 {
		shift = bd - 16
	}

	out := make([]int16, 0, len(pb.Data)/channels)
	for i := 0; i < len(pb.Data); i += channels {
		out = append(out, int16(pb.Data[i]>>shift))
	}
	return out, rate, nil
}
