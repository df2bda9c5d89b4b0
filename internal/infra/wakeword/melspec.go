package wakeword

import (
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/mat"
)

const (
	// FeatureBands and FeatureFrames are the embedding network's input shape.
	FeatureBands  = 64
	FeatureFrames = 149
)

// MelSpectrogram turns a mono window into the flattened log-mel features
// the embedding network expects. The filterbank is built once.
type MelSpectrogram struct {
	sampleRate int
	windowLen  int
	hopLen     int
	nfft       int
	preEmph    float32
	window     []float64
	filterbank *mat.Dense
}

func NewMelSpectrogram(sampleRate int) *MelSpectrogram {
	windowLen := int(0.025 * float64(sampleRate))
	nfft := 512
	for nfft < windowLen {
		nfft *= 2
	}
	return &MelSpectrogram{
		sampleRate: sampleRate,
		windowLen:  windowLen,
		hopLen:     int(0.010 * float64(sampleRate)),
		nfft:       nfft,
		preEmph:    0.97,
		window:     hannWindow(windowLen),
		filterbank: melFilterbank(FeatureBands, nfft, sampleRate, 0, float64(sampleRate)/2),
	}
}

func hannWindow(size int) []float64 {
	w := make([]float64, size)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}
	return w
}

func hzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

func melToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

func melFilterbank(bands, nfft, sampleRate int, lowHz, highHz float64) *mat.Dense {
	lo, hi := hzToMel(lowHz), hzToMel(highHz)
	bins := make([]int, bands+2)
	for i := range bins {
		hz := melToHz(lo + (hi-lo)*float64(i)/float64(bands+1))
		bins[i] = int(math.Floor(float64(nfft+1) * hz / float64(sampleRate)))
	}

	fb := mat.NewDense(bands, nfft/2+1, nil)
	for j := 0; j < bands; j++ {
		for i := bins[j]; i < bins[j+1]; i++ {
			fb.Set(j, i, float64(i-bins[j])/float64(bins[j+1]-bins[j]))
		}
		for i := bins[j+1]; i < bins[j+2]; i++ {
			fb.Set(j, i, float64(bins[j+2]-i)/float64(bins[j+2]-bins[j+1]))
		}
	}
	return fb
}

// Features returns FeatureBands x FeatureFrames log-mel values, band-major,
// zero padded or truncated to that shape.
func (m *MelSpectrogram) Features(signal []float32) ([]float32, error) {
	frames := 1 + (len(signal)-m.windowLen)/m.hopLen
	if len(signal) < m.windowLen || frames <= 0 {
		return nil, fmt.Errorf("signal too short: %d samples", len(signal))
	}

	emph := make([]float32, len(signal))
	emph[0] = signal[0]
	for i := 1; i < len(signal); i++ {
		emph[i] = signal[i] - m.preEmph*signal[i-1]
	}

	_, cols := m.filterbank.Dims()
	out := make([]float32, FeatureBands*FeatureFrames)
	framed := make([]float64, m.nfft)
	magnitude := mat.NewVecDense(cols, nil)
	mel := mat.NewVecDense(FeatureBands, nil)

	for f := 0; f < min(frames, FeatureFrames); f++ {
		start := f * m.hopLen
		for i := 0; i < m.windowLen; i++ {
			framed[i] = float64(emph[start+i]) * m.window[i]
		}

		spectrum := fft.FFTReal(framed)
		for k := 0; k < cols; k++ {
			re, im := real(spectrum[k]), imag(spectrum[k])
			magnitude.SetVec(k, math.Sqrt(re*re+im*im))
		}

		mel.MulVec(m.filterbank, magnitude)
		for b := 0; b < FeatureBands; b++ {
			out[b*FeatureFrames+f] = float32(math.Log(mel.AtVec(b) + 1e-10))
		}
	}
	return out, nil
}
