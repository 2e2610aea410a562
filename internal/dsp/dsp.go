// Package dsp implements the power-spectrum measurement primitives: a
// windowed, zero-frequency-centered power spectrum for display and a scalar
// mean power reduction for logging.
package dsp

import (
	"errors"
	"math"

	segdsp "github.com/racerxdl/segdsp/dsp"
	"github.com/racerxdl/segdsp/dsp/fft"
	"github.com/racerxdl/segdsp/tools"
)

// ErrEmptyBlock is returned when an estimator is handed a zero-length block
// or a non-positive sample rate. These are programming errors, never a
// condition produced by the hardware.
var ErrEmptyBlock = errors.New("dsp: empty sample block")

const (
	// spectrumEpsilon guards 20*log10 against a zero magnitude bin.
	spectrumEpsilon = 1e-12

	// powerEpsilon guards 10*log10 against an all-zero block.
	powerEpsilon = 1e-20

	// windowAttenuation is the stop-band attenuation, in dB, requested
	// from the Blackman-Harris window generator.
	windowAttenuation = 61
)

// Estimator computes power spectra over fixed-size sample blocks. The
// analysis window is recomputed only when the block length changes, so the
// common case of a steady FFT size costs one window generation total.
// An Estimator is not safe for concurrent use.
type Estimator struct {
	window []float64
}

// NewEstimator returns an Estimator with no window allocated yet.
func NewEstimator() *Estimator {
	return &Estimator{}
}

// Spectrum windows the block, transforms it and returns len(block) power
// values in dB, ordered so that index 0 is the most negative frequency
// offset and the zero-frequency bin sits at the middle index.
func (e *Estimator) Spectrum(block []complex64, sampleRate float64) ([]float64, error) {
	n := len(block)
	if n == 0 {
		return nil, ErrEmptyBlock
	}
	if sampleRate <= 0 {
		return nil, ErrEmptyBlock
	}

	if len(e.window) != n {
		e.window = segdsp.BlackmanHarris(n, windowAttenuation)
	}

	windowed := make([]complex64, n)
	for i, s := range block {
		w := float32(e.window[i])
		windowed[i] = complex(real(s)*w, imag(s)*w)
	}

	bins := fft.FFT(windowed)

	// Re-center so the most negative frequency offset comes first.
	power := make([]float64, n)
	half := (n + 1) / 2
	for i := range bins {
		mag := math.Sqrt(float64(tools.ComplexAbsSquared(bins[(i+half)%n])))
		power[i] = 20 * math.Log10(mag+spectrumEpsilon)
	}
	return power, nil
}

// MeanPower reduces a block to its average squared magnitude in dB. An
// all-zero block yields the epsilon floor rather than -Inf.
func MeanPower(block []complex64) (float64, error) {
	if len(block) == 0 {
		return 0, ErrEmptyBlock
	}

	var sum float64
	for _, s := range block {
		sum += float64(tools.ComplexAbsSquared(s))
	}
	mean := sum / float64(len(block))
	return 10 * math.Log10(mean+powerEpsilon), nil
}

// FrequencyAxis returns the center frequency of each of the n spectrum bins
// produced by Spectrum, in Hz. Bin i sits at center + (i - n/2)*sampleRate/n,
// so bin 0 is the most negative offset and bins are sampleRate/n apart.
func FrequencyAxis(n int, sampleRate, center float64) []float64 {
	axis := make([]float64, n)
	binWidth := sampleRate / float64(n)
	for i := range axis {
		axis[i] = center + float64(i-n/2)*binWidth
	}
	return axis
}

// PeakBin returns the index of the highest-power bin in a spectrum.
func PeakBin(power []float64) int {
	peak := 0
	for i, p := range power {
		if p > power[peak] {
			peak = i
		}
	}
	return peak
}
