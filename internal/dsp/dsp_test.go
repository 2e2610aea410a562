package dsp

import (
	"errors"
	"math"
	"testing"
)

func TestSpectrumLengthAndOrdering(t *testing.T) {
	e := NewEstimator()

	for _, n := range []int{16, 256, 4096} {
		block := make([]complex64, n)
		for i := range block {
			block[i] = complex(1, 0)
		}

		power, err := e.Spectrum(block, 1e6)
		if err != nil {
			t.Fatalf("Spectrum(n=%d) failed: %v", n, err)
		}
		if len(power) != n {
			t.Errorf("Spectrum(n=%d): expected %d bins, got %d", n, n, len(power))
		}

		// A DC-only block concentrates its energy in the middle bin
		// after re-centering, not in bin 0.
		if peak := PeakBin(power); peak != n/2 {
			t.Errorf("Spectrum(n=%d): expected DC peak at bin %d, got %d", n, n/2, peak)
		}
	}
}

func TestSpectrumEmptyBlock(t *testing.T) {
	e := NewEstimator()

	if _, err := e.Spectrum(nil, 1e6); !errors.Is(err, ErrEmptyBlock) {
		t.Errorf("expected ErrEmptyBlock for empty block, got %v", err)
	}
	if _, err := e.Spectrum(make([]complex64, 16), 0); !errors.Is(err, ErrEmptyBlock) {
		t.Errorf("expected ErrEmptyBlock for zero sample rate, got %v", err)
	}
}

func TestSpectrumSinusoidPeak(t *testing.T) {
	const (
		n          = 256
		sampleRate = 256e3
		offsetHz   = 8e3
		centerHz   = 100e6
	)

	block := make([]complex64, n)
	for i := range block {
		phase := 2 * math.Pi * offsetHz * float64(i) / sampleRate
		block[i] = complex(float32(math.Cos(phase)), float32(math.Sin(phase)))
	}

	e := NewEstimator()
	power, err := e.Spectrum(block, sampleRate)
	if err != nil {
		t.Fatalf("Spectrum failed: %v", err)
	}

	axis := FrequencyAxis(n, sampleRate, centerHz)
	peakFreq := axis[PeakBin(power)]

	binWidth := sampleRate / n
	if diff := math.Abs(peakFreq - (centerHz + offsetHz)); diff > binWidth {
		t.Errorf("peak at %.0f Hz, expected within %.0f Hz of %.0f Hz",
			peakFreq, binWidth, centerHz+offsetHz)
	}
}

func TestMeanPower(t *testing.T) {
	t.Run("empty block", func(t *testing.T) {
		if _, err := MeanPower(nil); !errors.Is(err, ErrEmptyBlock) {
			t.Errorf("expected ErrEmptyBlock, got %v", err)
		}
	})

	t.Run("all zero samples hit the epsilon floor", func(t *testing.T) {
		p, err := MeanPower(make([]complex64, 128))
		if err != nil {
			t.Fatalf("MeanPower failed: %v", err)
		}
		want := 10 * math.Log10(powerEpsilon)
		if math.IsInf(p, 0) || math.IsNaN(p) {
			t.Fatalf("expected finite floor, got %v", p)
		}
		if math.Abs(p-want) > 1e-9 {
			t.Errorf("expected floor %.1f dB, got %.1f dB", want, p)
		}
	})

	t.Run("unit magnitude block is 0 dB", func(t *testing.T) {
		block := make([]complex64, 64)
		for i := range block {
			block[i] = complex(1, 0)
		}
		p, err := MeanPower(block)
		if err != nil {
			t.Fatalf("MeanPower failed: %v", err)
		}
		if math.Abs(p) > 1e-6 {
			t.Errorf("expected 0 dB, got %f dB", p)
		}
	})
}

func TestFrequencyAxis(t *testing.T) {
	axis := FrequencyAxis(8, 8e6, 100e6)

	if len(axis) != 8 {
		t.Fatalf("expected 8 bins, got %d", len(axis))
	}
	if axis[0] != 100e6-4e6 {
		t.Errorf("bin 0: expected %.0f (most negative offset), got %.0f", 100e6-4e6, axis[0])
	}
	if axis[4] != 100e6 {
		t.Errorf("middle bin: expected center %.0f, got %.0f", 100e6, axis[4])
	}
	for i := 1; i < len(axis); i++ {
		if step := axis[i] - axis[i-1]; step != 1e6 {
			t.Errorf("bin spacing at %d: expected 1 MHz, got %.0f Hz", i, step)
		}
	}
}

func TestEstimatorWindowReuse(t *testing.T) {
	e := NewEstimator()
	block := make([]complex64, 64)

	if _, err := e.Spectrum(block, 1e6); err != nil {
		t.Fatalf("Spectrum failed: %v", err)
	}
	first := &e.window[0]

	if _, err := e.Spectrum(block, 1e6); err != nil {
		t.Fatalf("Spectrum failed: %v", err)
	}
	if &e.window[0] != first {
		t.Error("window was recomputed for an unchanged block length")
	}

	if _, err := e.Spectrum(make([]complex64, 128), 1e6); err != nil {
		t.Fatalf("Spectrum failed: %v", err)
	}
	if len(e.window) != 128 {
		t.Errorf("expected window length 128 after resize, got %d", len(e.window))
	}
}
