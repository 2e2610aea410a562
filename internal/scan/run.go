package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roman-kulish/spectrum-monitor/internal/dsp"
)

// Frame is one spectrum row produced by the live loop.
type Frame struct {
	Timestamp  time.Time
	Center     float64   // Center frequency in Hz
	SampleRate float64   // Hz
	Power      []float64 // One dB value per bin, most negative offset first
}

// FrameSink consumes live spectrum rows. A sink error is fatal to the run;
// unlike a read failure there is no next cycle that could succeed.
type FrameSink interface {
	HandleFrame(Frame) error
}

// RunLive streams spectra at a fixed center frequency until the context is
// cancelled. Read failures are logged and the loop moves straight to the
// next cycle.
func (s *Session) RunLive(ctx context.Context, freq float64, sink FrameSink) error {
	if err := s.dev.SetFrequency(freq); err != nil {
		return fmt.Errorf("tuning to %.0f Hz: %w", freq, err)
	}

	s.logger.Info("live capture started",
		slog.Float64("freq", freq),
		slog.Float64("rate", s.cfg.SampleRate),
		slog.Int("fft", s.cfg.BlockLen))

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		block, err := s.readBlock(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("read failed, continuing", slog.String("error", err.Error()))
			continue
		}

		power, err := s.estimator.Spectrum(block, s.cfg.SampleRate)
		if err != nil {
			return fmt.Errorf("computing spectrum: %w", err)
		}

		if err = sink.HandleFrame(Frame{
			Timestamp:  time.Now().UTC(),
			Center:     freq,
			SampleRate: s.cfg.SampleRate,
			Power:      power,
		}); err != nil {
			return ignoreCancel(fmt.Errorf("handling frame: %w", err))
		}
	}
}

// RunFixed polls the mean power at a single frequency, emitting one
// Measurement per interval, until the context is cancelled. The front end
// is tuned once up front; per-cycle settling is unnecessary.
func (s *Session) RunFixed(ctx context.Context, freq float64, interval time.Duration, out chan<- Measurement) error {
	if err := s.dev.SetFrequency(freq); err != nil {
		return fmt.Errorf("tuning to %.0f Hz: %w", freq, err)
	}

	s.logger.Info("fixed-frequency logging started",
		slog.Float64("freq", freq),
		slog.Duration("interval", interval))

	for {
		m, err := s.measure(ctx, freq, 0, false)
		if err != nil {
			return ignoreCancel(err)
		}
		if !emit(ctx, out, m) {
			return nil
		}

		if err = sleep(ctx, interval); err != nil {
			return nil
		}
	}
}

// RunSweep cycles through the plan's frequencies, one Measurement each,
// restarting from the first frequency after every pass, until the context
// is cancelled. Every retune is followed by the settle wait. A failed read
// emits a nil-power Measurement and the sweep continues with the next
// frequency.
func (s *Session) RunSweep(ctx context.Context, plan Plan, settle time.Duration, out chan<- Measurement) error {
	if err := plan.Validate(); err != nil {
		return err
	}

	freqs := plan.Frequencies()
	s.logger.Info("sweep logging started",
		slog.Float64("start", plan.Start),
		slog.Float64("stop", plan.Stop),
		slog.Float64("step", plan.Step),
		slog.Int("points", len(freqs)))

	for {
		for _, freq := range freqs {
			m, err := s.measure(ctx, freq, settle, true)
			if err != nil {
				return ignoreCancel(err)
			}
			if !emit(ctx, out, m) {
				return nil
			}
		}
	}
}

// emit delivers a measurement unless the run is being cancelled.
func emit(ctx context.Context, out chan<- Measurement, m Measurement) bool {
	select {
	case out <- m:
		return true
	case <-ctx.Done():
		return false
	}
}

// ignoreCancel strips context cancellation, the expected way every run
// ends, so only real faults surface as errors.
func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// Snapshot captures one block at the given frequency and reduces it to a
// spectrum with its frequency axis, the one-shot equivalent of a live
// frame. A partial block from a failed read is still reduced when any
// samples arrived, matching the best-effort behavior of a field capture.
func (s *Session) Snapshot(ctx context.Context, freq float64, settle time.Duration) (Frame, []float64, error) {
	block, err := s.AcquireAt(ctx, freq, settle)
	if err != nil && len(block) == 0 {
		return Frame{}, nil, err
	}
	if err != nil {
		s.logger.Warn("capture ended early",
			slog.Int("captured", len(block)),
			slog.Int("requested", s.cfg.BlockLen),
			slog.String("error", err.Error()))
	}

	power, serr := s.estimator.Spectrum(block, s.cfg.SampleRate)
	if serr != nil {
		return Frame{}, nil, fmt.Errorf("computing spectrum: %w", serr)
	}

	frame := Frame{
		Timestamp:  time.Now().UTC(),
		Center:     freq,
		SampleRate: s.cfg.SampleRate,
		Power:      power,
	}
	return frame, dsp.FrequencyAxis(len(power), s.cfg.SampleRate, freq), nil
}
