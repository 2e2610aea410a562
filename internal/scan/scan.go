// Package scan drives the measurement cycle shared by every usage mode:
// tune, settle, read one fixed-size block, reduce it, emit the result. The
// three run loops (live, fixed polling, sweep polling) are thin schedules
// over the same cycle primitive.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roman-kulish/spectrum-monitor/internal/dsp"
	"github.com/roman-kulish/spectrum-monitor/internal/sdr"
	"github.com/roman-kulish/spectrum-monitor/internal/telemetry"
)

// Measurement is one logging-mode record. A nil Power marks a cycle lost
// to a read failure; the record is still emitted so the gap is visible in
// the log.
type Measurement struct {
	Timestamp time.Time
	Frequency float64             // Center frequency in Hz
	Power     *float64            // Mean power in dB, nil on read failure
	Position  *telemetry.Position // Optional position fix, nil when absent
}

// Config carries the per-session acquisition settings.
type Config struct {
	SampleRate float64 // Samples per second
	BlockLen   int     // Samples per measurement block
}

// WithTelemetry attaches a position provider whose fixes are copied into
// every emitted Measurement.
func WithTelemetry(p telemetry.Provider) func(*Session) {
	return func(s *Session) {
		s.telemetry = p
	}
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) func(*Session) {
	return func(s *Session) {
		s.logger = logger.With(slog.String("device", s.dev.Info().String()))
	}
}

// Session owns an open device and its stream for the duration of one run.
// Close releases both; Run* methods leave the hardware untouched on exit so
// a session can run more than one mode sequentially.
type Session struct {
	dev    sdr.Device
	stream sdr.Stream

	cfg       Config
	estimator *dsp.Estimator
	telemetry telemetry.Provider
	logger    *slog.Logger
}

// NewSession configures the device and activates its stream.
func NewSession(dev sdr.Device, cfg Config, options ...func(*Session)) (*Session, error) {
	if cfg.BlockLen <= 0 {
		return nil, fmt.Errorf("invalid block length %d", cfg.BlockLen)
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %f", cfg.SampleRate)
	}

	s := Session{
		dev:       dev,
		cfg:       cfg,
		estimator: dsp.NewEstimator(),
		telemetry: telemetry.None{},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, option := range options {
		option(&s)
	}

	stream, err := dev.OpenStream()
	if err != nil {
		return nil, fmt.Errorf("opening stream: %w", err)
	}
	s.stream = stream

	return &s, nil
}

// Close releases the stream and the device. Safe to call after a failed or
// cancelled run.
func (s *Session) Close() error {
	var errs []error
	if s.stream != nil {
		if err := s.stream.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing stream: %w", err))
		}
		s.stream = nil
	}
	if err := s.dev.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing device: %w", err))
	}
	return errors.Join(errs...)
}

// AcquireAt runs one measurement cycle up to the reduction step: tune to
// freq, wait settle for the front end to stabilize, then accumulate exactly
// BlockLen samples across as many partial reads as needed. A read that
// fails mid-block abandons the cycle and returns the samples collected so
// far alongside an error wrapping sdr.ErrReadFailed; the caller decides
// whether a partial block is usable.
func (s *Session) AcquireAt(ctx context.Context, freq float64, settle time.Duration) ([]complex64, error) {
	if err := s.dev.SetFrequency(freq); err != nil {
		return nil, fmt.Errorf("tuning to %.0f Hz: %w", freq, err)
	}
	if settle > 0 {
		if err := sleep(ctx, settle); err != nil {
			return nil, err
		}
	}
	return s.readBlock(ctx)
}

// readBlock accumulates one full block at the current tuning.
func (s *Session) readBlock(ctx context.Context) ([]complex64, error) {
	block := make([]complex64, s.cfg.BlockLen)
	got := 0
	for got < len(block) {
		if err := ctx.Err(); err != nil {
			return block[:got], err
		}

		n, err := s.stream.Read(ctx, block[got:])
		if err != nil {
			return block[:got], err
		}
		if n <= 0 {
			return block[:got], fmt.Errorf("%w: empty read", sdr.ErrReadFailed)
		}
		got += n
	}
	return block, nil
}

// measure runs one full logging cycle and always produces a Measurement;
// a failed read yields one with nil Power. When tune is false the front
// end is assumed to sit on freq already and the settle wait is skipped.
func (s *Session) measure(ctx context.Context, freq float64, settle time.Duration, tune bool) (Measurement, error) {
	m := Measurement{
		Timestamp: time.Now().UTC(),
		Frequency: freq,
	}

	var block []complex64
	var err error
	if tune {
		block, err = s.AcquireAt(ctx, freq, settle)
	} else {
		block, err = s.readBlock(ctx)
	}
	if err != nil {
		if !errors.Is(err, sdr.ErrReadFailed) {
			return m, err
		}
		s.logger.Warn("read failed, skipping cycle",
			slog.Float64("freq", freq), slog.String("error", err.Error()))
	} else {
		power, perr := dsp.MeanPower(block)
		if perr != nil {
			return m, perr
		}
		m.Power = &power
	}

	if s.telemetry != nil {
		m.Position = s.telemetry.Get()
	}
	return m, nil
}

// sleep waits for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
