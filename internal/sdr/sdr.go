// Package sdr defines the sample source contract shared by all acquisition
// modes: a driver enumerates and opens devices, a device is configured and
// tuned, and a stream delivers fixed-size blocks of complex baseband samples.
package sdr

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoDevice is returned when enumeration finds no usable hardware.
	// It is fatal: there is nothing to retry against.
	ErrNoDevice = errors.New("no SDR devices found")

	// ErrUnsupported is returned by Configure for optional front-end
	// features (antenna selection, analog bandwidth) the backend cannot
	// honor. Callers treat it as advisory and continue.
	ErrUnsupported = errors.New("configuration not supported by device")

	// ErrReadFailed is returned when a stream read reports a non-positive
	// sample count. The cycle that observed it is lost; the next cycle is
	// the implicit retry.
	ErrReadFailed = errors.New("stream read failed")
)

// DefaultReadTimeout bounds a single blocking stream read.
const DefaultReadTimeout = time.Second

// DeviceInfo describes one enumerated device.
type DeviceInfo struct {
	Driver string // Backend name, e.g. "lime" or "rtltcp"
	Label  string // Human-readable device label
	Serial string // Serial number or address, may be empty
}

func (d DeviceInfo) String() string {
	if d.Serial == "" {
		return fmt.Sprintf("%s: %s", d.Driver, d.Label)
	}
	return fmt.Sprintf("%s: %s (serial %s)", d.Driver, d.Label, d.Serial)
}

// RXConfig holds the receive chain settings applied once per session.
// Frequency is set separately because sweep mode retunes per cycle.
type RXConfig struct {
	SampleRate float64 // Samples per second, must be > 0
	Gain       float64 // RX gain in dB
	Antenna    string  // Optional antenna name, backend specific
	Bandwidth  float64 // Optional analog filter bandwidth in Hz, 0 for default
}

// Device is an open SDR receiver. Implementations are not required to be
// safe for concurrent use; the acquisition loop drives one device from a
// single goroutine.
type Device interface {
	// Configure applies the receive chain settings. Unsupported optional
	// settings are reported with an error wrapping ErrUnsupported after
	// the supported ones have been applied.
	Configure(cfg RXConfig) error

	// SetFrequency tunes the front end to the given center frequency.
	SetFrequency(hz float64) error

	// OpenStream activates the RX stream. Only one stream per device.
	OpenStream() (Stream, error)

	Info() DeviceInfo
	Close() error
}

// Stream delivers complex baseband samples.
type Stream interface {
	// Read fills buf with up to len(buf) samples and returns the count
	// delivered. A read blocks no longer than DefaultReadTimeout. A failed
	// read returns an error wrapping ErrReadFailed.
	Read(ctx context.Context, buf []complex64) (int, error)

	Close() error
}

// Driver creates devices for one backend.
type Driver interface {
	Name() string
	Enumerate(ctx context.Context) ([]DeviceInfo, error)
	Open(ctx context.Context, info DeviceInfo) (Device, error)
}
