// Package telemetry supplies position data for measurement records. The
// acquisition loop only depends on the Provider interface; which concrete
// source backs it (gpsd, a serial NMEA receiver, fixed coordinates, or
// nothing at all) is a configuration decision.
package telemetry

import (
	"time"
)

// Position is a point fix. Nil fields mean the source has no value for
// them; a nil *Position means no source is wired in or no fix exists yet.
type Position struct {
	Timestamp  time.Time // When the fix was obtained
	Latitude   *float64  // Degrees, positive north
	Longitude  *float64  // Degrees, positive east
	Altitude   *float64  // Meters above sea level
	Satellites *int      // Satellites used in the fix, when known
}

// Provider returns the most recent position, or nil when none is available.
// Get must be cheap and non-blocking: it is called once per measurement
// cycle.
type Provider interface {
	Get() *Position
}

// None is the placeholder provider: it always reports an absent position.
// Logging modes use it when no position hardware is configured, keeping the
// record schema stable for a later source swap.
type None struct{}

func (None) Get() *Position { return nil }

// Manual reports a fixed position, for stationary installations surveyed
// once by hand.
type Manual struct {
	Latitude  float64
	Longitude float64
	Altitude  float64
}

func (m Manual) Get() *Position {
	lat, lon, alt := m.Latitude, m.Longitude, m.Altitude
	return &Position{
		Timestamp: time.Now(),
		Latitude:  &lat,
		Longitude: &lon,
		Altitude:  &alt,
	}
}
