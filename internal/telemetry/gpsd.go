package telemetry

import (
	"fmt"
	"sync"

	"github.com/stratoberry/go-gpsd"
)

// GPSD keeps the latest fix reported by a gpsd daemon.
type GPSD struct {
	session *gpsd.Session

	mu       sync.RWMutex
	position *Position

	done chan bool
}

// NewGPSD connects to gpsd at addr ("host:port", empty for the default
// address) and starts watching for position reports.
func NewGPSD(addr string) (*GPSD, error) {
	if addr == "" {
		addr = gpsd.DefaultAddress
	}

	session, err := gpsd.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to gpsd at %s: %w", addr, err)
	}

	g := &GPSD{session: session}

	g.session.AddFilter("TPV", func(r interface{}) {
		tpv, ok := r.(*gpsd.TPVReport)
		if !ok {
			return
		}
		// Mode 2 is a 2D fix, mode 3 a 3D fix; anything below has no
		// usable coordinates.
		if tpv.Mode < 2 {
			return
		}

		lat, lon := tpv.Lat, tpv.Lon
		pos := &Position{
			Timestamp: tpv.Time,
			Latitude:  &lat,
			Longitude: &lon,
		}
		if tpv.Mode >= 3 {
			alt := tpv.Alt
			pos.Altitude = &alt
		}

		g.mu.Lock()
		g.position = pos
		g.mu.Unlock()
	})

	g.done = g.session.Watch()
	return g, nil
}

func (g *GPSD) Get() *Position {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.position
}

func (g *GPSD) Close() error {
	return g.session.Close()
}
