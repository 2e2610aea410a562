package telemetry

import (
	"bufio"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adrianmo/go-nmea"
	"go.bug.st/serial"
)

// NMEASerial reads GGA/RMC sentences from a serial GNSS receiver and keeps
// the latest valid fix. Get never blocks; it returns nil until the first
// fix arrives.
type NMEASerial struct {
	port   serial.Port
	logger *slog.Logger

	mu       sync.RWMutex
	position *Position

	done chan struct{}
}

// NewNMEASerial opens the serial port and starts the background read loop.
func NewNMEASerial(portName string, baudRate int, logger *slog.Logger) (*NMEASerial, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("opening GNSS port %s: %w", portName, err)
	}

	n := &NMEASerial{
		port:   port,
		logger: logger.With(slog.String("source", "nmea"), slog.String("port", portName)),
		done:   make(chan struct{}),
	}
	go n.readLoop()

	return n, nil
}

func (n *NMEASerial) Get() *Position {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.position
}

// Close stops the read loop by closing the underlying port.
func (n *NMEASerial) Close() error {
	err := n.port.Close()
	<-n.done
	return err
}

func (n *NMEASerial) readLoop() {
	defer close(n.done)

	scanner := bufio.NewScanner(n.port)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 || line[0] != '$' {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			n.logger.Debug("skipping unparseable sentence", slog.String("line", line))
			continue
		}

		if pos := positionFromSentence(sentence); pos != nil {
			n.mu.Lock()
			n.position = pos
			n.mu.Unlock()
		}
	}
	if err := scanner.Err(); err != nil {
		n.logger.Warn("GNSS read loop stopped", slog.String("error", err.Error()))
	}
}

// positionFromSentence extracts a fix from a GGA or RMC sentence. Sentences
// without a valid fix, and sentence types that carry no position, yield nil.
func positionFromSentence(sentence nmea.Sentence) *Position {
	switch s := sentence.(type) {
	case nmea.GGA:
		if s.FixQuality == nmea.Invalid {
			return nil
		}
		lat, lon, alt := s.Latitude, s.Longitude, s.Altitude
		sats := int(s.NumSatellites)
		return &Position{
			Timestamp:  time.Now(),
			Latitude:   &lat,
			Longitude:  &lon,
			Altitude:   &alt,
			Satellites: &sats,
		}

	case nmea.RMC:
		if s.Validity != "A" {
			return nil
		}
		lat, lon := s.Latitude, s.Longitude
		return &Position{
			Timestamp: time.Now(),
			Latitude:  &lat,
			Longitude: &lon,
		}
	}
	return nil
}
