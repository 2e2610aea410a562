// Package lime implements the sample source contract for LimeSDR hardware
// through the LimeSuite bindings. The driver library delivers samples via a
// callback; this package bridges them into the blocking read the
// acquisition loop expects.
package lime

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/myriadrf/limedrv"

	"github.com/roman-kulish/spectrum-monitor/internal/sdr"
)

const (
	// oversample factor handed to the ADC configuration.
	oversample = 2

	// maxGainDB is the approximate top of the LimeSDR RX gain range,
	// used to map a dB request onto the driver's normalized gain.
	maxGainDB = 73.0

	// blockQueueLen bounds the callback-to-reader handoff. When the
	// reader falls behind, the oldest queued blocks are dropped; the
	// spectrum is a live measurement, not a recording.
	blockQueueLen = 8
)

// Driver enumerates and opens LimeSDR boards.
type Driver struct{}

func NewDriver() *Driver { return &Driver{} }

func (Driver) Name() string { return "lime" }

func (Driver) Enumerate(_ context.Context) ([]sdr.DeviceInfo, error) {
	devices := limedrv.GetDevices()

	infos := make([]sdr.DeviceInfo, len(devices))
	for i, d := range devices {
		infos[i] = sdr.DeviceInfo{
			Driver: "lime",
			Label:  d.DeviceName,
			Serial: d.Serial,
		}
	}
	return infos, nil
}

func (Driver) Open(_ context.Context, info sdr.DeviceInfo) (sdr.Device, error) {
	devices := limedrv.GetDevices()
	for _, d := range devices {
		if d.DeviceName != info.Label {
			continue
		}
		if info.Serial != "" && d.Serial != info.Serial {
			continue
		}
		return &Device{dev: limedrv.Open(d), info: info}, nil
	}
	return nil, fmt.Errorf("lime device %s: %w", info, sdr.ErrNoDevice)
}

// Device is one open LimeSDR board with channel A enabled for RX.
type Device struct {
	dev  *limedrv.LMSDevice
	info sdr.DeviceInfo

	streaming bool
}

func (d *Device) Configure(cfg sdr.RXConfig) error {
	d.dev.SetSampleRate(cfg.SampleRate, oversample)

	ch := d.dev.RXChannels[limedrv.ChannelA]
	ch.Enable().SetGainNormalized(normalizeGain(cfg.Gain))

	if cfg.Antenna != "" {
		ch.SetAntennaByName(cfg.Antenna)
	}
	if cfg.Bandwidth > 0 {
		ch.SetLPF(cfg.Bandwidth).EnableLPF()
	}
	return nil
}

func (d *Device) SetFrequency(hz float64) error {
	d.dev.RXChannels[limedrv.ChannelA].SetCenterFrequency(hz)
	return nil
}

func (d *Device) OpenStream() (sdr.Stream, error) {
	if d.streaming {
		return nil, fmt.Errorf("lime device %s: stream already open", d.info)
	}

	s := &stream{
		dev:    d,
		blocks: make(chan []complex64, blockQueueLen),
	}
	d.dev.SetCallback(s.onSamples)
	d.dev.Start()
	d.streaming = true
	return s, nil
}

func (d *Device) Info() sdr.DeviceInfo { return d.info }

func (d *Device) Close() error {
	d.dev.Close()
	return nil
}

func normalizeGain(gainDB float64) float64 {
	return math.Max(0, math.Min(1, gainDB/maxGainDB))
}

// stream adapts the driver callback into blocking reads. The callback
// copies each block into a bounded queue, dropping the oldest block on
// overflow so a stalled reader never blocks the USB thread.
type stream struct {
	dev    *Device
	blocks chan []complex64

	// pending holds samples from a queued block that did not fit into
	// the caller's buffer on the previous read.
	pending []complex64
}

func (s *stream) onSamples(data []complex64, channel int, _ uint64) {
	if channel != limedrv.ChannelA {
		return
	}

	block := make([]complex64, len(data))
	copy(block, data)

	for {
		select {
		case s.blocks <- block:
			return
		default:
			select {
			case <-s.blocks: // drop oldest
			default:
			}
		}
	}
}

func (s *stream) Read(ctx context.Context, buf []complex64) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	if len(s.pending) == 0 {
		timer := time.NewTimer(sdr.DefaultReadTimeout)
		defer timer.Stop()

		select {
		case block := <-s.blocks:
			s.pending = block
		case <-timer.C:
			return 0, fmt.Errorf("%w: read timed out", sdr.ErrReadFailed)
		case <-ctx.Done():
			return 0, fmt.Errorf("%w: %w", sdr.ErrReadFailed, ctx.Err())
		}
	}

	n := copy(buf, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *stream) Close() error {
	s.dev.dev.Stop()
	s.dev.streaming = false
	return nil
}
