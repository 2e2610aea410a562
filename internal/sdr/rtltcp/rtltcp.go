// Package rtltcp implements the sample source contract over the rtl_tcp
// network protocol, so acquisition can run against a remote dongle without
// local USB access.
package rtltcp

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/roman-kulish/spectrum-monitor/internal/sdr"
)

var dongleMagic = [4]byte{'R', 'T', 'L', '0'}

// Command words defined in rtl_tcp.c.
const (
	cmdCenterFreq = iota + 1
	cmdSampleRate
	cmdTunerGainMode
	cmdTunerGain
	cmdFreqCorrection
	cmdTunerIfGain
	cmdTestMode
	cmdAGCMode
	cmdDirectSampling
	cmdOffsetTuning
	cmdRTLXtalFreq
	cmdTunerXtalFreq
	cmdGainByIndex
)

type command struct {
	Command   uint8
	Parameter uint32
}

// DongleInfo is the header sent by the server on connection.
type DongleInfo struct {
	Magic     [4]byte
	Tuner     uint32
	GainCount uint32
}

// Valid reports whether the magic matches the expected 'RTL0' byte string.
func (d DongleInfo) Valid() bool {
	return d.Magic == dongleMagic
}

// Driver dials a single rtl_tcp server address.
type Driver struct {
	addr string
}

// NewDriver returns a driver for the given "host:port" address.
func NewDriver(addr string) *Driver {
	return &Driver{addr: addr}
}

func (d *Driver) Name() string { return "rtltcp" }

// Enumerate probes the configured server. A server that cannot be reached
// or does not present a valid dongle header counts as no device.
func (d *Driver) Enumerate(ctx context.Context) ([]sdr.DeviceInfo, error) {
	dev, err := dial(ctx, d.addr)
	if err != nil {
		return nil, nil
	}
	info := dev.Info()
	_ = dev.Close()
	return []sdr.DeviceInfo{info}, nil
}

func (d *Driver) Open(ctx context.Context, info sdr.DeviceInfo) (sdr.Device, error) {
	addr := info.Serial
	if addr == "" {
		addr = d.addr
	}
	return dial(ctx, addr)
}

// Device is one rtl_tcp connection. Commands and the sample byte stream
// share the connection, as the protocol requires.
type Device struct {
	conn   *net.TCPConn
	addr   string
	dongle DongleInfo
}

func dial(ctx context.Context, addr string) (*Device, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to rtl_tcp server %s: %w", addr, err)
	}

	dev := &Device{conn: conn.(*net.TCPConn), addr: addr}
	if err = binary.Read(dev.conn, binary.BigEndian, &dev.dongle); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("reading dongle header: %w", err)
	}
	if !dev.dongle.Valid() {
		_ = conn.Close()
		return nil, fmt.Errorf("bad dongle magic %q from %s", dev.dongle.Magic, addr)
	}
	return dev, nil
}

func (d *Device) do(cmd uint8, param uint32) error {
	return binary.Write(d.conn, binary.BigEndian, command{cmd, param})
}

func (d *Device) Configure(cfg sdr.RXConfig) error {
	if err := d.do(cmdSampleRate, uint32(cfg.SampleRate)); err != nil {
		return fmt.Errorf("setting sample rate: %w", err)
	}

	// Manual gain mode, gain in tenths of a dB (197 => 19.7 dB).
	if err := d.do(cmdTunerGainMode, 1); err != nil {
		return fmt.Errorf("setting gain mode: %w", err)
	}
	if err := d.do(cmdTunerGain, uint32(cfg.Gain*10)); err != nil {
		return fmt.Errorf("setting gain: %w", err)
	}

	if cfg.Antenna != "" {
		return fmt.Errorf("antenna selection: %w", sdr.ErrUnsupported)
	}
	if cfg.Bandwidth != 0 {
		return fmt.Errorf("analog bandwidth: %w", sdr.ErrUnsupported)
	}
	return nil
}

func (d *Device) SetFrequency(hz float64) error {
	if err := d.do(cmdCenterFreq, uint32(hz)); err != nil {
		return fmt.Errorf("setting center frequency: %w", err)
	}
	return nil
}

func (d *Device) OpenStream() (sdr.Stream, error) {
	return &stream{conn: d.conn}, nil
}

func (d *Device) Info() sdr.DeviceInfo {
	return sdr.DeviceInfo{
		Driver: "rtltcp",
		Label:  fmt.Sprintf("rtl_tcp tuner %d (%d gain steps)", d.dongle.Tuner, d.dongle.GainCount),
		Serial: d.addr,
	}
}

func (d *Device) Close() error {
	return d.conn.Close()
}

// stream converts the server's unsigned 8-bit I/Q byte pairs to complex64.
type stream struct {
	conn *net.TCPConn

	// A read that ends mid-pair leaves the dangling I byte here.
	leftover byte
	hasHalf  bool
	byteBuf  []byte
}

func (s *stream) Read(ctx context.Context, buf []complex64) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	deadline := time.Now().Add(sdr.DefaultReadTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return 0, fmt.Errorf("%w: setting read deadline: %w", sdr.ErrReadFailed, err)
	}

	carried := 0
	if s.hasHalf {
		carried = 1
	}
	if cap(s.byteBuf) < len(buf)*2 {
		s.byteBuf = make([]byte, len(buf)*2)
	}
	raw := s.byteBuf[:len(buf)*2]
	if s.hasHalf {
		raw[0] = s.leftover
	}

	// TCP may deliver a lone byte; keep reading until at least one full
	// I/Q pair is available so a fragmented delivery is not reported as
	// an empty read.
	total := carried
	for total < 2 {
		n, err := s.conn.Read(raw[total:])
		if err != nil {
			s.hasHalf = total%2 == 1
			if s.hasHalf {
				s.leftover = raw[total-1]
			}
			return 0, fmt.Errorf("%w: %w", sdr.ErrReadFailed, err)
		}
		total += n
	}

	samples := total / 2
	for i := 0; i < samples; i++ {
		buf[i] = complex(
			(float32(raw[2*i])-127)/128.0,
			(float32(raw[2*i+1])-127)/128.0)
	}

	s.hasHalf = total%2 == 1
	if s.hasHalf {
		s.leftover = raw[total-1]
	}
	return samples, nil
}

func (s *stream) Close() error {
	// The connection is owned by the device; nothing stream-local to
	// release for rtl_tcp.
	return nil
}
