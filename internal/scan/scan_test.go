package scan

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/roman-kulish/spectrum-monitor/internal/sdr"
	"github.com/roman-kulish/spectrum-monitor/internal/telemetry"
)

// fakeDevice records tuning requests and serves a scripted stream.
type fakeDevice struct {
	tuned  []float64
	stream *fakeStream
}

func (d *fakeDevice) Configure(sdr.RXConfig) error { return nil }

func (d *fakeDevice) SetFrequency(freq float64) error {
	d.tuned = append(d.tuned, freq)
	return nil
}

func (d *fakeDevice) OpenStream() (sdr.Stream, error) { return d.stream, nil }

func (d *fakeDevice) Info() sdr.DeviceInfo {
	return sdr.DeviceInfo{Driver: "fake", Label: "fake device"}
}

func (d *fakeDevice) Close() error { return nil }

// readResult scripts one Read call: deliver n samples of the given value,
// or fail.
type readResult struct {
	n     int
	value complex64
	err   error
}

type fakeStream struct {
	script []readResult
	calls  int
}

func (s *fakeStream) Read(ctx context.Context, buf []complex64) (int, error) {
	if s.calls >= len(s.script) {
		return 0, fmt.Errorf("%w: script exhausted", sdr.ErrReadFailed)
	}
	r := s.script[s.calls]
	s.calls++
	if r.err != nil {
		return 0, r.err
	}
	n := r.n
	if n > len(buf) {
		n = len(buf)
	}
	for i := 0; i < n; i++ {
		buf[i] = r.value
	}
	return n, nil
}

func (s *fakeStream) Close() error { return nil }

// fullReads scripts count successful reads that each fill the caller's
// buffer in one go.
func fullReads(count int, value complex64) []readResult {
	script := make([]readResult, count)
	for i := range script {
		script[i] = readResult{n: 1 << 20, value: value}
	}
	return script
}

func newTestSession(t *testing.T, dev *fakeDevice, options ...func(*Session)) *Session {
	t.Helper()
	s, err := NewSession(dev, Config{SampleRate: 1e6, BlockLen: 8}, options...)
	if err != nil {
		t.Fatalf("NewSession() error: %v", err)
	}
	return s
}

func TestAcquireAtAccumulatesPartialReads(t *testing.T) {
	dev := &fakeDevice{stream: &fakeStream{script: []readResult{
		{n: 3, value: 1},
		{n: 2, value: 1},
		{n: 5, value: 1},
	}}}
	s := newTestSession(t, dev)

	block, err := s.AcquireAt(context.Background(), 100e6, 0)
	if err != nil {
		t.Fatalf("AcquireAt() error: %v", err)
	}
	if len(block) != 8 {
		t.Fatalf("AcquireAt() returned %d samples, want 8", len(block))
	}
	for i, v := range block {
		if v != 1 {
			t.Fatalf("block[%d] = %v, want (1+0i)", i, v)
		}
	}
	if len(dev.tuned) != 1 || dev.tuned[0] != 100e6 {
		t.Fatalf("tuned = %v, want [1e+08]", dev.tuned)
	}
}

func TestAcquireAtReadFailureReturnsPartial(t *testing.T) {
	dev := &fakeDevice{stream: &fakeStream{script: []readResult{
		{n: 5, value: 1},
		{err: fmt.Errorf("%w: overflow", sdr.ErrReadFailed)},
	}}}
	s := newTestSession(t, dev)

	block, err := s.AcquireAt(context.Background(), 100e6, 0)
	if !errors.Is(err, sdr.ErrReadFailed) {
		t.Fatalf("AcquireAt() error = %v, want sdr.ErrReadFailed", err)
	}
	if len(block) != 5 {
		t.Fatalf("AcquireAt() returned %d samples, want partial 5", len(block))
	}
}

func TestRunSweepSequence(t *testing.T) {
	// Four frequencies per pass; allow one complete pass plus the first
	// measurement of the next before cancelling.
	dev := &fakeDevice{stream: &fakeStream{script: fullReads(5, 1)}}
	s := newTestSession(t, dev)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan Measurement)
	done := make(chan error, 1)
	go func() {
		done <- s.RunSweep(ctx, Plan{Start: 900e6, Stop: 903e6, Step: 1e6}, 0, out)
	}()

	var got []Measurement
	for i := 0; i < 5; i++ {
		got = append(got, <-out)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("RunSweep() error: %v", err)
	}

	want := []float64{900e6, 901e6, 902e6, 903e6, 900e6}
	for i, m := range got {
		if m.Frequency != want[i] {
			t.Errorf("measurement %d frequency = %v, want %v", i, m.Frequency, want[i])
		}
		if m.Power == nil {
			t.Errorf("measurement %d has nil power", i)
		} else if math.Abs(*m.Power) > 1e-9 {
			t.Errorf("measurement %d power = %v dB, want 0", i, *m.Power)
		}
	}
}

func TestRunSweepContinuesAfterReadFailure(t *testing.T) {
	script := fullReads(1, 1)
	script = append(script, readResult{err: fmt.Errorf("%w: timeout", sdr.ErrReadFailed)})
	script = append(script, fullReads(2, 1)...)
	dev := &fakeDevice{stream: &fakeStream{script: script}}
	s := newTestSession(t, dev)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan Measurement)
	done := make(chan error, 1)
	go func() {
		done <- s.RunSweep(ctx, Plan{Start: 900e6, Stop: 903e6, Step: 1e6}, 0, out)
	}()

	var got []Measurement
	for i := 0; i < 4; i++ {
		got = append(got, <-out)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("RunSweep() error: %v", err)
	}

	if got[1].Power != nil {
		t.Errorf("failed cycle power = %v, want nil", *got[1].Power)
	}
	if got[1].Frequency != 901e6 {
		t.Errorf("failed cycle frequency = %v, want 9.01e+08", got[1].Frequency)
	}
	// The sweep must not stall on the failure.
	if got[2].Frequency != 902e6 || got[2].Power == nil {
		t.Errorf("cycle after failure = %+v, want a measured 902 MHz record", got[2])
	}
}

func TestRunSweepInvalidPlan(t *testing.T) {
	dev := &fakeDevice{stream: &fakeStream{}}
	s := newTestSession(t, dev)

	if err := s.RunSweep(context.Background(), Plan{Start: 1e6, Stop: 2e6, Step: 0}, 0, nil); err == nil {
		t.Fatal("RunSweep() with zero step returned nil error")
	}
}

func TestRunFixedTunesOnce(t *testing.T) {
	dev := &fakeDevice{stream: &fakeStream{script: fullReads(3, 1)}}
	s := newTestSession(t, dev)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan Measurement)
	done := make(chan error, 1)
	go func() {
		done <- s.RunFixed(ctx, 433.92e6, time.Millisecond, out)
	}()

	for i := 0; i < 3; i++ {
		m := <-out
		if m.Frequency != 433.92e6 {
			t.Errorf("measurement %d frequency = %v, want 4.3392e+08", i, m.Frequency)
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("RunFixed() error: %v", err)
	}

	if len(dev.tuned) != 1 {
		t.Fatalf("device tuned %d times, want 1", len(dev.tuned))
	}
}

// collectSink gathers frames and asks for cancellation once it has enough.
type collectSink struct {
	frames []Frame
	limit  int
	cancel context.CancelFunc
}

func (c *collectSink) HandleFrame(f Frame) error {
	c.frames = append(c.frames, f)
	if len(c.frames) >= c.limit {
		c.cancel()
	}
	return nil
}

func TestRunLiveFrames(t *testing.T) {
	dev := &fakeDevice{stream: &fakeStream{script: fullReads(16, 1)}}
	s := newTestSession(t, dev)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &collectSink{limit: 3, cancel: cancel}

	if err := s.RunLive(ctx, 100e6, sink); err != nil {
		t.Fatalf("RunLive() error: %v", err)
	}
	if len(sink.frames) < 3 {
		t.Fatalf("sink received %d frames, want at least 3", len(sink.frames))
	}
	for i, f := range sink.frames[:3] {
		if len(f.Power) != 8 {
			t.Errorf("frame %d has %d bins, want 8", i, len(f.Power))
		}
		if f.Center != 100e6 {
			t.Errorf("frame %d center = %v, want 1e+08", i, f.Center)
		}
	}
	if len(dev.tuned) != 1 {
		t.Fatalf("device tuned %d times, want 1", len(dev.tuned))
	}
}

func TestRunLiveContinuesAfterReadFailure(t *testing.T) {
	script := fullReads(1, 1)
	script = append(script, readResult{err: fmt.Errorf("%w: overflow", sdr.ErrReadFailed)})
	script = append(script, fullReads(8, 1)...)
	dev := &fakeDevice{stream: &fakeStream{script: script}}
	s := newTestSession(t, dev)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &collectSink{limit: 2, cancel: cancel}

	if err := s.RunLive(ctx, 100e6, sink); err != nil {
		t.Fatalf("RunLive() error: %v", err)
	}
	if len(sink.frames) < 2 {
		t.Fatalf("sink received %d frames despite recoverable failure, want 2", len(sink.frames))
	}
}

// cancelAwareSink mimics a sink whose writes run on the command context:
// once the run is cancelled, handling a frame fails with the cancellation.
type cancelAwareSink struct {
	ctx    context.Context
	cancel context.CancelFunc
	frames int
}

func (c *cancelAwareSink) HandleFrame(Frame) error {
	c.frames++
	if c.frames >= 2 {
		c.cancel()
	}
	return c.ctx.Err()
}

func TestRunLiveStopsCleanlyOnSinkCancellation(t *testing.T) {
	dev := &fakeDevice{stream: &fakeStream{script: fullReads(8, 1)}}
	s := newTestSession(t, dev)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &cancelAwareSink{ctx: ctx, cancel: cancel}

	if err := s.RunLive(ctx, 100e6, sink); err != nil {
		t.Fatalf("RunLive() error: %v", err)
	}
}

func TestMeasurementCarriesPosition(t *testing.T) {
	dev := &fakeDevice{stream: &fakeStream{script: fullReads(1, 1)}}
	s := newTestSession(t, dev, WithTelemetry(telemetry.Manual{
		Latitude:  -33.865,
		Longitude: 151.209,
	}))

	m, err := s.measure(context.Background(), 100e6, 0, true)
	if err != nil {
		t.Fatalf("measure() error: %v", err)
	}
	if m.Position == nil || m.Position.Latitude == nil {
		t.Fatal("measurement has no position fix")
	}
	if *m.Position.Latitude != -33.865 {
		t.Errorf("latitude = %v, want -33.865", *m.Position.Latitude)
	}
}

func TestPlanFrequencies(t *testing.T) {
	tests := []struct {
		name string
		plan Plan
		want []float64
	}{
		{
			name: "exact multiple includes stop",
			plan: Plan{Start: 900e6, Stop: 903e6, Step: 1e6},
			want: []float64{900e6, 901e6, 902e6, 903e6},
		},
		{
			name: "overshoot below half step excluded",
			plan: Plan{Start: 100e6, Stop: 102.4e6, Step: 1e6},
			want: []float64{100e6, 101e6, 102e6},
		},
		{
			name: "single point",
			plan: Plan{Start: 100e6, Stop: 100e6, Step: 5e6},
			want: []float64{100e6},
		},
		{
			name: "fractional step keeps endpoint",
			plan: Plan{Start: 88e6, Stop: 88.9e6, Step: 0.3e6},
			want: []float64{88e6, 88.3e6, 88.6e6, 88.9e6},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.plan.Frequencies()
			if len(got) != len(tt.want) {
				t.Fatalf("Frequencies() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if math.Abs(got[i]-tt.want[i]) > 1 {
					t.Errorf("Frequencies()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
