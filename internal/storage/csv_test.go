package storage

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/roman-kulish/spectrum-monitor/internal/scan"
	"github.com/roman-kulish/spectrum-monitor/internal/telemetry"
)

func ptr(v float64) *float64 { return &v }

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	if err != nil {
		t.Fatalf("parsing %s: %v", path, err)
	}
	return rows
}

func TestCSVSinkWritesHeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	sink, err := NewCSVSink(path, false)
	if err != nil {
		t.Fatalf("NewCSVSink() error: %v", err)
	}

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err = sink.Store(context.Background(), scan.Measurement{
		Timestamp: ts,
		Frequency: 433.92e6,
		Power:     ptr(-72.345),
	}); err != nil {
		t.Fatalf("Store() error: %v", err)
	}
	if err = sink.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	rows := readRows(t, path)
	if len(rows) != 2 {
		t.Fatalf("file has %d rows, want header plus one record", len(rows))
	}
	if got := strings.Join(rows[0], ","); got != "timestamp_iso,freq_hz,power_db,gps_lat,gps_lon,gps_alt" {
		t.Errorf("header = %q", got)
	}
	want := []string{"2025-06-01T12:00:00Z", "433920000", "-72.345", "", "", ""}
	for i, cell := range want {
		if rows[1][i] != cell {
			t.Errorf("record cell %d = %q, want %q", i, rows[1][i], cell)
		}
	}
}

func TestCSVSinkNilPowerLeavesEmptyCell(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	sink, err := NewCSVSink(path, false)
	if err != nil {
		t.Fatalf("NewCSVSink() error: %v", err)
	}

	if err = sink.Store(context.Background(), scan.Measurement{
		Timestamp: time.Now(),
		Frequency: 100e6,
	}); err != nil {
		t.Fatalf("Store() error: %v", err)
	}
	if err = sink.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	rows := readRows(t, path)
	if rows[1][2] != "" {
		t.Errorf("power cell = %q, want empty", rows[1][2])
	}
}

func TestCSVSinkPositionColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	sink, err := NewCSVSink(path, false)
	if err != nil {
		t.Fatalf("NewCSVSink() error: %v", err)
	}

	if err = sink.Store(context.Background(), scan.Measurement{
		Timestamp: time.Now(),
		Frequency: 100e6,
		Power:     ptr(-60),
		Position: &telemetry.Position{
			Latitude:  ptr(-33.865143),
			Longitude: ptr(151.2099),
			Altitude:  ptr(58),
		},
	}); err != nil {
		t.Fatalf("Store() error: %v", err)
	}
	if err = sink.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	rows := readRows(t, path)
	if rows[1][3] != "-33.865143" || rows[1][4] != "151.209900" || rows[1][5] != "58.0" {
		t.Errorf("position cells = %v", rows[1][3:])
	}
}

func TestCSVSinkAppendSkipsHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")

	first, err := NewCSVSink(path, false)
	if err != nil {
		t.Fatalf("NewCSVSink() error: %v", err)
	}
	if err = first.Store(context.Background(), scan.Measurement{Timestamp: time.Now(), Frequency: 1e6, Power: ptr(-10)}); err != nil {
		t.Fatalf("Store() error: %v", err)
	}
	if err = first.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	second, err := NewCSVSink(path, true)
	if err != nil {
		t.Fatalf("NewCSVSink(append) error: %v", err)
	}
	if err = second.Store(context.Background(), scan.Measurement{Timestamp: time.Now(), Frequency: 2e6, Power: ptr(-20)}); err != nil {
		t.Fatalf("Store() error: %v", err)
	}
	if err = second.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	rows := readRows(t, path)
	if len(rows) != 3 {
		t.Fatalf("file has %d rows, want header plus two records", len(rows))
	}
	if rows[1][0] == csvHeader[0] || rows[2][0] == csvHeader[0] {
		t.Error("header repeated in appended file")
	}
}

func TestCSVSinkAppendToEmptyWritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")

	sink, err := NewCSVSink(path, true)
	if err != nil {
		t.Fatalf("NewCSVSink(append) error: %v", err)
	}
	if err = sink.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	rows := readRows(t, path)
	if len(rows) != 1 || rows[0][0] != "timestamp_iso" {
		t.Fatalf("new append-mode file rows = %v, want just the header", rows)
	}
}

func TestDrainStopsOnChannelClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	sink, err := NewCSVSink(path, false)
	if err != nil {
		t.Fatalf("NewCSVSink() error: %v", err)
	}
	defer sink.Close()

	in := make(chan scan.Measurement, 2)
	in <- scan.Measurement{Timestamp: time.Now(), Frequency: 1e6, Power: ptr(-10)}
	in <- scan.Measurement{Timestamp: time.Now(), Frequency: 2e6, Power: ptr(-20)}
	close(in)

	if err = Drain(context.Background(), sink, in); err != nil {
		t.Fatalf("Drain() error: %v", err)
	}
	if rows := readRows(t, path); len(rows) != 3 {
		t.Fatalf("file has %d rows, want header plus two records", len(rows))
	}
}
