package telemetry

import (
	"testing"

	"github.com/adrianmo/go-nmea"
)

func TestNoneProvider(t *testing.T) {
	var p Provider = None{}
	if pos := p.Get(); pos != nil {
		t.Errorf("expected absent position, got %+v", pos)
	}
}

func TestManualProvider(t *testing.T) {
	var p Provider = Manual{Latitude: -33.865, Longitude: 151.209, Altitude: 58}

	pos := p.Get()
	if pos == nil {
		t.Fatal("expected a position")
	}
	if pos.Latitude == nil || *pos.Latitude != -33.865 {
		t.Errorf("unexpected latitude: %v", pos.Latitude)
	}
	if pos.Longitude == nil || *pos.Longitude != 151.209 {
		t.Errorf("unexpected longitude: %v", pos.Longitude)
	}
	if pos.Altitude == nil || *pos.Altitude != 58 {
		t.Errorf("unexpected altitude: %v", pos.Altitude)
	}
	if pos.Timestamp.IsZero() {
		t.Error("expected a timestamp")
	}
}

func TestPositionFromSentence(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantFix bool
	}{
		{
			name:    "GGA with fix",
			line:    "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47",
			wantFix: true,
		},
		{
			name:    "GGA without fix",
			line:    "$GPGGA,002153.000,,,,,0,00,,,M,,M,,*7D",
			wantFix: false,
		},
		{
			name:    "GSV carries no position",
			line:    "$GPGSV,3,1,11,03,03,111,00,04,15,270,00,06,01,010,00,13,06,292,00*74",
			wantFix: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sentence, err := nmea.Parse(tc.line)
			if err != nil {
				t.Fatalf("parsing sentence: %v", err)
			}

			pos := positionFromSentence(sentence)
			if tc.wantFix && pos == nil {
				t.Fatal("expected a position, got nil")
			}
			if !tc.wantFix && pos != nil {
				t.Fatalf("expected no position, got %+v", pos)
			}
		})
	}
}

func TestPositionFromGGAFields(t *testing.T) {
	sentence, err := nmea.Parse("$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47")
	if err != nil {
		t.Fatalf("parsing sentence: %v", err)
	}

	pos := positionFromSentence(sentence)
	if pos == nil {
		t.Fatal("expected a position")
	}
	if pos.Latitude == nil || *pos.Latitude < 48.11 || *pos.Latitude > 48.12 {
		t.Errorf("unexpected latitude: %v", pos.Latitude)
	}
	if pos.Longitude == nil || *pos.Longitude < 11.51 || *pos.Longitude > 11.52 {
		t.Errorf("unexpected longitude: %v", pos.Longitude)
	}
	if pos.Altitude == nil || *pos.Altitude != 545.4 {
		t.Errorf("unexpected altitude: %v", pos.Altitude)
	}
	if pos.Satellites == nil || *pos.Satellites != 8 {
		t.Errorf("unexpected satellite count: %v", pos.Satellites)
	}
}
