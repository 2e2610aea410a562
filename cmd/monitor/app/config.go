package app

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DriverRTLTCP = "rtltcp"
	DriverLime   = "lime"

	TelemetryNone   = "none"
	TelemetryManual = "manual"
	TelemetryNMEA   = "nmea"
	TelemetryGPSD   = "gpsd"
)

// Config is the main application configuration. Values from the
// configuration file are overridden by command line flags.
type Config struct {
	Settings  Settings        `yaml:"settings"`
	Device    DeviceConfig    `yaml:"device"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Storage   StorageConfig   `yaml:"storage"`
}

// Settings holds global application settings.
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// DeviceConfig selects and tunes the SDR front end.
type DeviceConfig struct {
	Driver     string  `yaml:"driver"`
	Address    string  `yaml:"address"` // rtl_tcp server address
	SampleRate float64 `yaml:"sampleRate"`
	Gain       float64 `yaml:"gain"`
	Antenna    string  `yaml:"antenna"`
	Bandwidth  float64 `yaml:"bandwidth"`
	FFTSize    int     `yaml:"fftSize"`
}

// TelemetryConfig selects the position source for measurement records.
type TelemetryConfig struct {
	Mode        string  `yaml:"mode"`
	SerialPort  string  `yaml:"serialPort"`
	BaudRate    int     `yaml:"baudRate"`
	GPSDAddress string  `yaml:"gpsdAddress"`
	Latitude    float64 `yaml:"latitude"`
	Longitude   float64 `yaml:"longitude"`
	Altitude    float64 `yaml:"altitude"`
}

// StorageConfig selects the measurement sinks.
type StorageConfig struct {
	CSVPath string `yaml:"csvPath"`
	Append  bool   `yaml:"append"`
	DBPath  string `yaml:"dbPath"`
}

// NewConfig returns a configuration with usable defaults for an rtl_tcp
// front end on the local host.
func NewConfig() *Config {
	return &Config{
		Settings: Settings{LogLevel: "info"},
		Device: DeviceConfig{
			Driver:     DriverRTLTCP,
			Address:    "127.0.0.1:1234",
			SampleRate: 2.048e6,
			Gain:       30,
			FFTSize:    4096,
		},
		Telemetry: TelemetryConfig{
			Mode:        TelemetryNone,
			SerialPort:  "/dev/ttyUSB0",
			BaudRate:    9600,
			GPSDAddress: "localhost:2947",
		},
		Storage: StorageConfig{CSVPath: "power_log.csv"},
	}
}

// LoadConfig reads a YAML configuration file over the defaults.
func LoadConfig(path string) (*Config, error) {
	config := NewConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}
	if err = yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err = config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks cross-field constraints after file and flag merging.
func (c *Config) Validate() error {
	switch c.Device.Driver {
	case DriverRTLTCP, DriverLime:
	default:
		return fmt.Errorf("unknown driver '%s'", c.Device.Driver)
	}

	switch c.Telemetry.Mode {
	case TelemetryNone, TelemetryManual, TelemetryNMEA, TelemetryGPSD:
	default:
		return fmt.Errorf("unknown telemetry mode '%s'", c.Telemetry.Mode)
	}

	if c.Device.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %f", c.Device.SampleRate)
	}
	if c.Device.FFTSize <= 0 {
		return fmt.Errorf("FFT size must be positive, got %d", c.Device.FFTSize)
	}
	if _, err := parseLogLevel(c.Settings.LogLevel); err != nil {
		return err
	}
	return nil
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level '%s'", s)
	}
	return level, nil
}
