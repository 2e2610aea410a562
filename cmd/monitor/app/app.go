// Package app wires the monitor CLI: one subcommand per usage mode over a
// shared device, telemetry and storage setup.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roman-kulish/spectrum-monitor/internal/scan"
	"github.com/roman-kulish/spectrum-monitor/internal/sdr"
	"github.com/roman-kulish/spectrum-monitor/internal/sdr/lime"
	"github.com/roman-kulish/spectrum-monitor/internal/sdr/rtltcp"
	"github.com/roman-kulish/spectrum-monitor/internal/storage"
	"github.com/roman-kulish/spectrum-monitor/internal/telemetry"
)

// NewRootCommand assembles the monitor command tree. The logger's level is
// adjusted through logLevel once configuration is known.
func NewRootCommand(logger *slog.Logger, logLevel *slog.LevelVar) *cobra.Command {
	var configPath string
	config := NewConfig()

	root := &cobra.Command{
		Use:           "monitor",
		Short:         "SDR power measurement toolkit",
		Long:          "Measures RF power with an SDR front end: live spectrum display, fixed-frequency logging, band sweeps and one-shot captures.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				loaded, err := LoadConfig(configPath)
				if err != nil {
					return err
				}
				*config = *loaded
			}
			applyDeviceFlags(cmd, config)

			if err := config.Validate(); err != nil {
				return err
			}

			level, err := parseLogLevel(config.Settings.LogLevel)
			if err != nil {
				return err
			}
			logLevel.Set(level)

			registerDrivers(config)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "path to the configuration file")
	pf.String("driver", config.Device.Driver, "SDR driver (rtltcp, lime)")
	pf.String("address", config.Device.Address, "rtl_tcp server address")
	pf.Float64("rate", config.Device.SampleRate, "sample rate (Hz)")
	pf.Float64("gain", config.Device.Gain, "tuner gain (dB)")
	pf.String("antenna", config.Device.Antenna, "antenna port name")
	pf.Float64("bandwidth", config.Device.Bandwidth, "analog filter bandwidth (Hz), 0 leaves it wide open")
	pf.Int("fft", config.Device.FFTSize, "samples per measurement block")
	pf.String("log-level", config.Settings.LogLevel, "log level (debug, info, warn, error)")

	pf.String("gps-mode", config.Telemetry.Mode, "position source (none, manual, nmea, gpsd)")
	pf.String("gps-port", config.Telemetry.SerialPort, "NMEA receiver serial port")
	pf.Int("gps-baud", config.Telemetry.BaudRate, "NMEA receiver baud rate")
	pf.String("gpsd-address", config.Telemetry.GPSDAddress, "gpsd server address")
	pf.Float64("latitude", config.Telemetry.Latitude, "manual latitude (decimal degrees)")
	pf.Float64("longitude", config.Telemetry.Longitude, "manual longitude (decimal degrees)")
	pf.Float64("altitude", config.Telemetry.Altitude, "manual altitude (meters)")

	pf.String("db", config.Storage.DBPath, "SQLite database path, empty disables recording")

	root.AddCommand(
		newLiveCommand(config, logger),
		newLogCommand(config, logger),
		newSweepCommand(config, logger),
		newSnapshotCommand(config, logger),
	)

	return root
}

// applyDeviceFlags copies changed flag values over the file configuration.
func applyDeviceFlags(cmd *cobra.Command, config *Config) {
	pf := cmd.Flags()
	if pf.Changed("driver") {
		config.Device.Driver, _ = pf.GetString("driver")
	}
	if pf.Changed("address") {
		config.Device.Address, _ = pf.GetString("address")
	}
	if pf.Changed("rate") {
		config.Device.SampleRate, _ = pf.GetFloat64("rate")
	}
	if pf.Changed("gain") {
		config.Device.Gain, _ = pf.GetFloat64("gain")
	}
	if pf.Changed("antenna") {
		config.Device.Antenna, _ = pf.GetString("antenna")
	}
	if pf.Changed("bandwidth") {
		config.Device.Bandwidth, _ = pf.GetFloat64("bandwidth")
	}
	if pf.Changed("fft") {
		config.Device.FFTSize, _ = pf.GetInt("fft")
	}
	if pf.Changed("log-level") {
		config.Settings.LogLevel, _ = pf.GetString("log-level")
	}
	if pf.Changed("gps-mode") {
		config.Telemetry.Mode, _ = pf.GetString("gps-mode")
	}
	if pf.Changed("gps-port") {
		config.Telemetry.SerialPort, _ = pf.GetString("gps-port")
	}
	if pf.Changed("gps-baud") {
		config.Telemetry.BaudRate, _ = pf.GetInt("gps-baud")
	}
	if pf.Changed("gpsd-address") {
		config.Telemetry.GPSDAddress, _ = pf.GetString("gpsd-address")
	}
	if pf.Changed("latitude") {
		config.Telemetry.Latitude, _ = pf.GetFloat64("latitude")
	}
	if pf.Changed("longitude") {
		config.Telemetry.Longitude, _ = pf.GetFloat64("longitude")
	}
	if pf.Changed("altitude") {
		config.Telemetry.Altitude, _ = pf.GetFloat64("altitude")
	}
	if pf.Changed("db") {
		config.Storage.DBPath, _ = pf.GetString("db")
	}
}

// registerDrivers installs the SDR backends. Called once per process after
// configuration is known; the rtl_tcp driver needs the server address up
// front.
func registerDrivers(config *Config) {
	sdr.Register(rtltcp.NewDriver(config.Device.Address))
	sdr.Register(lime.NewDriver())
}

// openSession finds the first available device for the configured driver,
// applies the RX settings and starts streaming. Settings the hardware
// cannot honor are logged and skipped rather than failing the run.
func openSession(ctx context.Context, config *Config, logger *slog.Logger) (*scan.Session, func(), error) {
	logger.Debug("drivers available", slog.String("drivers", strings.Join(sdr.Drivers(), ", ")))

	dev, found, err := sdr.OpenFirst(ctx, config.Device.Driver)
	if err != nil {
		if errors.Is(err, sdr.ErrNoDevice) {
			return nil, nil, fmt.Errorf("no %s devices found", config.Device.Driver)
		}
		return nil, nil, fmt.Errorf("opening device: %w", err)
	}

	for _, info := range found {
		logger.Info("device found", slog.String("device", info.String()))
	}

	if err = dev.Configure(sdr.RXConfig{
		SampleRate: config.Device.SampleRate,
		Gain:       config.Device.Gain,
		Antenna:    config.Device.Antenna,
		Bandwidth:  config.Device.Bandwidth,
	}); err != nil {
		if !errors.Is(err, sdr.ErrUnsupported) {
			_ = dev.Close()
			return nil, nil, fmt.Errorf("configuring device: %w", err)
		}
		logger.Debug("configuration partially applied", slog.String("error", err.Error()))
	}

	provider, stopTelemetry, err := buildTelemetry(config, logger)
	if err != nil {
		_ = dev.Close()
		return nil, nil, err
	}

	session, err := scan.NewSession(dev,
		scan.Config{SampleRate: config.Device.SampleRate, BlockLen: config.Device.FFTSize},
		scan.WithTelemetry(provider),
		scan.WithLogger(logger),
	)
	if err != nil {
		stopTelemetry()
		_ = dev.Close()
		return nil, nil, fmt.Errorf("starting session: %w", err)
	}

	cleanup := func() {
		if err := session.Close(); err != nil {
			logger.Warn("closing session", slog.String("error", err.Error()))
		}
		stopTelemetry()
	}
	return session, cleanup, nil
}

func buildTelemetry(config *Config, logger *slog.Logger) (telemetry.Provider, func(), error) {
	noop := func() {}

	switch config.Telemetry.Mode {
	case TelemetryNone:
		return telemetry.None{}, noop, nil

	case TelemetryManual:
		return telemetry.Manual{
			Latitude:  config.Telemetry.Latitude,
			Longitude: config.Telemetry.Longitude,
			Altitude:  config.Telemetry.Altitude,
		}, noop, nil

	case TelemetryNMEA:
		provider, err := telemetry.NewNMEASerial(config.Telemetry.SerialPort, config.Telemetry.BaudRate, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("opening NMEA receiver: %w", err)
		}
		return provider, closeQuietly(provider.Close, logger), nil

	case TelemetryGPSD:
		provider, err := telemetry.NewGPSD(config.Telemetry.GPSDAddress)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to gpsd: %w", err)
		}
		return provider, closeQuietly(provider.Close, logger), nil

	default:
		return nil, nil, fmt.Errorf("unknown telemetry mode '%s'", config.Telemetry.Mode)
	}
}

func closeQuietly(close func() error, logger *slog.Logger) func() {
	return func() {
		if err := close(); err != nil {
			logger.Warn("closing telemetry", slog.String("error", err.Error()))
		}
	}
}

// openStore opens the optional SQLite recording store and registers a new
// session for this run.
func openStore(ctx context.Context, config *Config) (*storage.SqliteStore, int64, error) {
	if config.Storage.DBPath == "" {
		return nil, 0, nil
	}

	store := storage.NewSqliteStore(config.Storage.DBPath)
	sessionID, err := store.CreateSession(ctx, config.Device.Driver, config.Device.Address, config)
	if err != nil {
		_ = store.Close()
		return nil, 0, fmt.Errorf("creating session: %w", err)
	}
	return store, sessionID, nil
}
