package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/roman-kulish/spectrum-monitor/internal/scan"
	"github.com/roman-kulish/spectrum-monitor/internal/storage"
)

// multiSink fans each measurement out to every configured sink.
type multiSink []storage.Sink

func (m multiSink) Store(ctx context.Context, msmt scan.Measurement) error {
	for _, sink := range m {
		if err := sink.Store(ctx, msmt); err != nil {
			return err
		}
	}
	return nil
}

func (m multiSink) Close() error {
	var errs []error
	for _, sink := range m {
		errs = append(errs, sink.Close())
	}
	return errors.Join(errs...)
}

// buildSinks assembles the measurement sinks for the logging modes: always
// the CSV file, plus the SQLite store when a database path is configured.
func buildSinks(ctx context.Context, config *Config) (storage.Sink, func(), error) {
	var sinks multiSink

	csv, err := storage.NewCSVSink(config.Storage.CSVPath, config.Storage.Append)
	if err != nil {
		return nil, nil, err
	}
	sinks = append(sinks, csv)

	var store *storage.SqliteStore
	if config.Storage.DBPath != "" {
		var sessionID int64
		store, sessionID, err = openStore(ctx, config)
		if err != nil {
			_ = csv.Close()
			return nil, nil, fmt.Errorf("opening recording store: %w", err)
		}
		sinks = append(sinks, store.BindSession(sessionID))
	}

	cleanup := func() {
		_ = sinks.Close()
		if store != nil {
			_ = store.Close()
		}
	}
	return sinks, cleanup, nil
}
