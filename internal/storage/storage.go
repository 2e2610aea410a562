// Package storage persists measurement data. Two sinks are provided: a CSV
// sink producing plain flat files for spreadsheet import, and a SQLite store
// that additionally records full spectrum frames for later rendering. Both
// accept records from the same acquisition channel.
package storage

import (
	"context"

	"github.com/roman-kulish/spectrum-monitor/internal/scan"
)

// Sink receives measurement records one at a time. Implementations must
// make each record durable before returning so an interrupted run loses at
// most the record in flight.
type Sink interface {
	Store(ctx context.Context, m scan.Measurement) error
	Close() error
}

// Drain feeds a sink from a measurement channel until the channel closes
// or the context is cancelled. It is the standard consumer loop for the
// logging modes.
func Drain(ctx context.Context, sink Sink, in <-chan scan.Measurement) error {
	for {
		select {
		case m, ok := <-in:
			if !ok {
				return nil
			}
			if err := sink.Store(ctx, m); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}
