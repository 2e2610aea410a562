package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/roman-kulish/spectrum-monitor/internal/scan"
)

// csvHeader is the column order of every log file. Position columns stay
// in the header even when no position source is configured so files from
// differently equipped stations line up.
var csvHeader = []string{"timestamp_iso", "freq_hz", "power_db", "gps_lat", "gps_lon", "gps_alt"}

// CSVSink appends measurement records to a CSV file, one row per record.
// Rows are flushed as they are written; a crash or power loss costs at
// most the row in flight.
type CSVSink struct {
	file   *os.File
	writer *csv.Writer
}

// NewCSVSink opens path for writing. With appendFile set an existing file
// is extended and the header is only emitted when the file is empty;
// otherwise the file is truncated and always starts with the header.
func NewCSVSink(path string, appendFile bool) (*CSVSink, error) {
	flags := os.O_CREATE | os.O_WRONLY
	if appendFile {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	s := CSVSink{file: file, writer: csv.NewWriter(file)}

	writeHeader := true
	if appendFile {
		info, err := file.Stat()
		if err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		writeHeader = info.Size() == 0
	}
	if writeHeader {
		if err := s.writer.Write(csvHeader); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("writing header: %w", err)
		}
		s.writer.Flush()
		if err := s.writer.Error(); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("flushing header: %w", err)
		}
	}

	return &s, nil
}

// Store writes one record. Absent values (a failed read's power, missing
// position fields) become empty cells.
func (s *CSVSink) Store(_ context.Context, m scan.Measurement) error {
	row := []string{
		m.Timestamp.UTC().Format(time.RFC3339Nano),
		strconv.FormatFloat(m.Frequency, 'f', -1, 64),
		formatOptional(m.Power, 3),
		"",
		"",
		"",
	}
	if m.Position != nil {
		row[3] = formatOptional(m.Position.Latitude, 6)
		row[4] = formatOptional(m.Position.Longitude, 6)
		row[5] = formatOptional(m.Position.Altitude, 1)
	}

	if err := s.writer.Write(row); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return fmt.Errorf("flushing record: %w", err)
	}
	return nil
}

func (s *CSVSink) Close() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		_ = s.file.Close()
		return fmt.Errorf("flushing: %w", err)
	}
	return s.file.Close()
}

func formatOptional(v *float64, prec int) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}
