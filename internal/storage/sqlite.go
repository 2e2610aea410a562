package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/spectrum-monitor/internal/scan"
)

//go:embed schema.sql
var schemaSQL string

// Index creation is deferred until Close so bulk inserts during a session
// run at full speed.
const indexesSQL = `
CREATE INDEX IF NOT EXISTS idx_measurements_session ON measurements (session_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_measurements_frequency ON measurements (session_id, frequency);`

const (
	insertSessionSQL = `
INSERT INTO sessions (start_time, device_type, device_id, config)
VALUES (CURRENT_TIMESTAMP, ?, ?, ?)`

	selectSessionSQL = `
SELECT id, start_time, device_type, device_id, config
FROM sessions
WHERE id = ?`

	selectSessionsSQL = `
SELECT id, start_time, device_type, device_id, config
FROM sessions
ORDER BY start_time`

	insertMeasurementSQL = `
INSERT INTO measurements (session_id, timestamp, frequency, bin_width, power, latitude, longitude, altitude)
VALUES `

	selectFramesSQL = `
SELECT timestamp, frequency, bin_width, power
FROM measurements
WHERE session_id = ?
ORDER BY timestamp, frequency`
)

// SessionData describes one recorded session.
type SessionData struct {
	ID         int64
	StartTime  time.Time
	DeviceType string
	DeviceID   string
	Config     *string
}

// StoredFrame is one spectrum row reassembled from per-bin measurement
// records, ready for rendering.
type StoredFrame struct {
	Timestamp   time.Time
	Frequencies []float64
	Power       []float64
	BinWidth    float64
}

// SqliteStore persists sessions and measurements in a SQLite database.
// It maintains separate write and read connections: the writer runs in WAL
// mode with relaxed synchronization for insert throughput, the reader opens
// the file read-only. Both are opened lazily on first use.
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a store backed by the database file at dbPath.
// The file and schema are created on first write.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if err = runSQLCommand(db, schemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

// CreateSession registers a new session and returns its ID. Config may be
// a string, raw JSON bytes, or any JSON-serializable value; it is stored
// verbatim for later reproduction of the run.
func (s *SqliteStore) CreateSession(ctx context.Context, deviceType, deviceID string, config any) (sessionID int64, err error) {
	var configData sql.NullString

	switch c := config.(type) {
	case nil:
	case string:
		configData = sql.NullString{String: c, Valid: true}
	case []byte:
		configData = sql.NullString{String: string(c), Valid: true}
	default:
		var p []byte
		if p, err = json.Marshal(config); err != nil {
			return 0, fmt.Errorf("marshaling config: %w", err)
		}
		configData = sql.NullString{String: string(p), Valid: true}
	}

	db, err := s.getWriteDB()
	if err != nil {
		return 0, fmt.Errorf("getting write connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		return 0, fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx, deviceType, deviceID, configData)
	if err != nil {
		return 0, fmt.Errorf("inserting session: %w", err)
	}

	sessionID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting session ID: %w", err)
	}
	return
}

// Session retrieves one session by ID.
func (s *SqliteStore) Session(ctx context.Context, id int64) (session *SessionData, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		return nil, fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	var sess SessionData
	var config sql.NullString
	if err = stmt.QueryRowContext(ctx, id).Scan(&sess.ID, &sess.StartTime, &sess.DeviceType, &sess.DeviceID, &config); err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	if config.Valid {
		sess.Config = &config.String
	}

	return &sess, nil
}

// Sessions lists all sessions in start-time order.
func (s *SqliteStore) Sessions(ctx context.Context) (sessions []*SessionData, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var sess SessionData
		var config sql.NullString
		if err = rows.Scan(&sess.ID, &sess.StartTime, &sess.DeviceType, &sess.DeviceID, &config); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		if config.Valid {
			sess.Config = &config.String
		}
		sessions = append(sessions, &sess)
	}
	return sessions, rows.Err()
}

// StoreFrame inserts a spectrum frame as one measurement record per bin,
// all within a single transaction.
func (s *SqliteStore) StoreFrame(ctx context.Context, sessionID int64, f scan.Frame) error {
	if len(f.Power) == 0 {
		return nil
	}

	binWidth := f.SampleRate / float64(len(f.Power))
	rows := make([]measurementRow, len(f.Power))
	for i, p := range f.Power {
		power := p
		rows[i] = measurementRow{
			SessionID: sessionID,
			Timestamp: f.Timestamp,
			Frequency: f.Center + (float64(i)-float64(len(f.Power))/2)*binWidth,
			BinWidth:  binWidth,
			Power:     &power,
		}
	}
	return s.insertRows(ctx, rows)
}

// BindSession fixes the session every subsequent Store call records
// against, letting a SqliteStore serve as a Sink.
func (s *SqliteStore) BindSession(id int64) *SessionSink {
	return &SessionSink{store: s, sessionID: id}
}

// SessionSink adapts a SqliteStore to the Sink interface for one session.
type SessionSink struct {
	store     *SqliteStore
	sessionID int64
}

func (s *SessionSink) Store(ctx context.Context, m scan.Measurement) error {
	row := toMeasurementRow(m)
	row.SessionID = s.sessionID
	return s.store.insertRows(ctx, []measurementRow{row})
}

// Close is a no-op: the underlying store remains usable and owns the
// database handles.
func (s *SessionSink) Close() error { return nil }

func (s *SqliteStore) insertRows(ctx context.Context, rows []measurementRow) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	values := make([]any, 0, len(rows)*8)

	var sb strings.Builder
	sb.WriteString(insertMeasurementSQL)
	for i, row := range rows {
		values = append(values,
			row.SessionID,
			row.Timestamp.UTC(),
			row.Frequency,
			row.BinWidth,
			toNullFloat(row.Power),
			toNullFloat(row.Latitude),
			toNullFloat(row.Longitude),
			toNullFloat(row.Altitude),
		)

		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?)")
	}

	if _, err = tx.ExecContext(ctx, sb.String(), values...); err != nil {
		return fmt.Errorf("batch inserting measurements: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Frames reads a session's measurements back as spectrum rows, grouping
// records by timestamp. Records with absent power are skipped: a lost
// cycle produces no renderable bins.
func (s *SqliteStore) Frames(ctx context.Context, sessionID int64) (frames []StoredFrame, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectFramesSQL, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying measurements: %w", err)
	}
	defer closeWithError(rows, &err)

	var current *StoredFrame
	for rows.Next() {
		var timestamp time.Time
		var freq, binWidth float64
		var power sql.NullFloat64
		if err = rows.Scan(&timestamp, &freq, &binWidth, &power); err != nil {
			return nil, fmt.Errorf("scanning measurement: %w", err)
		}
		if !power.Valid {
			continue
		}

		if current == nil || !current.Timestamp.Equal(timestamp) {
			frames = append(frames, StoredFrame{Timestamp: timestamp, BinWidth: binWidth})
			current = &frames[len(frames)-1]
		}
		current.Frequencies = append(current.Frequencies, freq)
		current.Power = append(current.Power, power.Float64)
	}
	return frames, rows.Err()
}

// Close builds the deferred indexes and releases both connections. Safe to
// call more than once.
func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, indexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		if writeErr != nil || readErr != nil {
			s.closeErr = errors.Join(writeErr, readErr)
		}
	})

	return s.closeErr
}

type measurementRow struct {
	SessionID int64
	Timestamp time.Time
	Frequency float64
	BinWidth  float64
	Power     *float64
	Latitude  *float64
	Longitude *float64
	Altitude  *float64
}

func toMeasurementRow(m scan.Measurement) measurementRow {
	row := measurementRow{
		Timestamp: m.Timestamp,
		Frequency: m.Frequency,
		Power:     m.Power,
	}
	if m.Position != nil {
		row.Latitude = m.Position.Latitude
		row.Longitude = m.Position.Longitude
		row.Altitude = m.Position.Altitude
	}
	return row
}

func toNullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && !errors.Is(cErr, sql.ErrTxDone) && *err == nil {
		*err = cErr
	}
}
