// Package store persists sensor recordings in SQLite so saved sessions
// can be listed and replayed later. Sample streams are stored as one
// JSON document per recording to keep full float precision.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/motion.trace/internal/export"
)

// ErrNotFound is returned when a recording ID does not exist.
var ErrNotFound = errors.New("recording not found")

type DB struct {
	*sql.DB
}

// OpenDB opens (creating if needed) the recording database at path
// without touching the schema. Migration commands use this so the
// migration files stay the only schema authority.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	return &DB{db}, nil
}

// NewDB opens the recording database at path and brings the schema up
// to the latest migration. Use ":memory:" for an ephemeral store.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema migrations: %w", err)
	}
	return db, nil
}

// RecordingMeta describes a stored recording without its sample payload.
type RecordingMeta struct {
	RecordingID     string  `json:"recording_id"`
	SessionID       string  `json:"session_id"`
	Mode            string  `json:"mode"`
	SampleCount     int64   `json:"sample_count"`
	DurationSeconds float64 `json:"duration_seconds"`
	CreatedAt       string  `json:"created_at"`
}

// SaveRecording stores a recording and returns its generated ID.
func (db *DB) SaveRecording(rec export.Recording) (string, error) {
	if len(rec.Samples) == 0 {
		return "", fmt.Errorf("recording has no samples")
	}

	payload, err := json.Marshal(rec.Samples)
	if err != nil {
		return "", fmt.Errorf("marshal samples: %w", err)
	}

	id := uuid.NewString()
	duration := rec.Samples[len(rec.Samples)-1].Timestamp - rec.Samples[0].Timestamp
	createdAt := rec.CreatedAt
	if createdAt == "" {
		createdAt = time.Now().UTC().Format(time.RFC3339)
	}

	_, err = db.Exec(`
		INSERT INTO recordings
			(recording_id, session_id, mode, sample_count, duration_seconds, samples, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, rec.SessionID, rec.Mode, len(rec.Samples), duration, string(payload), createdAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert recording: %w", err)
	}
	return id, nil
}

// ListRecordings returns metadata for all recordings, newest first.
func (db *DB) ListRecordings() ([]RecordingMeta, error) {
	rows, err := db.Query(`
		SELECT recording_id, session_id, mode, sample_count, duration_seconds, created_at
		FROM recordings
		ORDER BY created_at DESC, recording_id`)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	var out []RecordingMeta
	for rows.Next() {
		var m RecordingMeta
		if err := rows.Scan(&m.RecordingID, &m.SessionID, &m.Mode, &m.SampleCount, &m.DurationSeconds, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan recording row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetRecording loads a full recording by ID.
func (db *DB) GetRecording(id string) (export.Recording, error) {
	var rec export.Recording
	var payload string
	err := db.QueryRow(`
		SELECT session_id, mode, samples, created_at
		FROM recordings WHERE recording_id = ?`, id).
		Scan(&rec.SessionID, &rec.Mode, &payload, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return export.Recording{}, ErrNotFound
	}
	if err != nil {
		return export.Recording{}, fmt.Errorf("load recording %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(payload), &rec.Samples); err != nil {
		return export.Recording{}, fmt.Errorf("unmarshal samples for %s: %w", id, err)
	}
	return rec, nil
}

// DeleteRecording removes a recording by ID.
func (db *DB) DeleteRecording(id string) error {
	res, err := db.Exec(`DELETE FROM recordings WHERE recording_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete recording %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
