// Package export serialises trajectories and sensor recordings. CSV is
// the spreadsheet-friendly surface; JSON recordings keep full float
// precision so a saved session replays through the pipeline unchanged.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/banshee-data/motion.trace/internal/imu"
	"github.com/banshee-data/motion.trace/internal/monitoring"
)

// csvHeader is the stable column order for trajectory CSV exports.
var csvHeader = []string{
	"timestamp",
	"position_x", "position_y",
	"velocity_x", "velocity_y",
	"acceleration_x", "acceleration_y", "acceleration_z",
	"roll", "pitch", "yaw",
	"cumulative_distance",
	"velocity_magnitude",
}

// WriteTrajectoryCSV writes points as CSV with a header row. Floats are
// formatted with the shortest representation that round-trips.
func WriteTrajectoryCSV(w io.Writer, points []imu.TrajectoryPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i, p := range points {
		roll, pitch, yaw := p.Orientation.Euler()
		row := []string{
			f(p.Timestamp),
			f(p.Position.X), f(p.Position.Y),
			f(p.Velocity.X), f(p.Velocity.Y),
			f(p.Acceleration.X), f(p.Acceleration.Y), f(p.Acceleration.Z),
			f(roll), f(pitch), f(yaw),
			f(p.CumulativeDistance),
			f(p.VelocityMagnitude),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Recording is the on-disk JSON envelope for a captured sample stream.
type Recording struct {
	SessionID string             `json:"session_id"`
	Mode      string             `json:"mode"`
	CreatedAt string             `json:"created_at"`
	Samples   []imu.SensorSample `json:"samples"`
}

// WriteRecording writes the recording as indented JSON.
func WriteRecording(w io.Writer, rec Recording) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("encode recording: %w", err)
	}
	return nil
}

// ReadRecording parses a JSON recording envelope.
func ReadRecording(r io.Reader) (Recording, error) {
	var rec Recording
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		return Recording{}, fmt.Errorf("decode recording: %w", err)
	}
	return rec, nil
}

// LoadSamples extracts replayable samples from a recording, skipping
// records that fail validation or regress in time. Skips are logged and
// counted rather than failing the whole load, so a recording with a few
// corrupt lines still replays.
func LoadSamples(rec Recording) ([]imu.SensorSample, int) {
	out := make([]imu.SensorSample, 0, len(rec.Samples))
	skipped := 0
	lastTS := 0.0
	for i, s := range rec.Samples {
		if err := s.Validate(); err != nil {
			monitoring.Logf("recording: skipping sample %d: %v", i, err)
			skipped++
			continue
		}
		if len(out) > 0 && s.Timestamp <= lastTS {
			monitoring.Logf("recording: skipping sample %d: timestamp %v does not advance past %v", i, s.Timestamp, lastTS)
			skipped++
			continue
		}
		out = append(out, s)
		lastTS = s.Timestamp
	}
	return out, skipped
}
