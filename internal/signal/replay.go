package signal

import (
	"fmt"

	"github.com/banshee-data/motion.trace/internal/imu"
)

// ReplayGenerator re-emits a pre-recorded sample sequence in order.
// Timestamps are rebased onto the session time base with the recorded
// inter-sample spacing scaled by the speed multiplier, so a replay at
// speed 2 covers the recording in half the simulated time. Each sample
// advances from the previously emitted timestamp, which keeps emitted
// time strictly increasing even when the multiplier changes mid-replay.
type ReplayGenerator struct {
	records   []imu.SensorSample
	startTime float64
	next      int
	lastEmit  float64
}

// NewReplayGenerator wraps an ordered record sequence for replay.
// startTime rebases the first sample; pass the first record's own
// timestamp to replay in place. The sequence must be non-empty, valid
// and strictly time-ordered (the export loader guarantees this for
// records it accepts).
func NewReplayGenerator(records []imu.SensorSample, startTime float64) (*ReplayGenerator, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("replay requires at least one record")
	}
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("replay record %d: %w", i, err)
		}
		if i > 0 && rec.Timestamp <= records[i-1].Timestamp {
			return nil, fmt.Errorf("replay record %d: timestamp %v does not increase past %v",
				i, rec.Timestamp, records[i-1].Timestamp)
		}
	}
	return &ReplayGenerator{records: records, startTime: startTime}, nil
}

// Mode reports ModeReplay.
func (g *ReplayGenerator) Mode() Mode { return ModeReplay }

// Reset rewinds playback to the first record.
func (g *ReplayGenerator) Reset() {
	g.next = 0
	g.lastEmit = 0
}

// Remaining returns the number of records not yet emitted.
func (g *ReplayGenerator) Remaining() int { return len(g.records) - g.next }

// NextSample emits the next record. Once the sequence is exhausted it
// returns ErrReplayComplete on this and every subsequent call until
// Reset.
func (g *ReplayGenerator) NextSample(dt, speed float64) (imu.SensorSample, error) {
	if err := checkStep(dt, speed); err != nil {
		return imu.SensorSample{}, err
	}
	if g.next >= len(g.records) {
		return imu.SensorSample{}, ErrReplayComplete
	}

	rec := g.records[g.next]

	out := rec
	if g.next == 0 {
		out.Timestamp = g.startTime
	} else {
		out.Timestamp = g.lastEmit + (rec.Timestamp-g.records[g.next-1].Timestamp)/speed
	}
	g.lastEmit = out.Timestamp
	g.next++
	return out, nil
}
